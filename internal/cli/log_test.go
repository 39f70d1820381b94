package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
)

func TestRunLog(t *testing.T) {
	resetFlags(t)
	database, dbPath := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)
	a := createPerson(t, app, "pat", "")
	b := createPerson(t, app, "pat2", "")

	mergeTake = []string{"username=base"}
	cmd, _, _ := newTestCmd()
	require.NoError(t, runMerge(app, cmd, []string{"person", a.ID, b.ID}))

	logType = "person.merged"
	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runLog(app, cmd, []string{a.ID}))
	assert.Contains(t, stdout.String(), "person.merged")
	assert.Contains(t, stdout.String(), a.UUID)

	// the absorbed record is gone but its history is not
	logType = ""
	cmd, stdout, _ = newTestCmd("-o", "json")
	require.NoError(t, runLog(app, cmd, []string{b.UUID}))
	var page eventlog.Page
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &page), stdout.String())
	var types []string
	for _, e := range page.Entries {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, "person.deleted")
	assert.Contains(t, types, "person.created")
}

func TestRunLogPaging(t *testing.T) {
	resetFlags(t)
	database, dbPath := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)
	createPerson(t, app, "quin", "")
	createPerson(t, app, "quin2", "")

	logLimit = 1
	cmd, stdout, stderr := newTestCmd()
	require.NoError(t, runLog(app, cmd, nil))
	assert.Contains(t, stdout.String(), "person.created")
	assert.Contains(t, stderr.String(), "more: amyq log --cursor ")

	logType = "event.created"
	cmd, stdout, _ = newTestCmd()
	require.NoError(t, runLog(app, cmd, nil))
	assert.Equal(t, "No events.\n", stdout.String())
}

func TestResolveLogTarget(t *testing.T) {
	resetFlags(t)
	database, dbPath := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)
	a := createPerson(t, app, "ray", "")
	cmd, _, _ := newTestCmd()

	got, err := resolveLogTarget(app, cmd, "0F0F0F0F-0000-4000-8000-000000000000")
	require.NoError(t, err)
	assert.Equal(t, "0f0f0f0f-0000-4000-8000-000000000000", got)

	got, err = resolveLogTarget(app, cmd, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.UUID, got)

	got, err = resolveLogTarget(app, cmd, "p:ray")
	require.NoError(t, err)
	assert.Equal(t, a.UUID, got)

	_, err = resolveLogTarget(app, cmd, "ray")
	assert.True(t, domain.IsValidation(err))
}
