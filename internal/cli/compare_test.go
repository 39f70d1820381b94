package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/store"
)

func TestRunCompare(t *testing.T) {
	resetFlags(t)
	database, dbPath := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)
	ctx := context.Background()

	a, err := app.Store.Persons.Create(ctx, app.ActorUUID, store.PersonCreateParams{
		Username: "hana", Personal: "Hana", Family: "Sato", Notes: "met at PyCon\nteaches R",
	})
	require.NoError(t, err)
	b, err := app.Store.Persons.Create(ctx, app.ActorUUID, store.PersonCreateParams{
		Username: "hsato", Personal: "Hana", Family: "Sato", Notes: "met at PyCon\nteaches Python",
	})
	require.NoError(t, err)
	_, err = app.Store.Lookups.Link(ctx, app.ActorUUID, "person.domains", a.UUID, "chemistry")
	require.NoError(t, err)
	_, err = app.Store.Lookups.Link(ctx, app.ActorUUID, "person.domains", b.UUID, "chemistry", "physics")
	require.NoError(t, err)

	compareDiff = true
	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runCompare(app, cmd, []string{"person", "hana", b.ID}))

	out := stdout.String()
	assert.Contains(t, out, "person "+a.ID+" (hana)  <-  "+b.ID+" (hsato)")
	assert.Contains(t, out, "FIELD")
	assert.NotContains(t, out, "personal", "equal fields are hidden without --all")
	assert.Contains(t, out, "--- base/notes")
	assert.Contains(t, out, "+teaches Python")
	assert.Contains(t, out, "domains")
	assert.Contains(t, out, "Conflicts: username, notes")
}

func TestRunCompareAllAndJSON(t *testing.T) {
	resetFlags(t)
	database, dbPath := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)
	a := createPerson(t, app, "ivo", "")
	b := createPerson(t, app, "ivo2", "")

	compareAll = true
	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runCompare(app, cmd, []string{"person", a.ID, b.ID}))
	assert.Contains(t, stdout.String(), "personal")

	cmd, stdout, _ = newTestCmd("-o", "json")
	require.NoError(t, runCompare(app, cmd, []string{"person", a.ID, b.ID}))
	var cmp merge.Comparison
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &cmp), stdout.String())
	assert.Equal(t, []string{"username"}, cmp.Conflicts)
}

func TestRunCompareNoConflicts(t *testing.T) {
	resetFlags(t)
	database, dbPath := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)
	ctx := context.Background()
	a, err := app.Store.Requests.Create(ctx, app.ActorUUID, store.RequestCreateParams{Email: "jo@example.org", Personal: "Jo", Family: "Ng"})
	require.NoError(t, err)
	b, err := app.Store.Requests.Create(ctx, app.ActorUUID, store.RequestCreateParams{Email: "jo@example.org", Personal: "Jo", Family: "Ng"})
	require.NoError(t, err)

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runCompare(app, cmd, []string{"training_request", a.ID, b.ID}))
	assert.Contains(t, stdout.String(), "All fields are equal.")
	assert.Contains(t, stdout.String(), "No conflicts")
}

func TestRunShow(t *testing.T) {
	resetFlags(t)
	database, dbPath := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)
	a := createPerson(t, app, "kai", "kai@example.org")

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runShow(app, cmd, []string{"person", "kai@example.org"}))
	out := stdout.String()
	assert.Contains(t, out, a.UUID)
	assert.Contains(t, out, "kai@example.org")
	assert.Contains(t, out, "(null)", "unset nullable fields")

	cmd, _, _ = newTestCmd()
	assert.Error(t, runShow(app, cmd, []string{"widget", a.ID}))
}
