package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrated(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	return database
}

func TestSequences(t *testing.T) {
	seqs := Sequences()
	require.NotEmpty(t, seqs)
	assert.Equal(t, Sequence{Counter: "actor_seq", Table: "actors", Prefix: "A-"}, seqs[0])
	assert.Equal(t, Sequence{Counter: "event_log", Table: "event_log"}, seqs[len(seqs)-1])
}

func TestSequenceDriftDetectAndFix(t *testing.T) {
	database := migrated(t)
	ctx := context.Background()

	drifts, err := database.SequenceDrifts(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	// An explicit friendly ID bypasses the trigger and its counter.
	_, err = database.Exec(`
		INSERT INTO persons (uuid, id, username)
		VALUES ('00000000-0000-4000-8000-0000000000aa', 'P-00042', 'drift_person')
	`)
	require.NoError(t, err)

	drifts, err = database.SequenceDrifts(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "person_seq", drifts[0].Counter)
	assert.Equal(t, int64(0), drifts[0].Current)
	assert.Equal(t, int64(42), drifts[0].Max)

	fixed, err := database.FixSequenceDrifts(ctx)
	require.NoError(t, err)
	assert.Len(t, fixed, 1)

	var seq int64
	require.NoError(t, database.Get(&seq, "SELECT seq FROM sqlite_sequence WHERE name = 'person_seq'"))
	assert.Equal(t, int64(42), seq)

	drifts, err = database.SequenceDrifts(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	_, err = database.Exec(`INSERT INTO persons (uuid, username) VALUES ('00000000-0000-4000-8000-0000000000ab', 'next_person')`)
	require.NoError(t, err)
	var next string
	require.NoError(t, database.Get(&next, "SELECT id FROM persons WHERE username = 'next_person'"))
	assert.Equal(t, "P-00043", next)
}

func TestFriendlyIDTriggersAssignSequentialIDs(t *testing.T) {
	database := migrated(t)

	var system string
	require.NoError(t, database.Get(&system, "SELECT id FROM actors WHERE slug = 'system'"))
	assert.Equal(t, "A-00001", system)

	for _, u := range []string{"00000000-0000-4000-8000-0000000000c1", "00000000-0000-4000-8000-0000000000c2"} {
		_, err := database.Exec(`INSERT INTO persons (uuid, username) VALUES (?, ?)`, u, "user-"+u[len(u)-2:])
		require.NoError(t, err)
	}
	var ids []string
	require.NoError(t, database.Select(&ids, "SELECT id FROM persons ORDER BY id"))
	assert.Equal(t, []string{"P-00001", "P-00002"}, ids)
}
