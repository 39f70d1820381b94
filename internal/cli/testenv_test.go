package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lherron/amyq/internal/cli/appctx"
	"github.com/lherron/amyq/internal/config"
	"github.com/lherron/amyq/internal/db"
	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/store"
	"github.com/lherron/amyq/internal/testutil"
)

// setupTestEnv creates a migrated database and returns it with its path.
func setupTestEnv(t *testing.T) (*db.DB, string) {
	t.Helper()
	return testutil.TempDBPath(t)
}

// createTestApp creates an appctx.App acting as the system actor.
func createTestApp(t *testing.T, database *db.DB, dbPath string) *appctx.App {
	t.Helper()
	cfg := &config.Config{
		DBPath:      dbPath,
		Output:      "table",
		LockBackend: config.LockBackendSQLite,
	}
	return &appctx.App{
		Config:    cfg,
		DB:        database,
		Store:     store.New(database),
		Logger:    zap.NewNop(),
		ActorUUID: domain.SystemActorUUID,
		ActorID:   "A-00001",
	}
}

// newTestCmd returns a command carrying the root's output flags, writing to
// the returned stdout and stderr buffers.
func newTestCmd(args ...string) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	cmd.Flags().StringP("output", "o", "", "")
	cmd.Flags().Bool("porcelain", false, "")
	_ = cmd.ParseFlags(args)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetContext(context.Background())
	return cmd, &stdout, &stderr
}

func createPerson(t *testing.T, app *appctx.App, username, email string) *store.CreateResult {
	t.Helper()
	params := store.PersonCreateParams{Username: username, Personal: "Ada", Family: "Lovelace"}
	if email != "" {
		params.Email = &email
	}
	res, err := app.Store.Persons.Create(context.Background(), app.ActorUUID, params)
	require.NoError(t, err)
	return res
}

// resetFlags restores the package-level flag variables a test changes.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		mergeTake, mergeCombine, mergeOverride, mergeClear, mergeRelation = nil, nil, nil, nil, nil
		mergeDryRun, mergeBaseETag, mergeOtherETag = false, 0, 0
		mergeBatch, mergeJobs, mergeContinueOnError = "", 1, false
		compareDiff, compareAll = false, false
		logType, logResource, logLimit, logCursor = "", "", 50, ""
		addPersonal, addFamily, addEmail, addGitHub, addAirport, addAffiliation, addNotes = "", "", "", "", "", "", ""
		locksAdmClearAll = false
	}
	reset()
	t.Cleanup(reset)
}
