// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, database opening, logger construction and
// actor resolution to reduce boilerplate across commands.
package appctx

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lherron/amyq/internal/config"
	"github.com/lherron/amyq/internal/db"
	"github.com/lherron/amyq/internal/logging"
	"github.com/lherron/amyq/internal/store"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// DB is the opened database connection (nil if NeedsDB is false)
	DB *db.DB

	// Store wraps DB (nil if NeedsDB is false)
	Store *store.Store

	// Logger writes diagnostics to stderr at the configured level
	Logger *zap.Logger

	// ActorUUID is the resolved actor UUID (empty if NeedsActor is false)
	ActorUUID string

	// ActorID is the resolved actor friendly ID (e.g., "A-00001")
	ActorID string
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
		a.Store = nil
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the database.
	NeedsDB bool

	// NeedsActor indicates whether to resolve the current actor.
	// Requires NeedsDB to also be true.
	NeedsActor bool
}

// DefaultOptions returns default options (DB required, no actor).
func DefaultOptions() Options {
	return Options{NeedsDB: true}
}

// WithActor returns options that require both DB and actor.
func WithActor() Options {
	return Options{NeedsDB: true, NeedsActor: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Override DB path from --db flag if provided
	if dbFlag := cmd.Flag("db"); dbFlag != nil {
		if dbPath := dbFlag.Value.String(); dbPath != "" {
			app.Config.DBPath = dbPath
		}
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	app.Logger = logger

	if opts.NeedsDB {
		database, err := db.Open(app.Config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		_, pending, err := database.MigrationStatus()
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to check migration status: %w", err)
		}
		if len(pending) > 0 {
			database.Close()
			return nil, fmt.Errorf("database requires migration: %d pending migration(s). Run 'amyqadm migrate' to update", len(pending))
		}

		app.DB = database
		app.Store = store.New(database)
	}

	if opts.NeedsActor {
		if app.DB == nil {
			app.Close()
			return nil, fmt.Errorf("actor resolution requires database (set NeedsDB: true)")
		}

		actorUUID, actorID, err := resolveActor(app, cmd)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.ActorUUID = actorUUID
		app.ActorID = actorID
	}

	return app, nil
}

// resolveActor resolves the current actor from the --as flag, env, or config.
func resolveActor(app *App, cmd *cobra.Command) (uuid, friendlyID string, err error) {
	var identifier string
	if asFlag := cmd.Flag("as"); asFlag != nil {
		identifier = asFlag.Value.String()
	}
	if identifier == "" {
		identifier = app.Config.GetActorID()
	}
	if identifier == "" {
		return "", "", fmt.Errorf("no actor configured (set AMYQ_ACTOR, AMYQ_ACTOR_ID, or use --as flag)")
	}

	actor, err := app.Store.Actors.Resolve(Context(cmd), identifier)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve actor: %w", err)
	}
	return actor.UUID, actor.ID, nil
}

// Context returns the command's context, or a background context for
// commands run outside Execute.
func Context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
