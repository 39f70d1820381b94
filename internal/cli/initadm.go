package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lherron/amyq/internal/cli/appctx"
	"github.com/lherron/amyq/internal/config"
	"github.com/lherron/amyq/internal/db"
	"github.com/lherron/amyq/internal/store"
)

var initAdmCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the amyq database",
	Long: `Initialize creates the SQLite database, runs migrations and seeds a
default human actor to attribute merges to.`,
	RunE: runInitAdm,
}

var (
	initAdmActorSlug string
	initAdmActorName string
)

func init() {
	rootAdmCmd.AddCommand(initAdmCmd)

	initAdmCmd.Flags().StringVar(&initAdmActorSlug, "actor-slug", "local-human", "Slug for the default human actor")
	initAdmCmd.Flags().StringVar(&initAdmActorName, "actor-name", "Local Human", "Display name for the default human actor")
}

func runInitAdm(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath := cmd.Flag("db").Value.String(); dbPath != "" {
		cfg.DBPath = dbPath
	}

	dbExists := false
	if _, err := os.Stat(cfg.DBPath); err == nil {
		dbExists = true
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	out := cmd.OutOrStdout()
	if dbExists {
		fmt.Fprintf(out, "✓ Database already initialized at %s\n", cfg.DBPath)
		fmt.Fprintf(out, "✓ Migrations applied\n")
		return nil
	}

	actor, err := store.New(database).Actors.Create(appctx.Context(cmd), initAdmActorSlug, initAdmActorName, "human")
	if err != nil {
		return fmt.Errorf("failed to seed default actor: %w", err)
	}

	fmt.Fprintf(out, "✓ Initialized new database at %s\n", cfg.DBPath)
	fmt.Fprintf(out, "✓ Seeded default actor: %s (%s)\n", actor.Slug, actor.ID)
	fmt.Fprintf(out, "\nSet AMYQ_ACTOR=%s to attribute merges to it.\n", actor.Slug)
	return nil
}
