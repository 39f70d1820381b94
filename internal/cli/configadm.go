package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/amyq/internal/cli/appctx"
	"github.com/lherron/amyq/internal/config"
	"github.com/lherron/amyq/internal/db"
	"github.com/lherron/amyq/internal/render"
	"github.com/lherron/amyq/internal/store"
	"github.com/lherron/amyq/internal/webhooks"
)

var configAdmCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management and introspection",
}

var configDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Show effective configuration and validate settings",
	Long: `Displays the effective configuration values and their sources, and validates
that the database, actor and merge backends are usable.`,
	RunE: runConfigDoctor,
}

var configDoctorJSON bool

type configValue struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
	Valid  bool   `json:"valid"`
	Note   string `json:"note,omitempty"`
}

type configDoctorReport struct {
	Config   []configValue `json:"config"`
	Warnings []string      `json:"warnings"`
}

func init() {
	rootAdmCmd.AddCommand(configAdmCmd)
	configAdmCmd.AddCommand(configDoctorCmd)

	configDoctorCmd.Flags().BoolVar(&configDoctorJSON, "json", false, "Output as JSON")
}

// envSource names the first of vars that is set, or fallback.
func envSource(fallback string, vars ...string) string {
	for _, v := range vars {
		if os.Getenv(v) != "" {
			return "environment variable " + v
		}
	}
	return fallback
}

func runConfigDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbFlag := cmd.Flag("db"); dbFlag != nil && dbFlag.Value.String() != "" {
		cfg.DBPath = dbFlag.Value.String()
	}

	report := &configDoctorReport{Warnings: []string{}}
	add := func(v configValue) { report.Config = append(report.Config, v) }

	dbValue := configValue{Name: "AMYQ_DB_PATH", Value: cfg.DBPath, Source: envSource("default", "AMYQ_DB_PATH_FILE", "AMYQ_DB_PATH")}
	if dbFlag := cmd.Flag("db"); dbFlag != nil && dbFlag.Changed {
		dbValue.Source = "command-line flag --db"
	}
	var database *db.DB
	if _, err := os.Stat(cfg.DBPath); err != nil {
		dbValue.Note = "File does not exist"
		report.Warnings = append(report.Warnings, "Database file does not exist - run 'amyqadm init' to create it")
	} else if database, err = db.Open(cfg.DBPath); err != nil {
		dbValue.Note = fmt.Sprintf("File exists but failed to open: %v", err)
	} else {
		defer database.Close()
		dbValue.Valid = true
	}
	add(dbValue)

	actorValue := configValue{Name: "AMYQ_ACTOR", Value: cfg.GetActorID(), Source: envSource("config file", "AMYQ_ACTOR_ID", "AMYQ_ACTOR")}
	if asFlag := cmd.Flag("as"); asFlag != nil && asFlag.Changed {
		actorValue.Value = asFlag.Value.String()
		actorValue.Source = "command-line flag --as"
	}
	switch {
	case actorValue.Value == "":
		actorValue.Value = "(not set)"
		report.Warnings = append(report.Warnings, "No actor configured - set AMYQ_ACTOR or use --as flag")
	case database != nil:
		actor, err := store.New(database).Actors.Resolve(appctx.Context(cmd), actorValue.Value)
		if err != nil {
			actorValue.Note = fmt.Sprintf("Failed to resolve: %v", err)
			report.Warnings = append(report.Warnings, fmt.Sprintf("Actor '%s' not found in database", actorValue.Value))
		} else {
			actorValue.Valid = true
			actorValue.Note = fmt.Sprintf("Resolved to %s", actor.ID)
		}
	}
	add(actorValue)

	lockValue := configValue{Name: "AMYQ_LOCK_BACKEND", Value: cfg.LockBackend, Source: envSource("default", "AMYQ_LOCK_BACKEND"), Valid: true}
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		lockValue.Note = "redis at " + cfg.RedisAddr
	case config.LockBackendMemory:
		lockValue.Note = "locks are only visible inside one process"
		report.Warnings = append(report.Warnings, "memory lock backend does not protect merges run by other processes")
	}
	add(lockValue)
	add(configValue{Name: "AMYQ_LOCK_TTL", Value: cfg.LockTTL.String(), Source: envSource("default", "AMYQ_LOCK_TTL"), Valid: cfg.LockTTL > 0})

	kafkaValue := configValue{Name: "AMYQ_KAFKA_BROKERS", Value: strings.Join(cfg.KafkaBrokers, ","), Source: envSource("default", "AMYQ_KAFKA_BROKERS"), Valid: true}
	if len(cfg.KafkaBrokers) == 0 {
		kafkaValue.Value = "(not set)"
		kafkaValue.Note = "merges are not published"
	} else {
		kafkaValue.Note = "topic " + cfg.KafkaTopic
	}
	add(kafkaValue)

	hooks := webhooks.NewDispatcher(cfg.WebhookURLs, nil).URLs()
	hookValue := configValue{Name: "AMYQ_WEBHOOK_URLS", Value: strings.Join(hooks, ","), Source: envSource("default", "AMYQ_WEBHOOK_URLS"), Valid: len(hooks) == len(cfg.WebhookURLs)}
	switch {
	case len(cfg.WebhookURLs) == 0:
		hookValue.Value = "(not set)"
		hookValue.Valid = true
	case !hookValue.Valid:
		hookValue.Note = fmt.Sprintf("%d of %d urls are invalid or duplicates", len(cfg.WebhookURLs)-len(hooks), len(cfg.WebhookURLs))
		report.Warnings = append(report.Warnings, "some webhook urls will be skipped")
	}
	add(hookValue)

	if configDoctorJSON {
		return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: render.FormatJSON}).RenderJSON(report)
	}
	printConfigReport(cmd.OutOrStdout(), report)
	return nil
}

func printConfigReport(w io.Writer, report *configDoctorReport) {
	fmt.Fprintln(w, "Configuration Report")
	fmt.Fprintln(w, "====================")
	fmt.Fprintln(w)

	for _, v := range report.Config {
		fmt.Fprintf(w, "%s: %s\n", v.Name, v.Value)
		fmt.Fprintf(w, "    Source: %s\n", v.Source)
		switch {
		case v.Valid && v.Note != "":
			fmt.Fprintf(w, "    Status: ✓ %s\n", v.Note)
		case v.Valid:
			fmt.Fprintln(w, "    Status: ✓ Valid")
		case v.Note != "":
			fmt.Fprintf(w, "    Status: ✗ %s\n", v.Note)
		default:
			fmt.Fprintln(w, "    Status: ✗ Not configured")
		}
	}
	fmt.Fprintln(w)

	if len(report.Warnings) == 0 {
		fmt.Fprintln(w, "✓ No warnings")
		return
	}
	fmt.Fprintln(w, "Warnings:")
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  ⚠  %s\n", warning)
	}
}
