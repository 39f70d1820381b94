package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/amyq/internal/cli/appctx"
	"github.com/lherron/amyq/internal/config"
	"github.com/lherron/amyq/internal/db"
	"github.com/lherron/amyq/internal/lock"
	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/render"
)

var doctorAdmCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database health and merge readiness",
	Long: `Performs health checks on the database file, SQLite settings, the schema
the merge engine expects, friendly-ID sequences and merge locks.

With --fix, sequence drift is repaired and expired merge locks are removed.`,
	RunE: runDoctorAdm,
}

var (
	doctorAdmJSON    bool
	doctorAdmFix     bool
	doctorAdmVerbose bool
)

type checkResult struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Status   string   `json:"status"` // "ok", "warning", "error"
	Message  string   `json:"message,omitempty"`
	Details  []string `json:"details,omitempty"`
}

type doctorReport struct {
	Version       string        `json:"version"`
	DBPath        string        `json:"db_path"`
	Checks        []checkResult `json:"checks"`
	Fixes         []string      `json:"fixes,omitempty"`
	Warnings      int           `json:"warnings"`
	Errors        int           `json:"errors"`
	OverallStatus string        `json:"overall_status"`
}

func init() {
	rootAdmCmd.AddCommand(doctorAdmCmd)
	doctorAdmCmd.Flags().BoolVar(&doctorAdmJSON, "json", false, "Output JSON")
	doctorAdmCmd.Flags().BoolVar(&doctorAdmFix, "fix", false, "Repair sequence drift and remove expired locks")
	doctorAdmCmd.Flags().BoolVar(&doctorAdmVerbose, "verbose", false, "Verbose output")
}

func runDoctorAdm(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath := cmd.Flag("db").Value.String(); dbPath != "" {
		cfg.DBPath = dbPath
	}

	report := runDoctorChecks(appctx.Context(cmd), cfg.DBPath, doctorAdmFix)

	if doctorAdmJSON {
		r := render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: render.FormatJSON})
		if err := r.RenderJSON(report); err != nil {
			return err
		}
	} else {
		printDoctorReport(cmd.OutOrStdout(), report, doctorAdmVerbose)
	}

	if report.Errors > 0 {
		return exitError(1, fmt.Errorf("doctor found %d error(s)", report.Errors))
	}
	return nil
}

// runDoctorChecks runs every check against the database at dbPath.
func runDoctorChecks(ctx context.Context, dbPath string, fix bool) *doctorReport {
	report := &doctorReport{
		Version:       Version,
		DBPath:        dbPath,
		Checks:        []checkResult{},
		OverallStatus: "ok",
	}

	report.Checks = append(report.Checks, checkDatabaseFile(dbPath)...)
	if report.Checks[0].Status == "ok" {
		database, err := db.Open(dbPath)
		if err != nil {
			report.Checks = append(report.Checks, checkResult{
				Name: "database_open", Category: "Database File", Status: "error",
				Message: fmt.Sprintf("Failed to open database: %v", err),
			})
		} else {
			defer database.Close()
			if fix {
				report.Fixes = applyDoctorFixes(ctx, database)
			}
			report.Checks = append(report.Checks, checkDatabasePragmas(database)...)
			report.Checks = append(report.Checks, checkSchema(ctx, database)...)
			report.Checks = append(report.Checks, checkForeignKeys(database)...)
			report.Checks = append(report.Checks, checkSequenceDrift(ctx, database)...)
			report.Checks = append(report.Checks, checkMergeLocks(ctx, database)...)
		}
	}

	for _, check := range report.Checks {
		switch check.Status {
		case "warning":
			report.Warnings++
		case "error":
			report.Errors++
		}
	}
	switch {
	case report.Errors > 0:
		report.OverallStatus = "error"
	case report.Warnings > 0:
		report.OverallStatus = "warning"
	}
	return report
}

func checkDatabaseFile(dbPath string) []checkResult {
	info, err := os.Stat(dbPath)
	if err != nil {
		return []checkResult{{
			Name: "db_file_exists", Category: "Database File", Status: "error",
			Message: fmt.Sprintf("Database file not found: %s", dbPath),
			Details: []string{"Run 'amyqadm init' to create it"},
		}}
	}

	results := []checkResult{{
		Name: "db_file_exists", Category: "Database File", Status: "ok",
		Message: fmt.Sprintf("Database file: %s (%.1f MB)", dbPath, float64(info.Size())/(1024*1024)),
	}}

	f, err := os.OpenFile(dbPath, os.O_RDWR, 0)
	if err != nil {
		results = append(results, checkResult{
			Name: "db_file_permissions", Category: "Database File", Status: "error",
			Message: fmt.Sprintf("Database file not writable: %v", err),
		})
	} else {
		f.Close()
		results = append(results, checkResult{
			Name: "db_file_permissions", Category: "Database File", Status: "ok",
			Message: "Database file is readable and writable",
		})
	}
	return results
}

func checkDatabasePragmas(database *db.DB) []checkResult {
	var results []checkResult

	var journalMode string
	_ = database.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if journalMode == "wal" {
		results = append(results, checkResult{Name: "wal_mode", Category: "Database Health", Status: "ok", Message: "WAL mode enabled"})
	} else {
		results = append(results, checkResult{
			Name: "wal_mode", Category: "Database Health", Status: "warning",
			Message: fmt.Sprintf("WAL mode not enabled (current: %s)", journalMode),
			Details: []string{"Concurrent merges serialize on the database file"},
		})
	}

	var foreignKeys int
	_ = database.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys)
	if foreignKeys == 1 {
		results = append(results, checkResult{Name: "foreign_keys", Category: "Database Health", Status: "ok", Message: "Foreign keys enabled"})
	} else {
		results = append(results, checkResult{
			Name: "foreign_keys", Category: "Database Health", Status: "error",
			Message: "Foreign keys not enabled",
			Details: []string{"Merges rely on foreign keys to detect protected references"},
		})
	}

	var integrity string
	_ = database.QueryRow("PRAGMA integrity_check").Scan(&integrity)
	if integrity == "ok" {
		results = append(results, checkResult{Name: "integrity_check", Category: "Database Health", Status: "ok", Message: "Database integrity check passed"})
	} else {
		results = append(results, checkResult{
			Name: "integrity_check", Category: "Database Health", Status: "error",
			Message: fmt.Sprintf("Database integrity check failed: %s", integrity),
			Details: []string{"Database may be corrupted", "Restore from backup recommended"},
		})
	}
	return results
}

func checkSchema(ctx context.Context, database *db.DB) []checkResult {
	var results []checkResult

	_, pending, err := database.MigrationStatus()
	switch {
	case err != nil:
		results = append(results, checkResult{Name: "migrations", Category: "Schema", Status: "error", Message: fmt.Sprintf("Failed to read migration status: %v", err)})
	case len(pending) > 0:
		results = append(results, checkResult{
			Name: "migrations", Category: "Schema", Status: "error",
			Message: fmt.Sprintf("%d pending migration(s)", len(pending)),
			Details: append([]string{"Run 'amyqadm migrate'"}, pending...),
		})
	default:
		results = append(results, checkResult{Name: "migrations", Category: "Schema", Status: "ok", Message: "All migrations applied"})
	}

	registry := merge.DefaultRegistry()
	if err := registry.Validate(ctx, database); err != nil {
		results = append(results, checkResult{
			Name: "merge_schema", Category: "Schema", Status: "error",
			Message: "Merge schema does not match the database",
			Details: strings.Split(err.Error(), "; "),
		})
	} else {
		results = append(results, checkResult{
			Name: "merge_schema", Category: "Schema", Status: "ok",
			Message: fmt.Sprintf("Merge schema matches the database (%s)", strings.Join(registry.Kinds(), ", ")),
		})
	}
	return results
}

func checkForeignKeys(database *db.DB) []checkResult {
	violations, err := database.ForeignKeyCheck()
	if err != nil {
		return []checkResult{{Name: "foreign_key_check", Category: "Data Integrity", Status: "error", Message: err.Error()}}
	}
	if len(violations) == 0 {
		return []checkResult{{Name: "foreign_key_check", Category: "Data Integrity", Status: "ok", Message: "No dangling references"}}
	}

	var details []string
	for _, v := range violations {
		row := "?"
		if v.RowID != nil {
			row = fmt.Sprint(*v.RowID)
		}
		details = append(details, fmt.Sprintf("%s row %s -> %s", v.Table, row, v.Parent))
	}
	return []checkResult{{
		Name: "foreign_key_check", Category: "Data Integrity", Status: "error",
		Message: fmt.Sprintf("%d row(s) reference missing records", len(violations)),
		Details: details,
	}}
}

func checkSequenceDrift(ctx context.Context, database *db.DB) []checkResult {
	drifts, err := database.SequenceDrifts(ctx)
	if err != nil {
		return []checkResult{{Name: "sequence_drift", Category: "Data Integrity", Status: "error", Message: err.Error()}}
	}
	if len(drifts) == 0 {
		return []checkResult{{Name: "sequence_drift", Category: "Data Integrity", Status: "ok", Message: "Friendly-ID sequences are current"}}
	}

	var details []string
	for _, d := range drifts {
		details = append(details, fmt.Sprintf("%s: sequence %d, max ID %d", d.Table, d.Current, d.Max))
	}
	return []checkResult{{
		Name: "sequence_drift", Category: "Data Integrity", Status: "warning",
		Message: fmt.Sprintf("%d friendly-ID sequence(s) behind existing rows", len(drifts)),
		Details: append(details, "Run with --fix to repair"),
	}}
}

func checkMergeLocks(ctx context.Context, database *db.DB) []checkResult {
	holdings, err := lock.NewSQLite(database.DB, lock.Owner("amyqadm")).List(ctx)
	if err != nil {
		return []checkResult{{Name: "merge_locks", Category: "Merge Locks", Status: "error", Message: err.Error()}}
	}

	now := time.Now().UTC()
	var held, expired []string
	for _, h := range holdings {
		if lockExpired(h, now) {
			expired = append(expired, h.Key)
		} else {
			held = append(held, fmt.Sprintf("%s held by %s until %s", h.Key, h.Holder, h.ExpiresAt))
		}
	}

	var results []checkResult
	if len(held) == 0 {
		results = append(results, checkResult{Name: "merge_locks", Category: "Merge Locks", Status: "ok", Message: "No merge in progress"})
	} else {
		results = append(results, checkResult{
			Name: "merge_locks", Category: "Merge Locks", Status: "ok",
			Message: fmt.Sprintf("%d record(s) locked by running merges", len(held)),
			Details: held,
		})
	}
	if len(expired) > 0 {
		results = append(results, checkResult{
			Name: "expired_locks", Category: "Merge Locks", Status: "warning",
			Message: fmt.Sprintf("%d expired lock(s) left by interrupted merges", len(expired)),
			Details: append(expired, "Run with --fix or 'amyqadm locks clear' to remove"),
		})
	}
	return results
}

func lockExpired(h lock.Holding, now time.Time) bool {
	expires, err := time.Parse(time.RFC3339Nano, h.ExpiresAt)
	if err != nil {
		return false
	}
	return !expires.After(now)
}

func applyDoctorFixes(ctx context.Context, database *db.DB) []string {
	var fixes []string

	drifts, err := database.FixSequenceDrifts(ctx)
	if err != nil {
		fixes = append(fixes, fmt.Sprintf("failed to repair sequences: %v", err))
	}
	for _, d := range drifts {
		fixes = append(fixes, fmt.Sprintf("advanced %s sequence from %d to %d", d.Table, d.Current, d.Max))
	}

	n, err := lock.NewSQLite(database.DB, lock.Owner("amyqadm")).Clear(ctx, false)
	if err != nil {
		fixes = append(fixes, fmt.Sprintf("failed to clear expired locks: %v", err))
	} else if n > 0 {
		fixes = append(fixes, fmt.Sprintf("removed %d expired merge lock(s)", n))
	}
	return fixes
}

func printDoctorReport(w io.Writer, report *doctorReport, verbose bool) {
	fmt.Fprintf(w, "amyq doctor %s\n\n", report.Version)
	fmt.Fprintf(w, "Database: %s\n\n", report.DBPath)

	for _, fix := range report.Fixes {
		fmt.Fprintf(w, "fixed: %s\n", fix)
	}
	if len(report.Fixes) > 0 {
		fmt.Fprintln(w)
	}

	category := ""
	for _, check := range report.Checks {
		if check.Category != category {
			if category != "" {
				fmt.Fprintln(w)
			}
			category = check.Category
			fmt.Fprintln(w, category)
		}
		icon := "✓"
		switch check.Status {
		case "warning":
			icon = "⚠"
		case "error":
			icon = "✗"
		}
		fmt.Fprintf(w, "  %s %s\n", icon, check.Message)
		if verbose || check.Status != "ok" {
			for _, detail := range check.Details {
				fmt.Fprintf(w, "      %s\n", detail)
			}
		}
	}
	fmt.Fprintln(w)

	switch {
	case report.Errors > 0:
		fmt.Fprintf(w, "Summary: %d error(s), %d warning(s)\n", report.Errors, report.Warnings)
	case report.Warnings > 0:
		fmt.Fprintf(w, "Summary: %d warning(s)\n", report.Warnings)
	default:
		fmt.Fprintln(w, "Summary: All checks passed ✓")
	}
}
