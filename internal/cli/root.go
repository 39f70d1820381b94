package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "amyq",
	Short: "Find and merge duplicate workshop records",
	Long: `amyq keeps the workshop database free of duplicates. It compares two
person, event or training request records side by side and merges the
duplicate into the record that survives, moving every task, award and
link along with it in a single transaction.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to database file (overrides AMYQ_DB_PATH)")
	rootCmd.PersistentFlags().String("as", "", "Actor to perform action as (slug or friendly ID)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json, yaml or tsv (overrides AMYQ_OUTPUT)")
	rootCmd.PersistentFlags().Bool("porcelain", false, "Machine-readable output")
}
