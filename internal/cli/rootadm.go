package cli

import (
	"github.com/spf13/cobra"
)

var rootAdmCmd = &cobra.Command{
	Use:   "amyqadm",
	Short: "Administrative CLI for the amyq database and infrastructure",
	Long: `amyqadm is the administrative companion to amyq. It handles database
lifecycle (init, migrate), actor management, merge lock inspection and
health checks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteAdmin runs the admin root command
func ExecuteAdmin() error {
	return rootAdmCmd.Execute()
}

func init() {
	rootAdmCmd.PersistentFlags().String("db", "", "Path to database file (overrides AMYQ_DB_PATH)")
	rootAdmCmd.PersistentFlags().String("as", "", "Actor to perform action as (slug or friendly ID)")
}
