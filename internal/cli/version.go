package cli

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/lherron/amyq/internal/merge"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Displays version, commit, and build date information.`,
	RunE:  runVersion,
}

var versionJSON bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	return printVersion(cmd, "amyq", versionJSON)
}

// buildInfo fills in commit and date from the Go build's VCS stamp when the
// binary was built without -ldflags.
func buildInfo() (commit, date string) {
	commit, date = GitCommit, BuildDate
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, date
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && commit == "unknown":
			commit = s.Value
		case s.Key == "vcs.time" && date == "unknown":
			date = s.Value
		}
	}
	return commit, date
}

func printVersion(cmd *cobra.Command, binary string, asJSON bool) error {
	commit, date := buildInfo()
	if asJSON {
		var commands []string
		for _, sub := range cmd.Root().Commands() {
			if sub.IsAvailableCommand() {
				commands = append(commands, sub.Name())
			}
		}
		output := map[string]any{
			"binary":                    binary,
			"version":                   Version,
			"commit":                    commit,
			"build_date":                date,
			"machine_interface_version": 1,
			"supported_commands":        commands,
			"mergeable_kinds":           merge.DefaultRegistry().Kinds(),
			"supported_formats":         []string{"table", "json", "yaml", "tsv", "porcelain"},
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", binary, Version)
	fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
	fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	fmt.Fprintf(cmd.OutOrStdout(), "  machine interface: v%d\n", 1)
	return nil
}
