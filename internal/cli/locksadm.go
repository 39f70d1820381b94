package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/amyq/internal/cli/appctx"
	"github.com/lherron/amyq/internal/lock"
)

var locksAdmCmd = &cobra.Command{
	Use:   "locks",
	Short: "Inspect and clear merge locks",
	Long: `Merges lock both records for their duration. A merge that crashed leaves
its locks until they expire; these commands show and remove them. Only the
sqlite lock backend records locks in the database.`,
}

var locksAdmLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded merge locks",
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runLocksAdmList),
}

var locksAdmClearCmd = &cobra.Command{
	Use:   "clear [key...]",
	Short: "Remove expired merge locks, or the named ones",
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runLocksAdmClear),
}

var (
	locksAdmOutput   string
	locksAdmClearAll bool
)

func init() {
	rootAdmCmd.AddCommand(locksAdmCmd)
	locksAdmCmd.AddCommand(locksAdmLsCmd, locksAdmClearCmd)

	locksAdmLsCmd.Flags().StringVarP(&locksAdmOutput, "output", "o", "", "Output format: table, json, yaml or tsv")
	locksAdmLsCmd.Flags().Bool("porcelain", false, "Machine-readable output")
	locksAdmClearCmd.Flags().BoolVar(&locksAdmClearAll, "all", false, "Remove every lock, including ones held by running merges")
}

func runLocksAdmList(app *appctx.App, cmd *cobra.Command, args []string) error {
	holdings, err := lock.NewSQLite(app.DB.DB, lock.Owner("amyqadm")).List(appctx.Context(cmd))
	if err != nil {
		return err
	}

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(holdings, nil, nil)
	}
	if len(holdings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No merge locks.")
		return nil
	}

	now := time.Now().UTC()
	var rows [][]string
	for _, h := range holdings {
		state := "held"
		if lockExpired(h, now) {
			state = "expired"
		}
		rows = append(rows, []string{h.Key, h.Holder, h.AcquiredAt, h.ExpiresAt, state})
	}
	return r.Render(nil, []string{"KEY", "HOLDER", "ACQUIRED", "EXPIRES", "STATE"}, rows)
}

func runLocksAdmClear(app *appctx.App, cmd *cobra.Command, args []string) error {
	n, err := lock.NewSQLite(app.DB.DB, lock.Owner("amyqadm")).Clear(appctx.Context(cmd), locksAdmClearAll, args...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d lock(s)\n", n)
	return nil
}
