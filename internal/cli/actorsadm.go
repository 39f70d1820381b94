package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/amyq/internal/cli/appctx"
)

var actorsAdmCmd = &cobra.Command{
	Use:   "actors",
	Short: "Manage actors that merges are attributed to",
}

var actorsAdmLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all actors",
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runActorsAdmList),
}

var actorAdmAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Create a new actor",
	Long:  `Creates a new actor with the given slug. The slug will be normalized to lowercase [a-z0-9-].`,
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runActorAdmAdd),
}

var (
	actorsAdmOutput string
	actorAdmAddName string
	actorAdmAddRole string
)

func init() {
	rootAdmCmd.AddCommand(actorsAdmCmd)
	actorsAdmCmd.AddCommand(actorsAdmLsCmd, actorAdmAddCmd)

	actorsAdmLsCmd.Flags().StringVarP(&actorsAdmOutput, "output", "o", "", "Output format: table, json, yaml or tsv")
	actorsAdmLsCmd.Flags().Bool("porcelain", false, "Machine-readable output")

	actorAdmAddCmd.Flags().StringVar(&actorAdmAddName, "name", "", "Display name for the actor")
	actorAdmAddCmd.Flags().StringVar(&actorAdmAddRole, "role", "human", "Actor role (human, agent, system)")
}

func runActorsAdmList(app *appctx.App, cmd *cobra.Command, args []string) error {
	actors, err := app.Store.Actors.List(appctx.Context(cmd))
	if err != nil {
		return err
	}

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(actors, nil, nil)
	}

	var rows [][]string
	for _, actor := range actors {
		displayName := ""
		if actor.DisplayName != nil {
			displayName = *actor.DisplayName
		}
		rows = append(rows, []string{actor.ID, actor.Slug, displayName, actor.Role})
	}
	return r.Render(nil, []string{"ID", "SLUG", "DISPLAY NAME", "ROLE"}, rows)
}

func runActorAdmAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	actor, err := app.Store.Actors.Create(appctx.Context(cmd), args[0], actorAdmAddName, actorAdmAddRole)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created actor %s (%s)\n", actor.Slug, actor.ID)
	return nil
}
