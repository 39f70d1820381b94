package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/amyq/internal/cli/appctx"
	"github.com/lherron/amyq/internal/id"
	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/selectors"
)

var showCmd = &cobra.Command{
	Use:   "show <kind> <record>",
	Short: "Print every mergeable field of a record",
	Args:  cobra.ExactArgs(2),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runShow),
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := appctx.Context(cmd)
	schema, err := merge.DefaultRegistry().Lookup(args[0])
	if err != nil {
		return err
	}
	recordUUID, _, err := selectors.Resolve(ctx, app.DB, id.Type(args[0]), args[1])
	if err != nil {
		return err
	}
	rec, err := merge.LoadRecord(ctx, app.DB, schema, recordUUID)
	if err != nil {
		return err
	}

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(rec, nil, nil)
	}

	rows := [][]string{
		{"id", rec.ID},
		{"uuid", rec.UUID},
		{"etag", fmt.Sprint(rec.ETag)},
	}
	for _, name := range schema.FieldNames() {
		rows = append(rows, []string{name, merge.Display(rec.Values[name])})
	}
	return r.Render(nil, []string{"FIELD", "VALUE"}, rows)
}
