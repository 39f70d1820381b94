package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/amyq/internal/cli/appctx"
	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
	"github.com/lherron/amyq/internal/id"
	"github.com/lherron/amyq/internal/render"
	"github.com/lherron/amyq/internal/selectors"
)

var logCmd = &cobra.Command{
	Use:   "log [record]",
	Short: "Show change history from the event log",
	Long: `Show change history from the event log, newest first.

Examples:
  amyq log                          # Everything recent
  amyq log P-00001                  # History of one person
  amyq log e:2024-01-10-oslo        # History of an event by slug
  amyq log --type person.merged     # Every person merge
  amyq log 6f1c...                  # A deleted record, by UUID
`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runLog),
}

var (
	logType     string
	logResource string
	logLimit    int
	logCursor   string
)

func init() {
	rootCmd.AddCommand(logCmd)

	logCmd.Flags().StringVar(&logType, "type", "", "Only show one event type (e.g. person.merged)")
	logCmd.Flags().StringVar(&logResource, "resource", "", "Only show one resource type (e.g. task)")
	logCmd.Flags().IntVar(&logLimit, "limit", 50, "Limit number of events (0 = unlimited)")
	logCmd.Flags().StringVar(&logCursor, "cursor", "", "Continue from a previous page's cursor")
}

// resolveLogTarget maps a log argument to a resource UUID. UUIDs pass through
// unresolved so that deleted records keep their history.
func resolveLogTarget(app *appctx.App, cmd *cobra.Command, ref string) (string, error) {
	if id.IsUUID(ref) {
		return strings.ToLower(ref), nil
	}
	kind := selectors.Parse(ref).Kind
	if kind == "" {
		t, _, err := id.Parse(ref)
		if err != nil {
			return "", &domain.ValidationError{Field: "record", Message: fmt.Sprintf("%q is not a UUID, friendly ID or p:/e:/r: selector", ref)}
		}
		kind = t
	}
	recordUUID, _, err := selectors.Resolve(appctx.Context(cmd), app.DB, kind, ref)
	return recordUUID, err
}

func runLog(app *appctx.App, cmd *cobra.Command, args []string) error {
	filter := eventlog.Filter{
		ResourceType: logResource,
		EventType:    logType,
		Limit:        logLimit,
		Cursor:       logCursor,
	}
	if len(args) == 1 {
		target, err := resolveLogTarget(app, cmd, args[0])
		if err != nil {
			return err
		}
		filter.ResourceUUID = target
	}

	page, err := eventlog.ListPage(appctx.Context(cmd), app.DB, filter)
	if err != nil {
		return err
	}

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(page, nil, nil)
	}

	var rows [][]string
	for _, e := range page.Entries {
		resource, actor, etag, payload := "", "", "", ""
		if e.ResourceUUID != nil {
			resource = *e.ResourceUUID
		}
		if e.ActorUUID != nil {
			actor = *e.ActorUUID
		}
		if e.ETag != nil {
			etag = fmt.Sprint(*e.ETag)
		}
		if e.Payload != nil {
			payload = render.Truncate(*e.Payload, 60)
		}
		rows = append(rows, []string{fmt.Sprint(e.ID), e.Timestamp, e.EventType, resource, actor, etag, payload})
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No events.")
		return nil
	}
	if err := r.Render(nil, []string{"#", "TIME", "EVENT", "RESOURCE", "ACTOR", "ETAG", "PAYLOAD"}, rows); err != nil {
		return err
	}
	if page.NextCursor != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "more: amyq log --cursor %s\n", page.NextCursor)
	}
	return nil
}
