package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/amyq/internal/cli/appctx"
	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/render"
	"github.com/lherron/amyq/internal/selectors"
)

var compareCmd = &cobra.Command{
	Use:   "compare <kind> <base> <other>",
	Short: "Show two records side by side before merging",
	Long: `Compare loads two records of the same kind and prints every scalar
field, the number of related rows on each side, and the fields that must be
resolved before the records can be merged.

Kinds: person, event, training_request.
Records are selected by friendly ID (P-00001), UUID, or natural key
(username, email, event slug).`,
	Args: cobra.ExactArgs(3),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runCompare),
}

var (
	compareDiff bool
	compareAll  bool
)

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().BoolVar(&compareDiff, "diff", false, "Show a unified diff for differing text fields")
	compareCmd.Flags().BoolVar(&compareAll, "all", false, "List equal fields too")
}

func runCompare(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := appctx.Context(cmd)
	plan := &merge.Plan{Kind: args[0], Base: args[1], Other: args[2]}
	if err := selectors.ResolvePlan(ctx, app.DB, plan); err != nil {
		return err
	}

	engine, cleanup, err := newEngine(ctx, app.Config, app.DB, app.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	cmp, err := engine.Compare(ctx, plan.Kind, plan.Base, plan.Other)
	if err != nil {
		return err
	}

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(cmp, nil, nil)
	}
	return printComparison(cmd.OutOrStdout(), r, cmp)
}

func printComparison(w io.Writer, r *render.Renderer, cmp *merge.Comparison) error {
	fmt.Fprintf(w, "%s %s  <-  %s\n\n", cmp.Kind, describeRef(cmp.Base), describeRef(cmp.Other))

	var rows [][]string
	var diffs []merge.FieldComparison
	for _, f := range cmp.Fields {
		if !f.Differs && !compareAll {
			continue
		}
		mark := ""
		if f.Differs {
			mark = "*"
		}
		rows = append(rows, []string{mark, f.Field, render.Truncate(merge.Display(f.Base), 40), render.Truncate(merge.Display(f.Other), 40)})
		if f.Differs && f.Type == merge.FieldText {
			diffs = append(diffs, f)
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "All fields are equal.")
	} else if err := r.Render(nil, []string{"", "FIELD", "BASE", "OTHER"}, rows); err != nil {
		return err
	}

	if compareDiff {
		for _, f := range diffs {
			base, _ := f.Base.(string)
			other, _ := f.Other.(string)
			diff, err := render.TextDiff(base, other, "base/"+f.Field, "other/"+f.Field)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\n%s", diff)
		}
	}

	rows = rows[:0]
	for _, rc := range cmp.Relations {
		if rc.Base == 0 && rc.Other == 0 {
			continue
		}
		rows = append(rows, []string{rc.Relation, string(rc.Kind), strconv.Itoa(rc.Base), strconv.Itoa(rc.Other), strconv.Itoa(rc.Shared)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w)
		if err := r.Render(nil, []string{"RELATION", "KIND", "BASE", "OTHER", "SHARED"}, rows); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	if len(cmp.Conflicts) == 0 {
		fmt.Fprintln(w, "No conflicts: the records can be merged without choices.")
	} else {
		fmt.Fprintf(w, "Conflicts: %s\n", strings.Join(cmp.Conflicts, ", "))
	}
	return nil
}

func describeRef(ref merge.RecordRef) string {
	if ref.Label == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s (%s)", ref.ID, ref.Label)
}
