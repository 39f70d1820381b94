package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lherron/amyq/internal/bulk"
	"github.com/lherron/amyq/internal/cli/appctx"
	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/selectors"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <kind> <base> <other>",
	Short: "Merge a duplicate record into the record that survives",
	Long: `Merge folds <other> into <base> and deletes <other>.

Every scalar field on which the records disagree needs a choice:
  --take email=other        keep other's value (or =base)
  --combine notes           join both texts, base first
  --override affiliation=X  set an explicit value
  --clear twitter           set the field to null

Related rows (tasks, awards, domains...) are moved to base. Rows base
already has an equivalent of are dropped. Change this per relation with
--relation task_set=base-only|other-only|union.

With --batch, plans are read from a YAML file (a list of plans with kind,
base, other, scalar_choices and relation_choices) and run with --jobs
workers. Exit status is 0 when every plan merged, 5 when some failed and
1 when none did.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if mergeBatch != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	RunE: appctx.WithApp(appctx.WithActor(), runMerge),
}

var (
	mergeTake      []string
	mergeCombine   []string
	mergeOverride  []string
	mergeClear     []string
	mergeRelation  []string
	mergeDryRun    bool
	mergeBaseETag  int64
	mergeOtherETag int64

	mergeBatch           string
	mergeJobs            int
	mergeContinueOnError bool
)

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringArrayVar(&mergeTake, "take", nil, "Resolve a field from one side: field=base|other (repeatable)")
	mergeCmd.Flags().StringArrayVar(&mergeCombine, "combine", nil, "Join both values of a text field (repeatable)")
	mergeCmd.Flags().StringArrayVar(&mergeOverride, "override", nil, "Set a field explicitly: field=value (repeatable)")
	mergeCmd.Flags().StringArrayVar(&mergeClear, "clear", nil, "Set a nullable field to null (repeatable)")
	mergeCmd.Flags().StringArrayVar(&mergeRelation, "relation", nil, "Relation strategy: relation=union|base-only|other-only (repeatable)")
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "Run the merge and roll it back, reporting what would change")
	mergeCmd.Flags().Int64Var(&mergeBaseETag, "base-etag", 0, "Fail unless base's etag matches")
	mergeCmd.Flags().Int64Var(&mergeOtherETag, "other-etag", 0, "Fail unless other's etag matches")

	mergeCmd.Flags().StringVar(&mergeBatch, "batch", "", "Read merge plans from a YAML file (- for stdin)")
	mergeCmd.Flags().IntVarP(&mergeJobs, "jobs", "j", 1, "Parallel workers for --batch")
	mergeCmd.Flags().BoolVar(&mergeContinueOnError, "continue-on-error", false, "Keep going after a plan fails")
}

// planFlags collects the per-field and per-relation choices of one merge.
type planFlags struct {
	Take      []string
	Combine   []string
	Override  []string
	Clear     []string
	Relation  []string
	DryRun    bool
	BaseETag  int64
	OtherETag int64
}

func splitAssignment(flag, s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("--%s expects name=value, got %q", flag, s)
	}
	return name, value, nil
}

// buildPlan turns command-line choices into a merge plan. Base and other
// are left as selectors.
func buildPlan(kind, base, other string, f planFlags) (*merge.Plan, error) {
	plan := &merge.Plan{
		Kind:            kind,
		Base:            base,
		Other:           other,
		ScalarChoices:   map[string]merge.ScalarChoice{},
		RelationChoices: map[string]merge.Strategy{},
		DryRun:          f.DryRun,
		BaseETag:        f.BaseETag,
		OtherETag:       f.OtherETag,
	}

	set := func(field string, choice merge.ScalarChoice) error {
		if _, dup := plan.ScalarChoices[field]; dup {
			return fmt.Errorf("field %q is resolved more than once", field)
		}
		plan.ScalarChoices[field] = choice
		return nil
	}

	for _, s := range f.Take {
		field, side, err := splitAssignment("take", s)
		if err != nil {
			return nil, err
		}
		if side != string(merge.SideBase) && side != string(merge.SideOther) {
			return nil, fmt.Errorf("--take %s: side must be base or other", field)
		}
		if err := set(field, merge.ScalarChoice{Side: merge.Side(side)}); err != nil {
			return nil, err
		}
	}
	for _, field := range f.Combine {
		if err := set(field, merge.ScalarChoice{Side: merge.SideCombine}); err != nil {
			return nil, err
		}
	}
	for _, s := range f.Override {
		field, value, err := splitAssignment("override", s)
		if err != nil {
			return nil, err
		}
		if err := set(field, merge.ScalarChoice{Side: merge.SideOverride, Value: value}); err != nil {
			return nil, err
		}
	}
	for _, field := range f.Clear {
		if err := set(field, merge.ScalarChoice{Side: merge.SideOverride}); err != nil {
			return nil, err
		}
	}
	for _, s := range f.Relation {
		rel, strategy, err := splitAssignment("relation", s)
		if err != nil {
			return nil, err
		}
		plan.RelationChoices[rel] = merge.Strategy(strategy)
	}
	return plan, nil
}

func runMerge(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := appctx.Context(cmd)
	engine, cleanup, err := newEngine(ctx, app.Config, app.DB, app.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if mergeBatch != "" {
		return runMergeBatch(ctx, app, cmd, engine)
	}

	plan, err := buildPlan(args[0], args[1], args[2], planFlags{
		Take:      mergeTake,
		Combine:   mergeCombine,
		Override:  mergeOverride,
		Clear:     mergeClear,
		Relation:  mergeRelation,
		DryRun:    mergeDryRun,
		BaseETag:  mergeBaseETag,
		OtherETag: mergeOtherETag,
	})
	if err != nil {
		return err
	}
	if err := selectors.ResolvePlan(ctx, app.DB, plan); err != nil {
		return err
	}

	res, err := engine.Merge(ctx, app.ActorUUID, plan)
	if err != nil {
		return explainMergeError(err)
	}

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(res, nil, nil)
	}
	fmt.Fprint(cmd.OutOrStdout(), res.Summary())
	return nil
}

// explainMergeError adds the flag an operator needs to fix a rejected plan.
func explainMergeError(err error) error {
	var conflict *merge.UnresolvedConflictError
	if errors.As(err, &conflict) {
		hints := make([]string, len(conflict.Fields))
		for i, f := range conflict.Fields {
			hints[i] = "--take " + f + "=base|other"
		}
		return fmt.Errorf("%w\nresolve with: %s", err, strings.Join(hints, " "))
	}
	return err
}

func readPlans(path string, stdin io.Reader) ([]merge.Plan, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plans: %w", err)
	}

	var plans []merge.Plan
	if err := yaml.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("failed to parse plans: %w", err)
	}
	return plans, nil
}

func runMergeBatch(ctx context.Context, app *appctx.App, cmd *cobra.Command, engine *merge.Engine) error {
	plans, err := readPlans(mergeBatch, cmd.InOrStdin())
	if err != nil {
		return err
	}

	labels := make([]string, len(plans))
	for i, p := range plans {
		labels[i] = fmt.Sprintf("%s %s <- %s", p.Kind, p.Base, p.Other)
	}

	op := &bulk.Operation{
		Jobs:            mergeJobs,
		ContinueOnError: mergeContinueOnError,
		Ordered:         mergeJobs <= 1,
		Log:             cmd.ErrOrStderr(),
	}
	var outMu sync.Mutex
	result := op.Execute(ctx, labels, func(ctx context.Context, i int) error {
		plan := plans[i]
		if mergeDryRun {
			plan.DryRun = true
		}
		if err := selectors.ResolvePlan(ctx, app.DB, &plan); err != nil {
			return err
		}
		res, err := engine.Merge(ctx, app.ActorUUID, &plan)
		if err != nil {
			return explainMergeError(err)
		}
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprint(cmd.OutOrStdout(), res.Summary())
		return nil
	})

	result.PrintSummary(cmd.ErrOrStderr())
	if code := result.ExitCode(); code != 0 {
		return exitError(code, fmt.Errorf("%d of %d merges failed", result.Failed, result.TotalItems))
	}
	return nil
}
