package merge

import (
	"fmt"
	"strings"
)

// AppliedField is the resolution of one scalar field on base.
type AppliedField struct {
	Field   string `json:"field"`
	Side    Side   `json:"side"`
	Old     any    `json:"old"`
	New     any    `json:"new"`
	Changed bool   `json:"changed"`
}

// RelationSummary counts what happened to one relation's rows.
type RelationSummary struct {
	Relation    string       `json:"relation"`
	Kind        RelationKind `json:"kind"`
	Strategy    Strategy     `json:"strategy"`
	Transferred int          `json:"transferred"` // moved from other to base
	Collapsed   int          `json:"collapsed"`   // base already had an equivalent row
	Discarded   int          `json:"discarded"`   // dropped by base-only/other-only
	Skipped     int          `json:"skipped"`     // rejected by a constraint; see IntegrityFailures
}

// IntegrityFailure is a child row whose reattachment a constraint rejected.
// The row was removed with other; Snapshot holds its last contents.
type IntegrityFailure struct {
	Relation   string         `json:"relation"`
	Table      string         `json:"table"`
	ChildUUID  string         `json:"child_uuid"`
	ChildID    string         `json:"child_id,omitempty"`
	Constraint string         `json:"constraint"`
	Message    string         `json:"message"`
	Snapshot   map[string]any `json:"snapshot,omitempty"`
}

func (f IntegrityFailure) String() string {
	ref := f.ChildID
	if ref == "" {
		ref = f.ChildUUID
	}
	return fmt.Sprintf("%s: %s %s not transferred (%s)", f.Relation, f.Table, ref, f.Constraint)
}

// Result describes a finished merge.
type Result struct {
	Kind              string             `json:"kind"`
	BaseUUID          string             `json:"base_uuid"`
	BaseID            string             `json:"base_id"`
	OtherUUID         string             `json:"other_uuid"`
	OtherID           string             `json:"other_id"`
	AppliedFields     []AppliedField     `json:"applied_fields"`
	Relations         []RelationSummary  `json:"relations"`
	IntegrityFailures []IntegrityFailure `json:"integrity_failures"`
	State             State              `json:"state"`
	ETag              int64              `json:"etag"`
	DryRun            bool               `json:"dry_run,omitempty"`
}

// ChangedFields lists fields whose value on base changed.
func (r *Result) ChangedFields() []AppliedField {
	var out []AppliedField
	for _, f := range r.AppliedFields {
		if f.Changed {
			out = append(out, f)
		}
	}
	return out
}

// Summary renders a human-readable account of the merge.
func (r *Result) Summary() string {
	var b strings.Builder
	verb := "Merged"
	if r.DryRun {
		verb = "Dry run: would merge"
	}
	fmt.Fprintf(&b, "%s %s %s into %s\n", verb, r.Kind, r.OtherID, r.BaseID)

	changed := r.ChangedFields()
	if len(changed) == 0 {
		b.WriteString("  fields: no changes\n")
	}
	for _, f := range changed {
		fmt.Fprintf(&b, "  %s: %s -> %s (%s)\n", f.Field, Display(f.Old), Display(f.New), f.Side)
	}
	for _, rel := range r.Relations {
		if rel.Transferred+rel.Collapsed+rel.Discarded+rel.Skipped == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %s (%s): %d transferred, %d collapsed, %d discarded, %d skipped\n",
			rel.Relation, rel.Strategy, rel.Transferred, rel.Collapsed, rel.Discarded, rel.Skipped)
	}
	for _, f := range r.IntegrityFailures {
		fmt.Fprintf(&b, "  warning: %s\n", f)
	}
	return b.String()
}
