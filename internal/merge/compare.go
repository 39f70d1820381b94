package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// RecordRef identifies one side of a comparison.
type RecordRef struct {
	UUID  string `json:"uuid"`
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	ETag  int64  `json:"etag"`
}

// FieldComparison shows one scalar field side by side.
type FieldComparison struct {
	Field   string    `json:"field"`
	Type    FieldType `json:"type"`
	Base    any       `json:"base"`
	Other   any       `json:"other"`
	Differs bool      `json:"differs"`
}

// RelationCount counts rows of one relation on each side. Shared counts
// rows of other that base already has an equivalent of.
type RelationCount struct {
	Relation string       `json:"relation"`
	Kind     RelationKind `json:"kind"`
	Base     int          `json:"base"`
	Other    int          `json:"other"`
	Shared   int          `json:"shared"`
}

// Comparison is what an operator looks at before choosing a plan.
type Comparison struct {
	Kind      string            `json:"kind"`
	Base      RecordRef         `json:"base"`
	Other     RecordRef         `json:"other"`
	Fields    []FieldComparison `json:"fields"`
	Relations []RelationCount   `json:"relations"`
	Conflicts []string          `json:"conflicts"`
}

// Compare loads two records of kind and reports how they differ.
func (e *Engine) Compare(ctx context.Context, kind, baseUUID, otherUUID string) (*Comparison, error) {
	schema, err := e.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return compare(ctx, e.db, schema, baseUUID, otherUUID)
}

func compare(ctx context.Context, q sqlx.QueryerContext, schema *Schema, baseUUID, otherUUID string) (*Comparison, error) {
	base, err := LoadRecord(ctx, q, schema, baseUUID)
	if err != nil {
		return nil, err
	}
	other, err := LoadRecord(ctx, q, schema, otherUUID)
	if err != nil {
		return nil, err
	}

	c := &Comparison{
		Kind:      schema.Kind,
		Base:      RecordRef{UUID: base.UUID, ID: base.ID, Label: base.Label, ETag: base.ETag},
		Other:     RecordRef{UUID: other.UUID, ID: other.ID, Label: other.Label, ETag: other.ETag},
		Conflicts: DetectConflicts(base, other, schema.FieldNames()),
	}
	if c.Conflicts == nil {
		c.Conflicts = []string{}
	}
	for _, f := range schema.Fields {
		b, o := base.Values[f.Name], other.Values[f.Name]
		c.Fields = append(c.Fields, FieldComparison{Field: f.Name, Type: f.Type, Base: b, Other: o, Differs: b != o})
	}
	for _, rel := range schema.Relations {
		rc, err := countRelation(ctx, q, rel, base.UUID, other.UUID)
		if err != nil {
			return nil, err
		}
		c.Relations = append(c.Relations, rc)
	}
	return c, nil
}

func countRelation(ctx context.Context, q sqlx.QueryerContext, rel Relation, baseUUID, otherUUID string) (RelationCount, error) {
	rc := RelationCount{Relation: rel.Name, Kind: rel.Kind}
	count := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", rel.Table, rel.OwnerColumn)
	if err := sqlx.GetContext(ctx, q, &rc.Base, count, baseUUID); err != nil {
		return rc, fmt.Errorf("failed to count %s: %w", rel.Table, err)
	}
	if err := sqlx.GetContext(ctx, q, &rc.Other, count, otherUUID); err != nil {
		return rc, fmt.Errorf("failed to count %s: %w", rel.Table, err)
	}

	match := rel.DedupeColumns
	if rel.Kind == ManyToMany {
		match = []string{rel.TargetColumn}
	}
	if len(match) == 0 {
		return rc, nil
	}
	conds := make([]string, len(match))
	for i, col := range match {
		conds[i] = fmt.Sprintf("b.%s IS o.%s", col, col)
	}
	shared := fmt.Sprintf(
		"SELECT COUNT(*) FROM %[1]s o WHERE o.%[2]s = ? AND EXISTS (SELECT 1 FROM %[1]s b WHERE b.%[2]s = ? AND %[3]s)",
		rel.Table, rel.OwnerColumn, strings.Join(conds, " AND "),
	)
	if err := sqlx.GetContext(ctx, q, &rc.Shared, shared, otherUUID, baseUUID); err != nil {
		return rc, fmt.Errorf("failed to compare %s: %w", rel.Table, err)
	}
	return rc, nil
}
