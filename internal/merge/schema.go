package merge

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/domain"
)

// FieldType is the storage type of a scalar field.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldText     FieldType = "text" // multi-line free text
	FieldInt      FieldType = "int"
	FieldFloat    FieldType = "float"
	FieldBool     FieldType = "bool"
	FieldDate     FieldType = "date"
	FieldDateTime FieldType = "datetime"
	FieldEnum     FieldType = "enum"
	FieldRef      FieldType = "ref"
)

// Field describes one scalar field of a kind.
type Field struct {
	Name     string
	Column   string // defaults to Name
	Type     FieldType
	Nullable bool
	Choices  []string // FieldEnum
	RefTable string   // FieldRef; rows are keyed by uuid
}

func (f Field) column() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// textual reports whether values of the field can be concatenated.
func (f Field) textual() bool {
	return f.Type == FieldString || f.Type == FieldText
}

// RelationKind distinguishes how related rows hang off a record.
type RelationKind string

const (
	// ManyToMany rows live in a join table (OwnerColumn, TargetColumn).
	ManyToMany RelationKind = "many-to-many"
	// Owned rows belong to the record; discarded rows are deleted.
	Owned RelationKind = "owned"
	// Reference rows point at the record through a nullable column;
	// discarded rows have the column cleared.
	Reference RelationKind = "reference"
)

// Relation describes one relation field of a kind.
type Relation struct {
	Name          string
	Kind          RelationKind
	Table         string
	OwnerColumn   string   // column holding the record's uuid
	TargetColumn  string   // ManyToMany only
	DedupeColumns []string // Owned/Reference: a base row with equal values makes the other row a duplicate
}

// Schema is the static description of a mergeable kind.
type Schema struct {
	Kind        string
	Table       string
	LabelColumn string // human identifier shown next to friendly IDs
	Fields      []Field
	Relations   []Relation
}

// Field returns the named scalar field.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Relation returns the named relation.
func (s *Schema) Relation(name string) (Relation, bool) {
	for _, r := range s.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// FieldNames lists scalar field names in schema order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// RelationNames lists relation names in schema order.
func (s *Schema) RelationNames() []string {
	names := make([]string, len(s.Relations))
	for i, r := range s.Relations {
		names[i] = r.Name
	}
	return names
}

func (s *Schema) check() error {
	if s.Kind == "" || s.Table == "" {
		return fmt.Errorf("schema needs a kind and a table")
	}
	seen := map[string]bool{}
	for _, f := range s.Fields {
		if seen[f.Name] {
			return fmt.Errorf("%s: duplicate field %q", s.Kind, f.Name)
		}
		seen[f.Name] = true
		if f.Type == FieldEnum && len(f.Choices) == 0 {
			return fmt.Errorf("%s.%s: enum field without choices", s.Kind, f.Name)
		}
		if f.Type == FieldRef && f.RefTable == "" {
			return fmt.Errorf("%s.%s: reference field without table", s.Kind, f.Name)
		}
	}
	for _, r := range s.Relations {
		if seen[r.Name] {
			return fmt.Errorf("%s: duplicate field %q", s.Kind, r.Name)
		}
		seen[r.Name] = true
		if r.Table == "" || r.OwnerColumn == "" {
			return fmt.Errorf("%s.%s: relation needs a table and owner column", s.Kind, r.Name)
		}
		switch r.Kind {
		case ManyToMany:
			if r.TargetColumn == "" {
				return fmt.Errorf("%s.%s: many-to-many relation without target column", s.Kind, r.Name)
			}
		case Owned, Reference:
		default:
			return fmt.Errorf("%s.%s: unknown relation kind %q", s.Kind, r.Name, r.Kind)
		}
	}
	return nil
}

// Registry holds the schemas of every mergeable kind.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry builds a registry, rejecting malformed or duplicate schemas.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		if err := s.check(); err != nil {
			return nil, err
		}
		if _, dup := r.schemas[s.Kind]; dup {
			return nil, fmt.Errorf("duplicate schema for kind %q", s.Kind)
		}
		r.schemas[s.Kind] = s
	}
	return r, nil
}

// Lookup returns the schema for kind.
func (r *Registry) Lookup(kind string) (*Schema, error) {
	s, ok := r.schemas[kind]
	if !ok {
		return nil, &domain.ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown kind %q (expected one of: %s)", kind, strings.Join(r.Kinds(), ", ")),
		}
	}
	return s, nil
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

type columnInfo struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull bool           `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

func tableColumns(ctx context.Context, q sqlx.QueryerContext, table string) (map[string]columnInfo, error) {
	var cols []columnInfo
	if err := sqlx.SelectContext(ctx, q, &cols, fmt.Sprintf("PRAGMA table_info(%q)", table)); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	out := make(map[string]columnInfo, len(cols))
	for _, c := range cols {
		out[c.Name] = c
	}
	return out, nil
}

// Validate checks every schema against the live database. Tables and
// columns must exist, nullable fields must map to nullable columns, and
// reference relations must point through nullable columns.
func (r *Registry) Validate(ctx context.Context, q sqlx.QueryerContext) error {
	var problems []string
	need := func(table string, columns ...string) map[string]columnInfo {
		cols, err := tableColumns(ctx, q, table)
		if err != nil {
			problems = append(problems, err.Error())
			return nil
		}
		if len(cols) == 0 {
			problems = append(problems, fmt.Sprintf("table %s does not exist", table))
			return nil
		}
		for _, c := range columns {
			if _, ok := cols[c]; !ok {
				problems = append(problems, fmt.Sprintf("column %s.%s does not exist", table, c))
			}
		}
		return cols
	}

	for _, kind := range r.Kinds() {
		s := r.schemas[kind]
		cols := need(s.Table, "uuid", "id", "etag")
		if cols == nil {
			continue
		}
		if s.LabelColumn != "" {
			need(s.Table, s.LabelColumn)
		}
		for _, f := range s.Fields {
			c, ok := cols[f.column()]
			if !ok {
				problems = append(problems, fmt.Sprintf("%s.%s: column %s.%s does not exist", kind, f.Name, s.Table, f.column()))
				continue
			}
			if f.Nullable && c.NotNull {
				problems = append(problems, fmt.Sprintf("%s.%s: declared nullable but %s.%s is NOT NULL", kind, f.Name, s.Table, f.column()))
			}
			if f.Type == FieldRef {
				need(f.RefTable, "uuid")
			}
		}
		for _, rel := range s.Relations {
			columns := append([]string{rel.OwnerColumn}, rel.DedupeColumns...)
			if rel.Kind == ManyToMany {
				columns = append(columns, rel.TargetColumn)
			} else {
				columns = append(columns, "uuid")
			}
			relCols := need(rel.Table, columns...)
			if rel.Kind == Reference && relCols != nil {
				if c, ok := relCols[rel.OwnerColumn]; ok && c.NotNull {
					problems = append(problems, fmt.Sprintf("%s.%s: reference column %s.%s must be nullable", kind, rel.Name, rel.Table, rel.OwnerColumn))
				}
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("merge schema does not match database: %s", strings.Join(problems, "; "))
	}
	return nil
}
