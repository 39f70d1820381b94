package merge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/domain"
)

// Record is a loaded row of a mergeable kind. Values are keyed by field
// name and hold normalized scalars: nil, string, int64, float64 or bool.
type Record struct {
	Kind   string         `json:"kind"`
	UUID   string         `json:"uuid"`
	ID     string         `json:"id"`
	ETag   int64          `json:"etag"`
	Label  string         `json:"label,omitempty"`
	Values map[string]any `json:"values"`
}

// Ref returns a short human reference such as "P-00012 (alice)".
func (r *Record) Ref() string {
	if r.Label == "" {
		return r.ID
	}
	return fmt.Sprintf("%s (%s)", r.ID, r.Label)
}

// LoadRecord reads one record of schema's kind by UUID.
func LoadRecord(ctx context.Context, q sqlx.QueryerContext, schema *Schema, recordUUID string) (*Record, error) {
	columns := []string{"uuid", "id", "etag"}
	if schema.LabelColumn != "" {
		columns = append(columns, schema.LabelColumn+" AS _label")
	}
	for _, f := range schema.Fields {
		columns = append(columns, f.column())
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(columns...).From(schema.Table).Where(sb.Equal("uuid", recordUUID))
	query, args := sb.Build()

	row := map[string]any{}
	err := q.QueryRowxContext(ctx, query, args...).MapScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: schema.Kind, Ref: recordUUID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", schema.Kind, recordUUID, err)
	}

	rec := &Record{
		Kind:   schema.Kind,
		UUID:   asString(row["uuid"]),
		ID:     asString(row["id"]),
		Values: make(map[string]any, len(schema.Fields)),
	}
	if etag, ok := row["etag"].(int64); ok {
		rec.ETag = etag
	}
	if label, ok := row["_label"]; ok {
		rec.Label = asString(label)
	}
	for _, f := range schema.Fields {
		v, err := normalize(f, row[f.column()])
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", schema.Kind, rec.ID, err)
		}
		rec.Values[f.Name] = v
	}
	return rec, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// normalize converts a raw driver value to the canonical Go type for the
// field so that values from both records compare with ==.
func normalize(f Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch f.Type {
	case FieldInt:
		switch t := raw.(type) {
		case int64:
			return t, nil
		case float64:
			return int64(t), nil
		case string:
			n, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s: %q is not an integer", f.Name, t)
			}
			return n, nil
		}
	case FieldFloat:
		switch t := raw.(type) {
		case float64:
			return t, nil
		case int64:
			return float64(t), nil
		case string:
			n, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s: %q is not a number", f.Name, t)
			}
			return n, nil
		}
	case FieldBool:
		switch t := raw.(type) {
		case bool:
			return t, nil
		case int64:
			return t != 0, nil
		case string:
			return t == "1" || strings.EqualFold(t, "true"), nil
		}
	case FieldDateTime:
		s := asString(raw)
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.UTC().Format(time.RFC3339), nil
		}
		return s, nil
	default:
		return asString(raw), nil
	}
	return nil, fmt.Errorf("field %s: unexpected value %v (%T)", f.Name, raw, raw)
}

// empty reports whether a normalized value carries no information.
func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}

// Display formats a normalized value for summaries and comparisons.
func Display(v any) string {
	switch t := v.(type) {
	case nil:
		return "(null)"
	case string:
		if t == "" {
			return `""`
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
