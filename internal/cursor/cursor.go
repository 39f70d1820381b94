// Package cursor implements opaque keyset pagination tokens.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
)

// Cursor is the position after the last row of a page: the values of the
// sort columns on that row and its integer primary key.
type Cursor struct {
	SortFields []string `json:"sort_fields,omitempty"`
	LastValues []any    `json:"last_values,omitempty"`
	LastID     int64    `json:"last_id"`
}

// New creates a cursor from the last row of a page.
func New(sortFields []string, lastValues []any, lastID int64) (*Cursor, error) {
	if len(sortFields) != len(lastValues) {
		return nil, errors.New("sort fields and last values length mismatch")
	}
	if lastID <= 0 {
		return nil, errors.New("last ID required")
	}
	return &Cursor{SortFields: sortFields, LastValues: lastValues, LastID: lastID}, nil
}

// Encode serializes the cursor to an opaque URL-safe string.
func (c *Cursor) Encode() (string, error) {
	if len(c.SortFields) != len(c.LastValues) {
		return "", errors.New("sort fields and last values length mismatch")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a string produced by Encode.
func Decode(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, errors.New("empty cursor string")
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}
	if len(c.SortFields) != len(c.LastValues) {
		return nil, errors.New("cursor sort fields and values length mismatch")
	}
	if c.LastID <= 0 {
		return nil, errors.New("cursor missing last ID")
	}
	return &c, nil
}

// Apply restricts sb to the rows after c. The query must be ordered by
// SortFields and then idColumn, all ascending or all descending.
//
// For ORDER BY a DESC, b DESC, id DESC this adds
//
//	(a < ? OR (a = ? AND b < ?) OR (a = ? AND b = ? AND id < ?))
func (c *Cursor) Apply(sb *sqlbuilder.SelectBuilder, idColumn string, descending bool) {
	after := sb.GreaterThan
	if descending {
		after = sb.LessThan
	}

	var ors []string
	for i, field := range c.SortFields {
		var parts []string
		for j := 0; j < i; j++ {
			parts = append(parts, sb.Equal(c.SortFields[j], c.LastValues[j]))
		}
		parts = append(parts, after(field, c.LastValues[i]))
		ors = append(ors, and(sb, parts))
	}

	var tie []string
	for j, field := range c.SortFields {
		tie = append(tie, sb.Equal(field, c.LastValues[j]))
	}
	tie = append(tie, after(idColumn, c.LastID))
	ors = append(ors, and(sb, tie))

	if len(ors) == 1 {
		sb.Where(ors[0])
		return
	}
	sb.Where(sb.Or(ors...))
}

func and(sb *sqlbuilder.SelectBuilder, parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return sb.And(parts...)
}
