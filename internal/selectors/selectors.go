// Package selectors resolves the identifiers operators type (friendly IDs,
// UUIDs, usernames, slugs, emails) to record UUIDs.
package selectors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/id"
	"github.com/lherron/amyq/internal/merge"
)

// Selector represents a parsed typed selector
type Selector struct {
	Kind  id.Type // empty when the selector carries no prefix
	Token string  // the part after the prefix (e.g. "alice" from "p:alice")
}

var kindPrefixes = map[string]id.Type{
	"p:": id.TypePerson,
	"e:": id.TypeEvent,
	"r:": id.TypeTrainingRequest,
}

// Parse parses a selector string and returns the kind and token.
// Supports: p:<token>, e:<token>, r:<token>, or a plain token.
func Parse(selector string) Selector {
	for prefix, kind := range kindPrefixes {
		if strings.HasPrefix(selector, prefix) {
			return Selector{Kind: kind, Token: strings.TrimPrefix(selector, prefix)}
		}
	}
	return Selector{Token: selector}
}

type target struct {
	table string
	// natural keys tried in order when the token is neither a UUID nor a friendly ID
	keys func(token string) []string
}

var targets = map[id.Type]target{
	id.TypePerson: {table: "persons", keys: func(token string) []string {
		if strings.Contains(token, "@") {
			return []string{"email"}
		}
		return []string{"username", "github"}
	}},
	id.TypeEvent: {table: "events", keys: func(string) []string {
		return []string{"slug"}
	}},
	id.TypeTrainingRequest: {table: "training_requests", keys: func(string) []string {
		return []string{"email"}
	}},
}

// Resolve resolves selector to a record of kind and returns (uuid, friendlyID).
func Resolve(ctx context.Context, q sqlx.QueryerContext, kind id.Type, selector string) (string, string, error) {
	parsed := Parse(selector)
	if parsed.Kind != "" && parsed.Kind != kind {
		return "", "", &domain.ValidationError{Field: "selector", Message: fmt.Sprintf("expected %s selector, got %s selector %q", kind, parsed.Kind, selector)}
	}
	tgt, ok := targets[kind]
	if !ok {
		return "", "", &domain.ValidationError{Field: "kind", Message: fmt.Sprintf("cannot select records of kind %q", kind)}
	}
	token := strings.TrimSpace(parsed.Token)
	if token == "" {
		return "", "", &domain.ValidationError{Field: "selector", Message: "selector cannot be empty"}
	}

	if id.IsFriendlyID(token) {
		t, _, _ := id.Parse(token)
		if t != kind {
			return "", "", &domain.ValidationError{Field: "selector", Message: fmt.Sprintf("%s is a %s ID, expected %s", token, t, kind)}
		}
		return lookupOne(ctx, q, kind, tgt.table, "id", token)
	}
	if id.IsUUID(token) {
		return lookupOne(ctx, q, kind, tgt.table, "uuid", strings.ToLower(token))
	}

	for _, column := range tgt.keys(token) {
		rowUUID, friendlyID, err := lookupOne(ctx, q, kind, tgt.table, column, token)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		return rowUUID, friendlyID, err
	}
	return "", "", &domain.NotFoundError{Kind: string(kind), Ref: token}
}

// lookupOne finds the single row whose column equals value. More than one
// match is reported with the candidates so the operator can pick by ID.
func lookupOne(ctx context.Context, q sqlx.QueryerContext, kind id.Type, table, column, value string) (string, string, error) {
	var rows []struct {
		UUID string         `db:"uuid"`
		ID   sql.NullString `db:"id"`
	}
	query := fmt.Sprintf("SELECT uuid, id FROM %s WHERE %s = ? ORDER BY id LIMIT 5", table, column)
	if err := sqlx.SelectContext(ctx, q, &rows, query, value); err != nil {
		return "", "", fmt.Errorf("database error: %w", err)
	}

	switch len(rows) {
	case 0:
		return "", "", &domain.NotFoundError{Kind: string(kind), Ref: value}
	case 1:
		return rows[0].UUID, rows[0].ID.String, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID.String
	}
	return "", "", &domain.ValidationError{
		Field:   "selector",
		Message: fmt.Sprintf("%q matches several %s records (%s); use an ID", value, kind, strings.Join(ids, ", ")),
	}
}

// ResolvePlan replaces the base and other selectors of plan with record
// UUIDs so it can be handed to the merge engine.
func ResolvePlan(ctx context.Context, q sqlx.QueryerContext, plan *merge.Plan) error {
	kind := id.Type(plan.Kind)
	if _, ok := targets[kind]; !ok {
		return &domain.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", plan.Kind)}
	}
	baseUUID, _, err := Resolve(ctx, q, kind, plan.Base)
	if err != nil {
		return fmt.Errorf("base: %w", err)
	}
	otherUUID, _, err := Resolve(ctx, q, kind, plan.Other)
	if err != nil {
		return fmt.Errorf("other: %w", err)
	}
	plan.Base, plan.Other = baseUUID, otherUUID
	return nil
}
