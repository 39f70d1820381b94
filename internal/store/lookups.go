package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
)

// LookupTables are the simple name-keyed tables Ensure accepts.
var LookupTables = map[string]bool{
	"roles":             true,
	"badges":            true,
	"tags":              true,
	"languages":         true,
	"knowledge_domains": true,
	"lessons":           true,
}

// LookupStore manages lookup tables and many-to-many links.
type LookupStore struct {
	store *Store
}

// Ensure returns the UUID of the named lookup row, creating it when missing.
func (ls *LookupStore) Ensure(ctx context.Context, table, name string) (string, error) {
	if !LookupTables[table] {
		return "", &domain.ValidationError{Field: "table", Message: fmt.Sprintf("unknown lookup table %q", table)}
	}
	if name == "" {
		return "", &domain.ValidationError{Field: "name", Message: "name cannot be empty"}
	}

	var rowUUID string
	err := ls.store.withTx(ctx, func(tx *sqlx.Tx, _ *eventlog.Writer) error {
		err := tx.GetContext(ctx, &rowUUID, "SELECT uuid FROM "+table+" WHERE name = ?", name)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to look up %s %q: %w", table, name, err)
		}
		rowUUID = newUUID("")
		if _, err := tx.ExecContext(ctx, "INSERT INTO "+table+" (uuid, name) VALUES (?, ?)", rowUUID, name); err != nil {
			return fmt.Errorf("failed to create %s %q: %w", table, name, err)
		}
		return nil
	})
	return rowUUID, err
}

// Find returns the UUID of an existing lookup row.
func (ls *LookupStore) Find(ctx context.Context, table, name string) (string, error) {
	if !LookupTables[table] {
		return "", &domain.ValidationError{Field: "table", Message: fmt.Sprintf("unknown lookup table %q", table)}
	}
	var rowUUID string
	err := ls.store.db.GetContext(ctx, &rowUUID, "SELECT uuid FROM "+table+" WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &domain.NotFoundError{Kind: table, Ref: name}
	}
	return rowUUID, err
}

// EnsureOrganization returns the organization with the given domain, creating it when missing.
func (ls *LookupStore) EnsureOrganization(ctx context.Context, orgDomain, fullname string) (string, error) {
	if fullname == "" {
		fullname = orgDomain
	}
	var rowUUID string
	err := ls.store.withTx(ctx, func(tx *sqlx.Tx, _ *eventlog.Writer) error {
		err := tx.GetContext(ctx, &rowUUID, "SELECT uuid FROM organizations WHERE domain = ?", orgDomain)
		if err == nil || !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		rowUUID = newUUID("")
		_, err = tx.ExecContext(ctx, "INSERT INTO organizations (uuid, domain, fullname) VALUES (?, ?, ?)", rowUUID, orgDomain, fullname)
		if err != nil {
			return fmt.Errorf("failed to create organization %q: %w", orgDomain, err)
		}
		return nil
	})
	return rowUUID, err
}

// EnsureAirport returns the airport with the given IATA code, creating it when missing.
func (ls *LookupStore) EnsureAirport(ctx context.Context, iata, fullname string) (string, error) {
	if fullname == "" {
		fullname = iata
	}
	var rowUUID string
	err := ls.store.withTx(ctx, func(tx *sqlx.Tx, _ *eventlog.Writer) error {
		err := tx.GetContext(ctx, &rowUUID, "SELECT uuid FROM airports WHERE iata = ?", iata)
		if err == nil || !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		rowUUID = newUUID("")
		_, err = tx.ExecContext(ctx, "INSERT INTO airports (uuid, iata, fullname) VALUES (?, ?, ?)", rowUUID, iata, fullname)
		if err != nil {
			return fmt.Errorf("failed to create airport %q: %w", iata, err)
		}
		return nil
	})
	return rowUUID, err
}

// LinkSpec describes a many-to-many join table.
type LinkSpec struct {
	Table        string
	OwnerColumn  string
	TargetColumn string
	TargetTable  string
}

// Links are the join tables reachable through Link, keyed by "<kind>.<relation>".
var Links = map[string]LinkSpec{
	"person.domains":                        {Table: "person_domains", OwnerColumn: "person_uuid", TargetColumn: "domain_uuid", TargetTable: "knowledge_domains"},
	"person.languages":                      {Table: "person_languages", OwnerColumn: "person_uuid", TargetColumn: "language_uuid", TargetTable: "languages"},
	"event.tags":                            {Table: "event_tags", OwnerColumn: "event_uuid", TargetColumn: "tag_uuid", TargetTable: "tags"},
	"training_request.domains":              {Table: "request_domains", OwnerColumn: "request_uuid", TargetColumn: "domain_uuid", TargetTable: "knowledge_domains"},
	"training_request.previous_involvement": {Table: "request_involvements", OwnerColumn: "request_uuid", TargetColumn: "role_uuid", TargetTable: "roles"},
}

// Link attaches the named lookup rows to an owner record, creating lookup
// rows as needed. Existing links are left untouched. Returns the number of
// links added.
func (ls *LookupStore) Link(ctx context.Context, actorUUID, key, ownerUUID string, names ...string) (int, error) {
	spec, ok := Links[key]
	if !ok {
		return 0, &domain.ValidationError{Field: "relation", Message: fmt.Sprintf("unknown relation %q", key)}
	}

	targets := make([]string, 0, len(names))
	for _, name := range names {
		targetUUID, err := ls.Ensure(ctx, spec.TargetTable, name)
		if err != nil {
			return 0, err
		}
		targets = append(targets, targetUUID)
	}

	added := 0
	err := ls.store.withTx(ctx, func(tx *sqlx.Tx, ew *eventlog.Writer) error {
		query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT DO NOTHING", spec.Table, spec.OwnerColumn, spec.TargetColumn)
		for _, target := range targets {
			res, err := tx.ExecContext(ctx, query, ownerUUID, target)
			if err != nil {
				return fmt.Errorf("failed to link %s: %w", key, err)
			}
			n, _ := res.RowsAffected()
			added += int(n)
		}
		if added == 0 {
			return nil
		}
		kind, _, _ := strings.Cut(key, ".")
		return ew.Log(ctx, tx, actorUUID, kind, ownerUUID, "linked", nil, map[string]any{"relation": key, "names": names})
	})
	return added, err
}
