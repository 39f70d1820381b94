// Package store provides a persistence layer that abstracts database operations,
// automatically handling UUIDs, friendly IDs, and event logging.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/db"
	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
)

// Store is the root store that provides access to domain-specific stores.
type Store struct {
	db *db.DB

	// Domain-specific stores
	Actors   *ActorStore
	Persons  *PersonStore
	Events   *EventStore
	Requests *RequestStore
	Children *ChildStore
	Lookups  *LookupStore
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{db: database}
	s.Actors = &ActorStore{store: s}
	s.Persons = &PersonStore{store: s}
	s.Events = &EventStore{store: s}
	s.Requests = &RequestStore{store: s}
	s.Children = &ChildStore{store: s}
	s.Lookups = &LookupStore{store: s}
	return s
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

// CreateResult contains the result of record creation.
type CreateResult struct {
	UUID string
	ID   string
	ETag int64
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx, ew *eventlog.Writer) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx, eventlog.NewWriter()); err != nil {
		return err
	}

	return tx.Commit()
}

// insert runs a named INSERT for row and reads back the generated friendly ID
// (and etag when the table carries one).
func insert(ctx context.Context, tx *sqlx.Tx, table, query string, row any, rowUUID string, hasETag bool) (*CreateResult, error) {
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	result := &CreateResult{UUID: rowUUID}
	var err error
	if hasETag {
		err = tx.QueryRowxContext(ctx, "SELECT id, etag FROM "+table+" WHERE uuid = ?", rowUUID).Scan(&result.ID, &result.ETag)
	} else {
		err = tx.QueryRowxContext(ctx, "SELECT id FROM "+table+" WHERE uuid = ?", rowUUID).Scan(&result.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read back %s row: %w", table, err)
	}
	return result, nil
}

func newUUID(forced string) string {
	if forced != "" {
		return forced
	}
	return uuid.NewString()
}

// getByUUID loads a single row into dest, mapping sql.ErrNoRows to NotFoundError.
func getByUUID(ctx context.Context, q sqlx.QueryerContext, dest any, kind, table, columns, rowUUID string) error {
	err := sqlx.GetContext(ctx, q, dest, "SELECT "+columns+" FROM "+table+" WHERE uuid = ?", rowUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Kind: kind, Ref: rowUUID}
	}
	if err != nil {
		return fmt.Errorf("failed to load %s %s: %w", kind, rowUUID, err)
	}
	return nil
}

// checkETag verifies etag matches if ifMatch > 0, returns ETagMismatchError on mismatch.
func checkETag(resource string, currentETag, ifMatch int64) error {
	if ifMatch > 0 && currentETag != ifMatch {
		return &domain.ETagMismatchError{Resource: resource, Expected: ifMatch, Actual: currentETag}
	}
	return nil
}

// updateColumns writes the given column values to one row identified by uuid.
func updateColumns(ctx context.Context, exec sqlx.ExecerContext, table, rowUUID string, changes map[string]any) error {
	columns := make([]string, 0, len(changes))
	for col := range changes {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update(table)
	for _, col := range columns {
		ub.SetMore(ub.Assign(col, changes[col]))
	}
	ub.Where(ub.Equal("uuid", rowUUID))

	query, args := ub.Build()
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", table, rowUUID, err)
	}
	return nil
}
