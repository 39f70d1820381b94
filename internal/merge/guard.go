package merge

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
)

type foreignKeyInfo struct {
	ID       int            `db:"id"`
	Seq      int            `db:"seq"`
	Table    string         `db:"table"`
	From     string         `db:"from"`
	To       sql.NullString `db:"to"`
	OnUpdate string         `db:"on_update"`
	OnDelete string         `db:"on_delete"`
	Match    string         `db:"match"`
}

// inboundKey is a foreign key that stops rows of a table from being deleted.
type inboundKey struct {
	Table   string
	Column  string
	To      string
	HasUUID bool
	HasID   bool
}

// guard finds rows that still reference a record with RESTRICT or NO ACTION
// foreign keys. Foreign keys are read once per target table. The event log
// holds no foreign keys and never blocks a merge; invoice_requests.event_uuid
// is the kind of reference that does.
type guard struct {
	mu    sync.Mutex
	cache map[string][]inboundKey
}

func newGuard() *guard {
	return &guard{cache: map[string][]inboundKey{}}
}

func (g *guard) inbound(ctx context.Context, q sqlx.QueryerContext, target string) ([]inboundKey, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if keys, ok := g.cache[target]; ok {
		return keys, nil
	}

	var tables []string
	if err := sqlx.SelectContext(ctx, q, &tables, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	keys := []inboundKey{}
	for _, table := range tables {
		var fks []foreignKeyInfo
		if err := sqlx.SelectContext(ctx, q, &fks, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table)); err != nil {
			return nil, fmt.Errorf("failed to read foreign keys of %s: %w", table, err)
		}
		var cols map[string]columnInfo
		for _, fk := range fks {
			if fk.Table != target || (fk.OnDelete != "RESTRICT" && fk.OnDelete != "NO ACTION") {
				continue
			}
			if cols == nil {
				var err error
				if cols, err = tableColumns(ctx, q, table); err != nil {
					return nil, err
				}
			}
			_, hasUUID := cols["uuid"]
			_, hasID := cols["id"]
			keys = append(keys, inboundKey{
				Table:   table,
				Column:  fk.From,
				To:      fk.To.String,
				HasUUID: hasUUID,
				HasID:   hasID,
			})
		}
	}

	g.cache[target] = keys
	return keys, nil
}

// scan lists rows that would block deleting the record with recordUUID.
func (g *guard) scan(ctx context.Context, q sqlx.QueryerContext, target, recordUUID string) ([]ProtectedReference, error) {
	keys, err := g.inbound(ctx, q, target)
	if err != nil {
		return nil, err
	}

	var refs []ProtectedReference
	for _, key := range keys {
		value := any(recordUUID)
		if key.To != "" && key.To != "uuid" {
			if err := sqlx.GetContext(ctx, q, &value, fmt.Sprintf("SELECT %s FROM %s WHERE uuid = ?", key.To, target), recordUUID); err != nil {
				return nil, fmt.Errorf("failed to read %s.%s: %w", target, key.To, err)
			}
		}

		uuidCol, idCol := "'' AS uuid", "CAST(rowid AS TEXT) AS id"
		if key.HasUUID {
			uuidCol = "COALESCE(uuid, '') AS uuid"
		}
		if key.HasID {
			idCol = "COALESCE(id, '') AS id"
		}
		sb := sqlbuilder.SQLite.NewSelectBuilder()
		sb.Select(uuidCol, idCol).From(key.Table).Where(sb.Equal(key.Column, value)).OrderBy("rowid")
		query, args := sb.Build()

		var rows []struct {
			UUID string `db:"uuid"`
			ID   string `db:"id"`
		}
		if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("failed to check references from %s: %w", key.Table, err)
		}
		for _, row := range rows {
			refs = append(refs, ProtectedReference{Table: key.Table, Column: key.Column, RowUUID: row.UUID, RowID: row.ID})
		}
	}
	return refs, nil
}
