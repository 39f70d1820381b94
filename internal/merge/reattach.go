package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// reattacher moves relation rows from other to base inside the merge
// transaction. Each moved row gets its own savepoint so that a constraint
// rejection undoes only that row.
type reattacher struct {
	tx    *sqlx.Tx
	base  string
	other string
	n     int
}

func (r *reattacher) reattach(ctx context.Context, rel Relation, strategy Strategy) (RelationSummary, []IntegrityFailure, error) {
	sum := RelationSummary{Relation: rel.Name, Kind: rel.Kind, Strategy: strategy}
	var (
		failures []IntegrityFailure
		err      error
	)
	if rel.Kind == ManyToMany {
		failures, err = r.links(ctx, rel, strategy, &sum)
	} else {
		failures, err = r.children(ctx, rel, strategy, &sum)
	}
	if err != nil {
		return sum, nil, fmt.Errorf("failed to reattach %s: %w", rel.Name, err)
	}
	return sum, failures, nil
}

// links handles join-table relations.
func (r *reattacher) links(ctx context.Context, rel Relation, strategy Strategy, sum *RelationSummary) ([]IntegrityFailure, error) {
	switch strategy {
	case BaseOnly:
		n, err := r.deleteWhere(ctx, rel.Table, rel.OwnerColumn, r.other)
		sum.Discarded = n
		return nil, err
	case OtherOnly:
		n, err := r.deleteWhere(ctx, rel.Table, rel.OwnerColumn, r.base)
		if err != nil {
			return nil, err
		}
		sum.Discarded = n
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(rel.TargetColumn).From(rel.Table).Where(sb.Equal(rel.OwnerColumn, r.other)).OrderBy(rel.TargetColumn)
	query, args := sb.Build()
	var targets []string
	if err := sqlx.SelectContext(ctx, r.tx, &targets, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", rel.Table, err)
	}

	var failures []IntegrityFailure
	for _, target := range targets {
		var inserted int64
		err := r.savepoint(ctx, func() error {
			ib := sqlbuilder.SQLite.NewInsertBuilder()
			ib.InsertInto(rel.Table).Cols(rel.OwnerColumn, rel.TargetColumn).Values(r.base, target)
			query, args := ib.Build()
			res, err := r.tx.ExecContext(ctx, query+" ON CONFLICT DO NOTHING", args...)
			if err != nil {
				return err
			}
			inserted, err = res.RowsAffected()
			return err
		})
		if constraint, msg, ok := constraintViolation(err); ok {
			failures = append(failures, IntegrityFailure{
				Relation:   rel.Name,
				Table:      rel.Table,
				ChildUUID:  target,
				Constraint: constraint,
				Message:    msg,
				Snapshot:   map[string]any{rel.OwnerColumn: r.other, rel.TargetColumn: target},
			})
			sum.Skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		if inserted > 0 {
			sum.Transferred++
		} else {
			sum.Collapsed++
		}
	}

	if _, err := r.deleteWhere(ctx, rel.Table, rel.OwnerColumn, r.other); err != nil {
		return nil, err
	}
	return failures, nil
}

// children handles owned and reference relations.
func (r *reattacher) children(ctx context.Context, rel Relation, strategy Strategy, sum *RelationSummary) ([]IntegrityFailure, error) {
	rows, err := r.load(ctx, rel, r.other)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case BaseOnly:
		for _, row := range rows {
			if err := r.discard(ctx, rel, asString(row["uuid"])); err != nil {
				return nil, err
			}
		}
		sum.Discarded = len(rows)
		return nil, nil
	case OtherOnly:
		existing, err := r.load(ctx, rel, r.base)
		if err != nil {
			return nil, err
		}
		for _, row := range existing {
			if err := r.discard(ctx, rel, asString(row["uuid"])); err != nil {
				return nil, err
			}
		}
		sum.Discarded = len(existing)
	}

	var (
		failures []IntegrityFailure
		skipped  []string
	)
	for _, row := range rows {
		childUUID := asString(row["uuid"])

		dup, err := r.duplicate(ctx, rel, row)
		if err != nil {
			return nil, err
		}
		if dup {
			if err := r.discard(ctx, rel, childUUID); err != nil {
				return nil, err
			}
			sum.Collapsed++
			continue
		}

		err = r.savepoint(ctx, func() error {
			ub := sqlbuilder.SQLite.NewUpdateBuilder()
			ub.Update(rel.Table).Set(ub.Assign(rel.OwnerColumn, r.base)).Where(ub.Equal("uuid", childUUID))
			query, args := ub.Build()
			_, err := r.tx.ExecContext(ctx, query, args...)
			return err
		})
		if constraint, msg, ok := constraintViolation(err); ok {
			failures = append(failures, IntegrityFailure{
				Relation:   rel.Name,
				Table:      rel.Table,
				ChildUUID:  childUUID,
				ChildID:    asString(row["id"]),
				Constraint: constraint,
				Message:    msg,
				Snapshot:   row,
			})
			skipped = append(skipped, childUUID)
			sum.Skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		sum.Transferred++
	}

	for _, childUUID := range skipped {
		if err := r.discard(ctx, rel, childUUID); err != nil {
			return nil, err
		}
	}
	return failures, nil
}

// load returns full rows of rel owned by owner, oldest first.
func (r *reattacher) load(ctx context.Context, rel Relation, owner string) ([]map[string]any, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("*").From(rel.Table).Where(sb.Equal(rel.OwnerColumn, owner)).OrderBy("rowid")
	query, args := sb.Build()

	rows, err := r.tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", rel.Table, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", rel.Table, err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// duplicate reports whether base already has a row equal to row on the
// relation's dedupe columns.
func (r *reattacher) duplicate(ctx context.Context, rel Relation, row map[string]any) (bool, error) {
	if len(rel.DedupeColumns) == 0 {
		return false, nil
	}
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("COUNT(*)").From(rel.Table).Where(sb.Equal(rel.OwnerColumn, r.base))
	for _, col := range rel.DedupeColumns {
		sb.Where(col + " IS " + sb.Var(row[col]))
	}
	query, args := sb.Build()

	var n int
	if err := r.tx.QueryRowxContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check %s for duplicates: %w", rel.Table, err)
	}
	return n > 0, nil
}

// discard removes a child from other: owned rows are deleted, references
// are cleared.
func (r *reattacher) discard(ctx context.Context, rel Relation, childUUID string) error {
	var (
		query string
		args  []any
	)
	if rel.Kind == Owned {
		db := sqlbuilder.SQLite.NewDeleteBuilder()
		db.DeleteFrom(rel.Table).Where(db.Equal("uuid", childUUID))
		query, args = db.Build()
	} else {
		ub := sqlbuilder.SQLite.NewUpdateBuilder()
		ub.Update(rel.Table).Set(ub.Assign(rel.OwnerColumn, nil)).Where(ub.Equal("uuid", childUUID))
		query, args = ub.Build()
	}
	if _, err := r.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to discard %s %s: %w", rel.Table, childUUID, err)
	}
	return nil
}

func (r *reattacher) deleteWhere(ctx context.Context, table, column, value string) (int, error) {
	db := sqlbuilder.SQLite.NewDeleteBuilder()
	db.DeleteFrom(table).Where(db.Equal(column, value))
	query, args := db.Build()
	res, err := r.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *reattacher) savepoint(ctx context.Context, fn func() error) error {
	r.n++
	name := fmt.Sprintf("reattach_%d", r.n)
	if _, err := r.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := r.tx.ExecContext(ctx, "ROLLBACK TO "+name); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		if _, relErr := r.tx.ExecContext(ctx, "RELEASE "+name); relErr != nil {
			return errors.Join(err, relErr)
		}
		return err
	}
	if _, err := r.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// constraintViolation reports whether err is a SQLite constraint rejection
// and returns the constraint text ("awards.person_uuid, awards.badge_uuid")
// and the full driver message.
func constraintViolation(err error) (string, string, bool) {
	var se sqlite3.Error
	if err == nil || !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return "", "", false
	}
	msg := se.Error()
	constraint := msg
	if _, after, ok := strings.Cut(msg, "failed: "); ok {
		constraint = after
	}
	return constraint, msg, true
}

// foreignKeyViolation reports whether err is a SQLite foreign key rejection.
func foreignKeyViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
