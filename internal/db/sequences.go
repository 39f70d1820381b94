package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/id"
)

// Sequence ties a table to the AUTOINCREMENT counter its friendly-ID
// trigger draws from. Prefix is empty for tables with integer ids.
type Sequence struct {
	Counter string
	Table   string
	Prefix  string
}

// SequenceDrift is a counter that lags behind the highest id in its table,
// typically after rows were imported with explicit friendly IDs.
type SequenceDrift struct {
	Sequence
	Current int64
	Max     int64
}

var sequenceCounters = []struct {
	counter string
	table   string
	kind    id.Type
}{
	{"actor_seq", "actors", id.TypeActor},
	{"person_seq", "persons", id.TypePerson},
	{"event_seq", "events", id.TypeEvent},
	{"request_seq", "training_requests", id.TypeTrainingRequest},
	{"task_seq", "tasks", id.TypeTask},
	{"award_seq", "awards", id.TypeAward},
	{"qualification_seq", "qualifications", id.TypeQualification},
	{"progress_seq", "training_progress", id.TypeTrainingProgress},
	{"todo_seq", "todo_items", id.TypeTodoItem},
	{"invoice_seq", "invoice_requests", id.TypeInvoiceRequest},
}

// Sequences lists every friendly-ID counter plus the event log's own.
func Sequences() []Sequence {
	seqs := make([]Sequence, 0, len(sequenceCounters)+1)
	for _, c := range sequenceCounters {
		seqs = append(seqs, Sequence{Counter: c.counter, Table: c.table, Prefix: id.Prefix(c.kind)})
	}
	return append(seqs, Sequence{Counter: "event_log", Table: "event_log"})
}

// SequenceDrifts reports the counters that would hand out an id already in use.
func (db *DB) SequenceDrifts(ctx context.Context) ([]SequenceDrift, error) {
	return sequenceDrifts(ctx, db.DB)
}

// FixSequenceDrifts advances lagging counters to their table's highest id in
// one transaction and returns what it changed.
func (db *DB) FixSequenceDrifts(ctx context.Context) ([]SequenceDrift, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	drifts, err := sequenceDrifts(ctx, tx)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		if err := setCounter(ctx, tx, d.Counter, d.Max); err != nil {
			return nil, fmt.Errorf("failed to advance %s: %w", d.Counter, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sequence repair: %w", err)
	}
	return drifts, nil
}

func sequenceDrifts(ctx context.Context, q sqlx.QueryerContext) ([]SequenceDrift, error) {
	var drifts []SequenceDrift
	for _, seq := range Sequences() {
		maxID, err := highestID(ctx, q, seq)
		if err != nil {
			return nil, fmt.Errorf("failed to read highest id of %s: %w", seq.Table, err)
		}
		current, err := counterValue(ctx, q, seq.Counter)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", seq.Counter, err)
		}
		if current < maxID {
			drifts = append(drifts, SequenceDrift{Sequence: seq, Current: current, Max: maxID})
		}
	}
	return drifts, nil
}

func highestID(ctx context.Context, q sqlx.QueryerContext, seq Sequence) (int64, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.From(seq.Table)
	if seq.Prefix == "" {
		sb.Select("COALESCE(MAX(id), 0)")
	} else {
		// Friendly IDs are PREFIX-NNNNN; SUBSTR is 1-based.
		sb.Select(fmt.Sprintf("COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0)", len(seq.Prefix)+1))
		sb.Where(sb.Like("id", seq.Prefix+"%"))
	}
	query, args := sb.Build()

	var maxID int64
	if err := sqlx.GetContext(ctx, q, &maxID, query, args...); err != nil {
		return 0, err
	}
	return maxID, nil
}

func counterValue(ctx context.Context, q sqlx.QueryerContext, counter string) (int64, error) {
	var seq sql.NullInt64
	err := sqlx.GetContext(ctx, q, &seq, "SELECT seq FROM sqlite_sequence WHERE name = ?", counter)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

// setCounter writes sqlite_sequence, which has no key to upsert on.
func setCounter(ctx context.Context, tx *sqlx.Tx, counter string, value int64) error {
	res, err := tx.ExecContext(ctx, "UPDATE sqlite_sequence SET seq = ? WHERE name = ?", value, counter)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	_, err = tx.ExecContext(ctx, "INSERT INTO sqlite_sequence (name, seq) VALUES (?, ?)", counter, value)
	return err
}
