package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// timeLayout is fixed width so that text comparison orders timestamps.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// SQLite records locks in the merge_locks table so that every process using
// the same database file sees them.
type SQLite struct {
	db    *sqlx.DB
	owner string
	clock func() time.Time
}

// NewSQLite creates a locker over the merge_locks table.
func NewSQLite(db *sqlx.DB, owner string) *SQLite {
	return &SQLite{db: db, owner: owner, clock: time.Now}
}

// Acquire implements Locker. An expired row is taken over in the same statement.
// A live row is detected with a plain read first, so a holder that is busy
// writing its merge does not make this call wait on the busy timeout.
func (s *SQLite) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	now := s.clock().UTC()
	holder := s.owner + "/" + uuid.NewString()

	var live int
	if err := s.db.GetContext(ctx, &live, "SELECT COUNT(*) FROM merge_locks WHERE key = ? AND expires_at > ?", key, now.Format(timeLayout)); err != nil {
		return nil, fmt.Errorf("failed to check lock %s: %w", key, err)
	}
	if live > 0 {
		return nil, ErrNotAcquired
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO merge_locks (key, holder, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			holder = excluded.holder,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE merge_locks.expires_at <= excluded.acquired_at
	`, key, holder, now.Format(timeLayout), now.Add(ttl).Format(timeLayout))
	if isBusy(err) {
		return nil, fmt.Errorf("%w: %v", ErrNotAcquired, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotAcquired
	}

	return &sqliteLock{s: s, key: key, holder: holder}, nil
}

// List returns all recorded locks, including expired ones.
func (s *SQLite) List(ctx context.Context) ([]Holding, error) {
	var holdings []Holding
	if err := s.db.SelectContext(ctx, &holdings, "SELECT key, holder, acquired_at, expires_at FROM merge_locks ORDER BY key"); err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	return holdings, nil
}

// Clear removes the given keys, or every expired lock when no key is given.
// With all set it removes every lock regardless of expiry.
func (s *SQLite) Clear(ctx context.Context, all bool, keys ...string) (int64, error) {
	var (
		query string
		args  []any
	)
	switch {
	case len(keys) > 0:
		q, a, err := sqlx.In("DELETE FROM merge_locks WHERE key IN (?)", keys)
		if err != nil {
			return 0, err
		}
		query, args = q, a
	case all:
		query = "DELETE FROM merge_locks"
	default:
		query = "DELETE FROM merge_locks WHERE expires_at <= ?"
		args = []any{s.clock().UTC().Format(timeLayout)}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear locks: %w", err)
	}
	return res.RowsAffected()
}

type sqliteLock struct {
	s      *SQLite
	key    string
	holder string
}

func (l *sqliteLock) Key() string { return l.key }

func (l *sqliteLock) Release(ctx context.Context) error {
	res, err := l.s.db.ExecContext(ctx, "DELETE FROM merge_locks WHERE key = ? AND holder = ?", l.key, l.holder)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// isBusy reports whether another connection held the write lock past the
// busy timeout.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
