// Package lock provides fail-fast exclusive locks on record keys.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrNotAcquired is returned when a lock cannot be acquired
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrNotHeld is returned when trying to release a lock not held
	ErrNotHeld = errors.New("lock not held")
)

// DefaultTTL bounds how long a crashed holder can block a key.
const DefaultTTL = 2 * time.Minute

// Locker acquires exclusive locks without waiting.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

// Holding describes a currently recorded lock.
type Holding struct {
	Key        string `json:"key" db:"key"`
	Holder     string `json:"holder" db:"holder"`
	AcquiredAt string `json:"acquired_at" db:"acquired_at"`
	ExpiresAt  string `json:"expires_at" db:"expires_at"`
}

// KeyError reports which key an acquisition failed on.
type KeyError struct {
	Key string
	Err error
}

func (e *KeyError) Error() string { return e.Key + ": " + e.Err.Error() }

func (e *KeyError) Unwrap() error { return e.Err }

// AcquireAll acquires keys in the given order and releases what it already
// holds when one acquisition fails. Callers pass keys sorted so that two
// merges over the same records always contend on the same first key.
func AcquireAll(ctx context.Context, l Locker, keys []string, ttl time.Duration) ([]Lock, error) {
	held := make([]Lock, 0, len(keys))
	for _, key := range keys {
		lk, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			ReleaseAll(ctx, held)
			return nil, &KeyError{Key: key, Err: err}
		}
		held = append(held, lk)
	}
	return held, nil
}

// ReleaseAll releases locks in reverse order, returning the first error.
func ReleaseAll(ctx context.Context, locks []Lock) error {
	var first error
	for i := len(locks) - 1; i >= 0; i-- {
		if err := locks[i].Release(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Owner returns a holder prefix identifying this process.
func Owner(program string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s@%s:%d", program, host, os.Getpid())
}
