package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Locker.
type Memory struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// NewMemory creates an in-process locker.
func NewMemory() *Memory {
	return &Memory{held: map[string]memoryEntry{}, clock: time.Now}
}

// Acquire implements Locker.
func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if entry, ok := m.held[key]; ok && now.Before(entry.expires) {
		return nil, ErrNotAcquired
	}

	token := uuid.NewString()
	m.held[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return &memoryLock{m: m, key: key, token: token}, nil
}

type memoryLock struct {
	m     *Memory
	key   string
	token string
}

func (l *memoryLock) Key() string { return l.key }

func (l *memoryLock) Release(_ context.Context) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()

	entry, ok := l.m.held[l.key]
	if !ok || entry.token != l.token {
		return ErrNotHeld
	}
	delete(l.m.held, l.key)
	return nil
}
