package services

import (
	"context"
	"sync"
	"time"
)

type kvEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryKV is a process-local KVStore with lazy expiry on read. It backs
// the OTP gate in tests and when no Redis address is configured. Now is
// injectable so expiry windows can be tested without real time passing.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]kvEntry

	Now func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries: make(map[string]kvEntry),
		Now:     time.Now,
	}
}

func (m *MemoryKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = kvEntry{value: value, expiresAt: m.Now().Add(ttl)}
	return nil
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if m.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryKV) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}
