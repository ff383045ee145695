package cache

import (
	"context"
	"sync"
	"time"

	"github.com/angeloszaimis/item-enricher/internal/record"
)

// Entry is a cached record copy and the time it was stored.
type Entry struct {
	Record     record.Record
	InsertedAt time.Time
	TTL        time.Duration
}

// Expired reports whether the entry outlived its TTL at now. A zero TTL never
// expires.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && !now.Before(e.InsertedAt.Add(e.TTL))
}

// MemoryBackend keeps entries in a map and evicts expired ones lazily, on
// access.
type MemoryBackend struct {
	mutex   sync.RWMutex
	entries map[int64]Entry
	clock   func() time.Time
}

func NewMemoryBackend(clock func() time.Time) *MemoryBackend {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryBackend{
		entries: make(map[int64]Entry),
		clock:   clock,
	}
}

func (m *MemoryBackend) Get(_ context.Context, id int64) (record.Record, bool, error) {
	m.mutex.RLock()
	entry, ok := m.entries[id]
	m.mutex.RUnlock()

	if !ok {
		return record.Record{}, false, nil
	}

	if entry.Expired(m.clock()) {
		m.mutex.Lock()
		// A concurrent Set may have replaced the entry since the read lock.
		if current, ok := m.entries[id]; ok && current.Expired(m.clock()) {
			delete(m.entries, id)
		}
		m.mutex.Unlock()
		return record.Record{}, false, nil
	}

	return entry.Record, true, nil
}

func (m *MemoryBackend) Set(_ context.Context, r record.Record, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.entries[r.ID] = Entry{Record: r, InsertedAt: m.clock(), TTL: ttl}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.entries, id)
	return nil
}

func (m *MemoryBackend) Ping(context.Context) error {
	return nil
}

// Len counts stored entries, expired ones included until they are accessed.
func (m *MemoryBackend) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.entries)
}
