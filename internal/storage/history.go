package storage

import (
	"context"
	"fmt"
	"sync"

	"archdiagram/internal/config"
	"archdiagram/pkg"
)

// DefaultRecentLimit is used when Recent is called with a non-positive limit
const DefaultRecentLimit = 20

// HistoryStore keeps metadata about past generation requests
type HistoryStore interface {
	Save(ctx context.Context, rec pkg.GenerationRecord) error
	// Recent returns up to limit records, newest first
	Recent(ctx context.Context, limit int) ([]pkg.GenerationRecord, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// NewHistoryStore creates the backend selected by cfg.Backend
func NewHistoryStore(ctx context.Context, cfg config.HistoryConfig) (HistoryStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryHistoryStore(cfg.Capacity), nil
	case "redis":
		return NewRedisHistoryStore(ctx, cfg.RedisURL, cfg.Capacity, cfg.TTL)
	case "sqlite":
		return NewSQLiteHistoryStore(ctx, cfg.SQLitePath, cfg.Capacity)
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.Backend)
	}
}

// MemoryHistoryStore is a bounded in-process ring of records
type MemoryHistoryStore struct {
	mu       sync.RWMutex
	records  []pkg.GenerationRecord
	next     int
	full     bool
	capacity int
}

// NewMemoryHistoryStore creates a ring holding at most capacity records
func NewMemoryHistoryStore(capacity int) *MemoryHistoryStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryHistoryStore{
		records:  make([]pkg.GenerationRecord, capacity),
		capacity: capacity,
	}
}

func (m *MemoryHistoryStore) Save(ctx context.Context, rec pkg.GenerationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[m.next] = rec
	m.next = (m.next + 1) % m.capacity
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *MemoryHistoryStore) Recent(ctx context.Context, limit int) ([]pkg.GenerationRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	if m.full {
		size = m.capacity
	}
	if limit > size {
		limit = size
	}

	out := make([]pkg.GenerationRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + m.capacity) % m.capacity
		out = append(out, m.records[idx])
	}
	return out, nil
}

func (m *MemoryHistoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MemoryHistoryStore) Close() error {
	return nil
}
