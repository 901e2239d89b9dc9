package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// MemoryStore keeps entries in an ordered in-memory slice bounded by a
// maximum size. When full, the oldest entries are evicted so the most recent
// maxSize remain queryable. This is a capacity tradeoff, not a failure mode.
type MemoryStore struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
	maxSize int
	closed  bool
}

const defaultMemoryMaxSize = 10000

// NewMemoryStore returns a memory store retaining at most maxSize entries.
// A non-positive maxSize selects the default of 10000.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = defaultMemoryMaxSize
	}
	return &MemoryStore{maxSize: maxSize}
}

// Write appends the entry, evicting the oldest entries beyond capacity.
func (s *MemoryStore) Write(ctx context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	s.entries = append(s.entries, entry)
	if overflow := len(s.entries) - s.maxSize; overflow > 0 {
		s.entries = append([]*domain.AuditEntry(nil), s.entries[overflow:]...)
	}
	return nil
}

// Query filters the retained entries with the shared query engine.
func (s *MemoryStore) Query(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	s.mu.Lock()
	snapshot := make([]*domain.AuditEntry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()
	return applyQuery(snapshot, q), nil
}

// Purge drops entries with timestamps before the given instant.
func (s *MemoryStore) Purge(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if !e.Timestamp.Before(before) {
			kept = append(kept, e)
		}
	}
	removed := len(s.entries) - len(kept)
	s.entries = kept
	return removed, nil
}

// Len reports the number of retained entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close marks the store closed; subsequent writes fail.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
