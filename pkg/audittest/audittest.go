// Package audittest provides test doubles for the audit trail: a capturing
// sink handler and a store that fails on demand.
package audittest

import (
	"context"
	"sync"
	"time"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// CaptureSink records every entry it receives. Its Handler can be wired as
// a custom sink.
type CaptureSink struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

// Handler returns a custom-sink handler that records entries.
func (c *CaptureSink) Handler() func(ctx context.Context, entry *domain.AuditEntry) error {
	return func(ctx context.Context, entry *domain.AuditEntry) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.entries = append(c.entries, entry)
		return nil
	}
}

// Entries returns a snapshot of the captured entries.
func (c *CaptureSink) Entries() []*domain.AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.AuditEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len reports how many entries were captured.
func (c *CaptureSink) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// FailingStore implements domain.Store and fails every write with Err,
// for exercising store-failure paths such as chain rollback.
type FailingStore struct {
	Err error
}

func (s *FailingStore) Write(ctx context.Context, entry *domain.AuditEntry) error {
	return s.Err
}

func (s *FailingStore) Query(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	return &domain.QueryResult{Entries: []*domain.AuditEntry{}}, nil
}

func (s *FailingStore) Purge(ctx context.Context, before time.Time) (int, error) {
	return 0, s.Err
}

func (s *FailingStore) Close() error { return nil }
