package persistence_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
	"github.com/spounge-ai/audittrail/pkg/audit/persistence"
)

func entryAt(i int, ts time.Time, mutate func(*domain.AuditEntry)) *domain.AuditEntry {
	e := &domain.AuditEntry{
		ID:        fmt.Sprintf("entry-%03d", i),
		Timestamp: ts,
		Event: domain.AuditEvent{
			Type:    domain.EventDataAccess,
			Action:  "read",
			Outcome: domain.OutcomeSuccess,
		},
	}
	if mutate != nil {
		mutate(e)
	}
	return e
}

func seedStore(t *testing.T, s domain.Store, n int) []*domain.AuditEntry {
	t.Helper()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entries := make([]*domain.AuditEntry, 0, n)
	for i := 0; i < n; i++ {
		e := entryAt(i, base.Add(time.Duration(i)*time.Minute), nil)
		require.NoError(t, s.Write(context.Background(), e))
		entries = append(entries, e)
	}
	return entries
}

func TestMemoryStoreWriteAndQuery(t *testing.T) {
	s := persistence.NewMemoryStore(0)
	defer s.Close()
	seedStore(t, s, 5)

	res, err := s.Query(context.Background(), domain.Query{})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.False(t, res.HasMore)
	// Default sort is timestamp descending.
	assert.Equal(t, "entry-004", res.Entries[0].ID)
	assert.Equal(t, "entry-000", res.Entries[4].ID)
}

func TestMemoryStoreEviction(t *testing.T) {
	s := persistence.NewMemoryStore(3)
	defer s.Close()
	seedStore(t, s, 7)

	assert.Equal(t, 3, s.Len())
	res, err := s.Query(context.Background(), domain.Query{Sort: domain.SortAsc})
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	// Only the most recent three survive.
	assert.Equal(t, "entry-004", res.Entries[0].ID)
	assert.Equal(t, "entry-006", res.Entries[2].ID)
}

func TestMemoryStoreWriteAfterClose(t *testing.T) {
	s := persistence.NewMemoryStore(0)
	require.NoError(t, s.Close())
	err := s.Write(context.Background(), entryAt(0, time.Now(), nil))
	require.ErrorIs(t, err, domain.ErrStoreClosed)
}

func TestQueryFilterByEventType(t *testing.T) {
	s := persistence.NewMemoryStore(0)
	defer s.Close()
	base := time.Now().UTC()
	require.NoError(t, s.Write(context.Background(), entryAt(0, base, func(e *domain.AuditEntry) {
		e.Event.Type = domain.EventAuth
	})))
	require.NoError(t, s.Write(context.Background(), entryAt(1, base.Add(time.Second), nil)))
	require.NoError(t, s.Write(context.Background(), entryAt(2, base.Add(2*time.Second), func(e *domain.AuditEntry) {
		e.Event.Type = domain.EventAuth
		e.Event.Outcome = domain.OutcomeFailure
	})))

	res, err := s.Query(context.Background(), domain.Query{EventTypes: []domain.EventType{domain.EventAuth}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	// Two filter categories intersect.
	res, err = s.Query(context.Background(), domain.Query{
		EventTypes: []domain.EventType{domain.EventAuth},
		Outcomes:   []domain.Outcome{domain.OutcomeFailure},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "entry-002", res.Entries[0].ID)
}

func TestQueryActorShorthandAndNested(t *testing.T) {
	s := persistence.NewMemoryStore(0)
	defer s.Close()
	base := time.Now().UTC()
	require.NoError(t, s.Write(context.Background(), entryAt(0, base, func(e *domain.AuditEntry) {
		e.Event.Actor = &domain.Actor{ID: "alice"}
	})))
	require.NoError(t, s.Write(context.Background(), entryAt(1, base.Add(time.Second), func(e *domain.AuditEntry) {
		e.Event.ActorID = "alice"
	})))
	require.NoError(t, s.Write(context.Background(), entryAt(2, base.Add(2*time.Second), func(e *domain.AuditEntry) {
		e.Event.Actor = &domain.Actor{ID: "bob"}
	})))

	res, err := s.Query(context.Background(), domain.Query{ActorIDs: []string{"alice"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

func TestQueryFreeTextSearch(t *testing.T) {
	s := persistence.NewMemoryStore(0)
	defer s.Close()
	base := time.Now().UTC()
	require.NoError(t, s.Write(context.Background(), entryAt(0, base, func(e *domain.AuditEntry) {
		e.Event.Description = "User Password Rotation"
	})))
	require.NoError(t, s.Write(context.Background(), entryAt(1, base.Add(time.Second), func(e *domain.AuditEntry) {
		e.Event.Action = "rotate-password"
	})))
	require.NoError(t, s.Write(context.Background(), entryAt(2, base.Add(2*time.Second), nil)))

	res, err := s.Query(context.Background(), domain.Query{Search: "PASSWORD"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

func TestQueryTagsMatchAny(t *testing.T) {
	s := persistence.NewMemoryStore(0)
	defer s.Close()
	base := time.Now().UTC()
	require.NoError(t, s.Write(context.Background(), entryAt(0, base, func(e *domain.AuditEntry) {
		e.Event.Tags = []string{"pii", "billing"}
	})))
	require.NoError(t, s.Write(context.Background(), entryAt(1, base.Add(time.Second), func(e *domain.AuditEntry) {
		e.Event.Tags = []string{"internal"}
	})))

	res, err := s.Query(context.Background(), domain.Query{Tags: []string{"pii"}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "entry-000", res.Entries[0].ID)
}

func TestQueryTimeRange(t *testing.T) {
	s := persistence.NewMemoryStore(0)
	defer s.Close()
	entries := seedStore(t, s, 5)

	from := entries[1].Timestamp
	to := entries[3].Timestamp
	res, err := s.Query(context.Background(), domain.Query{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
}

func TestQueryPagination(t *testing.T) {
	s := persistence.NewMemoryStore(0)
	defer s.Close()
	seedStore(t, s, 10)

	res, err := s.Query(context.Background(), domain.Query{Limit: 4, Offset: 0, Sort: domain.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Total)
	require.Len(t, res.Entries, 4)
	assert.Equal(t, "entry-000", res.Entries[0].ID)
	assert.True(t, res.HasMore)

	res, err = s.Query(context.Background(), domain.Query{Limit: 4, Offset: 8, Sort: domain.SortAsc})
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "entry-008", res.Entries[0].ID)
	assert.False(t, res.HasMore)

	res, err = s.Query(context.Background(), domain.Query{Limit: 4, Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.False(t, res.HasMore)
}

func TestMemoryStorePurge(t *testing.T) {
	s := persistence.NewMemoryStore(0)
	defer s.Close()
	entries := seedStore(t, s, 6)

	removed, err := s.Purge(context.Background(), entries[3].Timestamp)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 3, s.Len())
}
