package persistence_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
	"github.com/spounge-ai/audittrail/pkg/audit/persistence"
)

// Postgres tests run only against a real database, selected via
// AUDITTRAIL_TEST_POSTGRES_DSN.
func postgresStore(t *testing.T) *persistence.PostgresStore {
	t.Helper()
	dsn := os.Getenv("AUDITTRAIL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AUDITTRAIL_TEST_POSTGRES_DSN not set")
	}
	s, err := persistence.NewPostgresStore(context.Background(), dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStoreRequiresDSN(t *testing.T) {
	_, err := persistence.NewPostgresStore(context.Background(), "", nil)
	require.ErrorIs(t, err, domain.ErrMissingDSN)
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	s := postgresStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	entries := make([]*domain.AuditEntry, 0, 3)
	for i := 0; i < 3; i++ {
		e := entryAt(i, base.Add(time.Duration(i)*time.Second), func(e *domain.AuditEntry) {
			e.ID = uuid.NewString()
			e.Event.ActorID = "pg-tester"
		})
		require.NoError(t, s.Write(ctx, e))
		entries = append(entries, e)
	}

	res, err := s.Query(ctx, domain.Query{Sort: domain.SortAsc})
	require.NoError(t, err)
	require.GreaterOrEqual(t, res.Total, 3)

	res, err = s.Query(ctx, domain.Query{ActorIDs: []string{"nobody"}})
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	removed, err := s.Purge(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, len(entries))
}
