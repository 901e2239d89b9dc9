package domain

import (
	"context"
	"time"
)

// SortOrder controls the timestamp ordering of query results.
type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

// DefaultQueryLimit is applied when a query does not set Limit.
const DefaultQueryLimit = 100

// Query filters persisted entries. All populated filter categories are
// AND-combined; within a multi-value filter an entry matches if its field is
// in the allowed set. Actor/resource filters match the nested object or the
// shorthand field, whichever the caller populated.
type Query struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	EventTypes    []EventType `json:"event_types,omitempty"`
	Actions       []string    `json:"actions,omitempty"`
	Outcomes      []Outcome   `json:"outcomes,omitempty"`
	ActorIDs      []string    `json:"actor_ids,omitempty"`
	ResourceTypes []string    `json:"resource_types,omitempty"`
	ResourceIDs   []string    `json:"resource_ids,omitempty"`
	Tags          []string    `json:"tags,omitempty"`

	// Search is a case-insensitive substring match against an entry's
	// description or action.
	Search string `json:"search,omitempty"`

	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
	Sort   SortOrder `json:"sort,omitempty"`
}

// QueryResult is the paginated slice of matching entries. Total counts all
// matches before pagination.
type QueryResult struct {
	Entries []*AuditEntry `json:"entries"`
	Total   int           `json:"total"`
	HasMore bool          `json:"has_more"`
}

// Store is the append-only persistence contract. Implementations must be
// drop-in substitutable; callers may supply their own.
type Store interface {
	Write(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, q Query) (*QueryResult, error)
	Close() error
}

// Purger is implemented by stores that support retention-driven deletion.
// Purge removes entries older than the given instant and reports how many
// were removed.
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int, error)
}
