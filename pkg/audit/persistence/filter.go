// Package persistence provides the audit entry stores: an in-memory ring, a
// buffered JSONL file store and a pgx-backed postgres store. All three share
// one query engine so filter, sort and pagination semantics are identical
// regardless of backend.
package persistence

import (
	"sort"
	"strings"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// applyQuery filters, sorts and paginates entries per the shared query
// semantics: AND across filter categories, OR within a multi-value filter,
// timestamp-descending default sort, offset then limit after sorting.
func applyQuery(entries []*domain.AuditEntry, q domain.Query) *domain.QueryResult {
	matched := make([]*domain.AuditEntry, 0, len(entries))
	for _, e := range entries {
		if matches(e, q) {
			matched = append(matched, e)
		}
	}

	asc := q.Sort == domain.SortAsc
	sort.SliceStable(matched, func(i, j int) bool {
		if asc {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultQueryLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := matched[offset:end]

	return &domain.QueryResult{
		Entries: page,
		Total:   total,
		HasMore: offset+len(page) < total,
	}
}

func matches(e *domain.AuditEntry, q domain.Query) bool {
	if q.From != nil && e.Timestamp.Before(*q.From) {
		return false
	}
	if q.To != nil && e.Timestamp.After(*q.To) {
		return false
	}
	if len(q.EventTypes) > 0 && !containsType(q.EventTypes, e.Event.Type) {
		return false
	}
	if len(q.Actions) > 0 && !contains(q.Actions, e.Event.Action) {
		return false
	}
	if len(q.Outcomes) > 0 && !containsOutcome(q.Outcomes, e.Event.Outcome) {
		return false
	}
	if len(q.ActorIDs) > 0 && !contains(q.ActorIDs, e.Event.NormalizedActorID()) {
		return false
	}
	if len(q.ResourceTypes) > 0 && !contains(q.ResourceTypes, e.Event.NormalizedResourceType()) {
		return false
	}
	if len(q.ResourceIDs) > 0 && !contains(q.ResourceIDs, e.Event.NormalizedResourceID()) {
		return false
	}
	if len(q.Tags) > 0 && !hasAnyTag(e.Event.Tags, q.Tags) {
		return false
	}
	if q.Search != "" && !searchMatch(e, q.Search) {
		return false
	}
	return true
}

// searchMatch is a case-insensitive substring match against the entry's
// description or action.
func searchMatch(e *domain.AuditEntry, term string) bool {
	t := strings.ToLower(term)
	return strings.Contains(strings.ToLower(e.Event.Description), t) ||
		strings.Contains(strings.ToLower(e.Event.Action), t)
}

func hasAnyTag(tags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range tags {
			if t == w {
				return true
			}
		}
	}
	return false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsType(set []domain.EventType, v domain.EventType) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsOutcome(set []domain.Outcome, v domain.Outcome) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
