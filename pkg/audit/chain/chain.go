// Package chain implements the tamper-evident hash chain over audit entries.
//
// Each entry's hash is computed over a canonical JSON payload of the entry's
// identity, content and the previous entry's hash, so modifying any persisted
// entry breaks the chain from that point forward. One Chain instance belongs
// to exactly one writer; Add mutates running state and is not safe for
// concurrent use.
package chain

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// Algorithm selects the digest used for chain hashes.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// genesisSeed is the fixed input digested to produce the previous hash of
// sequence 0, independent of any entry content.
const genesisSeed = "GENESIS"

func (a Algorithm) sum(data []byte) string {
	switch a {
	case SHA512:
		d := sha512.Sum512(data)
		return hex.EncodeToString(d[:])
	default:
		d := sha256.Sum256(data)
		return hex.EncodeToString(d[:])
	}
}

// Genesis returns the fixed genesis digest for the algorithm.
func Genesis(a Algorithm) string {
	return a.sum([]byte(genesisSeed))
}

// State is the resumable running state of a chain. Persist it externally and
// pass it to Restore to continue a chain across process restarts; without
// restoration every new Chain starts at genesis and is disconnected from
// prior entries.
type State struct {
	PreviousHash string `json:"previous_hash"`
	Sequence     int    `json:"sequence"`
}

// Chain holds the running previous hash and sequence counter for one writer.
type Chain struct {
	alg  Algorithm
	prev string
	seq  int
}

// New returns a chain seeded at genesis for the given algorithm.
func New(a Algorithm) *Chain {
	if a != SHA512 {
		a = SHA256
	}
	return &Chain{alg: a, prev: Genesis(a)}
}

// Algorithm reports the digest algorithm this chain uses.
func (c *Chain) Algorithm() Algorithm { return c.alg }

// hashPayload is the canonical digest input. Struct fields marshal in
// declaration order and map keys sort, so encoding/json output is
// deterministic for a given entry.
type hashPayload struct {
	ID           string            `json:"id"`
	Timestamp    string            `json:"timestamp"`
	Event        domain.AuditEvent `json:"event"`
	PreviousHash string            `json:"previous_hash"`
}

func (a Algorithm) entryHash(entry *domain.AuditEntry, prev string) string {
	payload, _ := json.Marshal(hashPayload{
		ID:           entry.ID,
		Timestamp:    entry.Timestamp.UTC().Format(time.RFC3339Nano),
		Event:        entry.Event,
		PreviousHash: prev,
	})
	return a.sum(payload)
}

// Add computes the chain linkage for the entry and advances the running
// state. The caller must serialize Add with respect to concurrent writers so
// sequences stay gapless.
func (c *Chain) Add(entry *domain.AuditEntry) domain.ChainEntry {
	link := domain.ChainEntry{
		Hash:         c.alg.entryHash(entry, c.prev),
		PreviousHash: c.prev,
		Sequence:     c.seq,
	}
	c.prev = link.Hash
	c.seq++
	return link
}

// VerifyEntry recomputes the entry's digest against a caller-supplied
// previous hash. Entries without chain data fail closed.
func (c *Chain) VerifyEntry(entry *domain.AuditEntry, expectedPrev string) bool {
	return verifyEntry(c.alg, entry, expectedPrev)
}

func verifyEntry(a Algorithm, entry *domain.AuditEntry, expectedPrev string) bool {
	if entry == nil || entry.Chain == nil {
		return false
	}
	return entry.Chain.Hash == a.entryHash(entry, expectedPrev)
}

// State returns the current running state for external persistence.
func (c *Chain) State() State {
	return State{PreviousHash: c.prev, Sequence: c.seq}
}

// Restore reseeds the running state, typically from a previously persisted
// State so the chain continues where an earlier process left off.
func (c *Chain) Restore(s State) {
	c.prev = s.PreviousHash
	c.seq = s.Sequence
}

// Result is the outcome of verifying a sequence of entries. Verification is
// a query, not an assertion: integrity failures are reported here, never as
// a Go error. BrokenAt is the index (in sequence order) of the first entry
// that breaks the chain, or -1 when the chain is valid.
type Result struct {
	Valid    bool   `json:"valid"`
	BrokenAt int    `json:"broken_at"`
	Err      string `json:"error,omitempty"`
}

func invalid(at int, format string, args ...any) Result {
	return Result{Valid: false, BrokenAt: at, Err: fmt.Sprintf(format, args...)}
}

// Verify checks an entry set for chain integrity. Input order is not
// trusted: entries are sorted by sequence first. An empty set is trivially
// valid. Every entry must carry chain data, the first entry of a chain that
// starts at sequence 0 must link to the genesis digest, and each adjacent
// pair must agree on previous hash and sequence contiguity.
func Verify(a Algorithm, entries []*domain.AuditEntry) Result {
	if len(entries) == 0 {
		return Result{Valid: true, BrokenAt: -1}
	}
	for i, e := range entries {
		if e == nil || e.Chain == nil {
			return invalid(i, "entry %d has no chain data", i)
		}
	}

	sorted := make([]*domain.AuditEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Chain.Sequence < sorted[j].Chain.Sequence
	})

	first := sorted[0]
	if first.Chain.Sequence == 0 && first.Chain.PreviousHash != Genesis(a) {
		return invalid(0, "first entry does not link to the genesis digest")
	}
	if !verifyEntry(a, first, first.Chain.PreviousHash) {
		return invalid(0, "hash mismatch at sequence %d", first.Chain.Sequence)
	}

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.Chain.Sequence != prev.Chain.Sequence+1 {
			return invalid(i, "sequence gap between %d and %d", prev.Chain.Sequence, cur.Chain.Sequence)
		}
		if cur.Chain.PreviousHash != prev.Chain.Hash {
			return invalid(i, "hash mismatch: entry %d does not link to its predecessor", cur.Chain.Sequence)
		}
		if !verifyEntry(a, cur, cur.Chain.PreviousHash) {
			return invalid(i, "hash mismatch at sequence %d", cur.Chain.Sequence)
		}
	}
	return Result{Valid: true, BrokenAt: -1}
}
