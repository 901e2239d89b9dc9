package chain_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spounge-ai/audittrail/pkg/audit/chain"
	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

func makeEntries(t *testing.T, c *chain.Chain, n int) []*domain.AuditEntry {
	t.Helper()
	entries := make([]*domain.AuditEntry, 0, n)
	base := time.Now().UTC()
	for i := 0; i < n; i++ {
		entry := &domain.AuditEntry{
			ID:        fmt.Sprintf("entry-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
			Event: domain.AuditEvent{
				Type:    domain.EventDataAccess,
				Action:  fmt.Sprintf("read-%d", i),
				Outcome: domain.OutcomeSuccess,
			},
		}
		link := c.Add(entry)
		entry.Chain = &link
		entries = append(entries, entry)
	}
	return entries
}

func TestChainContiguity(t *testing.T) {
	c := chain.New(chain.SHA256)
	entries := makeEntries(t, c, 5)

	assert.Equal(t, chain.Genesis(chain.SHA256), entries[0].Chain.PreviousHash)
	assert.Equal(t, 0, entries[0].Chain.Sequence)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].Chain.Hash, entries[i].Chain.PreviousHash)
		assert.Equal(t, entries[i-1].Chain.Sequence+1, entries[i].Chain.Sequence)
	}
}

func TestGenesisFixedPerAlgorithm(t *testing.T) {
	assert.Equal(t, chain.Genesis(chain.SHA256), chain.Genesis(chain.SHA256))
	assert.NotEqual(t, chain.Genesis(chain.SHA256), chain.Genesis(chain.SHA512))
	assert.Len(t, chain.Genesis(chain.SHA256), 64)
	assert.Len(t, chain.Genesis(chain.SHA512), 128)
}

func TestVerifyValidChain(t *testing.T) {
	c := chain.New(chain.SHA256)
	entries := makeEntries(t, c, 4)

	result := chain.Verify(chain.SHA256, entries)
	require.True(t, result.Valid, "error: %s", result.Err)
	assert.Equal(t, -1, result.BrokenAt)
}

func TestVerifyEmptyIsValid(t *testing.T) {
	result := chain.Verify(chain.SHA256, nil)
	assert.True(t, result.Valid)
}

func TestVerifyOutOfOrderInput(t *testing.T) {
	c := chain.New(chain.SHA512)
	entries := makeEntries(t, c, 4)

	shuffled := []*domain.AuditEntry{entries[2], entries[0], entries[3], entries[1]}
	result := chain.Verify(chain.SHA512, shuffled)
	assert.True(t, result.Valid, "error: %s", result.Err)
}

func TestVerifyDetectsTamperedContent(t *testing.T) {
	c := chain.New(chain.SHA256)
	entries := makeEntries(t, c, 3)

	entries[1].Event.Action = "rewritten-history"

	result := chain.Verify(chain.SHA256, entries)
	require.False(t, result.Valid)
	assert.Equal(t, 1, result.BrokenAt)
	assert.Contains(t, result.Err, "hash mismatch")
}

func TestVerifyDetectsSequenceGap(t *testing.T) {
	c := chain.New(chain.SHA256)
	entries := makeEntries(t, c, 4)

	gapped := []*domain.AuditEntry{entries[0], entries[1], entries[3]}
	result := chain.Verify(chain.SHA256, gapped)
	require.False(t, result.Valid)
	assert.Equal(t, 2, result.BrokenAt)
	assert.Contains(t, result.Err, "sequence gap")
}

func TestVerifyRejectsMissingChainData(t *testing.T) {
	c := chain.New(chain.SHA256)
	entries := makeEntries(t, c, 2)
	entries = append(entries, &domain.AuditEntry{ID: "no-chain", Timestamp: time.Now()})

	result := chain.Verify(chain.SHA256, entries)
	require.False(t, result.Valid)
	assert.Equal(t, 2, result.BrokenAt)
}

func TestVerifyRejectsWrongGenesis(t *testing.T) {
	c := chain.New(chain.SHA256)
	entries := makeEntries(t, c, 2)
	entries[0].Chain.PreviousHash = "0000"

	result := chain.Verify(chain.SHA256, entries)
	require.False(t, result.Valid)
	assert.Equal(t, 0, result.BrokenAt)
	assert.Contains(t, result.Err, "genesis")
}

func TestVerifyEntryFailsClosedWithoutChainData(t *testing.T) {
	c := chain.New(chain.SHA256)
	entry := &domain.AuditEntry{ID: "x", Timestamp: time.Now()}
	assert.False(t, c.VerifyEntry(entry, chain.Genesis(chain.SHA256)))
}

func TestStateRestoreResumesChain(t *testing.T) {
	first := chain.New(chain.SHA256)
	entries := makeEntries(t, first, 3)
	saved := first.State()

	// A fresh chain restored from the persisted state continues the linkage.
	second := chain.New(chain.SHA256)
	second.Restore(saved)
	more := makeEntries(t, second, 2)

	all := append(entries, more...)
	result := chain.Verify(chain.SHA256, all)
	require.True(t, result.Valid, "error: %s", result.Err)
	assert.Equal(t, 4, all[len(all)-1].Chain.Sequence)
}

func TestFreshChainIsDisconnectedWithoutRestore(t *testing.T) {
	first := chain.New(chain.SHA256)
	entries := makeEntries(t, first, 2)

	second := chain.New(chain.SHA256)
	more := makeEntries(t, second, 2)

	// Both halves verify on their own.
	assert.True(t, chain.Verify(chain.SHA256, entries).Valid)
	assert.True(t, chain.Verify(chain.SHA256, more).Valid)

	// Together the duplicated sequences are flagged.
	combined := append(entries, more...)
	assert.False(t, chain.Verify(chain.SHA256, combined).Valid)
}
