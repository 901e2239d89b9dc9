package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// signer produces an HMAC-SHA256 signature over an entry's identity and
// content. This backs the sign-logs config flag with a concrete minimal
// scheme; asymmetric non-repudiation is out of scope.
type signer struct {
	key []byte
}

func newSigner(key string) *signer {
	return &signer{key: []byte(key)}
}

// signaturePayload mirrors the chain's canonical-JSON approach so the signed
// bytes are deterministic for a given entry.
type signaturePayload struct {
	ID        string            `json:"id"`
	Timestamp string            `json:"timestamp"`
	Event     domain.AuditEvent `json:"event"`
	ChainHash string            `json:"chain_hash,omitempty"`
}

func signatureInput(entry *domain.AuditEntry) []byte {
	p := signaturePayload{
		ID:        entry.ID,
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
		Event:     entry.Event,
	}
	if entry.Chain != nil {
		p.ChainHash = entry.Chain.Hash
	}
	b, _ := json.Marshal(p)
	return b
}

func (s *signer) sign(entry *domain.AuditEntry) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(signatureInput(entry))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the entry's signature matches an
// HMAC-SHA256 over its content with the given key.
func VerifySignature(key string, entry *domain.AuditEntry) bool {
	if entry == nil || entry.Signature == "" {
		return false
	}
	expected, err := hex.DecodeString(entry.Signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(signatureInput(entry))
	return hmac.Equal(mac.Sum(nil), expected)
}
