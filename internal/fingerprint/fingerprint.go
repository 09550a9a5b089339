// Package fingerprint decides whether a source record needs re-embedding
// and derives the deterministic identity of its index point.
//
// The fingerprint covers exactly the fields that influence the processed
// text handed to the embedding provider. A record whose fingerprint matches
// the one stored in the index is skipped on sync, so embedding cost grows
// with the number of changed records instead of the total record count.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// Decision is the outcome of comparing a record against its indexed state.
type Decision int

const (
	// NeedsReembed means no live index entry matches the record content.
	NeedsReembed Decision = iota
	// Unchanged means the indexed entry already reflects the record.
	Unchanged
)

// Compute returns the content fingerprint of a record as a hex string.
//
// Inputs are joined with an explicit separator so field boundaries cannot
// alias (e.g. title "ab"+body "c" vs title "a"+body "bc").
func Compute(r *knowledge.SourceRecord) string {
	parts := []string{
		string(r.Kind),
		r.Title,
		r.BodyText,
		r.Fields.Canonical(),
		fmt.Sprintf("priority=%d", r.Priority),
		fmt.Sprintf("temporary=%t", r.IsTemporary),
	}
	if r.IsTemporary {
		parts = append(parts,
			r.ValidFrom.UTC().Format("2006-01-02"),
			r.ValidUntil.UTC().Format("2006-01-02"),
		)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Check compares a record against the fingerprint stored for the same
// identity in the index. An empty stored fingerprint means the identity was
// never indexed (or the payload predates fingerprinting) and always forces
// a re-embed.
func Check(r *knowledge.SourceRecord, storedFingerprint string) Decision {
	if storedFingerprint == "" {
		return NeedsReembed
	}
	if Compute(r) == storedFingerprint {
		return Unchanged
	}
	return NeedsReembed
}
