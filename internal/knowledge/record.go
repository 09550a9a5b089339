// Package knowledge defines the tenant-owned business records that knowd
// keeps synchronized with the vector index and the fast cache.
package knowledge

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies the type of a source record.
type Kind string

const (
	// KindRule is a business rule (permanent or time-boxed).
	KindRule Kind = "rule"
	// KindSupportDocument is a tenant-selected support document.
	KindSupportDocument Kind = "support_document"
	// KindCompanyMetadata is company-level metadata (at most one per tenant).
	KindCompanyMetadata Kind = "company_metadata"
)

// Common errors.
var (
	// ErrInvalidKind indicates an unknown record kind.
	ErrInvalidKind = errors.New("invalid record kind")

	// ErrInvalidRecord indicates a record that fails basic validation.
	ErrInvalidRecord = errors.New("invalid source record")
)

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRule, KindSupportDocument, KindCompanyMetadata:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Collection returns the vector collection holding records of this kind.
// Rules and support documents share one collection; company metadata has
// its own because retrieval treats it as a single top-1 lookup.
func (k Kind) Collection() string {
	if k == KindCompanyMetadata {
		return CollectionMetadata
	}
	return CollectionRules
}

// Vector collection names. Collections are shared across tenants and
// partitioned by a tenant_id payload field on every access.
const (
	CollectionRules    = "business_rules"
	CollectionMetadata = "company_metadata"
)

// SourceRecord is a tenant-owned unit of knowledge as supplied by the
// system-of-record. knowd never mutates source records, only reads them.
type SourceRecord struct {
	// ExternalID is the source-of-truth identity, unique within tenant+kind.
	ExternalID string `json:"external_id"`

	// Kind is the record type.
	Kind Kind `json:"kind"`

	// Title is the short human-readable name of the record.
	Title string `json:"title"`

	// BodyText is the free-form description of the record.
	BodyText string `json:"body_text"`

	// Fields holds the kind-specific structured payload.
	Fields StructuredFields `json:"structured_fields,omitempty"`

	// IsTemporary marks records whose applicability is bounded by a
	// date window. Temporary rules take precedence over permanent ones
	// by convention (they are assigned the lowest priority numbers).
	IsTemporary bool `json:"is_temporary"`

	// ValidFrom and ValidUntil bound the activity window. Only
	// meaningful when IsTemporary is true. Date precision, inclusive.
	ValidFrom  time.Time `json:"valid_from,omitempty"`
	ValidUntil time.Time `json:"valid_until,omitempty"`

	// Priority orders retrieval results. Lower numbers win.
	Priority int `json:"priority"`
}

// Validate checks the fields knowd relies on.
func (r *SourceRecord) Validate() error {
	if r.ExternalID == "" {
		return fmt.Errorf("%w: external id required", ErrInvalidRecord)
	}
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	if r.IsTemporary && r.ValidUntil.Before(r.ValidFrom) {
		return fmt.Errorf("%w: valid_until before valid_from", ErrInvalidRecord)
	}
	return nil
}

// ActiveAt reports whether the record is active on the given day.
// Permanent records are always active; temporary records are active iff
// valid_from <= day <= valid_until (date granularity, inclusive).
func (r *SourceRecord) ActiveAt(now time.Time) bool {
	if !r.IsTemporary {
		return true
	}
	day := truncateToDay(now)
	from := truncateToDay(r.ValidFrom)
	until := truncateToDay(r.ValidUntil)
	return !day.Before(from) && !day.After(until)
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
