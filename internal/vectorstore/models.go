package vectorstore

import (
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// Payload field keys as stored in the index.
const (
	KeyTenantID         = "tenant_id"
	KeySourceKind       = "source_kind"
	KeySourceExternalID = "source_external_id"
	KeyFingerprint      = "content_fingerprint"
	KeyProcessedText    = "processed_text"
	KeyTitle            = "title"
	KeyPriority         = "priority"
	KeyIsTemporary      = "is_temporary"
	KeyValidFrom        = "valid_from"
	KeyValidUntil       = "valid_until"
	KeyLastUpdated      = "last_updated"
)

// dateLayout is the payload encoding for temporal window bounds.
const dateLayout = "2006-01-02"

// Payload is the typed view of an index entry's stored fields.
type Payload struct {
	TenantID         string
	SourceKind       knowledge.Kind
	SourceExternalID string
	Fingerprint      string
	ProcessedText    string
	Title            string
	Priority         int
	IsTemporary      bool
	ValidFrom        time.Time
	ValidUntil       time.Time
	LastUpdated      time.Time
}

// Point is an entry in the vector index. Vector may be nil on reads that
// request payload only (Scroll).
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	Point
	Score float32
}

// Filter scopes an operation to a tenant and optionally to a record kind.
// TenantID is mandatory: the store fails closed without it.
type Filter struct {
	TenantID string
	Kind     knowledge.Kind
}

// Validate checks the filter can be applied safely.
func (f Filter) Validate() error {
	if f.TenantID == "" {
		return ErrMissingTenant
	}
	return nil
}

// toQdrant translates the filter into payload match conditions.
func (f Filter) toQdrant() (*qdrant.Filter, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	must := []*qdrant.Condition{
		qdrant.NewMatch(KeyTenantID, f.TenantID),
	}
	if f.Kind != "" {
		must = append(must, qdrant.NewMatch(KeySourceKind, string(f.Kind)))
	}
	return &qdrant.Filter{Must: must}, nil
}

// toQdrant converts the payload to the qdrant wire representation.
func (p Payload) toQdrant() map[string]*qdrant.Value {
	values := map[string]*qdrant.Value{
		KeyTenantID:         {Kind: &qdrant.Value_StringValue{StringValue: p.TenantID}},
		KeySourceKind:       {Kind: &qdrant.Value_StringValue{StringValue: string(p.SourceKind)}},
		KeySourceExternalID: {Kind: &qdrant.Value_StringValue{StringValue: p.SourceExternalID}},
		KeyFingerprint:      {Kind: &qdrant.Value_StringValue{StringValue: p.Fingerprint}},
		KeyProcessedText:    {Kind: &qdrant.Value_StringValue{StringValue: p.ProcessedText}},
		KeyTitle:            {Kind: &qdrant.Value_StringValue{StringValue: p.Title}},
		KeyPriority:         {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(p.Priority)}},
		KeyIsTemporary:      {Kind: &qdrant.Value_BoolValue{BoolValue: p.IsTemporary}},
		KeyLastUpdated:      {Kind: &qdrant.Value_StringValue{StringValue: p.LastUpdated.UTC().Format(time.RFC3339)}},
	}
	if p.IsTemporary {
		values[KeyValidFrom] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: p.ValidFrom.UTC().Format(dateLayout)}}
		values[KeyValidUntil] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: p.ValidUntil.UTC().Format(dateLayout)}}
	}
	return values
}

// payloadFromQdrant converts the qdrant wire representation back into a
// typed payload. Unknown or malformed fields are skipped; the zero value is
// safe everywhere a payload is read.
func payloadFromQdrant(values map[string]*qdrant.Value) Payload {
	var p Payload
	p.TenantID = stringValue(values, KeyTenantID)
	p.SourceKind = knowledge.Kind(stringValue(values, KeySourceKind))
	p.SourceExternalID = stringValue(values, KeySourceExternalID)
	p.Fingerprint = stringValue(values, KeyFingerprint)
	p.ProcessedText = stringValue(values, KeyProcessedText)
	p.Title = stringValue(values, KeyTitle)
	p.Priority = int(intValue(values, KeyPriority))
	p.IsTemporary = boolValue(values, KeyIsTemporary)
	if ts := stringValue(values, KeyLastUpdated); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			p.LastUpdated = t
		}
	}
	if d := stringValue(values, KeyValidFrom); d != "" {
		if t, err := time.Parse(dateLayout, d); err == nil {
			p.ValidFrom = t
		}
	}
	if d := stringValue(values, KeyValidUntil); d != "" {
		if t, err := time.Parse(dateLayout, d); err == nil {
			p.ValidUntil = t
		}
	}
	return p
}

func stringValue(values map[string]*qdrant.Value, key string) string {
	if v, ok := values[key]; ok {
		if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return s.StringValue
		}
	}
	return ""
}

func intValue(values map[string]*qdrant.Value, key string) int64 {
	if v, ok := values[key]; ok {
		if i, ok := v.Kind.(*qdrant.Value_IntegerValue); ok {
			return i.IntegerValue
		}
	}
	return 0
}

func boolValue(values map[string]*qdrant.Value, key string) bool {
	if v, ok := values[key]; ok {
		if b, ok := v.Kind.(*qdrant.Value_BoolValue); ok {
			return b.BoolValue
		}
	}
	return false
}
