package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

func baseRecord() knowledge.SourceRecord {
	return knowledge.SourceRecord{
		ExternalID: "rule-1",
		Kind:       knowledge.KindRule,
		Title:      "Free shipping",
		BodyText:   "Orders above $50 ship free.",
		Priority:   3,
		Fields: knowledge.StructuredFields{
			Type:     knowledge.FieldsDelivery,
			Delivery: &knowledge.DeliveryFields{FeePolicy: "free above $50"},
		},
	}
}

func TestComputeDeterministic(t *testing.T) {
	a := baseRecord()
	b := baseRecord()

	fp1 := Compute(&a)
	fp2 := Compute(&b)

	require.Len(t, fp1, 64, "sha-256 hex")
	assert.Equal(t, fp1, fp2)
}

func TestComputeChangesWithContent(t *testing.T) {
	base := Compute(ptr(baseRecord()))

	tests := []struct {
		name   string
		mutate func(*knowledge.SourceRecord)
	}{
		{"title", func(r *knowledge.SourceRecord) { r.Title = "Free delivery" }},
		{"body", func(r *knowledge.SourceRecord) { r.BodyText = "Orders above $60 ship free." }},
		{"kind", func(r *knowledge.SourceRecord) { r.Kind = knowledge.KindSupportDocument }},
		{"priority", func(r *knowledge.SourceRecord) { r.Priority = 1 }},
		{"fields", func(r *knowledge.SourceRecord) { r.Fields.Delivery.FeePolicy = "free above $60" }},
		{"temporality", func(r *knowledge.SourceRecord) {
			r.IsTemporary = true
			r.ValidFrom = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
			r.ValidUntil = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := baseRecord()
			tt.mutate(&r)
			assert.NotEqual(t, base, Compute(&r))
		})
	}
}

func TestComputeIgnoresIdentity(t *testing.T) {
	// The external id names the point; it does not participate in content.
	a := baseRecord()
	b := baseRecord()
	b.ExternalID = "rule-2"
	assert.Equal(t, Compute(&a), Compute(&b))
}

func TestComputeWindowShift(t *testing.T) {
	a := baseRecord()
	a.IsTemporary = true
	a.ValidFrom = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	a.ValidUntil = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	b := a
	b.ValidUntil = time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	assert.NotEqual(t, Compute(&a), Compute(&b))
}

func TestComputeFieldBoundaries(t *testing.T) {
	// "ab"+"c" must not alias "a"+"bc" across the title/body boundary.
	a := baseRecord()
	a.Title, a.BodyText = "ab", "c"
	b := baseRecord()
	b.Title, b.BodyText = "a", "bc"
	assert.NotEqual(t, Compute(&a), Compute(&b))
}

func TestCheck(t *testing.T) {
	r := baseRecord()
	fp := Compute(&r)

	tests := []struct {
		name   string
		stored string
		want   Decision
	}{
		{"never indexed", "", NeedsReembed},
		{"matching fingerprint", fp, Unchanged},
		{"stale fingerprint", "deadbeef", NeedsReembed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(&r, tt.stored))
		})
	}
}

func ptr(r knowledge.SourceRecord) *knowledge.SourceRecord { return &r }
