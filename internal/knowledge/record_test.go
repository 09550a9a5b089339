package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Kind
		wantErr bool
	}{
		{name: "rule", input: "rule", want: KindRule},
		{name: "support document", input: "support_document", want: KindSupportDocument},
		{name: "company metadata", input: "company_metadata", want: KindCompanyMetadata},
		{name: "unknown", input: "bogus", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "case sensitive", input: "Rule", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKindCollection(t *testing.T) {
	assert.Equal(t, CollectionRules, KindRule.Collection())
	assert.Equal(t, CollectionRules, KindSupportDocument.Collection())
	assert.Equal(t, CollectionMetadata, KindCompanyMetadata.Collection())
}

func TestSourceRecordValidate(t *testing.T) {
	base := SourceRecord{
		ExternalID: "rule-1",
		Kind:       KindRule,
		Title:      "Free shipping",
	}

	t.Run("valid record", func(t *testing.T) {
		r := base
		require.NoError(t, r.Validate())
	})

	t.Run("missing external id", func(t *testing.T) {
		r := base
		r.ExternalID = ""
		assert.ErrorIs(t, r.Validate(), ErrInvalidRecord)
	})

	t.Run("unknown kind", func(t *testing.T) {
		r := base
		r.Kind = "invoice"
		assert.ErrorIs(t, r.Validate(), ErrInvalidKind)
	})

	t.Run("inverted validity window", func(t *testing.T) {
		r := base
		r.IsTemporary = true
		r.ValidFrom = time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
		r.ValidUntil = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		assert.ErrorIs(t, r.Validate(), ErrInvalidRecord)
	})

	t.Run("permanent record ignores window", func(t *testing.T) {
		r := base
		r.ValidFrom = time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
		r.ValidUntil = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, r.Validate())
	})
}

func TestSourceRecordActiveAt(t *testing.T) {
	from := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	temporary := SourceRecord{
		ExternalID:  "promo-1",
		Kind:        KindRule,
		IsTemporary: true,
		ValidFrom:   from,
		ValidUntil:  until,
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before window", now: time.Date(2026, 8, 9, 23, 59, 0, 0, time.UTC), want: false},
		{name: "first day inclusive", now: time.Date(2026, 8, 10, 0, 0, 1, 0, time.UTC), want: true},
		{name: "inside window", now: time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC), want: true},
		{name: "last day inclusive", now: time.Date(2026, 8, 20, 23, 59, 59, 0, time.UTC), want: true},
		{name: "after window", now: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, temporary.ActiveAt(tt.now))
		})
	}

	t.Run("permanent always active", func(t *testing.T) {
		permanent := SourceRecord{ExternalID: "rule-1", Kind: KindRule}
		assert.True(t, permanent.ActiveAt(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)))
		assert.True(t, permanent.ActiveAt(time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)))
	})
}
