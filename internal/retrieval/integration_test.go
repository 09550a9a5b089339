package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/reconcile"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

// kwEmbedder embeds text into a tiny keyword-feature space so similarity
// between a query and stored records is meaningful without a model.
type kwEmbedder struct{}

func (kwEmbedder) embed(text string) []float32 {
	lower := strings.ToLower(text)
	v := []float32{0, 0, 1}
	if strings.Contains(lower, "discount") || strings.Contains(lower, "off") {
		v[0] = 2
	}
	if strings.Contains(lower, "open") || strings.Contains(lower, "hours") {
		v[1] = 2
	}
	return v
}

func (e kwEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e kwEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (kwEmbedder) Dimension() int { return 3 }
func (kwEmbedder) Close() error   { return nil }

// memoryStore is a Store with real storage and cosine search, shared by the
// engine and the ranker like the production Qdrant collections are.
type memoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]vectorstore.Point
}

func newMemoryStore() *memoryStore {
	return &memoryStore{collections: map[string]map[string]vectorstore.Point{}}
}

func (s *memoryStore) EnsureCollection(_ context.Context, collection string, _ uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collections[collection] == nil {
		s.collections[collection] = map[string]vectorstore.Point{}
	}
	return nil
}

func (s *memoryStore) Upsert(_ context.Context, collection string, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collections[collection] == nil {
		s.collections[collection] = map[string]vectorstore.Point{}
	}
	for _, p := range points {
		s.collections[collection][p.ID] = p
	}
	return nil
}

func (s *memoryStore) matching(collection string, filter vectorstore.Filter) []vectorstore.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []vectorstore.Point
	for _, p := range s.collections[collection] {
		if p.Payload.TenantID != filter.TenantID {
			continue
		}
		if filter.Kind != "" && p.Payload.SourceKind != filter.Kind {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *memoryStore) Scroll(_ context.Context, collection string, filter vectorstore.Filter, _ uint32) ([]vectorstore.Point, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.matching(collection, filter), nil
}

func (s *memoryStore) Search(_ context.Context, collection string, vector []float32, filter vectorstore.Filter, limit uint64, scoreThreshold float32) ([]vectorstore.ScoredPoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var hits []vectorstore.ScoredPoint
	for _, p := range s.matching(collection, filter) {
		score := cosine(vector, p.Vector)
		if score < scoreThreshold {
			continue
		}
		hits = append(hits, vectorstore.ScoredPoint{Point: p, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if uint64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *memoryStore) Delete(_ context.Context, collection string, pointIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range pointIDs {
		delete(s.collections[collection], id)
	}
	return nil
}

func (s *memoryStore) Count(_ context.Context, collection string, filter vectorstore.Filter) (uint64, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	return uint64(len(s.matching(collection, filter))), nil
}

func (s *memoryStore) Close() error { return nil }

var _ vectorstore.Store = (*memoryStore)(nil)

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// tenantProvider serves per-tenant record sets.
type tenantProvider struct {
	records map[string][]knowledge.SourceRecord
}

func (p *tenantProvider) ListActive(_ context.Context, tenantID string, kind knowledge.Kind) ([]knowledge.SourceRecord, error) {
	var out []knowledge.SourceRecord
	for _, r := range p.records[tenantID] {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestReconcileThenSearch(t *testing.T) {
	ctx := context.Background()
	today := time.Now().UTC()

	provider := &tenantProvider{records: map[string][]knowledge.SourceRecord{
		"tenant-1": {
			{
				ExternalID: "1",
				Kind:       knowledge.KindRule,
				Title:      "Opening hours",
				BodyText:   "Open 9-18 Mon-Fri",
				Priority:   2,
			},
			{
				ExternalID:  "2",
				Kind:        knowledge.KindRule,
				Title:       "Discount week",
				BodyText:    "20% off all items",
				Priority:    1,
				IsTemporary: true,
				ValidFrom:   today.AddDate(0, 0, -1),
				ValidUntil:  today.AddDate(0, 0, 5),
			},
		},
		"tenant-2": {
			{
				ExternalID: "1",
				Kind:       knowledge.KindRule,
				Title:      "Other shop discount",
				BodyText:   "50% off everything",
				Priority:   1,
			},
		},
	}}

	store := newMemoryStore()
	embedder := kwEmbedder{}
	engine := reconcile.NewEngine(provider, embedder, store, nil, reconcile.Config{}, nil)

	for _, tenant := range []string{"tenant-1", "tenant-2"} {
		result := engine.Reconcile(ctx, tenant, knowledge.KindRule)
		require.Equal(t, reconcile.StatusCompleted, result.Status)
	}

	ranker := NewRanker(embedder, store, nil, Config{}, nil)

	t.Run("discount query ranks the temporary promo first", func(t *testing.T) {
		matches := ranker.Search(ctx, "tenant-1", "do you have a discount", 5, 0.1)
		require.Len(t, matches, 2)
		assert.Equal(t, "2", matches[0].ExternalID)
		assert.True(t, matches[0].IsTemporary)
		assert.Equal(t, "1", matches[1].ExternalID)
	})

	t.Run("results never cross tenants", func(t *testing.T) {
		matches := ranker.Search(ctx, "tenant-1", "do you have a discount", 5, 0.1)
		for _, m := range matches {
			assert.NotEqual(t, "Other shop discount", m.Title)
		}
	})

	t.Run("evicted record disappears from search", func(t *testing.T) {
		provider.records["tenant-1"] = provider.records["tenant-1"][:1]
		result := engine.Reconcile(ctx, "tenant-1", knowledge.KindRule)
		require.Equal(t, 1, result.Removed)

		matches := ranker.Search(ctx, "tenant-1", "do you have a discount", 5, 0.1)
		for _, m := range matches {
			assert.NotEqual(t, "2", m.ExternalID)
		}
	})
}
