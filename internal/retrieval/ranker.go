// Package retrieval executes tenant-scoped semantic queries against the
// vector index and produces ranked, deduplicated results honoring rule
// priority and temporal validity.
package retrieval

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/embeddings"
	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

var tracer = otel.Tracer("knowd.retrieval")

// Match is one ranked retrieval result handed to downstream answer
// composition.
type Match struct {
	ExternalID  string         `json:"external_id"`
	Kind        knowledge.Kind `json:"kind"`
	Title       string         `json:"title"`
	Priority    int            `json:"priority"`
	IsTemporary bool           `json:"is_temporary"`
	ValidFrom   time.Time      `json:"valid_from,omitempty"`
	ValidUntil  time.Time      `json:"valid_until,omitempty"`
	Text        string         `json:"text"`
	Score       float32        `json:"score"`
}

// SyncFunc triggers a full synchronous reconciliation for a tenant. The
// ranker calls it once when a tenant has no indexed data yet, so the first
// query on a cold tenant pays a one-time sync cost and subsequent queries
// are fast.
type SyncFunc func(ctx context.Context, tenantID string) error

// Config holds retrieval defaults.
type Config struct {
	// DefaultLimit is used when the caller passes limit <= 0. Default: 5.
	DefaultLimit int `koanf:"default_limit"`

	// DefaultScoreThreshold is used when the caller passes a zero
	// threshold. Default: 0.35.
	DefaultScoreThreshold float32 `koanf:"default_score_threshold"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 5
	}
	if c.DefaultScoreThreshold == 0 {
		c.DefaultScoreThreshold = 0.35
	}
}

// Ranker executes priority- and temporal-aware semantic retrieval.
type Ranker struct {
	embedder embeddings.Provider
	store    vectorstore.Store
	syncFn   SyncFunc
	config   Config
	logger   *zap.Logger
}

// NewRanker creates a retrieval ranker. syncFn may be nil to disable
// cold-tenant self-healing.
func NewRanker(embedder embeddings.Provider, store vectorstore.Store, syncFn SyncFunc, config Config, logger *zap.Logger) *Ranker {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{
		embedder: embedder,
		store:    store,
		syncFn:   syncFn,
		config:   config,
		logger:   logger,
	}
}

// Search returns ranked matches for a tenant's query.
//
// Ordering law: priority ascending is the primary key (lower number wins,
// a hard override), similarity score descending breaks ties. The company
// metadata hit, when present, is merged first as a synthetic zero-priority
// entry.
//
// Search is advisory: any internal fault yields an empty result list, never
// an error, so the surrounding conversational flow stays available.
func (r *Ranker) Search(ctx context.Context, tenantID, query string, limit int, scoreThreshold float32) []Match {
	ctx, span := tracer.Start(ctx, "Ranker.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.Int("limit", limit),
	)

	log := r.logger.With(zap.String("tenant_id", tenantID))

	if tenantID == "" || query == "" {
		log.Warn("search rejected, tenant id and query required")
		return []Match{}
	}
	if limit <= 0 {
		limit = r.config.DefaultLimit
	}
	if scoreThreshold == 0 {
		scoreThreshold = r.config.DefaultScoreThreshold
	}

	r.healColdTenant(ctx, log, tenantID)

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Warn("query embedding failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return []Match{}
	}

	matches := make([]Match, 0, limit+1)

	// Company-level facts are at most one record per tenant; a single
	// top-1 lookup suffices and its hit always leads the result.
	metaHits, err := r.store.Search(ctx, knowledge.CollectionMetadata, vector,
		vectorstore.Filter{TenantID: tenantID}, 1, 0)
	if err != nil {
		log.Warn("metadata search failed", zap.Error(err))
	} else if len(metaHits) > 0 {
		m := toMatch(metaHits[0])
		m.Priority = 0
		matches = append(matches, m)
	}

	ruleHits, err := r.store.Search(ctx, knowledge.CollectionRules, vector,
		vectorstore.Filter{TenantID: tenantID}, uint64(limit), scoreThreshold)
	if err != nil {
		log.Warn("rules search failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return []Match{}
	}
	for _, hit := range ruleHits {
		matches = append(matches, toMatch(hit))
	}

	matches = dedupe(matches)

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority < matches[j].Priority
		}
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	span.SetAttributes(attribute.Int("results_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches
}

// healColdTenant triggers a synchronous reconciliation when no index entry
// exists yet for the tenant. Probe or sync failures are logged and search
// proceeds; it will simply find nothing.
func (r *Ranker) healColdTenant(ctx context.Context, log *zap.Logger, tenantID string) {
	if r.syncFn == nil {
		return
	}
	count, err := r.store.Count(ctx, knowledge.CollectionRules, vectorstore.Filter{TenantID: tenantID})
	if err != nil {
		log.Warn("cold-tenant probe failed", zap.Error(err))
		return
	}
	if count > 0 {
		return
	}
	log.Info("no indexed data for tenant, triggering synchronous sync")
	if err := r.syncFn(ctx, tenantID); err != nil {
		log.Warn("cold-tenant sync failed", zap.Error(err))
	}
}

func toMatch(hit vectorstore.ScoredPoint) Match {
	return Match{
		ExternalID:  hit.Payload.SourceExternalID,
		Kind:        hit.Payload.SourceKind,
		Title:       hit.Payload.Title,
		Priority:    hit.Payload.Priority,
		IsTemporary: hit.Payload.IsTemporary,
		ValidFrom:   hit.Payload.ValidFrom,
		ValidUntil:  hit.Payload.ValidUntil,
		Text:        hit.Payload.ProcessedText,
		Score:       hit.Score,
	}
}

// dedupe keeps the best-scoring match per (kind, external id) identity,
// preserving first-seen order otherwise.
func dedupe(matches []Match) []Match {
	type identity struct {
		kind knowledge.Kind
		id   string
	}
	seen := make(map[identity]int, len(matches))
	out := matches[:0]
	for _, m := range matches {
		key := identity{m.Kind, m.ExternalID}
		if idx, ok := seen[key]; ok {
			if m.Score > out[idx].Score {
				out[idx] = m
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, m)
	}
	return out
}
