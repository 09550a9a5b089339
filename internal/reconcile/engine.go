package reconcile

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/cache"
	"github.com/fyrsmithlabs/knowd/internal/embeddings"
	"github.com/fyrsmithlabs/knowd/internal/fingerprint"
	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/source"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

var tracer = otel.Tracer("knowd.reconcile")

// Config holds tunables for the reconciliation engine.
type Config struct {
	// ScrollLimit bounds the filtered scan of existing index entries per
	// tenant and kind. Default: 4096, well above per-tenant record volumes.
	ScrollLimit uint32 `koanf:"scroll_limit"`

	// SnapshotTTL is the lifetime of cached record snapshots. Default: 1h.
	SnapshotTTL time.Duration `koanf:"snapshot_ttl"`

	// LastSyncTTL is the lifetime of the last-sync marker. Longer than
	// SnapshotTTL so operators can tell an expired cache from a sync that
	// stopped running. Default: 24h.
	LastSyncTTL time.Duration `koanf:"last_sync_ttl"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ScrollLimit == 0 {
		c.ScrollLimit = 4096
	}
	if c.SnapshotTTL == 0 {
		c.SnapshotTTL = time.Hour
	}
	if c.LastSyncTTL == 0 {
		c.LastSyncTTL = 24 * time.Hour
	}
}

// Engine converges one (tenant, kind) slice of the vector index and cache
// to the authoritative source-record set.
//
// The engine holds no cross-run state and no locks: per-record upserts are
// idempotent (point ids are derived, not generated) and obsolete deletion
// operates on an already-computed set difference, so runs are safe to
// re-execute and to race with themselves.
type Engine struct {
	provider source.Provider
	embedder embeddings.Provider
	store    vectorstore.Store
	cache    cache.FastCache
	config   Config
	logger   *zap.Logger

	// now is replaceable for temporal-activation tests.
	now func() time.Time
}

// NewEngine creates a reconciliation engine. The cache may be nil, in which
// case snapshot writes are skipped entirely.
func NewEngine(provider source.Provider, embedder embeddings.Provider, store vectorstore.Store, fc cache.FastCache, config Config, logger *zap.Logger) *Engine {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		provider: provider,
		embedder: embedder,
		store:    store,
		cache:    fc,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Reconcile converges the index and cache for one tenant and kind.
//
// Failure semantics: a provider fetch failure aborts the run with
// StatusFailed and zero counts. Everything after that is record-isolated —
// embedding or index failures for one record are logged and skipped, and
// cache writes are best-effort. The run then reports StatusCompleted with
// counts reflecting what actually happened.
func (e *Engine) Reconcile(ctx context.Context, tenantID string, kind knowledge.Kind) Result {
	ctx, span := tracer.Start(ctx, "Engine.Reconcile")
	defer span.End()

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("kind", string(kind)),
	)

	log := e.logger.With(zap.String("tenant_id", tenantID), zap.String("kind", string(kind)))
	result := Result{TenantID: tenantID, Kind: kind, Status: StatusCompleted}

	records, err := e.provider.ListActive(ctx, tenantID, kind)
	if err != nil {
		log.Error("source fetch failed, aborting run", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		result.Status = StatusFailed
		result.Error = err.Error()
		result.CompletedAt = e.now()
		return result
	}

	// Temporal activation: records outside their validity window are
	// treated exactly like records absent from the source.
	active := make([]knowledge.SourceRecord, 0, len(records))
	today := e.now()
	for _, r := range records {
		if err := r.Validate(); err != nil {
			log.Warn("skipping invalid source record",
				zap.String("external_id", r.ExternalID),
				zap.Error(err),
			)
			continue
		}
		if !r.ActiveAt(today) {
			continue
		}
		active = append(active, r)
		if r.IsTemporary {
			result.Temporary++
		} else {
			result.Permanent++
		}
	}

	collection := kind.Collection()
	if err := e.store.EnsureCollection(ctx, collection, uint64(e.embedder.Dimension())); err != nil {
		log.Warn("ensure collection failed", zap.String("collection", collection), zap.Error(err))
	}

	indexed := e.scanIndexed(ctx, log, collection, tenantID, kind)

	activeByID := make(map[string]struct{}, len(active))
	for _, r := range active {
		activeByID[r.ExternalID] = struct{}{}
	}

	result.Removed = e.evictObsolete(ctx, log, collection, indexed, activeByID)
	result.Vectorized = e.upsertChanged(ctx, log, collection, tenantID, active, indexed)

	e.writeCache(ctx, log, tenantID, kind, active)

	result.CompletedAt = e.now()
	span.SetAttributes(
		attribute.Int("permanent", result.Permanent),
		attribute.Int("temporary", result.Temporary),
		attribute.Int("vectorized", result.Vectorized),
		attribute.Int("removed", result.Removed),
	)
	span.SetStatus(codes.Ok, "completed")

	log.Info("reconciliation completed",
		zap.Int("permanent", result.Permanent),
		zap.Int("temporary", result.Temporary),
		zap.Int("vectorized", result.Vectorized),
		zap.Int("removed", result.Removed),
	)
	return result
}

// scanIndexed returns the currently indexed points for (tenant, kind),
// keyed by source external id. A scan failure degrades to an empty map: we
// lose the fingerprint short-circuit and skip eviction for this run, both
// of which the next run repairs.
func (e *Engine) scanIndexed(ctx context.Context, log *zap.Logger, collection, tenantID string, kind knowledge.Kind) map[string]vectorstore.Point {
	points, err := e.store.Scroll(ctx, collection, vectorstore.Filter{TenantID: tenantID, Kind: kind}, e.config.ScrollLimit)
	if err != nil {
		log.Warn("index scan failed, treating index as empty", zap.Error(err))
		return map[string]vectorstore.Point{}
	}

	indexed := make(map[string]vectorstore.Point, len(points))
	for _, p := range points {
		if p.Payload.SourceExternalID == "" {
			// Orphaned entry without identity; evict it below by
			// never matching an active record.
			log.Warn("indexed point missing source identity", zap.String("point_id", p.ID))
			continue
		}
		indexed[p.Payload.SourceExternalID] = p
	}
	return indexed
}

// evictObsolete deletes index entries whose identity is not in the active
// set. Deletions are per-entry best-effort.
func (e *Engine) evictObsolete(ctx context.Context, log *zap.Logger, collection string, indexed map[string]vectorstore.Point, activeByID map[string]struct{}) int {
	removed := 0
	for externalID, point := range indexed {
		if _, ok := activeByID[externalID]; ok {
			continue
		}
		if err := e.store.Delete(ctx, collection, []string{point.ID}); err != nil {
			log.Warn("index delete failed",
				zap.String("external_id", externalID),
				zap.String("point_id", point.ID),
				zap.Error(err),
			)
			continue
		}
		removed++
	}
	return removed
}

// upsertChanged embeds and upserts every active record whose content
// fingerprint differs from the indexed one. Per-record failures are logged
// and skipped.
func (e *Engine) upsertChanged(ctx context.Context, log *zap.Logger, collection, tenantID string, active []knowledge.SourceRecord, indexed map[string]vectorstore.Point) int {
	vectorized := 0
	now := e.now().UTC()

	for i := range active {
		record := &active[i]

		var stored string
		if prior, ok := indexed[record.ExternalID]; ok {
			stored = prior.Payload.Fingerprint
		}
		if fingerprint.Check(record, stored) == fingerprint.Unchanged {
			continue
		}

		text := record.ProcessedText()
		vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
		if err != nil {
			log.Warn("embedding failed, skipping record",
				zap.String("external_id", record.ExternalID),
				zap.Error(err),
			)
			continue
		}

		point := vectorstore.Point{
			ID:     fingerprint.PointID(tenantID, record.Kind, record.ExternalID),
			Vector: vectors[0],
			Payload: vectorstore.Payload{
				TenantID:         tenantID,
				SourceKind:       record.Kind,
				SourceExternalID: record.ExternalID,
				Fingerprint:      fingerprint.Compute(record),
				ProcessedText:    text,
				Title:            record.Title,
				Priority:         record.Priority,
				IsTemporary:      record.IsTemporary,
				ValidFrom:        record.ValidFrom,
				ValidUntil:       record.ValidUntil,
				LastUpdated:      now,
			},
		}

		if err := e.store.Upsert(ctx, collection, []vectorstore.Point{point}); err != nil {
			log.Warn("index upsert failed, skipping record",
				zap.String("external_id", record.ExternalID),
				zap.String("point_id", point.ID),
				zap.Error(err),
			)
			continue
		}
		vectorized++
	}
	return vectorized
}

// writeCache refreshes the per-kind snapshot, the combined all-kinds
// snapshot, and the last-sync marker. All writes are best-effort and never
// fail the run.
func (e *Engine) writeCache(ctx context.Context, log *zap.Logger, tenantID string, kind knowledge.Kind, active []knowledge.SourceRecord) {
	if e.cache == nil {
		return
	}
	now := e.now().UTC()

	snap := cache.Snapshot{TenantID: tenantID, Kind: kind, Records: active, SyncedAt: now}
	if err := cache.WriteSnapshot(ctx, e.cache, snap, e.config.SnapshotTTL); err != nil {
		log.Warn("cache snapshot write failed", zap.Error(err))
	}

	combined := cache.Snapshot{TenantID: tenantID, SyncedAt: now}
	for _, k := range []knowledge.Kind{knowledge.KindRule, knowledge.KindSupportDocument, knowledge.KindCompanyMetadata} {
		if k == kind {
			combined.Records = append(combined.Records, active...)
			continue
		}
		other, err := cache.ReadSnapshot(ctx, e.cache, tenantID, k)
		if err != nil {
			continue // absent or expired, nothing to merge
		}
		combined.Records = append(combined.Records, other.Records...)
	}
	if err := cache.WriteCombinedSnapshot(ctx, e.cache, combined, e.config.SnapshotTTL); err != nil {
		log.Warn("combined cache snapshot write failed", zap.Error(err))
	}

	if err := cache.WriteLastSync(ctx, e.cache, tenantID, now, e.config.LastSyncTTL); err != nil {
		log.Warn("last-sync marker write failed", zap.Error(err))
	}
}
