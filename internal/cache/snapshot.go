package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// Cache key layout. Keys are tenant-scoped; no key ever aggregates data
// across tenants.
const (
	snapshotKeyFormat = "tenant:%s:knowledge:%s"
	combinedKeySuffix = "all"
	lastSyncKeyFormat = "tenant:%s:last_sync"
)

// SnapshotKey returns the cache key for a tenant's per-kind snapshot.
func SnapshotKey(tenantID string, kind knowledge.Kind) string {
	return fmt.Sprintf(snapshotKeyFormat, tenantID, kind)
}

// CombinedKey returns the cache key for a tenant's all-kinds snapshot.
func CombinedKey(tenantID string) string {
	return fmt.Sprintf(snapshotKeyFormat, tenantID, combinedKeySuffix)
}

// LastSyncKey returns the cache key for a tenant's last sync timestamp.
func LastSyncKey(tenantID string) string {
	return fmt.Sprintf(lastSyncKeyFormat, tenantID)
}

// Snapshot is a denormalized, tenant-scoped view of the active records of
// one kind, written as a side effect of reconciliation and read by
// fast-path consumers that do not need ranking.
type Snapshot struct {
	TenantID string                   `json:"tenant_id"`
	Kind     knowledge.Kind           `json:"kind,omitempty"`
	Records  []knowledge.SourceRecord `json:"records"`
	SyncedAt time.Time                `json:"synced_at"`
}

// WriteSnapshot stores a per-kind snapshot with the given TTL.
func WriteSnapshot(ctx context.Context, fc FastCache, snap Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	return fc.Set(ctx, SnapshotKey(snap.TenantID, snap.Kind), data, ttl)
}

// WriteCombinedSnapshot stores the all-kinds snapshot with the given TTL.
// The Kind field is left empty to mark the snapshot as combined.
func WriteCombinedSnapshot(ctx context.Context, fc FastCache, snap Snapshot, ttl time.Duration) error {
	snap.Kind = ""
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	return fc.Set(ctx, CombinedKey(snap.TenantID), data, ttl)
}

// WriteLastSync records the time of the latest completed reconciliation.
// It uses a longer TTL than the snapshots so operators can distinguish
// "cache expired" from "sync stopped running".
func WriteLastSync(ctx context.Context, fc FastCache, tenantID string, at time.Time, ttl time.Duration) error {
	return fc.Set(ctx, LastSyncKey(tenantID), []byte(at.UTC().Format(time.RFC3339)), ttl)
}

// ReadSnapshot loads a per-kind snapshot. Returns ErrCacheMiss when absent.
func ReadSnapshot(ctx context.Context, fc FastCache, tenantID string, kind knowledge.Kind) (*Snapshot, error) {
	data, err := fc.Get(ctx, SnapshotKey(tenantID, kind))
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}

// ReadCombinedSnapshot loads the all-kinds snapshot. Returns ErrCacheMiss
// when absent.
func ReadCombinedSnapshot(ctx context.Context, fc FastCache, tenantID string) (*Snapshot, error) {
	data, err := fc.Get(ctx, CombinedKey(tenantID))
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}
