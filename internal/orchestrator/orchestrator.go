// Package orchestrator composes per-tenant reconciliation across all
// record kinds.
package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/reconcile"
)

var tracer = otel.Tracer("knowd.orchestrator")

// Status summarizes a tenant-level sync across its sub-syncs.
type Status string

const (
	// StatusCompleted means every sub-sync completed.
	StatusCompleted Status = "completed"
	// StatusPartial means at least one sub-sync failed while others
	// completed.
	StatusPartial Status = "partial"
	// StatusFailed means every sub-sync failed.
	StatusFailed Status = "failed"
)

// TenantSyncResult combines the three per-kind reconciliation results of
// one tenant-level sync.
type TenantSyncResult struct {
	TenantID    string           `json:"tenant_id"`
	Metadata    reconcile.Result `json:"metadata"`
	Rules       reconcile.Result `json:"rules"`
	Documents   reconcile.Result `json:"documents"`
	Status      Status           `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Reconciler is the slice of the reconciliation engine the orchestrator
// needs. Satisfied by *reconcile.Engine.
type Reconciler interface {
	Reconcile(ctx context.Context, tenantID string, kind knowledge.Kind) reconcile.Result
}

// Orchestrator is the top-level per-tenant sync entry point.
//
// Each sub-sync is isolated: metadata, rules (permanent and temporary as
// one combined active set), and support documents (the subset currently
// selected by the tenant) are reconciled independently, and a failure in
// one is logged without blocking the others.
type Orchestrator struct {
	engine Reconciler
	logger *zap.Logger
}

// New creates a sync orchestrator.
func New(engine Reconciler, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{engine: engine, logger: logger}
}

// SyncTenant reconciles all record kinds for one tenant.
func (o *Orchestrator) SyncTenant(ctx context.Context, tenantID string) *TenantSyncResult {
	ctx, span := tracer.Start(ctx, "Orchestrator.SyncTenant")
	defer span.End()

	span.SetAttributes(attribute.String("tenant_id", tenantID))

	log := o.logger.With(zap.String("tenant_id", tenantID))
	result := &TenantSyncResult{
		TenantID:  tenantID,
		StartedAt: time.Now().UTC(),
	}

	result.Metadata = o.runSub(ctx, log, tenantID, knowledge.KindCompanyMetadata)
	result.Rules = o.runSub(ctx, log, tenantID, knowledge.KindRule)
	result.Documents = o.runSub(ctx, log, tenantID, knowledge.KindSupportDocument)

	result.CompletedAt = time.Now().UTC()
	result.Status = combineStatus(result.Metadata, result.Rules, result.Documents)

	span.SetAttributes(attribute.String("status", string(result.Status)))
	log.Info("tenant sync finished", zap.String("status", string(result.Status)))
	return result
}

func (o *Orchestrator) runSub(ctx context.Context, log *zap.Logger, tenantID string, kind knowledge.Kind) reconcile.Result {
	res := o.engine.Reconcile(ctx, tenantID, kind)
	if res.Status == reconcile.StatusFailed {
		log.Warn("sub-sync failed",
			zap.String("kind", string(kind)),
			zap.String("error", res.Error),
		)
	}
	return res
}

func combineStatus(results ...reconcile.Result) Status {
	failed := 0
	for _, r := range results {
		if r.Status == reconcile.StatusFailed {
			failed++
		}
	}
	switch failed {
	case 0:
		return StatusCompleted
	case len(results):
		return StatusFailed
	default:
		return StatusPartial
	}
}
