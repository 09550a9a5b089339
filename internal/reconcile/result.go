// Package reconcile converges the vector index and the fast cache to the
// current active source-record set, per tenant and record kind.
package reconcile

import (
	"time"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// Status is the outcome of one reconciliation run.
type Status string

const (
	// StatusCompleted means the run finished, possibly with per-record
	// failures reflected in a lower vectorized count.
	StatusCompleted Status = "completed"

	// StatusFailed means the authoritative record set could not be
	// fetched and nothing was reconciled.
	StatusFailed Status = "failed"
)

// Result is the immutable record of one reconciliation run. It is returned
// to the caller for operational visibility and is not persisted.
type Result struct {
	TenantID string         `json:"tenant_id"`
	Kind     knowledge.Kind `json:"kind"`

	// Permanent and Temporary count the active records seen at the
	// source, split by temporality.
	Permanent int `json:"permanent"`
	Temporary int `json:"temporary"`

	// Vectorized counts records newly embedded this run. Unchanged
	// records short-circuited by the fingerprint guard are not counted.
	Vectorized int `json:"vectorized"`

	// Removed counts index entries evicted because their source record
	// disappeared, was deselected, or fell outside its validity window.
	Removed int `json:"removed"`

	Status      Status    `json:"status"`
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error,omitempty"`
}
