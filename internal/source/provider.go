// Package source provides access to the external system-of-record that
// owns the authoritative business records per tenant.
package source

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// ErrSourceUnavailable indicates the system-of-record could not be reached
// or returned an unusable response. It is fatal to a reconciliation run.
var ErrSourceUnavailable = errors.New("source system unavailable")

// Provider supplies the authoritative list of records per tenant and kind.
//
// Implementations return the records the source currently considers
// selected for the tenant; temporal activation of time-boxed records is
// applied by the reconciliation engine, not here.
type Provider interface {
	// ListActive returns the records of the given kind for a tenant.
	// Fails with ErrSourceUnavailable when the source cannot be reached.
	ListActive(ctx context.Context, tenantID string, kind knowledge.Kind) ([]knowledge.SourceRecord, error)
}
