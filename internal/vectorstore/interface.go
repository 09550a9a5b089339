// Package vectorstore defines the interface for the shared multi-tenant
// vector index and provides its Qdrant gRPC implementation.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrMissingTenant is returned when a filter lacks a tenant id.
	// Every read and write against the shared index is tenant-scoped;
	// an unscoped call fails closed instead of touching foreign data.
	ErrMissingTenant = errors.New("tenant id missing from filter")
)

// Store is the tenant-scoped contract knowd needs from the vector index.
//
// The index is physically shared across tenants: all mutating and reading
// operations take an explicit Filter carrying the tenant id (and optionally
// the record kind), which implementations translate into payload
// conditions. There is no implicit tenant context.
//
// Upserts are idempotent: writing the same point id twice replaces the
// point instead of duplicating it, which is what makes reconciliation safe
// to re-run and to race with itself.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error

	// Upsert writes points into a collection, replacing points that share
	// an id.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Scroll returns up to limit points matching the filter, payloads
	// included, vectors omitted. Used by reconciliation to learn what is
	// currently indexed for a tenant.
	Scroll(ctx context.Context, collection string, filter Filter, limit uint32) ([]Point, error)

	// Search runs a similarity query scoped by the filter and returns up
	// to limit points scoring at or above scoreThreshold, best first.
	Search(ctx context.Context, collection string, vector []float32, filter Filter, limit uint64, scoreThreshold float32) ([]ScoredPoint, error)

	// Delete removes points by id.
	Delete(ctx context.Context, collection string, pointIDs []string) error

	// Count returns the number of points matching the filter. Used as the
	// cheap existence probe for cold-tenant detection.
	Count(ctx context.Context, collection string, filter Filter) (uint64, error)

	// Close releases the underlying connection.
	Close() error
}
