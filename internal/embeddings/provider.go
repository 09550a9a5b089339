// Package embeddings provides embedding generation for record text and
// search queries via an external TEI-compatible inference service.
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure after
	// retries were exhausted.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider generates vector embeddings from text.
//
// Implementations are fallible and retryable: transient failures are
// retried with exponential backoff inside the provider so callers can treat
// a returned error as final for the current record.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the configured model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}
