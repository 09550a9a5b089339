package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTEIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func echoVectors(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs interface{} `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		n := 1
		if inputs, ok := req.Inputs.([]interface{}); ok {
			n = len(inputs)
		}
		vectors := make([][]float32, n)
		for i := range vectors {
			vectors[i] = []float32{0.1, 0.2, 0.3}
		}
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	}
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Model)
	assert.Equal(t, 384, cfg.Dimension)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
}

func TestDetectDimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"BAAI/bge-large-en-v1.5", 1024},
		{"unknown-model", 384},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectDimension(tt.model), tt.model)
	}
}

func TestEmbedDocuments(t *testing.T) {
	srv := newTEIServer(t, echoVectors(t))
	svc, err := NewService(testConfig(srv.URL), nil)
	require.NoError(t, err)

	vectors, err := svc.EmbedDocuments(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 3)
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	srv := newTEIServer(t, echoVectors(t))
	svc, err := NewService(testConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEmbedDocumentsCountMismatch(t *testing.T) {
	srv := newTEIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[0.1,0.2]]`))
	})
	svc, err := NewService(testConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), []string{"one", "two"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestEmbedQuery(t *testing.T) {
	srv := newTEIServer(t, echoVectors(t))
	svc, err := NewService(testConfig(srv.URL), nil)
	require.NoError(t, err)

	vector, err := svc.EmbedQuery(context.Background(), "where do you deliver")
	require.NoError(t, err)
	assert.Len(t, vector, 3)
}

func TestEmbedQueryEmptyInput(t *testing.T) {
	srv := newTEIServer(t, echoVectors(t))
	svc, err := NewService(testConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEmbedRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := newTEIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		echoVectors(t)(w, r)
	})

	svc, err := NewService(testConfig(srv.URL), nil)
	require.NoError(t, err)

	vector, err := svc.EmbedQuery(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Len(t, vector, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTEIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "input too long", http.StatusUnprocessableEntity)
	})

	svc, err := NewService(testConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = svc.EmbedQuery(context.Background(), "fail fast")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := newTEIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	})

	cfg := testConfig(srv.URL)
	svc, err := NewService(cfg, nil)
	require.NoError(t, err)

	_, err = svc.EmbedQuery(context.Background(), "never succeeds")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Equal(t, int32(cfg.MaxRetries+1), calls.Load())
}
