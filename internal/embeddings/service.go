package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds configuration for the embedding service.
type Config struct {
	// BaseURL is the base URL for the TEI embed endpoint.
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model name, used for metrics labels and
	// dimension detection.
	Model string `koanf:"model"`

	// Dimension is the embedding dimension. Zero means detect from the
	// model name.
	Dimension int `koanf:"dimension"`

	// MaxRetries is the retry budget for transient failures. Default: 3.
	MaxRetries int `koanf:"max_retries"`

	// RetryBackoff is the initial backoff, doubled per attempt. Default: 500ms.
	RetryBackoff time.Duration `koanf:"retry_backoff"`

	// RequestsPerSecond caps outgoing embed calls. Zero disables limiting.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.Model == "" {
		c.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.Dimension == 0 {
		c.Dimension = detectDimension(c.Model)
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
}

// detectDimension returns the embedding dimension for a model name.
// Falls back to 384, the bge-small dimension.
func detectDimension(model string) int {
	switch {
	case contains(model, "large"):
		return 1024
	case contains(model, "base"):
		return 768
	default:
		return 384
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Service is a Provider backed by a TEI-compatible HTTP endpoint.
//
// Transient failures (transport errors, 5xx, 429) are retried with
// exponential backoff; 4xx responses other than 429 fail immediately.
type Service struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	metrics *Metrics
	logger  *zap.Logger
}

// NewService creates a new embedding service with the given configuration.
func NewService(config Config, logger *zap.Logger) (*Service, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &Service{
		config:  config,
		client:  &http.Client{},
		limiter: limiter,
		metrics: NewMetrics(logger),
		logger:  logger,
	}, nil
}

// teiRequest is the request body for the TEI embed endpoint.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// EmbedDocuments generates embeddings for multiple texts.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := s.embed(ctx, teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		genErr = err
		return nil, genErr
	}
	if len(vectors) != len(texts) {
		genErr = fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
		return nil, genErr
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := s.embed(ctx, teiRequest{Inputs: text, Truncate: true})
	if err != nil {
		genErr = err
		return nil, genErr
	}
	if len(vectors) == 0 {
		genErr = fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
		return nil, genErr
	}
	return vectors[0], nil
}

// Dimension returns the embedding dimension for the configured model.
func (s *Service) Dimension() int {
	return s.config.Dimension
}

// Close is a no-op; the service holds no persistent connections.
func (s *Service) Close() error {
	return nil
}

// embed posts a request to TEI with retry and rate limiting.
func (s *Service) embed(ctx context.Context, req teiRequest) ([][]float32, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	backoff := s.config.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("embed canceled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
			s.logger.Debug("retrying embedding request",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("embed canceled: %w", err)
			}
		}

		vectors, retryable, err := s.doRequest(ctx, body)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("%w: after %d retries: %v", ErrEmbeddingFailed, s.config.MaxRetries, lastErr)
}

// doRequest performs one embed call. The second return value reports
// whether the failure is transient.
func (s *Service) doRequest(ctx context.Context, body []byte) ([][]float32, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}

	return vectors, false, nil
}

// Ensure Service implements Provider.
var _ Provider = (*Service)(nil)
