package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// ErrInvalidConfig indicates invalid ERP client configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds configuration for the ERP HTTP client.
type Config struct {
	// BaseURL is the base URL of the ERP connector API.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates requests (sent as a bearer token).
	APIKey string `koanf:"api_key"`

	// Timeout bounds each request. Default: 30s.
	Timeout time.Duration `koanf:"timeout"`
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// ERPClient is a Provider backed by the ERP connector's HTTP API.
//
// The connector exposes one listing endpoint per record kind:
//
//	GET {base}/api/v1/tenants/{tenant}/records?kind={kind}
//
// The response is a JSON array of source records. Transport failures and
// non-2xx responses are wrapped in ErrSourceUnavailable so callers can
// treat them uniformly as "abort this run, retry later".
type ERPClient struct {
	config Config
	client *http.Client
}

// NewERPClient creates a new ERP client with the given configuration.
func NewERPClient(config Config) (*ERPClient, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &ERPClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

// ListActive returns the records of the given kind for a tenant.
func (c *ERPClient) ListActive(ctx context.Context, tenantID string, kind knowledge.Kind) ([]knowledge.SourceRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", ErrInvalidConfig)
	}

	endpoint := fmt.Sprintf("%s/api/v1/tenants/%s/records?kind=%s",
		c.config.BaseURL, url.PathEscape(tenantID), url.QueryEscape(string(kind)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrSourceUnavailable, resp.StatusCode, string(body))
	}

	var records []knowledge.SourceRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrSourceUnavailable, err)
	}

	// Normalize the kind so payload filters stay consistent even when the
	// connector omits it on kind-scoped listings.
	for i := range records {
		if records[i].Kind == "" {
			records[i].Kind = kind
		}
	}

	return records, nil
}

// Ensure ERPClient implements Provider.
var _ Provider = (*ERPClient)(nil)
