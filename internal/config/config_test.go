package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
source:
  base_url: http://erp.local
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8600, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "knowd", cfg.Telemetry.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.False(t, cfg.Telemetry.Enabled)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "http://localhost:8080", cfg.Embeddings.BaseURL)
	assert.Equal(t, "http://erp.local", cfg.Source.BaseURL)
	assert.Equal(t, uint32(4096), cfg.Sync.ScrollLimit)
	assert.Equal(t, time.Hour, cfg.Sync.SnapshotTTL)
	assert.Equal(t, 5, cfg.Retrieval.DefaultLimit)
	assert.InDelta(t, 0.35, cfg.Retrieval.DefaultScoreThreshold, 1e-6)
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
server:
  port: 9000
logging:
  level: debug
  format: console
qdrant:
  host: qdrant.internal
  port: 7000
source:
  base_url: http://erp.local
  timeout: 10s
sync:
  snapshot_ttl: 30m
retrieval:
  default_limit: 10
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, 7000, cfg.Qdrant.Port)
	assert.Equal(t, 10*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Sync.SnapshotTTL)
	assert.Equal(t, 10, cfg.Retrieval.DefaultLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("KNOWD_QDRANT_HOST", "qdrant.override")
	t.Setenv("KNOWD_EMBEDDINGS_BASE_URL", "http://tei.override:8080")

	cfg, err := Load(writeConfigFile(t, `
qdrant:
  host: qdrant.file
source:
  base_url: http://erp.local
`))
	require.NoError(t, err)

	assert.Equal(t, "qdrant.override", cfg.Qdrant.Host)
	assert.Equal(t, "http://tei.override:8080", cfg.Embeddings.BaseURL)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("KNOWD_SOURCE_BASE_URL", "http://erp.env")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://erp.env", cfg.Source.BaseURL)
	assert.Equal(t, 8600, cfg.Server.Port)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing source base url",
			content: `
server:
  port: 8600
`,
		},
		{
			name: "invalid log level",
			content: minimalConfig + `
logging:
  level: verbose
`,
		},
		{
			name: "invalid qdrant port",
			content: minimalConfig + `
qdrant:
  port: -1
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	big := make([]byte, maxConfigFileSize+1)
	require.NoError(t, os.WriteFile(path, big, 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
