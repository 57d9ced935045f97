package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Fetch.Timeout())
	assert.Equal(t, 2*time.Second, cfg.Fetch.DomainInterval())
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 200, cfg.Extract.MinContentLength)
	assert.Equal(t, 10, cfg.Ingest.Concurrency)
	assert.Contains(t, cfg.Ingest.ExcludedDomains, "youtube.com")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
fetch:
  timeout_seconds: 5
  domain_interval_ms: 500
ingest:
  concurrency: 3
  excluded_domains:
    - example.org
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.DomainInterval())
	assert.Equal(t, 3, cfg.Ingest.Concurrency)
	assert.Equal(t, []string{"example.org"}, cfg.Ingest.ExcludedDomains)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Server.Port = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Fetch.TimeoutSeconds = 0
	assert.Error(t, bad.Validate())

	// 0 is rejected rather than silently promoted to the default; a single
	// attempt with no retries is max_retries: 1.
	bad = cfg
	bad.Fetch.MaxRetries = 0
	assert.Error(t, bad.Validate())
	bad.Fetch.MaxRetries = 1
	assert.NoError(t, bad.Validate())

	bad = cfg
	bad.Fetch.MinDelayMs = 100
	bad.Fetch.MaxDelayMs = 50
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Ingest.Concurrency = 0
	assert.Error(t, bad.Validate())
}
