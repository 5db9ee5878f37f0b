package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Trending.TargetCount)
	assert.Equal(t, 30*time.Second, cfg.Trending.ModelTimeout)
	assert.Equal(t, 12*time.Second, cfg.Ingestion.FetchTimeout)
	assert.Equal(t, []string{"direct", "rss2json", "raw_proxy"}, cfg.Ingestion.Strategies)
	assert.Equal(t, ":3000", cfg.GetServerAddress())
}

func TestLoadFileWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8080"
  trigger_secret: ${TEST_TRIGGER_SECRET}
ingestion:
  fetch_timeout: 5s
  strategies: [direct]
trending:
  target_count: 5
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
`), 0o644))

	t.Setenv("TEST_TRIGGER_SECRET", "from-env")
	t.Setenv("APP_TRENDING_POOL_SIZE", "12")
	t.Setenv("APP_LLM_API_KEY", "key-123")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Server.TriggerSecret)
	assert.Equal(t, 5*time.Second, cfg.Ingestion.FetchTimeout)
	assert.Equal(t, []string{"direct"}, cfg.Ingestion.Strategies)
	assert.Equal(t, 5, cfg.Trending.TargetCount)
	assert.Equal(t, 12, cfg.Trending.PoolSize)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "key-123", cfg.LLM.APIKey)
	assert.Equal(t, ":8080", cfg.GetServerAddress())
}

func TestLoadLegacyEnv(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("CRON_SECRET", "legacy")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Server.TriggerSecret)
	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddress())
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
