package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohammadpnp/school-import/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(config.PathEnv, "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 1500, cfg.Import.BatchSize)
	assert.Equal(t, 50, cfg.Import.EnrichChunkSize)
	assert.Equal(t, 5, cfg.Import.EnrichConcurrency)
	assert.Equal(t, 100, cfg.Import.CommitChunkSize)
	assert.Equal(t, "@every 15s", cfg.Worker.Schedule)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9090"
import:
  batchSize: 500
  leaseDuration: 90s
worker:
  schedule: "@every 1m"
`), 0o600))

	t.Setenv(config.PathEnv, path)
	t.Setenv("IMPORT_BATCH_SIZE", "750")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, 750, cfg.Import.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.Import.LeaseDuration)
	assert.Equal(t, "@every 1m", cfg.Worker.Schedule)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, 100, cfg.Import.CommitChunkSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv(config.PathEnv, "")
	t.Setenv("IMPORT_BATCH_SIZE", "0")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch size")
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(config.PathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := config.Load()
	require.Error(t, err)
}
