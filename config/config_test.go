package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "mock", cfg.Model.Provider)
	assert.Equal(t, 12, cfg.Pipeline.MaxRounds)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskweave.yaml")
	content := []byte(`
logging:
  level: debug
  format: text
model:
  provider: anthropic
  name: claude-3-5-sonnet-20241022
pipeline:
  max_rounds: 6
  call_timeout: 30s
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, 6, cfg.Pipeline.MaxRounds)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.CallTimeout)
	// Untouched values keep their defaults.
	assert.Equal(t, 40, cfg.Pipeline.CompactBudget)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskweave.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  provider: openai\n"), 0o600))

	t.Setenv("TASKWEAVE_MODEL_PROVIDER", "mock")
	t.Setenv("TASKWEAVE_PIPELINE_MAX_ROUNDS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Model.Provider)
	assert.Equal(t, 3, cfg.Pipeline.MaxRounds)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Model.Provider = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Pipeline.MaxRounds = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Pipeline.CompactBudget = -1
	assert.Error(t, cfg.Validate())
}

func TestTransformEnv(t *testing.T) {
	tests := map[string]string{
		"TASKWEAVE_LOGGING_LEVEL":       "logging.level",
		"TASKWEAVE_MODEL_PROVIDER":      "model.provider",
		"TASKWEAVE_PIPELINE_MAX_ROUNDS": "pipeline.max_rounds",
		"TASKWEAVE_PIPELINE":            "pipeline",
	}
	for in, want := range tests {
		assert.Equal(t, want, transformEnv(in), in)
	}
}
