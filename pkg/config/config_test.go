package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opforge/opforge/pkg/operations"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, -1, cfg.MaxParallelism)
	assert.Equal(t, operations.DefaultStopTimeout, cfg.StopTimeout.Std())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "forge.yaml", `
max_parallelism: 8
stop_timeout: 1m30s
logging:
  level: debug
  format: json
metrics:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.MaxParallelism)
	assert.Equal(t, 90*time.Second, cfg.StopTimeout.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "console", DefaultConfig().Logging.Format)
}

func TestLoad_EmptyYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "forge.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().MaxParallelism, cfg.MaxParallelism)
}

func TestLoad_YAMLUnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "forge.yaml", "threads: 4\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threads")
}

func TestLoad_CUE(t *testing.T) {
	path := writeConfig(t, "forge.cue", `
max_parallelism: 2
stop_timeout: "5s"
logging: level: "warn"
tracing: {
	enabled:  true
	exporter: "stdout"
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.MaxParallelism)
	assert.Equal(t, 5*time.Second, cfg.StopTimeout.Std())
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
}

func TestLoad_CUESchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"parallelism too large", `max_parallelism: 5000`},
		{"unknown level", `logging: level: "loud"`},
		{"bad duration", `stop_timeout: "soon"`},
		{"unknown field", `workers: 3`},
		{"syntax", `max_parallelism: {`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "forge.cue", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_JSON(t *testing.T) {
	cfg, err := Load(writeConfig(t, "forge.json", `{"max_parallelism": 0, "stop_timeout": "250ms"}`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MaxParallelism)
	assert.Equal(t, 250*time.Millisecond, cfg.StopTimeout.Std())
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, "forge.yaml", "tracing:\n  enabled: true\n  exporter: otlp\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Endpoint")
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load(writeConfig(t, "forge.toml", "x = 1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvMaxParallelism, "3")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvStopTimeout, "2s")

	cfg, err := Load(writeConfig(t, "forge.yaml", "max_parallelism: 8\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxParallelism)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2*time.Second, cfg.StopTimeout.Std())
}

func TestApplyEnv_InvalidParallelism(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(func(key string) (string, bool) {
		if key == EnvMaxParallelism {
			return "many", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvMaxParallelism)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, Find(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "forge.cue"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "forge.yaml"), []byte(""), 0o644))
	assert.Equal(t, filepath.Join(dir, "forge.yaml"), Find(dir))
}

func TestTelemetryMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Events.Async = true
	cfg.Events.BufferSize = 0

	tel := cfg.Telemetry("1.2.3")
	assert.Equal(t, "1.2.3", tel.ServiceVersion)
	assert.Equal(t, "debug", tel.Logging.Level)
	assert.True(t, tel.Events.EnableAsync)
	assert.Positive(t, tel.Events.BufferSize)
	assert.NoError(t, tel.Validate())
}
