package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wherrors "github.com/pyforge/wheelhouse/internal/errors"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "python3", cfg.Python.Interpreter)
	assert.NotEmpty(t, cfg.Cache.Directory)
	assert.Equal(t, filepath.Join(filepath.Dir(cfg.Cache.Directory), "index.db"), cfg.Cache.IndexPath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 500, cfg.Watch.DebounceMS)
}

func TestLoad_MissingNamedFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, wherrors.IsCategory(err, wherrors.CategoryConfig))
}

func TestLoad_ParsesAndExpandsEnv(t *testing.T) {
	t.Setenv("WHEELHOUSE_TEST_INDEX", "https://pypi.internal.example/simple")

	path := filepath.Join(t.TempDir(), "wheelhouse.yaml")
	content := `
python:
  interpreter: python3.12
cache:
  directory: /var/cache/wheelhouse
sources:
  index_url: ${WHEELHOUSE_TEST_INDEX}
  extra_index_urls:
    - https://mirror.example/simple
logging:
  level: DEBUG
  format: json
metrics:
  listen_addr: ":9090"
watch:
  debounce_ms: 250
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "python3.12", cfg.Python.Interpreter)
	assert.Equal(t, "/var/cache/wheelhouse", cfg.Cache.Directory)
	assert.Equal(t, "/var/cache/index.db", cfg.Cache.IndexPath)
	assert.Equal(t, "https://pypi.internal.example/simple", cfg.Sources.IndexURL)
	assert.Equal(t, []string{"https://mirror.example/simple"}, cfg.Sources.ExtraIndexURLs)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":9090", cfg.Metrics.ListenAddr)
	assert.Equal(t, 250, cfg.Watch.DebounceMS)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("python: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, wherrors.IsCategory(err, wherrors.CategoryConfig))
}

func TestValidate_MetricsAddr(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.applyDefaults())

	cfg.Metrics.ListenAddr = ":9090"
	assert.NoError(t, cfg.Validate())

	cfg.Metrics.ListenAddr = "localhost:9090"
	assert.NoError(t, cfg.Validate())

	cfg.Metrics.ListenAddr = "9090"
	assert.Error(t, cfg.Validate())
}

func TestNormalizeLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, NormalizeLogLevel("Debug"))
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel("WARNING"))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel(""))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("bogus"))
}

func TestNormalizeLogFormat(t *testing.T) {
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat("JSON"))
	assert.Equal(t, LogFormatText, NormalizeLogFormat(""))
	assert.Equal(t, LogFormatText, NormalizeLogFormat("xml"))
}
