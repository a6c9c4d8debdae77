// Package config loads the wheelhouse configuration file and applies
// defaults. Values in the YAML file may reference environment variables with
// ${VAR} syntax; a .env file next to the working directory is honored.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	wherrors "github.com/pyforge/wheelhouse/internal/errors"
)

// Config represents the application configuration.
type Config struct {
	Python    PythonConfig    `yaml:"python"`
	Cache     CacheConfig     `yaml:"cache"`
	Sources   SourcesConfig   `yaml:"sources"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Watch     WatchConfig     `yaml:"watch"`
}

// PythonConfig selects the interpreter used for build environments.
type PythonConfig struct {
	Interpreter string `yaml:"interpreter,omitempty"`
}

// CacheConfig locates the artifact cache and its index database.
type CacheConfig struct {
	Directory string `yaml:"directory,omitempty"`
	IndexPath string `yaml:"index_path,omitempty"`
}

// SourcesConfig controls where build requirements are resolved from.
type SourcesConfig struct {
	IndexURL       string   `yaml:"index_url,omitempty"`
	ExtraIndexURLs []string `yaml:"extra_index_urls,omitempty"`
}

// WorkspaceConfig locates scratch space for unpacking and build environments.
type WorkspaceConfig struct {
	BaseDir string `yaml:"base_dir,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint when a listen address is set.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// WatchConfig tunes the editable rebuild watcher.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms,omitempty"`
}

// Load reads configuration from the specified file. An empty path yields the
// defaults. A named file that does not exist is an error.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, wherrors.ConfigError("configuration file not found: " + configPath)
			}
			return nil, wherrors.WrapError(err, wherrors.CategoryConfig, "failed to read config file")
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, wherrors.WrapError(err, wherrors.CategoryConfig, "failed to parse config file")
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads .env then .env.local without overriding existing
// process variables. Missing files are fine.
func loadEnvFiles() {
	for _, p := range []string{".env", ".env.local"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func (c *Config) applyDefaults() error {
	if c.Python.Interpreter == "" {
		c.Python.Interpreter = "python3"
	}

	if c.Cache.Directory == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return wherrors.WrapError(err, wherrors.CategoryConfig, "cannot determine cache directory")
		}
		c.Cache.Directory = filepath.Join(base, "wheelhouse", "artifacts")
	}
	if c.Cache.IndexPath == "" {
		c.Cache.IndexPath = filepath.Join(filepath.Dir(c.Cache.Directory), "index.db")
	}

	c.Logging.Level = string(NormalizeLogLevel(c.Logging.Level))
	c.Logging.Format = string(NormalizeLogFormat(c.Logging.Format))

	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = 500
	}
	return nil
}

// Validate checks cross-field constraints not covered by defaulting.
func (c *Config) Validate() error {
	if addr := c.Metrics.ListenAddr; addr != "" && !strings.Contains(addr, ":") {
		return wherrors.ConfigError(fmt.Sprintf("invalid metrics listen address: %s", addr))
	}
	return nil
}
