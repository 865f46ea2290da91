package config

import (
	"os"
	"path/filepath"
	"strings"

	dserrors "github.com/systmms/akv/internal/errors"
	"github.com/systmms/akv/internal/logging"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in the backend field.
const (
	BackendCLI = "cli"
	BackendSDK = "sdk"
)

// Environment variables that override the file.
const (
	EnvCacheFile = "AKV_CACHE_FILE"
	EnvBackend   = "AKV_BACKEND"
)

// Config holds the runtime configuration
type Config struct {
	Path string
	// Explicit is set when Path came from --config. A missing explicit file
	// is an error; a missing default file just means defaults.
	Explicit   bool
	Logger     *logging.Logger
	Definition *Definition

	// Getenv is os.Getenv unless a test replaces it.
	Getenv func(string) string
}

// Definition represents the config.yaml structure
type Definition struct {
	Version        int    `yaml:"version"`
	CacheFile      string `yaml:"cache_file,omitempty"`
	Backend        string `yaml:"backend,omitempty"`
	AzPath         string `yaml:"az_path,omitempty"`
	TimeoutMs      int    `yaml:"timeout_ms,omitempty"`
	MaxRetries     int    `yaml:"max_retries,omitempty"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms,omitempty"`
	VaultDNSSuffix string `yaml:"vault_dns_suffix,omitempty"`
	// MetricsTextfile, when set, receives sync metrics in the node-exporter
	// textfile format after every refresh.
	MetricsTextfile string `yaml:"metrics_textfile,omitempty"`
}

// Defaults returns the configuration used when no file exists.
func Defaults() *Definition {
	return &Definition{
		Version:        0,
		Backend:        BackendCLI,
		AzPath:         "az",
		TimeoutMs:      30000,
		MaxRetries:     2,
		RetryBackoffMs: 500,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/akv/config.yaml, falling back to
// ~/.config/akv/config.yaml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "akv", "config.yaml")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "akv", "config.yaml")
	}
	return filepath.Join(".config", "akv", "config.yaml")
}

// Load reads the config file if present, applies defaults and environment
// overrides, and validates the result.
func (c *Config) Load() error {
	def := Defaults()

	data, err := os.ReadFile(c.Path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, def); err != nil {
			return dserrors.ConfigError{
				Message:    "invalid YAML syntax in configuration file",
				Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
			}
		}
	case os.IsNotExist(err):
		if c.Explicit {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Check the --config path or omit it to use defaults",
			}
		}
		if c.Logger != nil {
			c.Logger.Debug("No config file at %s, using defaults", c.Path)
		}
	default:
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	c.applyEnv(def)

	if err := def.Validate(); err != nil {
		return err
	}

	c.Definition = def
	return nil
}

func (c *Config) applyEnv(def *Definition) {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvCacheFile); v != "" {
		def.CacheFile = v
	}
	if v := getenv(EnvBackend); v != "" {
		def.Backend = strings.ToLower(v)
	}
}

// Validate checks field values.
func (d *Definition) Validate() error {
	if d.Version != 0 {
		return dserrors.ConfigError{
			Field:      "version",
			Value:      d.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of config.yaml",
		}
	}
	switch d.Backend {
	case BackendCLI, BackendSDK:
	default:
		return dserrors.ConfigError{
			Field:      "backend",
			Value:      d.Backend,
			Message:    "unsupported backend",
			Suggestion: "Use 'cli' (az command line) or 'sdk' (Azure SDK)",
		}
	}
	if d.TimeoutMs < 0 {
		return dserrors.ConfigError{
			Field:      "timeout_ms",
			Value:      d.TimeoutMs,
			Message:    "must not be negative",
			Suggestion: "Use 0 to disable the per-call timeout",
		}
	}
	if d.MaxRetries < 0 || d.MaxRetries > 10 {
		return dserrors.ConfigError{
			Field:      "max_retries",
			Value:      d.MaxRetries,
			Message:    "must be between 0 and 10",
		}
	}
	if d.RetryBackoffMs < 0 {
		return dserrors.ConfigError{
			Field:   "retry_backoff_ms",
			Value:   d.RetryBackoffMs,
			Message: "must not be negative",
		}
	}
	if strings.TrimSpace(d.AzPath) == "" {
		return dserrors.ConfigError{
			Field:      "az_path",
			Message:    "must not be empty",
			Suggestion: "Remove the field to use 'az' from PATH",
		}
	}
	return nil
}

// ResolveCacheFile returns the cache path with a leading ~ expanded.
// An empty result means the store default.
func (d *Definition) ResolveCacheFile() string {
	p := d.CacheFile
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
		}
	}
	return p
}
