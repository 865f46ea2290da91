// Package testutil provides test utilities and helpers for akv tests.
//
// This package contains shared test infrastructure including a scripted
// stand-in for the az command, configuration and cache file builders, and a
// log capturing helper.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/systmms/akv/internal/config"
	"gopkg.in/yaml.v3"
)

// TestConfigBuilder provides a fluent API for building test configurations.
//
// Example usage:
//
//	path := NewTestConfig(t).
//	    WithBackend(config.BackendSDK).
//	    WithCacheFile(filepath.Join(t.TempDir(), "cache.json")).
//	    Write()
type TestConfigBuilder struct {
	def     *config.Definition
	tempDir string
	t       *testing.T
}

// NewTestConfig starts from config.Defaults with retries disabled so tests
// never sleep.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	def := config.Defaults()
	def.MaxRetries = 0
	def.RetryBackoffMs = 0
	return &TestConfigBuilder{def: def, tempDir: t.TempDir(), t: t}
}

// WithBackend selects cli or sdk.
func (b *TestConfigBuilder) WithBackend(backend string) *TestConfigBuilder {
	b.def.Backend = backend
	return b
}

// WithCacheFile sets cache_file.
func (b *TestConfigBuilder) WithCacheFile(path string) *TestConfigBuilder {
	b.def.CacheFile = path
	return b
}

// WithRetries sets max_retries and retry_backoff_ms.
func (b *TestConfigBuilder) WithRetries(max, backoffMs int) *TestConfigBuilder {
	b.def.MaxRetries = max
	b.def.RetryBackoffMs = backoffMs
	return b
}

// WithMetricsTextfile sets metrics_textfile.
func (b *TestConfigBuilder) WithMetricsTextfile(path string) *TestConfigBuilder {
	b.def.MetricsTextfile = path
	return b
}

// Build returns the definition without writing it.
func (b *TestConfigBuilder) Build() *config.Definition {
	return b.def
}

// Write marshals the definition into config.yaml in a temp dir and returns its path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.def)
	require.NoError(b.t, err)

	path := filepath.Join(b.tempDir, "config.yaml")
	require.NoError(b.t, os.WriteFile(path, data, 0644))
	return path
}

// WriteTestConfig writes raw YAML to a temp config.yaml and returns its path.
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))
	return path
}
