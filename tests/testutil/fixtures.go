package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// CacheFixture builds an on-disk name cache without going through the cache
// package, so tests exercise the real decoder.
//
// Example usage:
//
//	path := NewCacheFixture(t).
//	    WithVault("vault-a", "db-password", "api-key").
//	    WithUnsyncedVault("vault-b").
//	    Write()
type CacheFixture struct {
	vaults map[string]fixtureVault
	t      *testing.T
}

type fixtureVault struct {
	SecretNames   []string `json:"secretNames"`
	SecretsSynced bool     `json:"secretsSynced"`
}

// NewCacheFixture creates an empty fixture.
func NewCacheFixture(t *testing.T) *CacheFixture {
	t.Helper()
	return &CacheFixture{vaults: make(map[string]fixtureVault), t: t}
}

// WithVault adds a vault whose secret names have been synced.
func (f *CacheFixture) WithVault(name string, secrets ...string) *CacheFixture {
	names := append([]string{}, secrets...)
	sort.Strings(names)
	f.vaults[name] = fixtureVault{SecretNames: names, SecretsSynced: true}
	return f
}

// WithUnsyncedVault adds a vault whose secrets were never listed.
func (f *CacheFixture) WithUnsyncedVault(name string) *CacheFixture {
	f.vaults[name] = fixtureVault{SecretNames: []string{}}
	return f
}

// JSON renders the fixture in the current on-disk format.
func (f *CacheFixture) JSON() []byte {
	f.t.Helper()

	doc := struct {
		Version int                     `json:"version"`
		Vaults  map[string]fixtureVault `json:"vaults"`
	}{Version: 2, Vaults: f.vaults}

	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(f.t, err)
	return append(data, '\n')
}

// Write stores the fixture in a temp dir and returns the file path.
func (f *CacheFixture) Write() string {
	f.t.Helper()
	return f.WriteTo(filepath.Join(f.t.TempDir(), "akv_cache.json"))
}

// WriteTo stores the fixture at path.
func (f *CacheFixture) WriteTo(path string) string {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(path, f.JSON(), 0600))
	return path
}

// WriteLegacyCache writes the flat array format of older akv releases.
func WriteLegacyCache(t *testing.T, path string, vaults ...string) string {
	t.Helper()

	data, err := json.Marshal(vaults)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}
