// Package cache holds the local snapshot of Key Vault vault and secret names.
//
// The cache stores names only. There is deliberately no field that could
// carry a secret value: values are always fetched live from Azure.
//
// A Cache is a plain in-memory value; mutations never touch storage. Use a
// Store to load and atomically persist it.
package cache

import (
	"sort"
	"time"
)

// CurrentVersion is the on-disk format version written by Save.
const CurrentVersion = 2

// LegacyVersion is reported for the flat vault list written by old releases
// and for objects that carry no version field.
const LegacyVersion = 1

// Cache is the root object of the persisted snapshot.
type Cache struct {
	// Version and LastFullSync are diagnostics only. The cache never expires.
	// Version is the format the cache was decoded from; Save always writes
	// CurrentVersion.
	Version      int
	LastFullSync time.Time

	vaults map[string]*VaultEntry
}

// VaultEntry holds what is known about one vault.
type VaultEntry struct {
	// Name is the spelling last reported by Azure.
	Name string
	// SecretsSynced is true once the vault's secret names were fetched at
	// least once. It separates "secrets unknown" from "vault has no secrets".
	SecretsSynced bool

	secrets map[string]string
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		Version: CurrentVersion,
		vaults:  make(map[string]*VaultEntry),
	}
}

// Len returns the number of cached vaults.
func (c *Cache) Len() int {
	return len(c.vaults)
}

// SecretCount returns the number of cached secret names across all vaults.
func (c *Cache) SecretCount() int {
	n := 0
	for _, v := range c.vaults {
		n += len(v.secrets)
	}
	return n
}

// Vault looks up a vault by name using the vault comparison rules.
func (c *Cache) Vault(name string) (*VaultEntry, bool) {
	v, ok := c.vaults[VaultKey(name)]
	return v, ok
}

// VaultNames returns every cached vault name in display order.
func (c *Cache) VaultNames() []string {
	names := make([]string, 0, len(c.vaults))
	for _, v := range c.vaults {
		names = append(names, v.Name)
	}
	SortVaultNames(names)
	return names
}

// UpsertVault inserts a vault or refreshes the spelling of an existing one.
// Secret data of an existing vault is left untouched.
func (c *Cache) UpsertVault(name string) (*VaultEntry, error) {
	if !ValidName(name) {
		return nil, &InvalidNameError{Kind: "vault", Name: name}
	}
	key := VaultKey(name)
	if v, ok := c.vaults[key]; ok {
		v.Name = name
		return v, nil
	}
	v := &VaultEntry{Name: name, secrets: make(map[string]string)}
	c.vaults[key] = v
	return v, nil
}

// RemoveVaultsNotIn drops every vault whose name is not in names and returns
// the removed names in display order.
func (c *Cache) RemoveVaultsNotIn(names []string) []string {
	keep := make(map[string]struct{}, len(names))
	for _, n := range names {
		keep[VaultKey(n)] = struct{}{}
	}

	var removed []string
	for key, v := range c.vaults {
		if _, ok := keep[key]; !ok {
			removed = append(removed, v.Name)
			delete(c.vaults, key)
		}
	}
	SortVaultNames(removed)
	return removed
}

// SetSecretNames replaces the secret names of a cached vault and marks it
// synced. Nothing changes if any name is invalid.
func (c *Cache) SetSecretNames(vault string, names []string) error {
	v, ok := c.Vault(vault)
	if !ok {
		return &UnknownVaultError{Vault: vault}
	}
	secrets := make(map[string]string, len(names))
	for _, n := range names {
		if !ValidName(n) {
			return &InvalidNameError{Kind: "secret", Name: n}
		}
		secrets[SecretKey(n)] = n
	}
	v.secrets = secrets
	v.SecretsSynced = true
	return nil
}

// UpsertSecretName records a single secret name in a cached vault without
// touching its other names or its synced flag.
func (c *Cache) UpsertSecretName(vault, name string) error {
	v, ok := c.Vault(vault)
	if !ok {
		return &UnknownVaultError{Vault: vault}
	}
	if !ValidName(name) {
		return &InvalidNameError{Kind: "secret", Name: name}
	}
	v.secrets[SecretKey(name)] = name
	return nil
}

// Clone returns a deep copy.
func (c *Cache) Clone() *Cache {
	out := &Cache{
		Version:      c.Version,
		LastFullSync: c.LastFullSync,
		vaults:       make(map[string]*VaultEntry, len(c.vaults)),
	}
	for key, v := range c.vaults {
		out.vaults[key] = v.clone()
	}
	return out
}

// Equal reports whether two caches hold the same vaults, secret names and
// metadata.
func (c *Cache) Equal(o *Cache) bool {
	if c.Version != o.Version || !c.LastFullSync.Equal(o.LastFullSync) || len(c.vaults) != len(o.vaults) {
		return false
	}
	for key, v := range c.vaults {
		ov, ok := o.vaults[key]
		if !ok || v.Name != ov.Name || v.SecretsSynced != ov.SecretsSynced || len(v.secrets) != len(ov.secrets) {
			return false
		}
		for sk, sn := range v.secrets {
			if ov.secrets[sk] != sn {
				return false
			}
		}
	}
	return true
}

// SecretNames returns the vault's cached secret names, sorted.
func (v *VaultEntry) SecretNames() []string {
	names := make([]string, 0, len(v.secrets))
	for _, n := range v.secrets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasSecret reports whether name is cached for this vault.
func (v *VaultEntry) HasSecret(name string) bool {
	_, ok := v.secrets[SecretKey(name)]
	return ok
}

func (v *VaultEntry) clone() *VaultEntry {
	out := &VaultEntry{
		Name:          v.Name,
		SecretsSynced: v.SecretsSynced,
		secrets:       make(map[string]string, len(v.secrets)),
	}
	for k, n := range v.secrets {
		out.secrets[k] = n
	}
	return out
}
