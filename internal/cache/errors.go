package cache

import (
	"fmt"
)

// UnknownVaultError is returned when a vault is not present in the cache.
type UnknownVaultError struct {
	Vault string
}

func (e *UnknownVaultError) Error() string {
	return fmt.Sprintf("vault %q is not in the cache (run 'akv update' to refresh vault names)", e.Vault)
}

// UnknownSecretError is returned when a secret name is not present in a
// cached vault.
type UnknownSecretError struct {
	Vault  string
	Secret string
}

func (e *UnknownSecretError) Error() string {
	return fmt.Sprintf("secret %q is not cached for vault %q (run 'akv kv %s update' to refresh it)", e.Secret, e.Vault, e.Vault)
}

// InvalidNameError is returned when a name cannot be stored.
type InvalidNameError struct {
	Kind string // "vault" or "secret"
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid %s name %q", e.Kind, e.Name)
}

// CorruptError reports a persisted cache that could not be read or decoded.
// It is recoverable: the store falls back to an empty cache.
type CorruptError struct {
	Location string
	Err      error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("cache file %s is unreadable, starting from an empty cache: %v", e.Location, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}
