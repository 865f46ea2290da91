package app

import "github.com/systmms/akv/internal/secure"

// Request is one of the command variants below. The set is closed: Execute
// rejects anything else.
type Request interface {
	request()
}

// Update refreshes the vault names.
type Update struct{}

// UpdateAll refreshes the vault names and every vault's secret names.
type UpdateAll struct{}

// ListVaults prints the cached vault names.
type ListVaults struct{}

// ListSecrets prints the cached secret names of one vault.
type ListSecrets struct {
	Vault string
}

// ShowSecret prints live values. An empty Secret means every cached secret
// of the vault.
type ShowSecret struct {
	Vault  string
	Secret string
}

// AddSecret sets a value remotely and records the name in the cache.
type AddSecret struct {
	Vault  string
	Secret string
	Value  *secure.SecureBuffer
}

// EditSecret sets a new value for a secret that is expected to exist.
type EditSecret struct {
	Vault  string
	Secret string
	Value  *secure.SecureBuffer
}

// RefreshVault refreshes one vault's secret names.
type RefreshVault struct {
	Vault string
}

// Search matches a pattern against the cache, optionally printing values.
type Search struct {
	Pattern string
	Show    bool
}

// CompleteCommands prints the top-level command names.
type CompleteCommands struct{}

// CompleteNames prints completion candidates for a partial vault or
// vault/secret argument.
type CompleteNames struct {
	Partial string
}

// Status prints cache diagnostics.
type Status struct{}

func (Update) request()           {}
func (UpdateAll) request()        {}
func (ListVaults) request()       {}
func (ListSecrets) request()      {}
func (ShowSecret) request()       {}
func (AddSecret) request()        {}
func (EditSecret) request()       {}
func (RefreshVault) request()     {}
func (Search) request()           {}
func (CompleteCommands) request() {}
func (CompleteNames) request()    {}
func (Status) request()           {}
