// Package query answers ls, search and completion requests from the cached
// names. It never talks to Azure.
package query

import (
	"strings"

	"github.com/systmms/akv/internal/cache"
	"github.com/systmms/akv/internal/match"
)

// Result is one search hit. Secret is empty for a vault-only hit.
type Result struct {
	Vault  string
	Secret string
}

// String renders the hit as vault or vault/secret.
func (r Result) String() string {
	if r.Secret == "" {
		return r.Vault
	}
	return r.Vault + match.Separator + r.Secret
}

// Engine reads a loaded cache snapshot.
type Engine struct {
	cache *cache.Cache
}

// New wraps a loaded cache.
func New(c *cache.Cache) *Engine {
	if c == nil {
		c = cache.New()
	}
	return &Engine{cache: c}
}

// ListVaults returns every cached vault name.
func (e *Engine) ListVaults() []string {
	return e.cache.VaultNames()
}

// ListSecrets returns the cached secret names of vault.
func (e *Engine) ListSecrets(vault string) ([]string, error) {
	v, ok := e.cache.Vault(vault)
	if !ok {
		return nil, &cache.UnknownVaultError{Vault: vault}
	}
	return v.SecretNames(), nil
}

// Search matches pattern against the cache.
//
// A compound pattern "vp/sp" matches vp against vault names and, inside each
// matching vault, sp against secret names. A simple pattern yields matching
// vaults as vault-only hits plus every secret, in any vault, whose name
// matches. Results are ordered by vault then secret, a vault-only hit first.
func (e *Engine) Search(pattern string) ([]Result, error) {
	vaultPattern, secretPattern, compound, err := match.Split(pattern)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, name := range e.cache.VaultNames() {
		v, _ := e.cache.Vault(name)
		vaultMatches := matchVault(vaultPattern, name)

		if compound {
			if !vaultMatches {
				continue
			}
			for _, s := range v.SecretNames() {
				if match.Match(secretPattern, s) {
					results = append(results, Result{Vault: name, Secret: s})
				}
			}
			continue
		}

		if vaultMatches {
			results = append(results, Result{Vault: name})
		}
		for _, s := range v.SecretNames() {
			if match.Match(vaultPattern, s) {
				results = append(results, Result{Vault: name, Secret: s})
			}
		}
	}
	return results, nil
}

// Complete returns completion candidates for a partially typed argument.
// A partial containing '*' or '?' is run through Search and yields its hits.
// Otherwise, without a separator it completes vault names. With one it
// completes "vault/secret" paths inside the named vault, echoing the vault
// exactly as typed so shells accept the candidates as extensions of the input.
func (e *Engine) Complete(partial string) []string {
	if match.HasWildcard(partial) {
		results, err := e.Search(partial)
		if err != nil {
			return nil
		}
		out := make([]string, len(results))
		for i, r := range results {
			out[i] = r.String()
		}
		return out
	}

	vault, secretPrefix, found := strings.Cut(partial, match.Separator)
	if !found {
		var out []string
		for _, name := range e.cache.VaultNames() {
			if strings.HasPrefix(cache.VaultKey(name), cache.VaultKey(partial)) {
				out = append(out, name)
			}
		}
		return out
	}
	if strings.Contains(secretPrefix, match.Separator) {
		return nil
	}

	secrets := e.CompleteSecrets(vault, secretPrefix)
	out := make([]string, len(secrets))
	for i, s := range secrets {
		out[i] = vault + match.Separator + s
	}
	return out
}

// CompleteSecrets returns the cached secret names of vault starting with
// prefix, or matching it when prefix is a glob. An uncached vault has no
// candidates.
func (e *Engine) CompleteSecrets(vault, prefix string) []string {
	v, ok := e.cache.Vault(vault)
	if !ok {
		return nil
	}
	glob := match.HasWildcard(prefix)
	var out []string
	for _, s := range v.SecretNames() {
		if glob && match.Match(prefix, s) || !glob && strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out
}

// Secrets returns only the hits that name a secret.
func Secrets(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Secret != "" {
			out = append(out, r)
		}
	}
	return out
}

// matchVault applies the vault comparison rules to a glob.
func matchVault(pattern, name string) bool {
	return match.Match(cache.VaultKey(pattern), cache.VaultKey(name))
}
