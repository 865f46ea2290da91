// Package remote talks to Azure Key Vault on behalf of the cache.
//
// Two backends exist. The CLI backend shells out to `az`. The SDK backend
// lists and reads secrets through azsecrets and only uses `az` to enumerate
// vaults. Both report failures as *AuthError, *NotFoundError or
// *TransientError so the synchronizer can tell them apart without parsing
// strings.
package remote

import (
	"context"

	"github.com/systmms/akv/internal/secure"
)

// Lister is what the synchronizer needs: names only.
type Lister interface {
	ListVaultNames(ctx context.Context) ([]string, error)
	ListSecretNames(ctx context.Context, vault string) ([]string, error)
}

// Client adds live value access. Values travel in secure buffers and are
// never passed to the cache.
type Client interface {
	Lister
	GetSecretValue(ctx context.Context, vault, name string) (*secure.SecureBuffer, error)
	SetSecretValue(ctx context.Context, vault, name string, value *secure.SecureBuffer) error
	Name() string
}
