package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	dserrors "github.com/systmms/akv/internal/errors"
	"github.com/systmms/akv/internal/logging"
	"github.com/systmms/akv/internal/secure"
)

// AzureSDKBackend is the backend name reported in errors.
const AzureSDKBackend = "azure-sdk"

// DefaultVaultDNSSuffix is the public-cloud Key Vault domain.
const DefaultVaultDNSSuffix = "vault.azure.net"

// SecretsAPI is the subset of *azsecrets.Client used here. Tests inject fakes.
type SecretsAPI interface {
	NewListSecretPropertiesPager(options *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse]
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// SecretsClientFactory builds a data-plane client for one vault URL.
type SecretsClientFactory func(vaultURL string) (SecretsAPI, error)

// AzureSDK reads secrets through the Key Vault data plane. Vault enumeration
// is a management-plane operation and is delegated to vaults.
type AzureSDK struct {
	vaults    Lister
	newClient SecretsClientFactory
	dnsSuffix string
	logger    *logging.Logger

	mu      sync.Mutex
	clients map[string]SecretsAPI
}

// AzureSDKOption configures an AzureSDK.
type AzureSDKOption func(*AzureSDK)

// WithSecretsClientFactory replaces the azsecrets client constructor (for testing).
func WithSecretsClientFactory(f SecretsClientFactory) AzureSDKOption {
	return func(a *AzureSDK) {
		a.newClient = f
	}
}

// WithVaultDNSSuffix targets a sovereign cloud, e.g. vault.azure.cn.
func WithVaultDNSSuffix(suffix string) AzureSDKOption {
	return func(a *AzureSDK) {
		if suffix != "" {
			a.dnsSuffix = strings.TrimPrefix(suffix, ".")
		}
	}
}

// WithSDKLogger sets the logger used for debug output.
func WithSDKLogger(logger *logging.Logger) AzureSDKOption {
	return func(a *AzureSDK) {
		a.logger = logger
	}
}

// NewAzureSDK creates an SDK backend. vaults provides vault names.
func NewAzureSDK(vaults Lister, opts ...AzureSDKOption) *AzureSDK {
	a := &AzureSDK{
		vaults:    vaults,
		newClient: defaultSecretsClient,
		dnsSuffix: DefaultVaultDNSSuffix,
		logger:    logging.Discard(),
		clients:   make(map[string]SecretsAPI),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// defaultSecretsClient authenticates with DefaultAzureCredential, which
// picks up an `az login` session as well as environment and managed
// identity credentials.
func defaultSecretsClient(vaultURL string) (SecretsAPI, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, &AuthError{Backend: AzureSDKBackend, Message: "failed to create Azure credential", Err: err}
	}
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return client, nil
}

func (a *AzureSDK) Name() string {
	return AzureSDKBackend
}

// VaultURL returns the data-plane URL for a vault name.
func (a *AzureSDK) VaultURL(vault string) string {
	return fmt.Sprintf("https://%s.%s/", strings.ToLower(vault), a.dnsSuffix)
}

func (a *AzureSDK) ListVaultNames(ctx context.Context) ([]string, error) {
	return a.vaults.ListVaultNames(ctx)
}

// ListSecretNames pages through the vault's secret properties. Values are
// not part of the listing.
func (a *AzureSDK) ListSecretNames(ctx context.Context, vault string) ([]string, error) {
	client, err := a.client(vault)
	if err != nil {
		return nil, err
	}

	var names []string
	pager := client.NewListSecretPropertiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classifySDKError(ctx, err, "list secrets", vault, "")
		}
		for _, props := range page.Value {
			if props == nil || props.ID == nil {
				continue
			}
			if name := props.ID.Name(); name != "" {
				names = append(names, name)
			}
		}
	}
	a.logger.Debug("Listed %d secrets in %s", len(names), vault)
	return names, nil
}

func (a *AzureSDK) GetSecretValue(ctx context.Context, vault, name string) (*secure.SecureBuffer, error) {
	client, err := a.client(vault)
	if err != nil {
		return nil, err
	}
	resp, err := client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return nil, classifySDKError(ctx, err, "show secret", vault, name)
	}
	if resp.Value == nil {
		return secure.NewSecureBuffer(nil)
	}
	return secure.FromString(*resp.Value)
}

func (a *AzureSDK) SetSecretValue(ctx context.Context, vault, name string, value *secure.SecureBuffer) error {
	client, err := a.client(vault)
	if err != nil {
		return err
	}
	locked, err := value.Open()
	if err != nil {
		return fmt.Errorf("failed to open secret value: %w", err)
	}
	defer locked.Destroy()

	plain := string(locked.Bytes())
	_, err = client.SetSecret(ctx, name, azsecrets.SetSecretParameters{Value: &plain}, nil)
	if err != nil {
		return classifySDKError(ctx, err, "set secret", vault, name)
	}
	return nil
}

func (a *AzureSDK) client(vault string) (SecretsAPI, error) {
	url := a.VaultURL(vault)

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[url]; ok {
		return c, nil
	}
	c, err := a.newClient(url)
	if err != nil {
		return nil, err
	}
	a.clients[url] = c
	return c, nil
}

// classifySDKError maps azcore failures onto the typed remote errors.
func classifySDKError(ctx context.Context, err error, op, vault, secret string) error {
	if ctx.Err() != nil {
		return &TransientError{Backend: AzureSDKBackend, Op: op, Err: ctx.Err()}
	}

	var authFailed *azidentity.AuthenticationFailedError
	if errors.As(err, &authFailed) {
		return &AuthError{Backend: AzureSDKBackend, Message: "authentication failed", Err: err}
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.StatusCode == http.StatusUnauthorized, respErr.StatusCode == http.StatusForbidden:
			return &AuthError{Backend: AzureSDKBackend, Message: respErr.ErrorCode, Err: err}
		case respErr.StatusCode == http.StatusNotFound:
			return &NotFoundError{Backend: AzureSDKBackend, Vault: vault, Secret: secret, Err: err}
		case respErr.StatusCode == http.StatusRequestTimeout,
			respErr.StatusCode == http.StatusTooManyRequests,
			respErr.StatusCode >= 500:
			return &TransientError{Backend: AzureSDKBackend, Op: op, Err: err}
		}
		return dserrors.RemoteError(AzureSDKBackend, op, err)
	}

	if dserrors.IsRetryable(err) {
		return &TransientError{Backend: AzureSDKBackend, Op: op, Err: err}
	}
	return dserrors.RemoteError(AzureSDKBackend, op, err)
}
