package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeSecretsClient is an in-memory Key Vault data plane for one vault.
type FakeSecretsClient struct {
	mu sync.Mutex

	// VaultURL prefixes secret IDs.
	VaultURL string
	// Secrets maps secret names to their current values.
	Secrets map[string]string
	// Errors maps secret names to errors returned by GetSecret and SetSecret.
	Errors map[string]error
	// ListErr fails the listing on the given page (see ListErrPage).
	ListErr     error
	ListErrPage int
	// PageSize controls how many names each listing page holds.
	PageSize int

	// SetCalls records SetSecret invocations in order.
	SetCalls []SetCall
	// GetCalls records the names passed to GetSecret.
	GetCalls []string
}

// SetCall is one recorded SetSecret invocation.
type SetCall struct {
	Name  string
	Value string
}

// NewFakeSecretsClient creates an empty fake with two names per page.
func NewFakeSecretsClient() *FakeSecretsClient {
	return &FakeSecretsClient{
		VaultURL: "https://test-vault.vault.azure.net",
		Secrets:  make(map[string]string),
		Errors:   make(map[string]error),
		PageSize: 2,
	}
}

// AddSecret stores a secret value.
func (f *FakeSecretsClient) AddSecret(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

// SetError makes GetSecret and SetSecret fail for name.
func (f *FakeSecretsClient) SetError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

func (f *FakeSecretsClient) secretID(name string) *azsecrets.ID {
	return (*azsecrets.ID)(to.Ptr(fmt.Sprintf("%s/secrets/%s", f.VaultURL, name)))
}

// NewListSecretPropertiesPager pages over the secret names in sorted order.
// The page cursor travels in NextLink, as it does against the real service.
func (f *FakeSecretsClient) NewListSecretPropertiesPager(_ *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse] {
	f.mu.Lock()
	names := make([]string, 0, len(f.Secrets))
	for name := range f.Secrets {
		names = append(names, name)
	}
	listErr, errPage, size := f.ListErr, f.ListErrPage, f.PageSize
	f.mu.Unlock()

	sort.Strings(names)
	if size <= 0 {
		size = len(names) + 1
	}

	return runtime.NewPager(runtime.PagingHandler[azsecrets.ListSecretPropertiesResponse]{
		More: func(page azsecrets.ListSecretPropertiesResponse) bool {
			return page.NextLink != nil
		},
		Fetcher: func(ctx context.Context, page *azsecrets.ListSecretPropertiesResponse) (azsecrets.ListSecretPropertiesResponse, error) {
			if err := ctx.Err(); err != nil {
				return azsecrets.ListSecretPropertiesResponse{}, err
			}

			index := 0
			if page != nil && page.NextLink != nil {
				index, _ = strconv.Atoi(*page.NextLink)
			}
			if listErr != nil && index/size == errPage {
				return azsecrets.ListSecretPropertiesResponse{}, listErr
			}

			end := index + size
			if end > len(names) {
				end = len(names)
			}
			var resp azsecrets.ListSecretPropertiesResponse
			for _, name := range names[index:end] {
				resp.Value = append(resp.Value, &azsecrets.SecretProperties{
					ID:         f.secretID(name),
					Attributes: &azsecrets.SecretAttributes{Enabled: to.Ptr(true)},
				})
			}
			if end < len(names) {
				resp.NextLink = to.Ptr(strconv.Itoa(end))
			}
			return resp, nil
		},
	})
}

// GetSecret returns the current value of name.
func (f *FakeSecretsClient) GetSecret(ctx context.Context, name string, version string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.GetCalls = append(f.GetCalls, name)
	if err := ctx.Err(); err != nil {
		return azsecrets.GetSecretResponse{}, err
	}
	if err, ok := f.Errors[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	value, ok := f.Secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, AzureNotFoundError(name)
	}

	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{
			ID:    f.secretID(name),
			Value: to.Ptr(value),
		},
	}, nil
}

// SetSecret stores a new value, creating the secret if needed.
func (f *FakeSecretsClient) SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, _ *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return azsecrets.SetSecretResponse{}, err
	}
	if err, ok := f.Errors[name]; ok {
		return azsecrets.SetSecretResponse{}, err
	}

	value := ""
	if parameters.Value != nil {
		value = *parameters.Value
	}
	f.Secrets[name] = value
	f.SetCalls = append(f.SetCalls, SetCall{Name: name, Value: value})

	return azsecrets.SetSecretResponse{
		Secret: azsecrets.Secret{ID: f.secretID(name)},
	}, nil
}

// AzureNotFoundError creates a mock Azure not found error
func AzureNotFoundError(secretName string) error {
	return &azcore.ResponseError{
		StatusCode: 404,
		ErrorCode:  "SecretNotFound",
	}
}

// AzureForbiddenError creates a mock Azure forbidden error
func AzureForbiddenError() error {
	return &azcore.ResponseError{
		StatusCode: 403,
		ErrorCode:  "Forbidden",
	}
}

// AzureUnauthorizedError creates a mock Azure unauthorized error
func AzureUnauthorizedError() error {
	return &azcore.ResponseError{
		StatusCode: 401,
		ErrorCode:  "Unauthorized",
	}
}

// AzureThrottledError creates a mock Azure throttled error
func AzureThrottledError() error {
	return &azcore.ResponseError{
		StatusCode: 429,
		ErrorCode:  "TooManyRequests",
	}
}

// AzureServerError creates a mock Azure 503
func AzureServerError() error {
	return &azcore.ResponseError{
		StatusCode: 503,
		ErrorCode:  "ServiceUnavailable",
	}
}
