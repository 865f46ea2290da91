package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/akv/internal/cache"
	"github.com/systmms/akv/internal/refresh"
	"github.com/systmms/akv/internal/remote"
	"github.com/systmms/akv/internal/secure"
	"github.com/systmms/akv/tests/testutil"
)

// fakeClient is an in-memory Key Vault keyed by "vault/secret".
type fakeClient struct {
	vaults     []string
	values     map[string]string
	listErrs   map[string]error
	setCalls   []string
	getCalls   []string
	vaultCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: make(map[string]string), listErrs: make(map[string]error)}
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) ListVaultNames(context.Context) ([]string, error) {
	f.vaultCalls++
	return f.vaults, nil
}

func (f *fakeClient) ListSecretNames(_ context.Context, vault string) ([]string, error) {
	if err := f.listErrs[vault]; err != nil {
		return nil, err
	}
	var names []string
	for key := range f.values {
		v, s, _ := cut(key)
		if v == vault {
			names = append(names, s)
		}
	}
	return names, nil
}

func (f *fakeClient) GetSecretValue(_ context.Context, vault, name string) (*secure.SecureBuffer, error) {
	f.getCalls = append(f.getCalls, vault+"/"+name)
	value, ok := f.values[vault+"/"+name]
	if !ok {
		return nil, &remote.NotFoundError{Backend: "fake", Vault: vault, Secret: name}
	}
	return secure.FromString(value)
}

func (f *fakeClient) SetSecretValue(_ context.Context, vault, name string, value *secure.SecureBuffer) error {
	var buf bytes.Buffer
	if _, err := value.WriteTo(&buf); err != nil {
		return err
	}
	f.setCalls = append(f.setCalls, vault+"/"+name)
	f.values[vault+"/"+name] = buf.String()
	return nil
}

func cut(key string) (string, string, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:], true
		}
	}
	return key, "", false
}

type harness struct {
	app    *App
	client *fakeClient
	out    *bytes.Buffer
	logs   *testutil.TestLogger
	path   string
	store  *cache.Store
}

func newHarness(t *testing.T, fixture *testutil.CacheFixture) *harness {
	t.Helper()

	path := filepath.Join(t.TempDir(), "akv_cache.json")
	if fixture != nil {
		fixture.WriteTo(path)
	}
	logs := testutil.NewTestLogger(t)
	store := cache.NewStore(&cache.FileMedium{Path: path}, logs.Logger)
	client := newFakeClient()
	sync := refresh.New(store, client,
		refresh.WithLogger(logs.Logger),
		refresh.WithClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }))
	out := &bytes.Buffer{}

	return &harness{
		app:    New(store, client, sync, out, logs.Logger),
		client: client,
		out:    out,
		logs:   logs,
		path:   path,
		store:  store,
	}
}

func value(t *testing.T, s string) *secure.SecureBuffer {
	t.Helper()
	buf, err := secure.FromString(s)
	require.NoError(t, err)
	return buf
}

func TestExecute_ListVaultsBootstrapsMissingCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.client.vaults = []string{"vault-b", "vault-a"}

	require.NoError(t, h.app.Execute(context.Background(), ListVaults{}))
	assert.Equal(t, "vault-a\nvault-b\n", h.out.String())
	h.logs.AssertContains(t, "Cache file not found")

	h.out.Reset()
	require.NoError(t, h.app.Execute(context.Background(), ListVaults{}))
	assert.Equal(t, 1, h.client.vaultCalls)
}

func TestExecute_ListSecrets(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).
		WithVault("vault-a", "s2", "s1").
		WithUnsyncedVault("vault-b"))

	require.NoError(t, h.app.Execute(context.Background(), ListSecrets{Vault: "VAULT-A"}))
	assert.Equal(t, "s1\ns2\n", h.out.String())

	h.out.Reset()
	require.NoError(t, h.app.Execute(context.Background(), ListSecrets{Vault: "vault-b"}))
	assert.Empty(t, h.out.String())
	h.logs.AssertContains(t, "akv kv vault-b update")

	err := h.app.Execute(context.Background(), ListSecrets{Vault: "nope"})
	var unknown *cache.UnknownVaultError
	assert.ErrorAs(t, err, &unknown)
}

func TestExecute_UpdateAllReportsPartialFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.client.vaults = []string{"vault-a", "vault-b"}
	h.client.values["vault-a/s1"] = "v"
	h.client.listErrs["vault-b"] = &remote.AuthError{Backend: "fake", Message: "forbidden"}

	err := h.app.Execute(context.Background(), UpdateAll{})
	var partial *refresh.PartialSyncError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"vault-b"}, partial.FailedVaults())
	assert.True(t, remote.IsAuth(err))

	c := h.store.Load()
	v, ok := c.Vault("vault-a")
	require.True(t, ok)
	assert.Equal(t, []string{"s1"}, v.SecretNames())
}

func TestExecute_RefreshVault(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).WithUnsyncedVault("vault-a"))
	h.client.values["vault-a/new"] = "v"

	require.NoError(t, h.app.Execute(context.Background(), RefreshVault{Vault: "vault-a"}))
	v, _ := h.store.Load().Vault("vault-a")
	assert.True(t, v.SecretsSynced)
	assert.Equal(t, []string{"new"}, v.SecretNames())
}

func TestExecute_ShowSecret(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).WithVault("vault-a", "db", "api"))
	h.client.values["vault-a/db"] = "hunter2"
	h.client.values["vault-a/api"] = "key-123"

	require.NoError(t, h.app.Execute(context.Background(), ShowSecret{Vault: "vault-a", Secret: "db"}))
	assert.Equal(t, "db=hunter2\n", h.out.String())

	h.out.Reset()
	require.NoError(t, h.app.Execute(context.Background(), ShowSecret{Vault: "vault-a"}))
	assert.Equal(t, "api=key-123\ndb=hunter2\n", h.out.String())

	testutil.AssertFileHasNoSecrets(t, h.path, []string{"hunter2", "key-123"})
	testutil.AssertNoSecretLeak(t, h.logs.GetOutput(), []string{"hunter2", "key-123"})
}

func TestExecute_ShowAllSkipsDeletedSecrets(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).WithVault("vault-a", "gone", "kept"))
	h.client.values["vault-a/kept"] = "v"

	err := h.app.Execute(context.Background(), ShowSecret{Vault: "vault-a"})
	require.Error(t, err)
	assert.True(t, remote.IsNotFound(err))
	assert.Equal(t, "kept=v\n", h.out.String())
}

func TestExecute_ShowAllRequiresSyncedVault(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).WithUnsyncedVault("vault-a"))

	err := h.app.Execute(context.Background(), ShowSecret{Vault: "vault-a"})
	testutil.AssertErrorContains(t, err, "akv kv vault-a update")
	assert.Empty(t, h.client.getCalls)

	err = h.app.Execute(context.Background(), ShowSecret{Vault: "other"})
	var unknown *cache.UnknownVaultError
	assert.ErrorAs(t, err, &unknown)
}

func TestExecute_AddSecret(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).WithVault("Vault-A", "existing"))

	err := h.app.Execute(context.Background(), AddSecret{Vault: "vault-a", Secret: "db", Value: value(t, "hunter2")})
	require.NoError(t, err)

	assert.Equal(t, []string{"Vault-A/db"}, h.client.setCalls)
	assert.Equal(t, "hunter2", h.client.values["Vault-A/db"])

	v, _ := h.store.Load().Vault("vault-a")
	assert.Equal(t, []string{"db", "existing"}, v.SecretNames())
	testutil.AssertFileHasNoSecrets(t, h.path, []string{"hunter2"})
	testutil.AssertFileMode(t, h.path, 0600)
	h.logs.AssertContains(t, "Added Vault-A/db")
}

func TestExecute_AddSecretUnknownVaultMakesNoRemoteCall(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).WithVault("vault-a"))

	err := h.app.Execute(context.Background(), AddSecret{Vault: "vault-z", Secret: "db", Value: value(t, "x")})
	var unknown *cache.UnknownVaultError
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, h.client.setCalls)
}

func TestExecute_AddSecretRejectsInvalidName(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).WithVault("vault-a"))

	err := h.app.Execute(context.Background(), AddSecret{Vault: "vault-a", Secret: "a b", Value: value(t, "x")})
	var invalid *cache.InvalidNameError
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, h.client.setCalls)
}

func TestExecute_EditSecret(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).
		WithVault("vault-a", "db").
		WithUnsyncedVault("vault-b"))

	err := h.app.Execute(context.Background(), EditSecret{Vault: "vault-a", Secret: "missing", Value: value(t, "x")})
	var unknown *cache.UnknownSecretError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, err.Error(), "akv kv vault-a add missing")
	assert.Empty(t, h.client.setCalls)

	require.NoError(t, h.app.Execute(context.Background(), EditSecret{Vault: "vault-a", Secret: "db", Value: value(t, "rotated")}))
	assert.Equal(t, "rotated", h.client.values["vault-a/db"])

	// Without synced names there is nothing to check against.
	require.NoError(t, h.app.Execute(context.Background(), EditSecret{Vault: "vault-b", Secret: "any", Value: value(t, "v2")}))
	v, _ := h.store.Load().Vault("vault-b")
	assert.True(t, v.HasSecret("any"))
	assert.False(t, v.SecretsSynced)

	testutil.AssertFileHasNoSecrets(t, h.path, []string{"rotated", "v2"})
}

func TestExecute_Search(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).
		WithVault("vault-a", "s1", "s2").
		WithVault("vault-b"))
	h.client.values["vault-a/s1"] = "one"
	h.client.values["vault-a/s2"] = "two"

	h.logs.Clear()
	require.NoError(t, h.app.Execute(context.Background(), Search{Pattern: "vault-*"}))
	assert.Equal(t, "vault-a\nvault-b\n", h.out.String())
	h.logs.AssertEmpty(t)

	h.out.Reset()
	require.NoError(t, h.app.Execute(context.Background(), Search{Pattern: "vault-a/s*", Show: true}))
	assert.Equal(t, "vault-a/s1=one\nvault-a/s2=two\n", h.out.String())
	testutil.AssertFileHasNoSecrets(t, h.path, []string{"one", "two"})

	h.out.Reset()
	require.NoError(t, h.app.Execute(context.Background(), Search{Pattern: "nothing*"}))
	assert.Empty(t, h.out.String())
	h.logs.AssertContains(t, "No cached names match")

	err := h.app.Execute(context.Background(), Search{Pattern: "a/b/c"})
	testutil.AssertErrorContains(t, err, "Invalid search pattern")
}

func TestExecute_SearchShowWithOnlyVaultHits(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).
		WithVault("vault-a", "s1").
		WithVault("vault-b"))
	h.client.values["vault-a/s1"] = "one"
	h.logs.Clear()

	require.NoError(t, h.app.Execute(context.Background(), Search{Pattern: "vault-*", Show: true}))

	assert.Empty(t, h.out.String())
	assert.Empty(t, h.client.getCalls)
	require.Len(t, h.logs.Lines(), 1)
	h.logs.AssertContains(t, "matched only vault names")
}

func TestExecute_Completion(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).
		WithVault("prod-app", "db-password").
		WithVault("staging"))

	require.NoError(t, h.app.Execute(context.Background(), CompleteCommands{}))
	testutil.AssertLinesContain(t, h.out.String(), []string{"update", "update_all", "ls", "kv", "search"})

	h.out.Reset()
	require.NoError(t, h.app.Execute(context.Background(), CompleteNames{Partial: "prod-app/"}))
	assert.Equal(t, "prod-app/db-password\n", h.out.String())

	h.out.Reset()
	require.NoError(t, h.app.Execute(context.Background(), CompleteNames{}))
	assert.Equal(t, "prod-app\nstaging\n", h.out.String())
}

func TestExecute_Status(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewCacheFixture(t).
		WithVault("vault-a", "s1", "s2").
		WithUnsyncedVault("vault-b"))

	require.NoError(t, h.app.Execute(context.Background(), Status{}))
	testutil.AssertLinesContain(t, h.out.String(), []string{
		"Cache file:      " + h.path,
		"Last full sync:  never",
		"Vaults:          2 (1 with secret names)",
		"Secret names:    2",
		"Backend:         fake",
	})
}

type bogus struct{}

func (bogus) request() {}

func TestExecute_UnsupportedRequest(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	err := h.app.Execute(context.Background(), bogus{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
	assert.Contains(t, err.Error(), "unsupported request")
}
