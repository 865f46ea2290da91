package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/akv/internal/cache"
	"github.com/systmms/akv/internal/metrics"
	"github.com/systmms/akv/internal/remote"
	akvtest "github.com/systmms/akv/tests/testutil"
)

// fakeLister serves names from maps and records the calls it receives.
type fakeLister struct {
	vaults     []string
	vaultErr   error
	secrets    map[string][]string
	secretErrs map[string]error
	calls      []string
}

func (f *fakeLister) ListVaultNames(ctx context.Context) ([]string, error) {
	f.calls = append(f.calls, "vaults")
	return f.vaults, f.vaultErr
}

func (f *fakeLister) ListSecretNames(ctx context.Context, vault string) ([]string, error) {
	f.calls = append(f.calls, "secrets "+vault)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.secretErrs[vault]; ok {
		return nil, err
	}
	return f.secrets[vault], nil
}

var fixedNow = time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)

func newSync(t *testing.T, initial []byte, lister remote.Lister, opts ...Option) (*Synchronizer, *cache.MemoryMedium) {
	t.Helper()
	medium := cache.NewMemoryMedium(initial)
	store := cache.NewStore(medium, nil)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(store, lister, opts...), medium
}

func load(t *testing.T, medium *cache.MemoryMedium) *cache.Cache {
	t.Helper()
	c, err := cache.Decode(medium.Bytes())
	require.NoError(t, err)
	return c
}

func secretNames(t *testing.T, c *cache.Cache, vault string) []string {
	t.Helper()
	v, ok := c.Vault(vault)
	require.True(t, ok, "vault %s should be cached", vault)
	return v.SecretNames()
}

func TestRefreshVaultList_PreservesSecretData(t *testing.T) {
	t.Parallel()

	initial := akvtest.NewCacheFixture(t).
		WithVault("vault-a", "s1", "s2").
		WithVault("vault-gone", "x").
		JSON()
	lister := &fakeLister{vaults: []string{"vault-a", "vault-new"}}
	sync, medium := newSync(t, initial, lister)

	res, err := sync.RefreshVaultList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"vault-new"}, res.Added)
	assert.Equal(t, []string{"vault-gone"}, res.Removed)
	assert.NoError(t, res.Err())
	assert.Equal(t, []string{"vaults"}, lister.calls)

	c := load(t, medium)
	assert.Equal(t, []string{"vault-a", "vault-new"}, c.VaultNames())
	assert.Equal(t, []string{"s1", "s2"}, secretNames(t, c, "vault-a"))
	v, _ := c.Vault("vault-a")
	assert.True(t, v.SecretsSynced)
	v, _ = c.Vault("vault-new")
	assert.False(t, v.SecretsSynced)
	assert.True(t, c.LastFullSync.IsZero())
}

func TestRefreshVaultList_RefreshesSpelling(t *testing.T) {
	t.Parallel()

	initial := akvtest.NewCacheFixture(t).WithVault("vault-a", "s1").JSON()
	sync, medium := newSync(t, initial, &fakeLister{vaults: []string{"Vault-A"}})

	res, err := sync.RefreshVaultList(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.Empty(t, res.Removed)

	c := load(t, medium)
	assert.Equal(t, []string{"Vault-A"}, c.VaultNames())
	assert.Equal(t, []string{"s1"}, secretNames(t, c, "vault-a"))
}

func TestRefreshVaultList_FailureDoesNotSave(t *testing.T) {
	t.Parallel()

	initial := akvtest.NewCacheFixture(t).WithVault("vault-a", "s1").JSON()
	authErr := &remote.AuthError{Backend: "test", Message: "run az login"}
	sync, medium := newSync(t, initial, &fakeLister{vaultErr: authErr})

	res, err := sync.RefreshVaultList(context.Background())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, authErr)
	assert.Equal(t, 0, medium.Writes)
	assert.Equal(t, initial, medium.Bytes())
}

func TestRefreshVaultList_SkipsInvalidNames(t *testing.T) {
	t.Parallel()

	tl := akvtest.NewTestLogger(t)
	sync, medium := newSync(t, nil, &fakeLister{vaults: []string{"ok", "", "has space", "a/b"}}, WithLogger(tl.Logger))

	res, err := sync.RefreshVaultList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"", "has space", "a/b"}, res.Skipped)
	assert.Equal(t, []string{"ok"}, load(t, medium).VaultNames())
	tl.AssertLogCount(t, "warn", 3)
}

func TestRefreshAll_PartialFailureIsolation(t *testing.T) {
	t.Parallel()

	initial := akvtest.NewCacheFixture(t).
		WithVault("vault-a", "old-a").
		WithVault("vault-b", "old-b1", "old-b2").
		JSON()
	failure := &remote.TransientError{Backend: "test", Op: "list secrets", Err: errors.New("timed out")}
	lister := &fakeLister{
		vaults:     []string{"vault-b", "vault-a"},
		secrets:    map[string][]string{"vault-a": {"new-a2", "new-a1"}},
		secretErrs: map[string]error{"vault-b": failure},
	}
	sync, medium := newSync(t, initial, lister)

	res, err := sync.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"vaults", "secrets vault-a", "secrets vault-b"}, lister.calls)
	assert.Equal(t, []string{"vault-a"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "vault-b", res.Failed[0].Vault)

	var partial *PartialSyncError
	require.ErrorAs(t, res.Err(), &partial)
	assert.Equal(t, []string{"vault-b"}, partial.FailedVaults())
	assert.ErrorIs(t, res.Err(), failure)
	assert.Contains(t, partial.Error(), "1 of 2")

	c := load(t, medium)
	assert.Equal(t, []string{"new-a1", "new-a2"}, secretNames(t, c, "vault-a"))
	assert.Equal(t, []string{"old-b1", "old-b2"}, secretNames(t, c, "vault-b"))
	assert.True(t, fixedNow.Equal(c.LastFullSync))
}

func TestRefreshAll_MarksEmptyVaultsSynced(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{vaults: []string{"empty"}, secrets: map[string][]string{}}
	sync, medium := newSync(t, nil, lister)

	res, err := sync.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.NoError(t, res.Err())

	v, ok := load(t, medium).Vault("empty")
	require.True(t, ok)
	assert.True(t, v.SecretsSynced)
	assert.Empty(t, v.SecretNames())
}

func TestRefreshAll_CancelledDoesNotSave(t *testing.T) {
	t.Parallel()

	initial := akvtest.NewCacheFixture(t).WithVault("vault-a", "s1").JSON()
	ctx, cancel := context.WithCancel(context.Background())
	lister := &fakeLister{vaults: []string{"vault-a", "vault-b"}}
	sync, medium := newSync(t, initial, &cancellingLister{fakeLister: lister, cancel: cancel})

	_, err := sync.RefreshAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, medium.Writes)
}

type cancellingLister struct {
	*fakeLister
	cancel context.CancelFunc
}

func (c *cancellingLister) ListVaultNames(ctx context.Context) ([]string, error) {
	defer c.cancel()
	return c.fakeLister.ListVaultNames(ctx)
}

func TestRefresh_Idempotent(t *testing.T) {
	t.Parallel()

	initial := akvtest.NewCacheFixture(t).WithVault("vault-a", "s1").WithUnsyncedVault("vault-c").JSON()
	lister := &fakeLister{
		vaults:  []string{"vault-a", "vault-b", "vault-c"},
		secrets: map[string][]string{"vault-a": {"s1", "s2"}, "vault-b": {"x"}, "vault-c": nil},
	}

	modes := map[string]func(s *Synchronizer) error{
		"vault list": func(s *Synchronizer) error {
			_, err := s.RefreshVaultList(context.Background())
			return err
		},
		"all": func(s *Synchronizer) error {
			_, err := s.RefreshAll(context.Background())
			return err
		},
		"one vault": func(s *Synchronizer) error {
			_, err := s.RefreshVault(context.Background(), "vault-b")
			return err
		},
	}

	for name, run := range modes {
		t.Run(name, func(t *testing.T) {
			sync, medium := newSync(t, initial, lister)
			require.NoError(t, run(sync))
			first := medium.Bytes()
			require.NoError(t, run(sync))
			assert.Equal(t, string(first), string(medium.Bytes()))
		})
	}
}

func TestRefreshAll_UnchangedRemoteKeepsTimestamp(t *testing.T) {
	t.Parallel()

	initial := akvtest.NewCacheFixture(t).WithVault("vault-a", "s1").JSON()
	lister := &fakeLister{
		vaults:  []string{"vault-a", "vault-b"},
		secrets: map[string][]string{"vault-a": {"s1"}, "vault-b": {"x"}},
	}

	now := fixedNow
	sync, medium := newSync(t, initial, lister, WithClock(func() time.Time { return now }))

	_, err := sync.RefreshAll(context.Background())
	require.NoError(t, err)
	first := medium.Bytes()
	assert.True(t, fixedNow.Equal(load(t, medium).LastFullSync))

	now = now.Add(90 * time.Second)
	_, err = sync.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(medium.Bytes()))

	lister.secrets["vault-b"] = []string{"x", "y"}
	now = now.Add(time.Minute)
	_, err = sync.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.True(t, now.Equal(load(t, medium).LastFullSync))
}

func TestRefreshVault_ReplacesOnlyThatVault(t *testing.T) {
	t.Parallel()

	initial := akvtest.NewCacheFixture(t).
		WithVault("vault-a", "a1").
		WithUnsyncedVault("Vault-B").
		JSON()
	lister := &fakeLister{secrets: map[string][]string{"Vault-B": {"b2", "b1"}}}
	sync, medium := newSync(t, initial, lister)

	res, err := sync.RefreshVault(context.Background(), "vault-b")
	require.NoError(t, err)
	assert.Equal(t, []string{"Vault-B"}, res.Succeeded)
	assert.Empty(t, res.Added)
	assert.Equal(t, []string{"secrets Vault-B"}, lister.calls)

	c := load(t, medium)
	assert.Equal(t, []string{"b1", "b2"}, secretNames(t, c, "vault-b"))
	assert.Equal(t, []string{"a1"}, secretNames(t, c, "vault-a"))
}

func TestRefreshVault_AddsUncachedVault(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{secrets: map[string][]string{"fresh": {"s"}}}
	sync, medium := newSync(t, nil, lister)

	res, err := sync.RefreshVault(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, res.Added)
	assert.Equal(t, []string{"s"}, secretNames(t, load(t, medium), "fresh"))
}

func TestRefreshVault_FailureLeavesCacheUnchanged(t *testing.T) {
	t.Parallel()

	initial := akvtest.NewCacheFixture(t).WithVault("vault-a", "a1").JSON()
	notFound := &remote.NotFoundError{Backend: "test", Vault: "vault-a"}
	lister := &fakeLister{secretErrs: map[string]error{"vault-a": notFound}}
	sync, medium := newSync(t, initial, lister)

	res, err := sync.RefreshVault(context.Background(), "vault-a")
	require.NoError(t, err)
	assert.True(t, remote.IsNotFound(res.Err()))
	assert.Equal(t, 0, medium.Writes)
	assert.Equal(t, initial, medium.Bytes())
}

func TestRefreshVault_InvalidName(t *testing.T) {
	t.Parallel()

	sync, _ := newSync(t, nil, &fakeLister{})
	_, err := sync.RefreshVault(context.Background(), "a/b")
	var invalid *cache.InvalidNameError
	assert.ErrorAs(t, err, &invalid)
}

func TestRefresh_SaveFailureIsFatal(t *testing.T) {
	t.Parallel()

	medium := cache.NewMemoryMedium(nil)
	medium.WriteErr = errors.New("read-only file system")
	sync := New(cache.NewStore(medium, nil), &fakeLister{vaults: []string{"v"}})

	_, err := sync.RefreshVaultList(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to save the name cache")
}

func TestRefresh_RecordsMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	lister := &fakeLister{
		vaults:     []string{"a", "b"},
		secrets:    map[string][]string{"a": {"s1", "s2"}},
		secretErrs: map[string]error{"b": errors.New("boom")},
	}
	sync, _ := newSync(t, nil, lister, WithMetrics(m, ""))

	_, err := sync.RefreshAll(context.Background())
	require.NoError(t, err)

	for name, want := range map[string]int{
		"akv_sync_runs_total":          1,
		"akv_sync_vault_results_total": 2,
		"akv_cache_secret_names":       1,
	} {
		got, err := testutil.GatherAndCount(m.Registry(), name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestRefreshVaultList_EmptyListingKeepsCache(t *testing.T) {
	t.Parallel()

	initial := akvtest.NewCacheFixture(t).WithVault("vault-a", "s1").JSON()
	tl := akvtest.NewTestLogger(t)
	sync, medium := newSync(t, initial, &fakeLister{}, WithLogger(tl.Logger))

	for _, run := range []func(context.Context) (*Result, error){sync.RefreshVaultList, sync.RefreshAll} {
		res, err := run(context.Background())
		require.NoError(t, err)
		assert.True(t, res.Unchanged)
		assert.Equal(t, 1, res.Vaults)
	}
	assert.Equal(t, 0, medium.Writes)
	tl.AssertContains(t, "Cache update skipped")
}
