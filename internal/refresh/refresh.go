// Package refresh reconciles the name cache with Azure Key Vault.
//
// Every mode loads the cache once, computes its full result on a copy and
// saves exactly once, so an interrupted refresh never leaves a half-written
// snapshot behind. Remote calls are made one at a time in sorted vault order.
package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/systmms/akv/internal/cache"
	"github.com/systmms/akv/internal/logging"
	"github.com/systmms/akv/internal/metrics"
	"github.com/systmms/akv/internal/remote"
)

// Refresh modes, also used as metric labels.
const (
	ModeVaultList = "vaults"
	ModeAll       = "all"
	ModeVault     = "vault"
)

// Result describes what a refresh did.
type Result struct {
	Mode string
	// Added and Removed are vault names that appeared or disappeared.
	Added   []string
	Removed []string
	// Succeeded lists vaults whose secret names were replaced.
	Succeeded []string
	Failed    []VaultFailure
	// Skipped holds remote names that cannot be cached.
	Skipped []string
	// Vaults and Secrets are the cache totals after the refresh.
	Vaults  int
	Secrets int
	// Unchanged is set when Azure reported no vaults at all and the cache
	// was kept as it was.
	Unchanged bool
}

// errNoVaults stops a refresh when the vault listing is empty; the cache is
// kept as it was.
var errNoVaults = errors.New("no vault names returned")

// Err returns a *PartialSyncError when any vault failed, otherwise nil.
func (r *Result) Err() error {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	return &PartialSyncError{Failures: r.Failed, Succeeded: len(r.Succeeded)}
}

// Synchronizer runs the three refresh modes.
type Synchronizer struct {
	store    *cache.Store
	lister   remote.Lister
	logger   *logging.Logger
	metrics  *metrics.SyncMetrics
	textfile string
	now      func() time.Time
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the progress logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records every run into m and, when textfile is not empty,
// writes the registry there afterwards.
func WithMetrics(m *metrics.SyncMetrics, textfile string) Option {
	return func(s *Synchronizer) {
		s.metrics = m
		s.textfile = textfile
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		s.now = now
	}
}

// New creates a Synchronizer.
func New(store *cache.Store, lister remote.Lister, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:  store,
		lister: lister,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshVaultList replaces the set of vault names. Secret data of vaults
// that still exist is kept.
func (s *Synchronizer) RefreshVaultList(ctx context.Context) (*Result, error) {
	started := s.now()
	res := &Result{Mode: ModeVaultList}

	next := s.store.Load().Clone()
	if err := s.applyVaultList(ctx, next, res); err != nil {
		if errors.Is(err, errNoVaults) {
			return s.keep(next, res, started), nil
		}
		s.finish(res, started, err)
		return nil, err
	}
	if err := s.save(next, res); err != nil {
		s.finish(res, started, err)
		return nil, err
	}

	s.logger.Info("Cached %d vault names (%d added, %d removed)", res.Vaults, len(res.Added), len(res.Removed))
	s.finish(res, started, nil)
	return res, nil
}

// RefreshAll refreshes the vault list and then the secret names of every
// vault. A vault that fails keeps its previous names and is reported in
// Result.Failed; the run continues with the next vault.
func (s *Synchronizer) RefreshAll(ctx context.Context) (*Result, error) {
	started := s.now()
	res := &Result{Mode: ModeAll}

	current := s.store.Load()
	next := current.Clone()
	if err := s.applyVaultList(ctx, next, res); err != nil {
		if errors.Is(err, errNoVaults) {
			return s.keep(next, res, started), nil
		}
		s.finish(res, started, err)
		return nil, err
	}

	vaults := next.VaultNames()
	for i, vault := range vaults {
		if ctx.Err() != nil {
			break
		}
		s.logger.Debug("[%d/%d] Listing secrets in %s", i+1, len(vaults), vault)
		s.applySecretNames(ctx, next, vault, res)
	}
	if err := ctx.Err(); err != nil {
		s.finish(res, started, err)
		return nil, err
	}

	// The timestamp only moves when the names did, so a rerun against an
	// unchanged remote writes the same bytes.
	if current.LastFullSync.IsZero() || !next.Equal(current) {
		next.LastFullSync = s.now().UTC().Truncate(time.Second)
	}
	if err := s.save(next, res); err != nil {
		s.finish(res, started, err)
		return nil, err
	}

	if len(res.Failed) > 0 {
		s.logger.Warn("Refreshed %d of %d vaults, %d failed", len(res.Succeeded), len(vaults), len(res.Failed))
	} else {
		s.logger.Info("Refreshed %d vaults with %d secret names", res.Vaults, res.Secrets)
	}
	s.finish(res, started, nil)
	return res, nil
}

// RefreshVault refreshes one vault's secret names. A vault missing from the
// cache is added when its listing succeeds. On failure the cache is left
// untouched and the failure is reported in the result.
func (s *Synchronizer) RefreshVault(ctx context.Context, vault string) (*Result, error) {
	if !cache.ValidName(vault) {
		return nil, &cache.InvalidNameError{Kind: "vault", Name: vault}
	}
	started := s.now()
	res := &Result{Mode: ModeVault}

	current := s.store.Load()
	next := current.Clone()
	name := vault
	if v, ok := next.Vault(vault); ok {
		name = v.Name
	}

	names, err := s.lister.ListSecretNames(ctx, name)
	if err != nil {
		res.Failed = append(res.Failed, VaultFailure{Vault: name, Err: err})
		res.Vaults, res.Secrets = current.Len(), current.SecretCount()
		s.logger.Debug("Listing secrets in %s failed: %v", name, err)
		s.finish(res, started, nil)
		return res, nil
	}

	if _, ok := next.Vault(name); !ok {
		if _, err := next.UpsertVault(name); err != nil {
			return nil, err
		}
		res.Added = append(res.Added, name)
	}
	valid := s.filterNames(names, "secret", name, res)
	if err := next.SetSecretNames(name, valid); err != nil {
		return nil, err
	}
	res.Succeeded = append(res.Succeeded, name)

	if err := s.save(next, res); err != nil {
		s.finish(res, started, err)
		return nil, err
	}
	s.logger.Info("Cached %d secret names for %s", len(valid), name)
	s.finish(res, started, nil)
	return res, nil
}

func (s *Synchronizer) applyVaultList(ctx context.Context, next *cache.Cache, res *Result) error {
	names, err := s.lister.ListVaultNames(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errNoVaults
	}
	valid := s.filterNames(names, "vault", "", res)

	res.Removed = next.RemoveVaultsNotIn(valid)
	for _, n := range valid {
		if _, ok := next.Vault(n); !ok {
			res.Added = append(res.Added, n)
		}
		if _, err := next.UpsertVault(n); err != nil {
			return err
		}
	}
	cache.SortVaultNames(res.Added)
	return nil
}

func (s *Synchronizer) applySecretNames(ctx context.Context, next *cache.Cache, vault string, res *Result) {
	names, err := s.lister.ListSecretNames(ctx, vault)
	if err != nil {
		s.logger.Debug("Listing secrets in %s failed: %v", vault, err)
		res.Failed = append(res.Failed, VaultFailure{Vault: vault, Err: err})
		return
	}
	valid := s.filterNames(names, "secret", vault, res)
	if err := next.SetSecretNames(vault, valid); err != nil {
		res.Failed = append(res.Failed, VaultFailure{Vault: vault, Err: err})
		return
	}
	res.Succeeded = append(res.Succeeded, vault)
}

// filterNames drops names the cache cannot hold and records them.
func (s *Synchronizer) filterNames(names []string, kind, vault string, res *Result) []string {
	valid := make([]string, 0, len(names))
	for _, n := range names {
		if cache.ValidName(n) {
			valid = append(valid, n)
			continue
		}
		label := n
		if vault != "" {
			label = vault + "/" + n
		}
		s.logger.Warn("Skipping invalid %s name %q", kind, label)
		res.Skipped = append(res.Skipped, label)
	}
	return valid
}

func (s *Synchronizer) keep(current *cache.Cache, res *Result, started time.Time) *Result {
	s.logger.Warn("No vault names found. Cache update skipped.")
	res.Unchanged = true
	res.Vaults, res.Secrets = current.Len(), current.SecretCount()
	s.finish(res, started, nil)
	return res
}

func (s *Synchronizer) save(next *cache.Cache, res *Result) error {
	res.Vaults, res.Secrets = next.Len(), next.SecretCount()
	if err := s.store.Save(next); err != nil {
		return err
	}
	s.metrics.RecordFullSync(next.LastFullSync)
	return nil
}

func (s *Synchronizer) finish(res *Result, started time.Time, runErr error) {
	if s.metrics == nil {
		return
	}
	status := metrics.StatusSuccess
	switch {
	case runErr != nil:
		status = metrics.StatusFailed
	case len(res.Failed) > 0 && len(res.Succeeded) == 0 && res.Mode == ModeVault:
		status = metrics.StatusFailed
	case len(res.Failed) > 0:
		status = metrics.StatusPartial
	}
	s.metrics.RecordRun(res.Mode, status, started, s.now())
	s.metrics.RecordVaults(len(res.Succeeded), len(res.Failed))
	if runErr == nil {
		s.metrics.RecordCacheSize(res.Vaults, res.Secrets)
	}
	if err := s.metrics.WriteTextfile(s.textfile); err != nil {
		s.logger.Warn("Failed to write metrics to %s: %v", s.textfile, err)
	}
}
