// Package app executes akv commands against the cache, the synchronizer and
// the remote client. It owns every rule that involves secret values, which
// only ever travel between Azure and the output writer.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/systmms/akv/internal/cache"
	dserrors "github.com/systmms/akv/internal/errors"
	"github.com/systmms/akv/internal/logging"
	"github.com/systmms/akv/internal/query"
	"github.com/systmms/akv/internal/refresh"
	"github.com/systmms/akv/internal/remote"
	"github.com/systmms/akv/internal/secure"
)

// Commands are the top-level command names offered by shell completion.
var Commands = []string{"update", "sync", "update_all", "ls", "kv", "search", "status", "complete", "completion"}

// KVCommands are the verbs accepted after `akv kv <vault>`.
var KVCommands = []string{"ls", "show", "add", "edit", "update", "sync", "pull"}

// App wires the components for one command.
type App struct {
	store  *cache.Store
	client remote.Client
	sync   *refresh.Synchronizer
	out    io.Writer
	logger *logging.Logger
}

// New creates an App. Output goes to out; progress and warnings to logger.
func New(store *cache.Store, client remote.Client, sync *refresh.Synchronizer, out io.Writer, logger *logging.Logger) *App {
	if logger == nil {
		logger = logging.Discard()
	}
	return &App{store: store, client: client, sync: sync, out: out, logger: logger}
}

// Execute runs req.
func (a *App) Execute(ctx context.Context, req Request) error {
	switch r := req.(type) {
	case Update:
		_, err := a.sync.RefreshVaultList(ctx)
		return err
	case UpdateAll:
		res, err := a.sync.RefreshAll(ctx)
		if err != nil {
			return err
		}
		return res.Err()
	case ListVaults:
		return a.listVaults(ctx)
	case ListSecrets:
		return a.listSecrets(r.Vault)
	case ShowSecret:
		return a.show(ctx, r)
	case AddSecret:
		return a.setSecret(ctx, r.Vault, r.Secret, r.Value, false)
	case EditSecret:
		return a.setSecret(ctx, r.Vault, r.Secret, r.Value, true)
	case RefreshVault:
		return a.refreshVault(ctx, r)
	case Search:
		return a.search(ctx, r)
	case CompleteCommands:
		return a.printLines(Commands)
	case CompleteNames:
		return a.completeNames(ctx, r.Partial)
	case Status:
		return a.status()
	default:
		return fmt.Errorf("unsupported request %T", req)
	}
}

// bootstrap fills a cache that has never been written, the way the first
// run of akv always did.
func (a *App) bootstrap(ctx context.Context) error {
	if a.store.Exists() {
		return nil
	}
	a.logger.Info("Cache file not found. Updating cache now...")
	_, err := a.sync.RefreshVaultList(ctx)
	return err
}

func (a *App) engine() *query.Engine {
	return query.New(a.store.Load())
}

func (a *App) listVaults(ctx context.Context) error {
	if err := a.bootstrap(ctx); err != nil {
		return err
	}
	return a.printLines(a.engine().ListVaults())
}

func (a *App) listSecrets(vault string) error {
	c := a.store.Load()
	names, err := query.New(c).ListSecrets(vault)
	if err != nil {
		return err
	}
	if v, _ := c.Vault(vault); !v.SecretsSynced {
		a.logger.Warn("Secret names for %s have not been fetched yet. Run 'akv kv %s update'", v.Name, v.Name)
	}
	return a.printLines(names)
}

func (a *App) refreshVault(ctx context.Context, r RefreshVault) error {
	res, err := a.sync.RefreshVault(ctx, r.Vault)
	if err != nil {
		return err
	}
	return res.Err()
}

func (a *App) completeNames(ctx context.Context, partial string) error {
	if err := a.bootstrap(ctx); err != nil {
		// Completion must stay quiet; an empty list is the fallback.
		a.logger.Debug("Cache bootstrap failed: %v", err)
	}
	return a.printLines(a.engine().Complete(partial))
}

func (a *App) search(ctx context.Context, r Search) error {
	results, err := a.engine().Search(r.Pattern)
	if err != nil {
		return dserrors.UserError{
			Message:    fmt.Sprintf("Invalid search pattern %q", r.Pattern),
			Suggestion: "Use 'vault-pattern/secret-pattern' with at most one '/', e.g. 'prod-*/db-*'",
			Err:        err,
		}
	}
	if len(results) == 0 {
		a.logger.Warn("No cached names match %q. Run 'akv update_all' if the cache is stale", r.Pattern)
		return nil
	}

	if !r.Show {
		lines := make([]string, len(results))
		for i, res := range results {
			lines[i] = res.String()
		}
		return a.printLines(lines)
	}

	secrets := query.Secrets(results)
	if len(secrets) == 0 {
		a.logger.Warn("%q matched only vault names, so there are no values to show. Use 'vault-pattern/secret-pattern'", r.Pattern)
		return nil
	}

	var failed []error
	for _, res := range secrets {
		if err := a.printValue(ctx, res.Vault, res.Secret, res.String()); err != nil {
			if !remote.IsNotFound(err) {
				return err
			}
			a.logger.Warn("%s no longer exists remotely", res.String())
			failed = append(failed, err)
		}
	}
	return errors.Join(failed...)
}

func (a *App) show(ctx context.Context, r ShowSecret) error {
	if r.Secret != "" {
		return a.printValue(ctx, r.Vault, r.Secret, r.Secret)
	}

	c := a.store.Load()
	v, ok := c.Vault(r.Vault)
	if !ok {
		return &cache.UnknownVaultError{Vault: r.Vault}
	}
	if !v.SecretsSynced {
		return dserrors.UserError{
			Message:    fmt.Sprintf("Secret names for vault %q are not cached", v.Name),
			Suggestion: fmt.Sprintf("Run 'akv kv %s update' first, or name the secret: 'akv kv %s show <secret>'", v.Name, v.Name),
		}
	}

	var failed []error
	for _, name := range v.SecretNames() {
		if err := a.printValue(ctx, v.Name, name, name); err != nil {
			if !remote.IsNotFound(err) {
				return err
			}
			a.logger.Warn("%s no longer exists in %s", name, v.Name)
			failed = append(failed, err)
		}
	}
	return errors.Join(failed...)
}

// printValue fetches one value and writes "label=value". The value goes
// straight from the secure buffer to the writer.
func (a *App) printValue(ctx context.Context, vault, secret, label string) error {
	value, err := a.client.GetSecretValue(ctx, vault, secret)
	if err != nil {
		return err
	}
	defer value.Destroy()

	if _, err := io.WriteString(a.out, label+"="); err != nil {
		return err
	}
	if _, err := value.WriteTo(a.out); err != nil {
		return err
	}
	_, err = io.WriteString(a.out, "\n")
	return err
}

// setSecret changes a value remotely, then records only the name.
func (a *App) setSecret(ctx context.Context, vault, secret string, value *secure.SecureBuffer, mustExist bool) error {
	if value == nil {
		return dserrors.UserError{Message: "No secret value given"}
	}
	defer value.Destroy()

	if !cache.ValidName(secret) {
		return &cache.InvalidNameError{Kind: "secret", Name: secret}
	}

	c := a.store.Load()
	v, ok := c.Vault(vault)
	if !ok {
		return &cache.UnknownVaultError{Vault: vault}
	}
	exists := v.HasSecret(secret)
	if mustExist && v.SecretsSynced && !exists {
		return dserrors.UserError{
			Message:    fmt.Sprintf("Secret %q does not exist in vault %q", secret, v.Name),
			Suggestion: fmt.Sprintf("Use 'akv kv %s add %s <value>' to create it, or 'akv kv %s update' if it was added elsewhere", v.Name, secret, v.Name),
			Err:        &cache.UnknownSecretError{Vault: v.Name, Secret: secret},
		}
	}

	if err := a.client.SetSecretValue(ctx, v.Name, secret, value); err != nil {
		return err
	}

	if err := c.UpsertSecretName(v.Name, secret); err != nil {
		return err
	}
	if err := a.store.Save(c); err != nil {
		return err
	}

	if exists || mustExist {
		a.logger.Info("Updated %s/%s", v.Name, secret)
	} else {
		a.logger.Info("Added %s/%s", v.Name, secret)
	}
	return nil
}

func (a *App) status() error {
	c, loadErr := a.store.LoadStrict()

	synced := 0
	for _, name := range c.VaultNames() {
		if v, _ := c.Vault(name); v.SecretsSynced {
			synced++
		}
	}
	lastSync := "never"
	if !c.LastFullSync.IsZero() {
		lastSync = c.LastFullSync.Local().Format(time.RFC3339)
	}

	lines := []string{
		"Cache file:      " + a.store.Location(),
		fmt.Sprintf("Format version:  %d", c.Version),
		"Last full sync:  " + lastSync,
		fmt.Sprintf("Vaults:          %d (%d with secret names)", c.Len(), synced),
		fmt.Sprintf("Secret names:    %d", c.SecretCount()),
	}
	if a.client != nil {
		lines = append(lines, "Backend:         "+a.client.Name())
	}
	if loadErr != nil {
		lines = append(lines, "Warning:         "+loadErr.Error())
	}
	return a.printLines(lines)
}

func (a *App) printLines(lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(a.out, l); err != nil {
			return err
		}
	}
	return nil
}
