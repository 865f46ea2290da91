package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/akv/internal/app"
	"github.com/systmms/akv/internal/cache"
	"github.com/systmms/akv/internal/config"
	"github.com/systmms/akv/internal/logging"
	"github.com/systmms/akv/internal/metrics"
	"github.com/systmms/akv/internal/query"
	"github.com/systmms/akv/internal/refresh"
	"github.com/systmms/akv/internal/remote"
	"github.com/systmms/akv/pkg/exec"
)

// Runtime carries what every command needs. Tests swap Executor and Out.
type Runtime struct {
	Config   *config.Config
	Executor exec.CommandExecutor
	Out      io.Writer
}

// NewRuntime returns a runtime that talks to the real az binary and stdout.
func NewRuntime() *Runtime {
	return &Runtime{
		Config:   &config.Config{},
		Executor: exec.DefaultExecutor(),
		Out:      os.Stdout,
	}
}

func (rt *Runtime) logger() *logging.Logger {
	if rt.Config.Logger == nil {
		rt.Config.Logger = logging.New(false, false)
	}
	return rt.Config.Logger
}

func (rt *Runtime) store() *cache.Store {
	path := rt.Config.Definition.ResolveCacheFile()
	if path == "" {
		path = cache.DefaultPath()
	}
	return cache.NewStore(cache.NewFileMedium(path), rt.logger())
}

// App loads the configuration and wires the components.
func (rt *Runtime) App() (*app.App, error) {
	if err := rt.Config.Load(); err != nil {
		return nil, err
	}
	def := rt.Config.Definition
	logger := rt.logger()

	client, err := remote.New(def, rt.Executor, logger)
	if err != nil {
		return nil, err
	}

	var m *metrics.SyncMetrics
	if def.MetricsTextfile != "" {
		m = metrics.New()
	}

	store := rt.store()
	sync := refresh.New(store, client,
		refresh.WithLogger(logger),
		refresh.WithMetrics(m, def.MetricsTextfile))
	return app.New(store, client, sync, rt.Out, logger), nil
}

// Execute runs one request with the command's context.
func (rt *Runtime) Execute(cmd *cobra.Command, req app.Request) error {
	a, err := rt.App()
	if err != nil {
		return err
	}
	return a.Execute(cmd.Context(), req)
}

// engine loads the cache for shell completion. Completion never fails
// loudly, so config errors just yield no engine.
func (rt *Runtime) engine() *query.Engine {
	if err := rt.Config.Load(); err != nil {
		return nil
	}
	return query.New(rt.store().Load())
}

// completeVaults is a cobra completion function over cached vault names.
func (rt *Runtime) completeVaults(toComplete string) ([]string, cobra.ShellCompDirective) {
	e := rt.engine()
	if e == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return e.Complete(toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeSecrets is a cobra completion function over one vault's names.
func (rt *Runtime) completeSecrets(vault, toComplete string) ([]string, cobra.ShellCompDirective) {
	e := rt.engine()
	if e == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return e.CompleteSecrets(vault, toComplete), cobra.ShellCompDirectiveNoFileComp
}
