package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/akv/internal/app"
	"github.com/systmms/akv/internal/config"
	"github.com/systmms/akv/internal/logging"
)

// NewRootCommand builds the akv command tree.
func NewRootCommand(rt *Runtime, version string) *cobra.Command {
	var (
		configFile string
		noColor    bool
		debug      bool

		// Flags kept from the single-command akv releases.
		legacyUpdate   bool
		legacySync     bool
		legacyComplete bool
	)

	rootCmd := &cobra.Command{
		Use:   "akv [vault]",
		Short: "Azure Key Vault browser with a local name cache",
		Long: `akv caches the names of your Azure Key Vaults and their secrets so that
listing, searching and shell completion work instantly and offline.
Secret values are always fetched live and are never written to the cache.

The cache lives in ~/.akv_cache.json and is refreshed only when you ask:
  akv update         refresh vault names
  akv update_all     refresh vault names and every vault's secret names
  akv kv <vault> update
                     refresh one vault's secret names`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return rt.completeVaults(toComplete)
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			rt.Config.Logger = logging.New(debug, noColor)
			rt.Config.Path = configFile
			rt.Config.Explicit = cmd.Flags().Changed("config")
			if rt.Config.Path == "" {
				rt.Config.Path = config.DefaultPath()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case legacyUpdate || legacySync:
				return rt.Execute(cmd, app.Update{})
			case legacyComplete:
				return rt.Execute(cmd, app.CompleteNames{})
			case len(args) == 1:
				return rt.Execute(cmd, app.ListSecrets{Vault: args[0]})
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default $XDG_CONFIG_HOME/akv/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.Flags().BoolVar(&legacyUpdate, "update", false, "Same as 'akv update'")
	rootCmd.Flags().BoolVar(&legacySync, "sync", false, "Same as 'akv update'")
	rootCmd.Flags().BoolVar(&legacyComplete, "complete", false, "Same as 'akv complete names'")
	for _, name := range []string{"update", "sync", "complete"} {
		_ = rootCmd.Flags().MarkHidden(name)
	}

	rootCmd.AddCommand(
		NewUpdateCommand(rt),
		NewUpdateAllCommand(rt),
		NewListCommand(rt),
		NewKVCommand(rt),
		NewSearchCommand(rt),
		NewCompleteCommand(rt),
		NewStatusCommand(rt),
		NewCompletionCommand(),
	)

	return rootCmd
}
