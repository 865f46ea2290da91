package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/akv/internal/app"
)

// NewUpdateCommand refreshes the vault names.
func NewUpdateCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "update",
		Aliases: []string{"sync"},
		Short:   "Refresh the cached vault names",
		Long: `Fetch the list of Key Vaults visible to your az session and replace the
cached vault names. Secret names already cached for vaults that still exist
are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.Execute(cmd, app.Update{})
		},
	}
}

// NewUpdateAllCommand refreshes vault names and every vault's secret names.
func NewUpdateAllCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "update_all",
		Short: "Refresh vault names and the secret names of every vault",
		Long: `Refresh the vault names, then list the secrets of every vault, one vault at
a time. A vault that cannot be listed keeps its previously cached names; the
command reports it and exits with a non-zero status once all other vaults
have been saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.Execute(cmd, app.UpdateAll{})
		},
	}
}

// NewListCommand prints the cached vault names.
func NewListCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List cached vault names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.Execute(cmd, app.ListVaults{})
		},
	}
}

// NewStatusCommand prints cache diagnostics.
func NewStatusCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the cache lives and what it holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.Execute(cmd, app.Status{})
		},
	}
}
