package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/akv/internal/app"
	dserrors "github.com/systmms/akv/internal/errors"
)

// NewSearchCommand matches a glob against the cache.
func NewSearchCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "search <pattern> [show]",
		Short: "Search cached vault and secret names",
		Long: `Search the cache with a glob pattern. '*' matches any run of characters and
'?' exactly one. A pattern of the form 'vault-pattern/secret-pattern' looks
for secrets inside matching vaults; a plain pattern matches vault names and
secret names in every vault.

Append 'show' to print the live value of every matching secret.`,
		Example: `  akv search 'prod-*'
  akv search 'prod-*/db-*' show`,
		Args: cobra.RangeArgs(1, 2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 1 {
				return filterPrefix([]string{"show"}, toComplete), cobra.ShellCompDirectiveNoFileComp
			}
			if len(args) == 0 {
				return rt.completeVaults(toComplete)
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			show := false
			if len(args) == 2 {
				if args[1] != "show" {
					return dserrors.UserError{
						Message:    "Unexpected argument " + args[1],
						Suggestion: "akv search <pattern> show",
					}
				}
				show = true
			}
			return rt.Execute(cmd, app.Search{Pattern: args[0], Show: show})
		},
	}
}
