package commands

import (
	"github.com/spf13/cobra"
)

// NewCompletionCommand creates the completion command for generating shell completions.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for akv. Vault and secret names are
completed from the local cache, so completion stays fast and works offline.

To load completions:

Bash:
  $ source <(akv completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ akv completion bash > /etc/bash_completion.d/akv
  # macOS:
  $ akv completion bash > $(brew --prefix)/etc/bash_completion.d/akv

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ akv completion zsh > "${fpath[1]}/_akv"

Fish:
  $ akv completion fish | source

PowerShell:
  PS> akv completion powershell | Out-String | Invoke-Expression

Scripts written for older akv releases can keep calling
'akv complete commands' and 'akv complete names <partial>', which print
one candidate per line. A partial containing '*' or '?' is treated as a
search pattern, e.g. 'akv complete names "prod-*/db-*"'.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}
