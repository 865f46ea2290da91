package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/akv/internal/app"
)

// NewCompleteCommand prints plain completion lists for shell scripts that do
// not use the generated completion.
func NewCompleteCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete commands|names [partial]",
		Short: "Print completion candidates, one per line",
		Long: `Print completion candidates for hand-written shell completion.

  complete commands          top-level command names
  complete names [partial]   cached vault names, or vault/secret paths once
                             the partial argument contains '/'`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"commands", "names"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "commands":
				return rt.Execute(cmd, app.CompleteCommands{})
			case "names":
				partial := ""
				if len(args) == 2 {
					partial = args[1]
				}
				return rt.Execute(cmd, app.CompleteNames{Partial: partial})
			}
			return cmd.Help()
		},
	}
	return cmd
}

func filterPrefix(candidates []string, prefix string) []string {
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}
