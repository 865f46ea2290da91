package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/akv/internal/app"
	dserrors "github.com/systmms/akv/internal/errors"
	"github.com/systmms/akv/internal/secure"
)

// NewKVCommand works inside one vault.
func NewKVCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv <vault> ls|show [secret]|add <secret> <value>|edit <secret> <value>|update|sync|pull",
		Short: "List, show, add or edit secrets in one vault",
		Long: `Work with the secrets of a single vault.

  ls                     list cached secret names
  show [secret]          print live values (all cached secrets without a name)
  add <secret> <value>   create or update a secret and cache its name
  edit <secret> <value>  update an existing secret
  update | sync | pull   refresh this vault's cached secret names

Pass "-" as the value to read it from stdin instead of the command line.`,
		Example: `  akv kv prod-app ls
  akv kv prod-app show db-password
  printf '%s' "$TOKEN" | akv kv prod-app add api-token -`,
		Args: cobra.RangeArgs(2, 4),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			switch len(args) {
			case 0:
				return rt.completeVaults(toComplete)
			case 1:
				return filterPrefix(app.KVCommands, toComplete), cobra.ShellCompDirectiveNoFileComp
			case 2:
				if args[1] == "show" || args[1] == "edit" {
					return rt.completeSecrets(args[0], toComplete)
				}
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseKV(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return rt.Execute(cmd, req)
		},
	}
	return cmd
}

// parseKV turns `<vault> <verb> [args]` into a request.
func parseKV(args []string, stdin io.Reader) (app.Request, error) {
	vault, verb, rest := args[0], args[1], args[2:]

	switch verb {
	case "ls":
		if err := wantArgs(verb, rest, 0, ""); err != nil {
			return nil, err
		}
		return app.ListSecrets{Vault: vault}, nil
	case "show":
		if len(rest) > 1 {
			return nil, usageError(verb, "[secret]")
		}
		req := app.ShowSecret{Vault: vault}
		if len(rest) == 1 {
			req.Secret = rest[0]
		}
		return req, nil
	case "add", "edit":
		if err := wantArgs(verb, rest, 2, "<secret> <value>"); err != nil {
			return nil, err
		}
		value, err := readValue(rest[1], stdin)
		if err != nil {
			return nil, err
		}
		if verb == "add" {
			return app.AddSecret{Vault: vault, Secret: rest[0], Value: value}, nil
		}
		return app.EditSecret{Vault: vault, Secret: rest[0], Value: value}, nil
	case "update", "sync", "pull":
		if err := wantArgs(verb, rest, 0, ""); err != nil {
			return nil, err
		}
		return app.RefreshVault{Vault: vault}, nil
	}

	return nil, dserrors.UserError{
		Message:    fmt.Sprintf("Unknown kv command %q", verb),
		Suggestion: "Use one of: " + strings.Join(app.KVCommands, ", "),
	}
}

// readValue seals the value argument, reading stdin for "-". One trailing
// newline from stdin is dropped.
func readValue(arg string, stdin io.Reader) (*secure.SecureBuffer, error) {
	if arg != "-" {
		return secure.FromString(arg)
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret value from stdin: %w", err)
	}
	if n := len(data); n > 0 && data[n-1] == '\n' {
		data = data[:n-1]
	}
	return secure.NewSecureBuffer(data)
}

func wantArgs(verb string, rest []string, n int, usage string) error {
	if len(rest) != n {
		return usageError(verb, usage)
	}
	return nil
}

func usageError(verb, usage string) error {
	return dserrors.UserError{
		Message:    fmt.Sprintf("Wrong number of arguments for 'kv <vault> %s'", verb),
		Suggestion: strings.TrimSpace(fmt.Sprintf("akv kv <vault> %s %s", verb, usage)),
	}
}
