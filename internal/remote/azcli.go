package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"strings"

	"github.com/awnumar/memguard"
	dserrors "github.com/systmms/akv/internal/errors"
	"github.com/systmms/akv/internal/logging"
	"github.com/systmms/akv/internal/secure"
	"github.com/systmms/akv/pkg/exec"
)

// AzureCLIBackend is the backend name reported in errors.
const AzureCLIBackend = "azure-cli"

// AzureCLI drives the `az` command line.
type AzureCLI struct {
	executor exec.CommandExecutor
	azPath   string
	logger   *logging.Logger
}

// AzureCLIOption configures an AzureCLI.
type AzureCLIOption func(*AzureCLI)

// WithAzPath overrides the az binary.
func WithAzPath(path string) AzureCLIOption {
	return func(a *AzureCLI) {
		if path != "" {
			a.azPath = path
		}
	}
}

// WithCLILogger sets the logger used for debug output.
func WithCLILogger(logger *logging.Logger) AzureCLIOption {
	return func(a *AzureCLI) {
		a.logger = logger
	}
}

// NewAzureCLI creates a CLI backend. A nil executor uses the real one.
func NewAzureCLI(executor exec.CommandExecutor, opts ...AzureCLIOption) *AzureCLI {
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	a := &AzureCLI{
		executor: executor,
		azPath:   "az",
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *AzureCLI) Name() string {
	return AzureCLIBackend
}

// ListVaultNames runs `az keyvault list`.
func (a *AzureCLI) ListVaultNames(ctx context.Context) ([]string, error) {
	args := []string{"keyvault", "list", "--query", "[].name", "-o", "tsv"}
	stdout, err := a.run(ctx, nil, "list vaults", "", "", args...)
	if err != nil {
		return nil, err
	}
	return parseNames(stdout), nil
}

// ListSecretNames runs `az keyvault secret list` for one vault.
func (a *AzureCLI) ListSecretNames(ctx context.Context, vault string) ([]string, error) {
	args := []string{"keyvault", "secret", "list", "--vault-name", vault, "--query", "[].name", "-o", "tsv"}
	stdout, err := a.run(ctx, nil, "list secrets", vault, "", args...)
	if err != nil {
		return nil, err
	}
	return parseNames(stdout), nil
}

// GetSecretValue runs `az keyvault secret show` and seals the value.
func (a *AzureCLI) GetSecretValue(ctx context.Context, vault, name string) (*secure.SecureBuffer, error) {
	args := []string{"keyvault", "secret", "show", "--vault-name", vault, "--name", name, "--query", "value", "-o", "tsv"}
	stdout, err := a.run(ctx, nil, "show secret", vault, name, args...)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(stdout)

	// tsv output ends with exactly one newline.
	value := stdout
	if n := len(value); n > 0 && value[n-1] == '\n' {
		value = value[:n-1]
		if n := len(value); n > 0 && value[n-1] == '\r' {
			value = value[:n-1]
		}
	}
	return secure.NewSecureBuffer(append([]byte(nil), value...))
}

// SetSecretValue runs `az keyvault secret set`, feeding the value on stdin
// so it never appears in the process list.
func (a *AzureCLI) SetSecretValue(ctx context.Context, vault, name string, value *secure.SecureBuffer) error {
	locked, err := value.Open()
	if err != nil {
		return fmt.Errorf("failed to open secret value: %w", err)
	}
	defer locked.Destroy()

	args := []string{"keyvault", "secret", "set", "--vault-name", vault, "--name", name,
		"--file", "/dev/stdin", "--encoding", "utf-8", "--output", "none"}
	_, err = a.run(ctx, locked.Bytes(), "set secret", vault, name, args...)
	return err
}

func (a *AzureCLI) run(ctx context.Context, input []byte, op, vault, secret string, args ...string) ([]byte, error) {
	a.logger.Debug("Running %s %s", a.azPath, strings.Join(args, " "))

	var (
		stdout, stderr []byte
		err            error
	)
	if input != nil {
		stdout, stderr, err = a.executor.ExecuteWithInput(ctx, input, a.azPath, args...)
	} else {
		stdout, stderr, err = a.executor.Execute(ctx, a.azPath, args...)
	}
	if err != nil {
		return nil, a.classify(ctx, err, stderr, op, vault, secret, args)
	}
	return stdout, nil
}

// classify turns an az failure into one of the typed remote errors.
func (a *AzureCLI) classify(ctx context.Context, err error, stderr []byte, op, vault, secret string, args []string) error {
	if errors.Is(err, osexec.ErrNotFound) {
		return dserrors.WrapCommandNotFound("az", err)
	}

	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		msg = err.Error()
	}
	lower := strings.ToLower(msg)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &TransientError{Backend: AzureCLIBackend, Op: op, Err: ctxErr}
	}

	switch {
	case strings.Contains(lower, "az login"),
		strings.Contains(lower, "aadsts"),
		strings.Contains(lower, "refresh token"),
		strings.Contains(lower, "token has expired"),
		strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "forbidden"),
		strings.Contains(lower, "authorizationfailed"):
		return &AuthError{Backend: AzureCLIBackend, Message: msg, Err: err}
	case strings.Contains(lower, "notfound"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "could not be found"):
		return &NotFoundError{Backend: AzureCLIBackend, Vault: vault, Secret: secret, Err: errors.New(msg)}
	case dserrors.IsRetryable(errors.New(lower)):
		return &TransientError{Backend: AzureCLIBackend, Op: op, Err: errors.New(msg)}
	}

	exitCode := 0
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return dserrors.CommandError{
		Command:    a.azPath + " " + strings.Join(args, " "),
		ExitCode:   exitCode,
		Message:    msg,
		Suggestion: dserrors.RemoteSuggestion(errors.New(msg)),
	}
}

// parseNames splits tsv output into names, dropping blank lines.
func parseNames(stdout []byte) []string {
	var names []string
	for _, line := range bytes.Split(stdout, []byte("\n")) {
		name := strings.TrimSpace(string(line))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
