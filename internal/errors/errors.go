package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// RemoteError decorates an error coming back from the Key Vault backend
// with a suggestion the user can act on.
func RemoteError(backend string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s error during %s", backend, operation),
		Suggestion: RemoteSuggestion(err),
		Err:        err,
	}
}

// RemoteSuggestion returns a hint for well-known Azure CLI / Key Vault failures.
func RemoteSuggestion(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "command not found"),
		strings.Contains(errStr, "executable file not found"):
		return "Install the Azure CLI: https://learn.microsoft.com/cli/azure/install-azure-cli"
	case strings.Contains(errStr, "az login"),
		strings.Contains(errStr, "unauthorized"),
		strings.Contains(errStr, "401"),
		strings.Contains(errStr, "token") && strings.Contains(errStr, "expired"):
		return "Run 'az login' to refresh your Azure session"
	case strings.Contains(errStr, "forbidden"),
		strings.Contains(errStr, "403"),
		strings.Contains(errStr, "does not have secrets list permission"):
		return "Check Key Vault access policies or RBAC: 'Get' and 'List' permissions are required for secrets"
	case strings.Contains(errStr, "secretnotfound"),
		strings.Contains(errStr, "vaultnotfound"),
		strings.Contains(errStr, "not found"),
		strings.Contains(errStr, "404"):
		return "The name may no longer exist remotely. Run 'akv update' to refresh the cache"
	case strings.Contains(errStr, "throttl"),
		strings.Contains(errStr, "429"):
		return "Azure throttled the request. Wait a moment and try again"
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection or raise timeout_ms"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and proxy configuration"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"az": "Install the Azure CLI from https://learn.microsoft.com/cli/azure/install-azure-cli",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	msg := "command not found"
	if err != nil {
		msg = err.Error()
	}

	return CommandError{
		Command:    command,
		Message:    msg,
		Suggestion: suggestion,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"timed out",
		"temporary failure",
		"connection reset",
		"connection refused",
		"broken pipe",
		"rate limit",
		"throttl",
		"too many requests",
		"service unavailable",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError turns low-level failures into something a user can act on.
// Friendly errors anywhere in the chain win; otherwise filesystem failures
// on the cache or config file get a hint naming the override.
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}
	var cmdErr CommandError
	if errors.As(err, &cmdErr) {
		return err
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "permission denied"):
		return UserError{
			Message:    "Permission denied",
			Details:    errStr,
			Suggestion: "Check permissions on the cache file, or point AKV_CACHE_FILE somewhere writable",
			Err:        err,
		}
	case strings.Contains(errStr, "no such file or directory"):
		return UserError{
			Message:    "File or directory not found",
			Details:    errStr,
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	case strings.Contains(errStr, "read-only file system"):
		return UserError{
			Message:    "Cache location is read-only",
			Details:    errStr,
			Suggestion: "Set cache_file in config.yaml or AKV_CACHE_FILE to a writable path",
			Err:        err,
		}
	}

	return err
}
