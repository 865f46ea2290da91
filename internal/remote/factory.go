package remote

import (
	"time"

	"github.com/systmms/akv/internal/config"
	dserrors "github.com/systmms/akv/internal/errors"
	"github.com/systmms/akv/internal/logging"
	"github.com/systmms/akv/pkg/exec"
)

// New builds the configured backend wrapped in the retry decorator.
func New(def *config.Definition, executor exec.CommandExecutor, logger *logging.Logger) (Client, error) {
	cli := NewAzureCLI(executor, WithAzPath(def.AzPath), WithCLILogger(logger))

	var backend Client
	switch def.Backend {
	case config.BackendCLI, "":
		backend = cli
	case config.BackendSDK:
		backend = NewAzureSDK(cli, WithVaultDNSSuffix(def.VaultDNSSuffix), WithSDKLogger(logger))
	default:
		return nil, dserrors.ConfigError{
			Field:      "backend",
			Value:      def.Backend,
			Message:    "unsupported backend",
			Suggestion: "Use 'cli' (az command line) or 'sdk' (Azure SDK)",
		}
	}

	policy := RetryPolicy{
		Timeout:    time.Duration(def.TimeoutMs) * time.Millisecond,
		MaxRetries: def.MaxRetries,
		Backoff:    time.Duration(def.RetryBackoffMs) * time.Millisecond,
	}
	return NewRetrying(backend, policy, logger), nil
}
