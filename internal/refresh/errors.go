package refresh

import (
	"fmt"
	"strings"
)

// VaultFailure records why one vault's secret names could not be refreshed.
type VaultFailure struct {
	Vault string
	Err   error
}

// PartialSyncError aggregates per-vault failures. Successful vaults were
// still written to the cache.
type PartialSyncError struct {
	Failures  []VaultFailure
	Succeeded int
}

func (e *PartialSyncError) Error() string {
	var b strings.Builder
	total := len(e.Failures) + e.Succeeded
	fmt.Fprintf(&b, "secret names could not be refreshed for %d of %d vault(s):", len(e.Failures), total)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.Vault, f.Err)
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *PartialSyncError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// FailedVaults lists the vault names that failed, in refresh order.
func (e *PartialSyncError) FailedVaults() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Vault
	}
	return names
}
