package remote

import (
	"context"
	"time"

	"github.com/systmms/akv/internal/logging"
	"github.com/systmms/akv/internal/secure"
)

// RetryPolicy bounds every remote call.
type RetryPolicy struct {
	// Timeout applies to each attempt. Zero means no per-call timeout.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries int
	// Backoff is multiplied by the attempt number before each retry.
	Backoff time.Duration
}

// DefaultRetryPolicy matches the defaults in the config package.
var DefaultRetryPolicy = RetryPolicy{
	Timeout:    30 * time.Second,
	MaxRetries: 2,
	Backoff:    500 * time.Millisecond,
}

// Retrying wraps a Client with per-call timeouts and bounded retries of
// *TransientError failures. Auth and not-found errors return immediately.
type Retrying struct {
	next   Client
	policy RetryPolicy
	logger *logging.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrying decorates next with policy.
func NewRetrying(next Client, policy RetryPolicy, logger *logging.Logger) *Retrying {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Retrying{next: next, policy: policy, logger: logger, sleep: sleepContext}
}

func (r *Retrying) Name() string {
	return r.next.Name()
}

func (r *Retrying) ListVaultNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.do(ctx, "list vaults", func(ctx context.Context) error {
		var err error
		names, err = r.next.ListVaultNames(ctx)
		return err
	})
	return names, err
}

func (r *Retrying) ListSecretNames(ctx context.Context, vault string) ([]string, error) {
	var names []string
	err := r.do(ctx, "list secrets in "+vault, func(ctx context.Context) error {
		var err error
		names, err = r.next.ListSecretNames(ctx, vault)
		return err
	})
	return names, err
}

func (r *Retrying) GetSecretValue(ctx context.Context, vault, name string) (*secure.SecureBuffer, error) {
	var value *secure.SecureBuffer
	err := r.do(ctx, "show "+vault+"/"+name, func(ctx context.Context) error {
		var err error
		value, err = r.next.GetSecretValue(ctx, vault, name)
		return err
	})
	return value, err
}

func (r *Retrying) SetSecretValue(ctx context.Context, vault, name string, value *secure.SecureBuffer) error {
	return r.do(ctx, "set "+vault+"/"+name, func(ctx context.Context) error {
		return r.next.SetSecretValue(ctx, vault, name, value)
	})
}

func (r *Retrying) do(ctx context.Context, what string, call func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = r.attempt(ctx, call)
		if err == nil || !IsTransient(err) || attempt >= r.policy.MaxRetries || ctx.Err() != nil {
			return err
		}

		wait := r.policy.Backoff * time.Duration(attempt+1)
		r.logger.Debug("Retrying %s in %s (attempt %d/%d): %v", what, wait, attempt+2, r.policy.MaxRetries+1, err)
		if sleepErr := r.sleep(ctx, wait); sleepErr != nil {
			return err
		}
	}
}

func (r *Retrying) attempt(ctx context.Context, call func(ctx context.Context) error) error {
	if r.policy.Timeout <= 0 {
		return call(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
	defer cancel()
	return call(callCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
