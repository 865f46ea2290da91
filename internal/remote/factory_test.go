package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/akv/internal/config"
	"github.com/systmms/akv/tests/testutil"
)

func TestNew_SelectsBackend(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockCommandExecutor()

	def := config.Defaults()
	client, err := New(def, mock, nil)
	require.NoError(t, err)
	assert.Equal(t, AzureCLIBackend, client.Name())
	_, ok := client.(*Retrying)
	assert.True(t, ok)

	def = testutil.NewTestConfig(t).WithBackend(config.BackendSDK).Build()
	client, err = New(def, mock, nil)
	require.NoError(t, err)
	assert.Equal(t, AzureSDKBackend, client.Name())
}

func TestNew_AppliesRetryPolicy(t *testing.T) {
	t.Parallel()

	def := testutil.NewTestConfig(t).WithRetries(3, 250).Build()
	client, err := New(def, testutil.NewMockCommandExecutor(), nil)
	require.NoError(t, err)

	retrying, ok := client.(*Retrying)
	require.True(t, ok)
	assert.Equal(t, 3, retrying.policy.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, retrying.policy.Backoff)
	assert.Equal(t, 30*time.Second, retrying.policy.Timeout)
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	def := config.Defaults()
	def.Backend = "hsm"
	_, err := New(def, testutil.NewMockCommandExecutor(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported backend")
}
