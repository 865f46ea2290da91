package exec

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealCommandExecutor(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX utilities")
	}
	t.Parallel()

	e := DefaultExecutor()

	stdout, _, err := e.Execute(context.Background(), "echo", "kv-prod")
	require.NoError(t, err)
	assert.Equal(t, "kv-prod\n", string(stdout))

	stdout, _, err = e.ExecuteWithInput(context.Background(), []byte("from-stdin"), "cat")
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", string(stdout))

	_, _, err = e.Execute(context.Background(), "akv-definitely-not-installed")
	assert.Error(t, err)
}
