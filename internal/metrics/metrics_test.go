package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	m := New()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.RecordRun("all", StatusSuccess, start, start.Add(2*time.Second))
	m.RecordRun("all", StatusPartial, start, start.Add(time.Second))
	m.RecordRun("vault", StatusSuccess, start, start.Add(time.Second))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("all", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("all", StatusPartial)))
	assert.Equal(t, float64(start.Add(time.Second).Unix()), testutil.ToFloat64(m.lastRunTimestamp.WithLabelValues("vault")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestSyncMetrics_CacheGauges(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordVaults(3, 1)
	m.RecordCacheSize(4, 17)
	m.RecordFullSync(time.Unix(1700000000, 0))

	expected := `
# HELP akv_cache_secret_names Number of secret names in the cache after the last refresh
# TYPE akv_cache_secret_names gauge
akv_cache_secret_names 17
# HELP akv_cache_vaults Number of vault names in the cache after the last refresh
# TYPE akv_cache_vaults gauge
akv_cache_vaults 4
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"akv_cache_vaults", "akv_cache_secret_names"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.vaultResults.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1.7e9, testutil.ToFloat64(m.lastFullSync))
}

func TestSyncMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *SyncMetrics
	assert.NotPanics(t, func() {
		m.RecordRun("all", StatusFailed, time.Now(), time.Now())
		m.RecordVaults(1, 1)
		m.RecordCacheSize(1, 1)
		m.RecordFullSync(time.Now())
	})
	assert.NoError(t, m.WriteTextfile("/nonexistent/akv.prom"))
	assert.Nil(t, m.Registry())
}

func TestSyncMetrics_WriteTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordCacheSize(2, 5)

	path := filepath.Join(t.TempDir(), "akv.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "akv_cache_vaults 2")
	assert.Contains(t, string(data), "akv_cache_secret_names 5")
}
