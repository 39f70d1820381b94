package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gathered(t *testing.T) map[string]int {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	series := map[string]int{}
	for _, mf := range families {
		series[mf.GetName()] = len(mf.GetMetric())
	}
	return series
}

func TestCollectorsRegistered(t *testing.T) {
	MergesTotal.WithLabelValues("person", "committed").Inc()
	MergeDuration.WithLabelValues("person").Observe(0.01)
	IntegrityFailuresTotal.WithLabelValues("event", "task_set").Inc()
	LockContentionTotal.WithLabelValues("event").Inc()

	series := gathered(t)
	assert.Equal(t, 1, series["amyq_merge_total"])
	assert.Equal(t, 1, series["amyq_merge_duration_seconds"])
	assert.Equal(t, 1, series["amyq_merge_integrity_failures_total"])
	assert.Equal(t, 1, series["amyq_lock_contention_total"])
}
