package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			matched := true
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					matched = false
				}
			}
			if matched {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheLookup(true)
		m.CacheSize(3)
		m.CachePruned(1)
		m.Review("accept", "accepted", 0.1)
		m.ReactionProcessed("queued")
		m.StoreError("STORE_UNAVAILABLE")
		m.GuardContention()
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CacheLookup(true)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.Review("deny", "denied", 0.02)
	m.GuardContention()

	assert.Equal(t, 2.0, counterValue(t, m, "starboard_cache_lookups_total", map[string]string{"result": "hit"}))
	assert.Equal(t, 1.0, counterValue(t, m, "starboard_cache_lookups_total", map[string]string{"result": "miss"}))
	assert.Equal(t, 1.0, counterValue(t, m, "starboard_reviews_total", map[string]string{"outcome": "deny", "result": "denied"}))
	assert.Equal(t, 1.0, counterValue(t, m, "starboard_guard_contentions_total", nil))
}
