package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "starboard"

// Metrics holds the starboard collectors. A nil *Metrics is valid and records
// nothing, so components can be built without it in tests.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups     *prometheus.CounterVec
	cacheSize        prometheus.Gauge
	cachePruned      prometheus.Counter
	reviews          *prometheus.CounterVec
	reviewDuration   prometheus.Histogram
	curated          *prometheus.CounterVec
	storeErrors      *prometheus.CounterVec
	guardContentions prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry together
// with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Curation cache lookups by result.",
		}, []string{"result"}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Curated messages currently held in memory.",
		}),
		cachePruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_pruned_total",
			Help:      "Cache entries evicted for being idle.",
		}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "Review button presses by outcome and result.",
		}, []string{"outcome", "result"}),
		reviewDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "review_duration_seconds",
			Help:      "Time spent handling a review decision.",
			Buckets:   prometheus.DefBuckets,
		}),
		curated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_processed_total",
			Help:      "Star reactions processed by result.",
		}, []string{"result"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store failures by error code.",
		}, []string{"code"}),
		guardContentions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_contentions_total",
			Help:      "Review attempts rejected because another was in flight.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheLookups,
		m.cacheSize,
		m.cachePruned,
		m.reviews,
		m.reviewDuration,
		m.curated,
		m.storeErrors,
		m.guardContentions,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) CacheSize(n int) {
	if m == nil {
		return
	}
	m.cacheSize.Set(float64(n))
}

func (m *Metrics) CachePruned(n int) {
	if m == nil {
		return
	}
	m.cachePruned.Add(float64(n))
}

// Review records one handled review decision.
func (m *Metrics) Review(outcome, result string, seconds float64) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(outcome, result).Inc()
	m.reviewDuration.Observe(seconds)
}

func (m *Metrics) ReactionProcessed(result string) {
	if m == nil {
		return
	}
	m.curated.WithLabelValues(result).Inc()
}

func (m *Metrics) StoreError(code string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) GuardContention() {
	if m == nil {
		return
	}
	m.guardContentions.Inc()
}
