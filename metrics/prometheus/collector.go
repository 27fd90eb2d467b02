// Package prometheus exports memory metrics to a Prometheus registry.
//
//	reg := prometheus.NewRegistry()
//	c, err := mhdprom.New(reg, "mhdmem")
//	mem, err := mhdmem.New[string](256, 10_000, mhdmem.WithMetricsCollector(c))
package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/mhdmem"
)

// Collector implements mhdmem.MetricsCollector with Prometheus counters and
// histograms.
type Collector struct {
	inserts       *prom.CounterVec
	insertLatency prom.Histogram
	evictions     prom.Counter
	removes       *prom.CounterVec
	queries       *prom.CounterVec
	queryLatency  prom.Histogram
	queryK        prom.Histogram
	cacheLookups  *prom.CounterVec
}

var _ mhdmem.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg.
func New(reg prom.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		inserts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "inserts_total",
			Help:      "Insert operations by result.",
		}, []string{"result"}),
		insertLatency: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "insert_duration_seconds",
			Help:      "Insert latency.",
			Buckets:   prom.ExponentialBuckets(1e-6, 4, 10),
		}),
		evictions: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Entries dropped to make room for new inserts.",
		}),
		removes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "removes_total",
			Help:      "Remove operations by whether the ID was present.",
		}, []string{"found"}),
		queries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries by result.",
		}, []string{"result"}),
		queryLatency: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query latency, including result cache lookups.",
			Buckets:   prom.DefBuckets,
		}),
		queryK: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "query_k",
			Help:      "Number of results requested per query.",
			Buckets:   prom.ExponentialBuckets(1, 2, 12),
		}),
		cacheLookups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Query result cache lookups by outcome.",
		}, []string{"outcome"}),
	}

	for _, col := range []prom.Collector{
		c.inserts, c.insertLatency, c.evictions, c.removes,
		c.queries, c.queryLatency, c.queryK, c.cacheLookups,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordInsert implements mhdmem.MetricsCollector.
func (c *Collector) RecordInsert(duration time.Duration, err error) {
	c.inserts.WithLabelValues(result(err)).Inc()
	c.insertLatency.Observe(duration.Seconds())
}

// RecordEviction implements mhdmem.MetricsCollector.
func (c *Collector) RecordEviction() {
	c.evictions.Inc()
}

// RecordRemove implements mhdmem.MetricsCollector.
func (c *Collector) RecordRemove(_ time.Duration, found bool) {
	if found {
		c.removes.WithLabelValues("true").Inc()
	} else {
		c.removes.WithLabelValues("false").Inc()
	}
}

// RecordQuery implements mhdmem.MetricsCollector.
func (c *Collector) RecordQuery(k int, duration time.Duration, err error) {
	c.queries.WithLabelValues(result(err)).Inc()
	c.queryLatency.Observe(duration.Seconds())
	c.queryK.Observe(float64(k))
}

// RecordCacheLookup implements mhdmem.MetricsCollector.
func (c *Collector) RecordCacheLookup(hit bool) {
	if hit {
		c.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		c.cacheLookups.WithLabelValues("miss").Inc()
	}
}
