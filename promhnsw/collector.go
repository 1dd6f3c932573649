// Package promhnsw exports graph measurements as Prometheus metrics.
package promhnsw

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vecnav/hnsw"
)

var _ hnsw.Metrics = (*Collector)(nil)

// Collector implements hnsw.Metrics on top of Prometheus collectors.
type Collector struct {
	opLatency     *prometheus.HistogramVec
	operations    *prometheus.CounterVec
	distanceCalls *prometheus.CounterVec
	levels        prometheus.Histogram
	nodes         prometheus.Gauge
	maxLevel      prometheus.Gauge
}

// NewCollector creates a Collector whose metric names start with namespace
// and registers it with reg. A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of graph operations",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op", "status"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total graph operations",
		}, []string{"op", "status"}),
		distanceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distance_computations_total",
			Help:      "Total distance function evaluations",
		}, []string{"op"}),
		levels: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_level",
			Help:      "Levels assigned to inserted nodes",
			Buckets:   prometheus.LinearBuckets(0, 1, 8),
		}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes",
			Help:      "Number of nodes in the graph",
		}),
		maxLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_level",
			Help:      "Highest layer of the graph",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.opLatency,
		c.operations,
		c.distanceCalls,
		c.levels,
		c.nodes,
		c.maxLevel,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveInsert implements hnsw.Metrics.
func (c *Collector) ObserveInsert(level, distanceCalls int, took time.Duration, err error) {
	st := status(err)
	c.opLatency.WithLabelValues("insert", st).Observe(took.Seconds())
	c.operations.WithLabelValues("insert", st).Inc()
	c.distanceCalls.WithLabelValues("insert").Add(float64(distanceCalls))
	if err == nil {
		c.levels.Observe(float64(level))
	}
}

// ObserveSearch implements hnsw.Metrics.
func (c *Collector) ObserveSearch(k, results, distanceCalls int, took time.Duration, err error) {
	st := status(err)
	c.opLatency.WithLabelValues("search", st).Observe(took.Seconds())
	c.operations.WithLabelValues("search", st).Inc()
	c.distanceCalls.WithLabelValues("search").Add(float64(distanceCalls))
}

// SetSize implements hnsw.Metrics.
func (c *Collector) SetSize(nodes, maxLevel int) {
	c.nodes.Set(float64(nodes))
	c.maxLevel.Set(float64(maxLevel))
}
