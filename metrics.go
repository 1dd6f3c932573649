package hnsw

import "time"

// Metrics receives measurements from a graph. Implementations must be safe for
// concurrent use because BatchSearch reports from several goroutines.
//
// See the promhnsw package for a Prometheus implementation.
type Metrics interface {
	// ObserveInsert is called once per Insert, successful or not.
	ObserveInsert(level, distanceCalls int, took time.Duration, err error)

	// ObserveSearch is called once per Search, successful or not.
	ObserveSearch(k, results, distanceCalls int, took time.Duration, err error)

	// SetSize is called after every successful insert or import.
	SetSize(nodes, maxLevel int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveInsert(int, int, time.Duration, error)      {}
func (noopMetrics) ObserveSearch(int, int, int, time.Duration, error) {}
func (noopMetrics) SetSize(int, int)                                  {}

func (g *Graph[K]) metrics() Metrics {
	if g.Metrics == nil {
		return noopMetrics{}
	}
	return g.Metrics
}
