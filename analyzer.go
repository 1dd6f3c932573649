package hnsw

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Analyzer is a struct that holds a graph and provides
// methods for analyzing it. It offers no compatibility guarantee
// as the methods of measuring the graph's health with change
// with the implementation.
type Analyzer[K cmp.Ordered] struct {
	Graph *Graph[K]
}

// Height returns the number of layers in the graph.
func (a *Analyzer[K]) Height() int {
	return a.Graph.store.maxLevel() + 1
}

// Topography returns the number of nodes in each layer of the graph.
func (a *Analyzer[K]) Topography() []int {
	topography := make([]int, a.Height())
	for _, n := range a.Graph.store.nodes {
		for l := 0; l <= n.level; l++ {
			topography[l]++
		}
	}
	return topography
}

// Connectivity returns the average number of edges in the
// graph for each non-empty layer.
func (a *Analyzer[K]) Connectivity() []float64 {
	sums := make([]float64, a.Height())
	for _, n := range a.Graph.store.nodes {
		for l, friends := range n.friends {
			sums[l] += float64(len(friends))
		}
	}

	topography := a.Topography()
	layerConnectivity := make([]float64, 0, len(sums))
	for l, sum := range sums {
		if topography[l] == 0 {
			continue
		}
		layerConnectivity = append(layerConnectivity, sum/float64(topography[l]))
	}
	return layerConnectivity
}

// Reachable returns the number of nodes reachable from the entry point by
// following layer 0 edges, the entry point included.
func (a *Analyzer[K]) Reachable() int {
	s := &a.Graph.store
	if s.len() == 0 {
		return 0
	}

	visited := make([]bool, s.len())
	queue := []uint32{s.entry}
	visited[s.entry] = true
	count := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		count++
		for _, f := range s.friends(id, 0) {
			if !visited[f] {
				visited[f] = true
				queue = append(queue, f)
			}
		}
	}
	return count
}

// CheckInvariants verifies the structural invariants of the graph: neighbor
// lists within capacity, free of self loops and duplicates, referring only to
// members of their layer, and an entry point at the maximum level.
func (a *Analyzer[K]) CheckInvariants() error {
	g := a.Graph
	s := &g.store
	if s.len() == 0 {
		return nil
	}

	maxLevel := 0
	for i := range s.nodes {
		n := &s.nodes[i]
		maxLevel = max(maxLevel, n.level)
		if len(n.friends) != n.level+1 {
			return fmt.Errorf("node %v: %d neighbor lists for level %d", n.key, len(n.friends), n.level)
		}
		if len(n.vec) != s.dims {
			return fmt.Errorf("node %v: dimension %d, graph has %d", n.key, len(n.vec), s.dims)
		}
		for l, friends := range n.friends {
			if len(friends) > g.capacity(l) {
				return fmt.Errorf("node %v: %d neighbors at layer %d, capacity %d", n.key, len(friends), l, g.capacity(l))
			}
			sorted := slices.Clone(friends)
			slices.Sort(sorted)
			if len(slices.Compact(sorted)) != len(friends) {
				return fmt.Errorf("node %v: duplicate neighbors at layer %d", n.key, l)
			}
			for _, f := range friends {
				if f == uint32(i) {
					return fmt.Errorf("node %v: self loop at layer %d", n.key, l)
				}
				if s.nodes[f].level < l {
					return fmt.Errorf("node %v: neighbor %v is not on layer %d", n.key, s.nodes[f].key, l)
				}
			}
		}
	}

	if s.top != maxLevel || s.nodes[s.entry].level != maxLevel {
		return fmt.Errorf("entry point %v at level %d, max level is %d", s.nodes[s.entry].key, s.nodes[s.entry].level, maxLevel)
	}
	return nil
}

// QualityMetrics calculates various quality metrics for the graph.
// Returns a struct containing metrics that evaluate the graph's quality.
func (a *Analyzer[K]) QualityMetrics() GraphQualityMetrics {
	if a.Graph.Len() == 0 {
		return GraphQualityMetrics{}
	}

	return GraphQualityMetrics{
		NodeCount:          a.Graph.Len(),
		AvgConnectivity:    a.averageConnectivity(),
		ConnectivityStdDev: a.connectivityStdDev(),
		DistortionRatio:    a.calculateDistortionRatio(),
		LayerBalance:       a.calculateLayerBalance(),
		GraphHeight:        a.Height(),
		ReachableRatio:     float64(a.Reachable()) / float64(a.Graph.Len()),
	}
}

// GraphQualityMetrics contains various metrics that evaluate the quality of the graph.
type GraphQualityMetrics struct {
	// NodeCount is the total number of nodes in the graph.
	NodeCount int

	// AvgConnectivity is the average number of connections per node in the base layer.
	AvgConnectivity float64

	// ConnectivityStdDev is the standard deviation of connections per node.
	ConnectivityStdDev float64

	// DistortionRatio measures how well the graph preserves distances.
	// Lower values indicate better distance preservation.
	DistortionRatio float64

	// LayerBalance measures how well balanced the layers are.
	// Values closer to 1.0 indicate better balance.
	LayerBalance float64

	// GraphHeight is the number of layers in the graph.
	GraphHeight int

	// ReachableRatio is the fraction of nodes reachable from the entry point
	// on layer 0.
	ReachableRatio float64
}

// averageConnectivity calculates the average number of connections per node in the base layer.
func (a *Analyzer[K]) averageConnectivity() float64 {
	s := &a.Graph.store
	if s.len() == 0 {
		return 0
	}

	var sum float64
	for _, n := range s.nodes {
		sum += float64(len(n.friends[0]))
	}
	return sum / float64(s.len())
}

// connectivityStdDev calculates the standard deviation of connections per node.
func (a *Analyzer[K]) connectivityStdDev() float64 {
	s := &a.Graph.store
	if s.len() == 0 {
		return 0
	}

	avg := a.averageConnectivity()
	var sumSquaredDiff float64
	for _, n := range s.nodes {
		diff := float64(len(n.friends[0])) - avg
		sumSquaredDiff += diff * diff
	}
	return math.Sqrt(sumSquaredDiff / float64(s.len()))
}

// calculateDistortionRatio estimates how well the graph preserves distances.
// It samples a subset of nodes and compares graph distance to actual distance.
// Lower values indicate better distance preservation.
func (a *Analyzer[K]) calculateDistortionRatio() float64 {
	s := &a.Graph.store
	if s.len() < 10 {
		return 0
	}

	// Use at most 100 nodes to keep computation reasonable.
	sampleSize := min(100, s.len())

	var (
		distortionSum float64
		pairsCount    int
	)
	for i := 0; i < sampleSize; i++ {
		for j := i + 1; j < sampleSize; j++ {
			actualDist := a.Graph.Distance(s.nodes[i].vec, s.nodes[j].vec)
			graphDist := a.estimateGraphDistance(uint32(i), uint32(j))

			if graphDist > 0 && actualDist > 0 && !math.IsNaN(float64(actualDist)) && !math.IsInf(float64(actualDist), 0) {
				distortionSum += float64(graphDist) / float64(actualDist)
				pairsCount++
			}
		}
	}

	if pairsCount == 0 {
		return 0
	}
	return distortionSum / float64(pairsCount)
}

// estimateGraphDistance estimates the number of layer 0 hops between two nodes.
// Returns the number of hops or -1 if no path is found.
func (a *Analyzer[K]) estimateGraphDistance(start, end uint32) int {
	if start == end {
		return 0
	}

	s := &a.Graph.store
	distance := map[uint32]int{start: 0}
	queue := []uint32{start}

	const maxDepth = 10 // Limit search depth to avoid excessive computation

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		currentDist := distance[current]
		if currentDist >= maxDepth {
			continue
		}

		for _, f := range s.friends(current, 0) {
			if _, seen := distance[f]; seen {
				continue
			}
			distance[f] = currentDist + 1
			if f == end {
				return distance[f]
			}
			queue = append(queue, f)
		}
	}

	return -1 // No path found within depth limit
}

// calculateLayerBalance measures how well balanced the layers are.
// It compares the actual layer sizes to the sizes expected from the level
// factor. Values closer to 1.0 indicate better balance.
func (a *Analyzer[K]) calculateLayerBalance() float64 {
	topography := a.Topography()
	if len(topography) <= 1 {
		return 0
	}

	// P(level >= l) = exp(-l / Ml).
	ml := a.Graph.levelFactor()
	baseSize := float64(topography[0])

	var balanceSum float64
	for l := 1; l < len(topography); l++ {
		expectedSize := baseSize * math.Exp(-float64(l)/ml)
		if expectedSize == 0 {
			continue
		}

		ratio := float64(topography[l]) / expectedSize
		if ratio > 1 {
			ratio = 1 / ratio
		}
		balanceSum += ratio
	}

	return balanceSum / float64(len(topography)-1)
}
