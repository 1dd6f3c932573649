package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzer_QualityMetrics(t *testing.T) {
	// Create a test graph
	g := newTestGraph[int]()

	// Empty graph should return default metrics
	analyzer := Analyzer[int]{Graph: g}
	metrics := analyzer.QualityMetrics()

	assert.Equal(t, 0, metrics.NodeCount)
	assert.Equal(t, 0.0, metrics.AvgConnectivity)
	assert.Equal(t, 0.0, metrics.ConnectivityStdDev)

	// Add nodes to the graph
	for i := 0; i < 100; i++ {
		err := g.Add(
			Node[int]{
				Key:   i,
				Value: Vector{float32(i)},
			},
		)
		require.NoError(t, err)
	}

	// Get metrics for populated graph
	metrics = analyzer.QualityMetrics()

	// Basic assertions
	assert.Equal(t, 100, metrics.NodeCount)
	assert.Greater(t, metrics.AvgConnectivity, 0.0)
	assert.GreaterOrEqual(t, metrics.ConnectivityStdDev, 0.0)
	assert.GreaterOrEqual(t, metrics.GraphHeight, 1)

	// Layer balance should be between 0 and 1
	assert.GreaterOrEqual(t, metrics.LayerBalance, 0.0)
	assert.LessOrEqual(t, metrics.LayerBalance, 1.0)

	// Distortion ratio should be positive or zero
	assert.GreaterOrEqual(t, metrics.DistortionRatio, 0.0)
}

func TestAnalyzer_EstimateGraphDistance(t *testing.T) {
	// Create a simple graph with known structure
	g := newTestGraph[int]()

	// Add nodes in a line: 0 -> 1 -> 2 -> 3
	for i := 0; i < 4; i++ {
		err := g.Add(
			Node[int]{
				Key:   i,
				Value: Vector{float32(i)},
			},
		)
		require.NoError(t, err)
	}

	analyzer := Analyzer[int]{Graph: g}

	assert.Equal(t, 0, analyzer.estimateGraphDistance(0, 0), "Distance to self should be 0")

	// On a line the heuristic only links consecutive points.
	assert.Equal(t, 1, analyzer.estimateGraphDistance(0, 1))
	assert.Equal(t, 3, analyzer.estimateGraphDistance(0, 3))

	// A node nothing links to is unreachable.
	_, err := g.store.addNode(4, Vector{4}, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, analyzer.estimateGraphDistance(0, 4), "Distance to an isolated node should be -1")
}

func TestAnalyzer_Reachable(t *testing.T) {
	g := newTestGraph[int]()
	analyzer := Analyzer[int]{Graph: g}
	assert.Equal(t, 0, analyzer.Reachable())

	// Up to 2*M+1 nodes nothing is pruned from layer 0, so every node stays
	// reachable.
	n := 2*g.M + 1
	for i := 0; i < n; i++ {
		require.NoError(t, g.Insert(i, Vector{float32(i), float32(i % 5)}))
	}
	assert.Equal(t, n, analyzer.Reachable())

	_, err := g.store.addNode(100, Vector{0, 0}, 0)
	require.NoError(t, err)
	assert.Equal(t, n, analyzer.Reachable())
	assert.InDelta(t, float64(n)/float64(n+1), analyzer.QualityMetrics().ReachableRatio, 1e-9)
}

func TestAnalyzer_CheckInvariants(t *testing.T) {
	build := func() *Graph[int] {
		g := newTestGraph[int]()
		g.Ml = 1.5
		for i := 0; i < 40; i++ {
			require.NoError(t, g.Insert(i, Vector{float32(i % 7), float32(i / 7)}))
		}
		require.Positive(t, g.MaxLevel())
		return g
	}

	require.NoError(t, (&Analyzer[int]{Graph: newTestGraph[int]()}).CheckInvariants())
	require.NoError(t, (&Analyzer[int]{Graph: build()}).CheckInvariants())

	tests := map[string]func(g *Graph[int]){
		"self loop": func(g *Graph[int]) {
			g.store.nodes[1].friends[0] = append(g.store.nodes[1].friends[0], 1)
		},
		"duplicate neighbor": func(g *Graph[int]) {
			f := g.store.nodes[1].friends[0]
			g.store.nodes[1].friends[0] = append(f, f[0])
		},
		"over capacity": func(g *Graph[int]) {
			var ids []uint32
			for i := 1; i <= 2*g.M+1; i++ {
				ids = append(ids, uint32(i))
			}
			g.store.nodes[0].friends[0] = ids
		},
		"missing layer": func(g *Graph[int]) {
			n := &g.store.nodes[g.store.entry]
			n.friends = n.friends[:len(n.friends)-1]
		},
		"neighbor not on layer": func(g *Graph[int]) {
			for i, n := range g.store.nodes {
				if n.level == 0 {
					g.store.nodes[g.store.entry].friends[g.store.top] = []uint32{uint32(i)}
					return
				}
			}
		},
		"entry not at max level": func(g *Graph[int]) {
			for i, n := range g.store.nodes {
				if n.level < g.store.top {
					g.store.entry = uint32(i)
					return
				}
			}
		},
	}
	for name, corrupt := range tests {
		t.Run(name, func(t *testing.T) {
			g := build()
			corrupt(g)
			require.Error(t, (&Analyzer[int]{Graph: g}).CheckInvariants())
		})
	}
}

func TestAnalyzer_ConnectivityMetrics(t *testing.T) {
	// Create a test graph
	g := newTestGraph[int]()

	// Add nodes to the graph
	for i := 0; i < 50; i++ {
		err := g.Add(
			Node[int]{
				Key:   i,
				Value: Vector{float32(i)},
			},
		)
		require.NoError(t, err)
	}

	analyzer := Analyzer[int]{Graph: g}

	// Test average connectivity
	avgConn := analyzer.averageConnectivity()
	assert.GreaterOrEqual(t, avgConn, 0.0, "Average connectivity should be non-negative")
	assert.LessOrEqual(t, avgConn, float64(2*g.M), "Average connectivity should not exceed the layer 0 capacity")

	// Test connectivity standard deviation
	stdDev := analyzer.connectivityStdDev()
	assert.GreaterOrEqual(t, stdDev, 0.0, "Standard deviation should be non-negative")
}

func TestAnalyzer_LayerBalance(t *testing.T) {
	// Create a test graph
	g := newTestGraph[int]()
	g.Ml = 0.5 // Set level generation factor

	// Add enough nodes to create multiple layers
	for i := 0; i < 100; i++ {
		err := g.Add(
			Node[int]{
				Key:   i,
				Value: Vector{float32(i)},
			},
		)
		require.NoError(t, err)
	}

	analyzer := Analyzer[int]{Graph: g}

	// Test layer balance
	balance := analyzer.calculateLayerBalance()
	assert.GreaterOrEqual(t, balance, 0.0, "Layer balance should be non-negative")
	assert.LessOrEqual(t, balance, 1.0, "Layer balance should not exceed 1.0")

	// Check topography
	topo := analyzer.Topography()
	assert.GreaterOrEqual(t, len(topo), 2, "Should have at least 2 layers")

	// Each layer should be approximately half the size of the previous layer (Ml = 0.5)
	for i := 1; i < len(topo); i++ {
		if topo[i-1] > 0 {
			ratio := float64(topo[i]) / float64(topo[i-1])
			// Allow for some variance due to randomness
			assert.LessOrEqual(t, ratio, 1.0, "Higher layer should not be larger than lower layer")
		}
	}
}

func TestAnalyzer_DistortionRatio(t *testing.T) {
	// Create a test graph
	g := newTestGraph[int]()

	// Add nodes to the graph
	for i := 0; i < 20; i++ {
		err := g.Add(
			Node[int]{
				Key:   i,
				Value: Vector{float32(i)},
			},
		)
		require.NoError(t, err)
	}

	analyzer := Analyzer[int]{Graph: g}

	// Test distortion ratio
	distortion := analyzer.calculateDistortionRatio()
	assert.GreaterOrEqual(t, distortion, 0.0, "Distortion ratio should be non-negative")
}

func TestAnalyzer_EmptyGraph(t *testing.T) {
	// Create an empty graph
	g := newTestGraph[int]()
	analyzer := Analyzer[int]{Graph: g}

	// Test all metrics with empty graph
	assert.Equal(t, 0.0, analyzer.averageConnectivity())
	assert.Equal(t, 0.0, analyzer.connectivityStdDev())
	assert.Equal(t, 0.0, analyzer.calculateDistortionRatio())
	assert.Equal(t, 0.0, analyzer.calculateLayerBalance()) // Default for empty graph

	metrics := analyzer.QualityMetrics()
	assert.Equal(t, 0, metrics.NodeCount)
	assert.Equal(t, 0.0, metrics.AvgConnectivity)
	assert.Equal(t, 0.0, metrics.ConnectivityStdDev)
	assert.Equal(t, 0.0, metrics.DistortionRatio)
	assert.Equal(t, 0.0, metrics.LayerBalance)
	assert.Equal(t, 0, metrics.GraphHeight)
}

func TestAnalyzer_Topography(t *testing.T) {
	g := newTestGraph[int]()
	for i := 0; i < 128; i++ {
		require.NoError(t, g.Insert(i, Vector{float32(i)}))
	}

	an := Analyzer[int]{Graph: g}
	topo := an.Topography()
	require.Len(t, topo, an.Height())
	require.Equal(t, g.MaxLevel()+1, an.Height())
	require.Equal(t, 128, topo[0])
	require.Positive(t, topo[len(topo)-1])
	require.IsNonIncreasing(t, topo)

	conn := an.Connectivity()
	require.Len(t, conn, an.Height())
	require.Greater(t, conn[0], 0.0)
}
