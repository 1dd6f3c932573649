package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vecnav/hnsw"
	"github.com/vecnav/hnsw/promhnsw"
)

func main() {
	cfg := hnsw.DefaultConfig()
	cfg.Distance = "euclidean"
	cfg.Seed = 1

	// Create a new graph from a configuration
	g, err := hnsw.NewGraphWithConfig[int](cfg)
	if err != nil {
		log.Fatalf("failed to create graph: %v", err)
	}
	g.Logger = hnsw.NewTextLogger(slog.LevelInfo)

	reg := prometheus.NewRegistry()
	collector, err := promhnsw.NewCollector(reg, "example")
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}
	g.Metrics = collector

	// Add some initial nodes
	err = g.Add(
		hnsw.MakeNode(1, []float32{1, 1, 1}),
		hnsw.MakeNode(2, []float32{1, -1, 0.999}),
		hnsw.MakeNode(3, []float32{1, 0, -0.5}),
	)
	if err != nil {
		log.Fatalf("failed to add nodes: %v", err)
	}

	// Perform a basic search
	neighbors, err := g.Search(
		[]float32{0.5, 0.5, 0.5},
		1,
	)
	if err != nil {
		log.Fatalf("failed to search graph: %v", err)
	}
	fmt.Printf("best friend: %v (distance %.3f)\n", neighbors[0].Key, neighbors[0].Distance)

	for i := 0; i < 10; i++ {
		nodeID := 10 + i
		vector := []float32{float32(i), float32(i), float32(i)}
		if err := g.Insert(nodeID, vector); err != nil {
			log.Fatalf("failed to insert %d: %v", nodeID, err)
		}
	}

	// Inserting a key twice is rejected and leaves the graph untouched.
	if err := g.Insert(1, []float32{0, 0, 0}); err != nil {
		fmt.Printf("duplicate insert: %v\n", err)
	}

	// Batch search
	queries := []hnsw.Vector{
		{0.1, 0.1, 0.1},
		{2.2, 2.2, 2.2},
		{8.3, 8.3, 8.3},
	}
	batchResults, err := g.BatchSearch(queries, 2)
	if err != nil {
		log.Fatalf("failed to batch search: %v", err)
	}
	for i, results := range batchResults {
		fmt.Printf("Batch search %d results: ", i)
		for _, r := range results {
			fmt.Printf("%d ", r.Key)
		}
		fmt.Println()
	}

	// Persist the graph and read it back
	dir, err := os.MkdirTemp("", "hnsw-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	saved := &hnsw.SavedGraph[int]{Graph: g, Path: filepath.Join(dir, "graph.hnsw")}
	if err := saved.Save(); err != nil {
		log.Fatalf("failed to save graph: %v", err)
	}
	loaded, err := hnsw.LoadSavedGraph[int](saved.Path)
	if err != nil {
		log.Fatalf("failed to load graph: %v", err)
	}

	an := hnsw.Analyzer[int]{Graph: loaded.Graph}
	fmt.Printf("loaded %d nodes, topography %v\n", loaded.Len(), an.Topography())
	if err := an.CheckInvariants(); err != nil {
		log.Fatalf("loaded graph is inconsistent: %v", err)
	}
}
