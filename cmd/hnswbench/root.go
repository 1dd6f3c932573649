package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/vecnav/hnsw"
)

const (
	// DefaultEmbeddingsPath is the embeddings file read when no flag is given.
	DefaultEmbeddingsPath = "embeddings.txt"

	// DefaultIndicesPath is the keys file read when no flag is given.
	DefaultIndicesPath = "indices.txt"

	// DefaultK is the number of neighbors requested from both indexes.
	DefaultK = 5
)

type benchOptions struct {
	embeddings string
	indices    string
	configPath string
	savePath   string
	k          int
	verbose    bool

	// Graph parameters. They override the config file only when set.
	m              int
	efConstruction int
	efSearch       int
	distance       string
	seed           int64
	keepPruned     bool
}

func newRootCmd() *cobra.Command {
	opts := &benchOptions{}
	defaults := hnsw.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "hnswbench",
		Short: "Compare HNSW search against a linear scan",
		Long: `Build an HNSW graph and a linear index from an embeddings file and
compare their nearest neighbors for the last vector, which is held out as the query.

Examples:
  hnswbench                                  # embeddings.txt and indices.txt
  hnswbench -e vecs.txt -i keys.txt -k 10
  hnswbench --config graph.yaml --save graph.hnsw`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.embeddings, "embeddings", "e", DefaultEmbeddingsPath, "embeddings file")
	flags.StringVarP(&opts.indices, "indices", "i", DefaultIndicesPath, "keys file")
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML graph configuration")
	flags.StringVar(&opts.savePath, "save", "", "write the built graph to this file")
	flags.IntVarP(&opts.k, "k", "k", DefaultK, "number of neighbors")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log graph operations to stderr")

	flags.IntVar(&opts.m, "m", defaults.M, "maximum neighbors per node above layer 0")
	flags.IntVar(&opts.efConstruction, "ef-construction", defaults.EfConstruction, "beam width while inserting")
	flags.IntVar(&opts.efSearch, "ef-search", defaults.EfSearch, "beam width while searching")
	flags.StringVar(&opts.distance, "distance", defaults.Distance, "distance function name")
	flags.Int64Var(&opts.seed, "seed", 0, "seed for level generation, 0 seeds from the clock")
	flags.BoolVar(&opts.keepPruned, "keep-pruned", false, "fill short neighbor lists with pruned candidates")

	return cmd
}

// graphConfig merges the config file, if any, with explicitly set flags.
func graphConfig(cmd *cobra.Command, opts *benchOptions) (hnsw.Config, error) {
	cfg := hnsw.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = hnsw.LoadConfig(opts.configPath); err != nil {
			return hnsw.Config{}, err
		}
	}

	flags := cmd.Flags()
	if opts.configPath == "" || flags.Changed("m") {
		cfg.M = opts.m
	}
	if opts.configPath == "" || flags.Changed("ef-construction") {
		cfg.EfConstruction = opts.efConstruction
	}
	if opts.configPath == "" || flags.Changed("ef-search") {
		cfg.EfSearch = opts.efSearch
	}
	if opts.configPath == "" || flags.Changed("distance") {
		cfg.Distance = opts.distance
	}
	if opts.configPath == "" || flags.Changed("seed") {
		cfg.Seed = opts.seed
	}
	if opts.configPath == "" || flags.Changed("keep-pruned") {
		cfg.KeepPrunedConnections = opts.keepPruned
	}
	return cfg, cfg.Validate()
}

func runBench(cmd *cobra.Command, opts *benchOptions) error {
	out := cmd.OutOrStdout()

	cfg, err := graphConfig(cmd, opts)
	if err != nil {
		return err
	}
	ds, err := loadDataset(opts.embeddings, opts.indices)
	if err != nil {
		return err
	}
	if len(ds.keys) < 2 {
		return fmt.Errorf("need at least 2 vectors, got %d", len(ds.keys))
	}

	fmt.Fprintf(out, "Index size: %d\nDimensions: %d\n", len(ds.keys), len(ds.vecs[0]))
	fmt.Fprintf(out, "Parameters: M=%d ef_construction=%d ef_search=%d distance=%s\n\n",
		cfg.M, cfg.EfConstruction, cfg.EfSearch, cfg.Distance)

	// The last vector is the query and is not indexed.
	n := len(ds.keys) - 1
	queryKey, query := ds.keys[n], ds.vecs[n]

	g, err := hnsw.NewGraphWithConfig[uint32](cfg)
	if err != nil {
		return err
	}
	if opts.verbose {
		g.Logger = hnsw.NewLogger(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	linear := hnsw.NewBruteForce[uint32](g.Distance)

	start := time.Now()
	for i := 0; i < n; i++ {
		if err := linear.Add(hnsw.MakeNode(ds.keys[i], ds.vecs[i])); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Linear index created in %s\n", time.Since(start))

	start = time.Now()
	for i := 0; i < n; i++ {
		if err := g.Insert(ds.keys[i], ds.vecs[i]); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "HNSW index created in %s\n\n", time.Since(start))

	fmt.Fprintf(out, "Query key: %d\n\n", queryKey)

	start = time.Now()
	approx, err := g.Search(query, opts.k)
	if err != nil {
		return err
	}
	printResults(out, "HNSW index results:", approx, time.Since(start))

	start = time.Now()
	exact, err := linear.Search(query, opts.k)
	if err != nil {
		return err
	}
	printResults(out, "Linear index results:", exact, time.Since(start))

	fmt.Fprintf(out, "Recall@%d: %.3f\n", opts.k, hnsw.Recall(exact, approx))

	if opts.savePath != "" {
		saved := &hnsw.SavedGraph[uint32]{Graph: g, Path: opts.savePath}
		if err := saved.Save(); err != nil {
			return fmt.Errorf("save graph: %w", err)
		}
		fmt.Fprintf(out, "Graph saved to %s\n", opts.savePath)
	}
	return nil
}

func printResults(w io.Writer, title string, results []hnsw.SearchResult[uint32], took time.Duration) {
	fmt.Fprintln(w, title)
	for _, r := range results {
		fmt.Fprintf(w, "%d %g\n", r.Key, r.Distance)
	}
	fmt.Fprintf(w, "Took %s\n\n", took)
}
