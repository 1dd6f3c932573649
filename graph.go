package hnsw

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// LevelSource supplies the uniform random numbers used to draw node levels.
// *rand.Rand satisfies it.
type LevelSource interface {
	// Float64 returns a number in [0, 1).
	Float64() float64
}

// Graph is a Hierarchical Navigable Small World graph.
// All public parameters must be set before adding nodes to the graph.
// K is cmp.Ordered instead of comparable so that ties between equally distant
// results can be broken by key.
//
// A Graph is not safe for concurrent mutation. Searches may run concurrently
// with each other, but not with Insert, Add or Import.
//
// Parameter Tuning Guide:
//
// M: The maximum number of connections per node on layers above 0.
//   - Layer 0 keeps up to 2*M connections.
//   - Higher values improve recall but increase memory usage and build time.
//   - Recommended range: 8-64, with 16 being a good default for most use cases.
//
// Ml: The level generation factor. A node's level is floor(-ln(u) * Ml)
// for a uniform u, capped at 64.
//   - Zero selects 1/ln(M), which makes each layer roughly M times smaller
//     than the one below it.
//
// EfConstruction: The beam width used while inserting.
//   - Higher values build a better graph at the expense of insert time.
//   - Should be larger than EfSearch; 100-400 is typical.
//
// EfSearch: The beam width used while searching. The effective width of a
// search for k results is max(k, EfSearch).
//   - Higher values improve recall but increase search time.
//
// Distance: The distance function used to compare vectors.
//   - CosineDistance is recommended for normalized embeddings.
//   - SquaredEuclideanDistance is recommended for non-normalized embeddings.
type Graph[K cmp.Ordered] struct {
	// Distance is the distance function used to compare embeddings.
	Distance DistanceFunc

	// Rng is used for level generation. It may be set to a deterministic value
	// for reproducibility. Note that deterministic number generation can lead to
	// degenerate graphs when exposed to adversarial inputs.
	Rng LevelSource

	// M is the maximum number of neighbors to keep for each node on layers
	// above 0. Layer 0 keeps up to 2*M.
	M int

	// Ml is the level generation factor. Zero means 1/ln(M).
	Ml float64

	// EfConstruction is the beam width used while inserting.
	EfConstruction int

	// EfSearch is the default beam width used while searching.
	EfSearch int

	// KeepPrunedConnections fills neighbor lists that the selection heuristic
	// left short with the closest rejected candidates.
	KeepPrunedConnections bool

	// Logger receives debug and error logs. Nil disables logging.
	Logger *Logger

	// Metrics receives measurements. Nil disables them.
	Metrics Metrics

	store store[K]
}

func defaultRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewGraph returns a new graph with default parameters, roughly designed for
// storing OpenAI embeddings.
func NewGraph[K cmp.Ordered]() *Graph[K] {
	return &Graph[K]{
		M:              16,
		EfConstruction: 200,
		EfSearch:       50,
		Distance:       CosineDistance,
		Rng:            defaultRand(),
	}
}

// NewGraphWithConfig returns a new graph with the parameters of cfg.
// It validates the configuration and returns an error if any parameter is invalid.
func NewGraphWithConfig[K cmp.Ordered](cfg Config) (*Graph[K], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	distance, err := DistanceFuncByName(cfg.Distance)
	if err != nil {
		return nil, err
	}

	g := &Graph[K]{
		M:                     cfg.M,
		Ml:                    cfg.Ml,
		EfConstruction:        cfg.EfConstruction,
		EfSearch:              cfg.EfSearch,
		Distance:              distance,
		KeepPrunedConnections: cfg.KeepPrunedConnections,
		Rng:                   defaultRand(),
	}
	if cfg.Seed != 0 {
		g.Rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return g, nil
}

// capacity returns the maximum number of neighbors a node keeps at layer.
func (g *Graph[K]) capacity(layer int) int {
	if layer == 0 {
		return 2 * g.M
	}
	return g.M
}

func (g *Graph[K]) levelFactor() float64 {
	if g.Ml > 0 {
		return g.Ml
	}
	return 1 / math.Log(float64(g.M))
}

// maxNodeLevel caps the level of a node. With Ml = 1/ln(M) reaching it has
// probability M^-64, so it only binds for very large Ml. Import rejects
// anything above it.
const maxNodeLevel = 64

// randomLevel draws the level of a new node from an exponentially decaying
// distribution.
func (g *Graph[K]) randomLevel() int {
	if g.Rng == nil {
		g.Rng = defaultRand()
	}
	// 1 - [0, 1) is (0, 1], which keeps the logarithm finite.
	u := 1 - g.Rng.Float64()
	return int(min(math.Floor(-math.Log(u)*g.levelFactor()), maxNodeLevel))
}

// Len returns the number of nodes in the graph.
func (g *Graph[K]) Len() int {
	return g.store.len()
}

// Dims returns the number of dimensions in the graph, or
// 0 if the graph is empty.
func (g *Graph[K]) Dims() int {
	if g.store.len() == 0 {
		return 0
	}
	return g.store.dims
}

// MaxLevel returns the highest layer of the graph, or -1 if it is empty.
func (g *Graph[K]) MaxLevel() int {
	return g.store.maxLevel()
}

// EntryPoint returns the key every search starts from. ok is false only when
// the graph is empty.
func (g *Graph[K]) EntryPoint() (key K, ok bool) {
	return g.store.entryPoint()
}

// Lookup returns a copy of the vector with the given key.
func (g *Graph[K]) Lookup(key K) (Vector, bool) {
	id, ok := g.store.lookup(key)
	if !ok {
		return nil, false
	}
	return slices.Clone(g.store.nodes[id].vec), true
}

// Level returns the level assigned to key at insertion.
func (g *Graph[K]) Level(key K) (int, bool) {
	id, ok := g.store.lookup(key)
	if !ok {
		return 0, false
	}
	return g.store.nodes[id].level, true
}

// Neighbors returns the keys linked from key at layer.
func (g *Graph[K]) Neighbors(key K, layer int) ([]K, error) {
	return g.store.neighbors(key, layer)
}

// Add inserts nodes into the graph in order. It stops at the first node that
// fails; nodes before it remain inserted.
func (g *Graph[K]) Add(nodes ...Node[K]) error {
	for _, n := range nodes {
		if err := g.Insert(n.Key, n.Value); err != nil {
			return err
		}
	}
	return nil
}

// Insert adds vec to the graph under key. The vector is copied.
//
// It fails with ErrDuplicateKey if key is present and with a
// *DimensionMismatchError if vec does not match the dimension of the graph.
// A failed insert leaves the graph unchanged.
func (g *Graph[K]) Insert(key K, vec Vector) error {
	if err := g.Validate(); err != nil {
		return err
	}

	start := time.Now()
	level, calls, err := g.insert(key, vec)
	g.metrics().ObserveInsert(level, calls, time.Since(start), err)
	g.Logger.LogInsert(context.Background(), key, len(vec), level, err)
	if err == nil {
		g.metrics().SetSize(g.store.len(), g.store.maxLevel())
	}
	return err
}

func (g *Graph[K]) insert(key K, vec Vector) (level, distanceCalls int, err error) {
	s := &g.store

	if len(vec) == 0 {
		return -1, 0, fmt.Errorf("insert %v: %w", key, ErrEmptyVector)
	}
	if s.len() > 0 && len(vec) != s.dims {
		return -1, 0, fmt.Errorf("insert %v: %w", key, &DimensionMismatchError{Expected: s.dims, Actual: len(vec)})
	}
	if _, ok := s.lookup(key); ok {
		return -1, 0, fmt.Errorf("insert %v: %w", key, ErrDuplicateKey)
	}

	// Nothing below can fail, so the graph is only touched from here on.
	level = g.randomLevel()
	vec = slices.Clone(vec)

	if s.len() == 0 {
		id, err := s.addNode(key, vec, level)
		if err != nil {
			return -1, 0, err
		}
		s.promote(id)
		g.Logger.LogPromotion(context.Background(), key, level)
		return level, 0, nil
	}

	sr := g.newSearcher()
	defer sr.release()
	top := s.maxLevel()
	entry := sr.candidate(vec, s.entry)
	entry = sr.descend(vec, entry, top, level)

	id, err := s.addNode(key, vec, level)
	if err != nil {
		return -1, sr.distanceCalls, err
	}

	entries := []searchCandidate[K]{entry}
	for layer := min(level, top); layer >= 0; layer-- {
		found := sr.searchLayer(vec, entries, g.EfConstruction, layer)

		cands := make([]searchCandidate[K], 0, len(found))
		for _, c := range found {
			if c.id != id {
				cands = append(cands, c)
			}
		}
		neighbors := candidateIDs(sr.selectNeighbors(cands, g.capacity(layer)))

		s.setFriends(id, layer, neighbors)
		for _, n := range neighbors {
			s.connect(n, id, layer, g.capacity(layer), sr.prune)
		}

		entries = found
	}

	if s.promote(id) {
		g.Logger.LogPromotion(context.Background(), key, level)
	}
	return level, sr.distanceCalls, nil
}

// Search finds the k nearest neighbors of near, ordered by ascending distance
// with ties broken by key. An empty graph yields no results and no error.
func (g *Graph[K]) Search(near Vector, k int) ([]SearchResult[K], error) {
	start := time.Now()
	results, calls, err := g.search(near, k)
	g.metrics().ObserveSearch(k, len(results), calls, time.Since(start), err)
	g.Logger.LogSearch(context.Background(), k, len(results), calls, err)
	return results, err
}

func (g *Graph[K]) search(near Vector, k int) ([]SearchResult[K], int, error) {
	if err := g.Validate(); err != nil {
		return nil, 0, err
	}
	if k <= 0 {
		return nil, 0, fmt.Errorf("%w, got %d", ErrInvalidK, k)
	}

	s := &g.store
	if s.len() == 0 {
		return nil, 0, nil
	}
	if len(near) != s.dims {
		return nil, 0, &DimensionMismatchError{Expected: s.dims, Actual: len(near)}
	}

	sr := g.newSearcher()
	defer sr.release()
	entry := sr.candidate(near, s.entry)
	entry = sr.descend(near, entry, s.maxLevel(), 0)

	found := sr.searchLayer(near, []searchCandidate[K]{entry}, max(k, g.EfSearch), 0)
	found = found[:min(k, len(found))]

	out := make([]SearchResult[K], len(found))
	for i, c := range found {
		out[i] = SearchResult[K]{Key: c.key, Distance: c.dist}
	}
	return out, sr.distanceCalls, nil
}

// BatchSearch runs Search for every query concurrently and returns the
// results in query order. It must not run concurrently with mutations.
func (g *Graph[K]) BatchSearch(queries []Vector, k int) ([][]SearchResult[K], error) {
	out := make([][]SearchResult[K], len(queries))

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range queries {
		eg.Go(func() error {
			results, err := g.Search(q, k)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			out[i] = results
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks if the graph configuration is valid.
// It returns an error if any parameter is invalid.
func (g *Graph[K]) Validate() error {
	if g.M < 2 {
		return invalidConfig("M must be at least 2, got %d", g.M)
	}
	if g.Ml < 0 || math.IsNaN(g.Ml) || math.IsInf(g.Ml, 0) {
		return invalidConfig("Ml must be a non-negative finite number, got %f", g.Ml)
	}
	if g.EfConstruction <= 0 {
		return invalidConfig("EfConstruction must be greater than 0, got %d", g.EfConstruction)
	}
	if g.EfSearch <= 0 {
		return invalidConfig("EfSearch must be greater than 0, got %d", g.EfSearch)
	}
	if g.Distance == nil {
		return invalidConfig("Distance function must be set")
	}
	return nil
}
