package hnsw

import (
	"cmp"
	"fmt"
	"slices"
)

// BruteForce is an exact linear-scan index. It answers the same queries as
// Graph, in the same order, and serves as the ground truth when measuring
// recall.
type BruteForce[K cmp.Ordered] struct {
	// Distance is the distance function used to compare embeddings.
	Distance DistanceFunc

	keys []K
	vecs []Vector
	seen map[K]struct{}
}

// NewBruteForce returns an empty linear index using distance.
func NewBruteForce[K cmp.Ordered](distance DistanceFunc) *BruteForce[K] {
	return &BruteForce[K]{Distance: distance}
}

// Len returns the number of vectors in the index.
func (b *BruteForce[K]) Len() int {
	return len(b.keys)
}

// Add inserts nodes with the same validation rules as Graph.Insert.
func (b *BruteForce[K]) Add(nodes ...Node[K]) error {
	for _, n := range nodes {
		if err := b.insert(n.Key, n.Value); err != nil {
			return err
		}
	}
	return nil
}

func (b *BruteForce[K]) insert(key K, vec Vector) error {
	if len(vec) == 0 {
		return fmt.Errorf("insert %v: %w", key, ErrEmptyVector)
	}
	if len(b.vecs) > 0 && len(vec) != len(b.vecs[0]) {
		return fmt.Errorf("insert %v: %w", key, &DimensionMismatchError{Expected: len(b.vecs[0]), Actual: len(vec)})
	}
	if _, ok := b.seen[key]; ok {
		return fmt.Errorf("insert %v: %w", key, ErrDuplicateKey)
	}
	if b.seen == nil {
		b.seen = make(map[K]struct{})
	}
	b.seen[key] = struct{}{}
	b.keys = append(b.keys, key)
	b.vecs = append(b.vecs, slices.Clone(vec))
	return nil
}

// Search returns the exact k nearest neighbors of near.
func (b *BruteForce[K]) Search(near Vector, k int) ([]SearchResult[K], error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidK, k)
	}
	if b.Distance == nil {
		return nil, invalidConfig("Distance function must be set")
	}
	if len(b.vecs) == 0 {
		return nil, nil
	}
	if len(near) != len(b.vecs[0]) {
		return nil, &DimensionMismatchError{Expected: len(b.vecs[0]), Actual: len(near)}
	}

	results := make([]SearchResult[K], len(b.keys))
	for i, vec := range b.vecs {
		results[i] = SearchResult[K]{Key: b.keys[i], Distance: b.Distance(near, vec)}
	}
	slices.SortFunc(results, compareResults[K])
	return results[:min(k, len(results))], nil
}

// Recall returns the fraction of exact results that also appear in got.
func Recall[K cmp.Ordered](exact, got []SearchResult[K]) float64 {
	if len(exact) == 0 {
		return 1
	}
	want := make(map[K]struct{}, len(exact))
	for _, r := range exact {
		want[r.Key] = struct{}{}
	}
	hits := 0
	for _, r := range got {
		if _, ok := want[r.Key]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(exact))
}
