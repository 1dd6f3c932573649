package hnsw

import "cmp"

// Vector is a fixed-length embedding. Every vector in a graph has the
// dimension of the first vector inserted.
type Vector = []float32

// Node is a key and the vector it indexes.
type Node[K cmp.Ordered] struct {
	Key   K
	Value Vector
}

// MakeNode returns a Node for key and vec.
func MakeNode[K cmp.Ordered](key K, vec Vector) Node[K] {
	return Node[K]{Key: key, Value: vec}
}

// SearchResult is a single hit returned by a search.
type SearchResult[K cmp.Ordered] struct {
	Key      K
	Distance float32
}

// compareResults orders results by ascending distance, then by key.
func compareResults[K cmp.Ordered](a, b SearchResult[K]) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	return cmp.Compare(a.Key, b.Key)
}
