package hnsw

import (
	"cmp"

	"github.com/vecnav/hnsw/heap"
)

type searchCandidate[K cmp.Ordered] struct {
	id   uint32
	key  K
	dist float32
}

// Less orders candidates by distance, breaking ties by key so that results
// are deterministic.
func (s searchCandidate[K]) Less(o searchCandidate[K]) bool {
	if s.dist != o.dist {
		return s.dist < o.dist
	}
	return s.key < o.key
}

func compareCandidates[K cmp.Ordered](a, b searchCandidate[K]) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// searcher holds the scratch state of one insert or search. It only reads the
// store, except through connect during insertion, so several searchers may
// run against a graph that is not being mutated.
type searcher[K cmp.Ordered] struct {
	store      *store[K]
	distance   DistanceFunc
	keepPruned bool

	visited    *visitedSet
	candidates heap.Heap[searchCandidate[K]]
	result     heap.Heap[searchCandidate[K]]

	// distanceCalls counts every distance evaluation made by this searcher.
	distanceCalls int
}

func (g *Graph[K]) newSearcher() *searcher[K] {
	return &searcher[K]{
		store:      &g.store,
		distance:   g.Distance,
		keepPruned: g.KeepPrunedConnections,
		visited:    getVisited(),
	}
}

// release hands the visited set back to the pool. The searcher must not be
// used afterwards.
func (sr *searcher[K]) release() {
	putVisited(sr.visited)
	sr.visited = nil
}

func (sr *searcher[K]) dist(a, b Vector) float32 {
	sr.distanceCalls++
	return sr.distance(a, b)
}

func (sr *searcher[K]) candidate(query Vector, id uint32) searchCandidate[K] {
	n := &sr.store.nodes[id]
	return searchCandidate[K]{id: id, key: n.key, dist: sr.dist(query, n.vec)}
}

// searchLayer runs a beam search of width ef over a single layer, starting
// from entries. It returns at most ef candidates sorted by ascending distance.
//
// Every entry must be a member of the layer.
func (sr *searcher[K]) searchLayer(query Vector, entries []searchCandidate[K], ef, layer int) []searchCandidate[K] {
	sr.visited.reset()
	sr.candidates.Reset()
	sr.result.Reset()

	for _, e := range entries {
		if !sr.visited.visit(e.id) {
			continue
		}
		sr.candidates.Push(e)
		sr.result.Push(e)
		if sr.result.Len() > ef {
			sr.result.PopLast()
		}
	}

	for sr.candidates.Len() > 0 {
		current := sr.candidates.Pop()
		// Everything left in the frontier is at least as far as current, so
		// nothing can improve a full result set any more.
		if sr.result.Len() >= ef && current.dist > sr.result.Max().dist {
			break
		}

		for _, id := range sr.store.friends(current.id, layer) {
			if !sr.visited.visit(id) {
				continue
			}

			c := sr.candidate(query, id)
			if sr.result.Len() < ef || c.Less(sr.result.Max()) {
				sr.candidates.Push(c)
				sr.result.Push(c)
				if sr.result.Len() > ef {
					sr.result.PopLast()
				}
			}
		}
	}

	out := make([]searchCandidate[K], sr.result.Len())
	for i := range out {
		out[i] = sr.result.Pop()
	}
	return out
}

// descend greedily walks from entry down to layer to+1, keeping only the
// closest node on each layer, and returns the node it ends on.
func (sr *searcher[K]) descend(query Vector, entry searchCandidate[K], from, to int) searchCandidate[K] {
	for layer := from; layer > to; layer-- {
		entry = sr.searchLayer(query, []searchCandidate[K]{entry}, 1, layer)[0]
	}
	return entry
}
