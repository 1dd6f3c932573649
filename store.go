package hnsw

import (
	"cmp"
	"fmt"
	"slices"
)

// node is a vertex of the graph. Its key, vector and level never change after
// insertion; only the neighbor lists do.
type node[K cmp.Ordered] struct {
	key   K
	vec   Vector
	level int

	// friends[l] holds the ids of the node's neighbors at layer l,
	// for every l in [0, level].
	friends [][]uint32
}

// pruneFunc shrinks the candidate neighbor ids of owner to at most limit.
type pruneFunc func(owner uint32, ids []uint32, limit int) []uint32

// store owns every node of a graph along with the entry point.
//
// Nodes are kept in an arena and addressed by a dense id assigned in insertion
// order. Neighbor lists hold ids, so there are no pointers between nodes and
// the layered structure is implicit: layer l consists of every node whose
// level is at least l.
type store[K cmp.Ordered] struct {
	nodes []node[K]
	ids   map[K]uint32

	entry uint32
	top   int
	dims  int
}

func (s *store[K]) len() int {
	return len(s.nodes)
}

// maxLevel returns the level of the entry point, or -1 if the store is empty.
func (s *store[K]) maxLevel() int {
	if len(s.nodes) == 0 {
		return -1
	}
	return s.top
}

// entryPoint returns the key of the entry point. ok is false only when the
// store is empty.
func (s *store[K]) entryPoint() (key K, ok bool) {
	if len(s.nodes) == 0 {
		return key, false
	}
	return s.nodes[s.entry].key, true
}

func (s *store[K]) lookup(key K) (uint32, bool) {
	id, ok := s.ids[key]
	return id, ok
}

// addNode registers a new node with empty neighbor lists for each of its
// layers. The vector is stored as given and must not be modified afterwards.
func (s *store[K]) addNode(key K, vec Vector, level int) (uint32, error) {
	if _, ok := s.ids[key]; ok {
		return 0, fmt.Errorf("add %v: %w", key, ErrDuplicateKey)
	}
	if level < 0 {
		return 0, fmt.Errorf("add %v: invalid level %d", key, level)
	}
	if s.ids == nil {
		s.ids = make(map[K]uint32)
	}
	if len(s.nodes) == 0 {
		s.dims = len(vec)
	}

	id := uint32(len(s.nodes))
	s.nodes = append(s.nodes, node[K]{
		key:     key,
		vec:     vec,
		level:   level,
		friends: make([][]uint32, level+1),
	})
	s.ids[key] = id
	return id, nil
}

// promote makes id the entry point if its level exceeds the current maximum.
// The first node is always promoted.
func (s *store[K]) promote(id uint32) bool {
	n := &s.nodes[id]
	if len(s.nodes) > 1 && n.level <= s.top {
		return false
	}
	s.entry = id
	s.top = n.level
	return true
}

// friends returns the neighbor ids of id at layer. The caller must not retain
// or modify the returned slice across mutations.
func (s *store[K]) friends(id uint32, layer int) []uint32 {
	n := &s.nodes[id]
	if layer > n.level {
		return nil
	}
	return n.friends[layer]
}

// neighbors returns the keys of the neighbors of key at layer.
func (s *store[K]) neighbors(key K, layer int) ([]K, error) {
	id, ok := s.ids[key]
	if !ok {
		return nil, fmt.Errorf("neighbors of %v: %w", key, ErrKeyNotFound)
	}
	n := &s.nodes[id]
	if layer < 0 || layer > n.level {
		return nil, fmt.Errorf("neighbors of %v at layer %d (level %d): %w", key, layer, n.level, ErrLayerOutOfRange)
	}
	keys := make([]K, len(n.friends[layer]))
	for i, f := range n.friends[layer] {
		keys[i] = s.nodes[f].key
	}
	return keys, nil
}

func (s *store[K]) setFriends(id uint32, layer int, ids []uint32) {
	s.nodes[id].friends[layer] = ids
}

// connect adds b to the neighbors of a at layer. If the list would grow past
// limit, prune selects which of the existing neighbors plus b survive.
func (s *store[K]) connect(a, b uint32, layer, limit int, prune pruneFunc) {
	if a == b {
		return
	}
	n := &s.nodes[a]
	if slices.Contains(n.friends[layer], b) {
		return
	}
	if len(n.friends[layer]) < limit {
		n.friends[layer] = append(n.friends[layer], b)
		return
	}

	cands := make([]uint32, 0, len(n.friends[layer])+1)
	cands = append(cands, n.friends[layer]...)
	cands = append(cands, b)
	n.friends[layer] = prune(a, cands, limit)
}
