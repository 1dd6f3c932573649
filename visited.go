package hnsw

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// visitedSet is a bitset that remembers which bits it set, so that clearing
// it costs as much as the search that filled it rather than the size of the
// graph.
type visitedSet struct {
	bits  bitset.BitSet
	dirty []uint32
}

var visitedPool = sync.Pool{
	New: func() any { return &visitedSet{dirty: make([]uint32, 0, 128)} },
}

// getVisited returns an empty set from the pool.
func getVisited() *visitedSet {
	return visitedPool.Get().(*visitedSet)
}

func putVisited(v *visitedSet) {
	v.reset()
	visitedPool.Put(v)
}

// visit marks id and reports whether it was unmarked before.
func (v *visitedSet) visit(id uint32) bool {
	if v.bits.Test(uint(id)) {
		return false
	}
	v.bits.Set(uint(id))
	v.dirty = append(v.dirty, id)
	return true
}

func (v *visitedSet) visited(id uint32) bool {
	return v.bits.Test(uint(id))
}

func (v *visitedSet) reset() {
	for _, id := range v.dirty {
		v.bits.Clear(uint(id))
	}
	v.dirty = v.dirty[:0]
}
