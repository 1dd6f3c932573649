// Package heap implements a generic double-ended priority queue.
//
// The queue is a min-max heap: both the smallest and the largest element are
// available in constant time and can be removed in logarithmic time. Search
// code uses it as a bounded best-so-far set, evicting the worst element once
// the set grows past its limit.
package heap

// Lessable is implemented by element types that define their own order.
type Lessable[T any] interface {
	Less(T) bool
}

// Heap is a min-max heap. The zero value is an empty heap ready to use.
type Heap[T Lessable[T]] struct {
	data []T
}

// Init replaces the contents of the heap with d and restores the heap order.
// d is used as backing storage and must not be used by the caller afterwards.
func (h *Heap[T]) Init(d []T) {
	h.data = d
	for i := len(h.data)/2 - 1; i >= 0; i-- {
		h.trickleDown(i)
	}
}

// Len returns the number of elements in the heap.
func (h *Heap[T]) Len() int {
	return len(h.data)
}

// Reset removes all elements while keeping the allocated storage.
func (h *Heap[T]) Reset() {
	clear(h.data)
	h.data = h.data[:0]
}

// Push adds an element to the heap.
func (h *Heap[T]) Push(v T) {
	h.data = append(h.data, v)
	h.bubbleUp(len(h.data) - 1)
}

// Min returns the smallest element. It panics on an empty heap.
func (h *Heap[T]) Min() T {
	return h.data[0]
}

// Max returns the largest element. It panics on an empty heap.
func (h *Heap[T]) Max() T {
	return h.data[h.maxIndex()]
}

// Pop removes and returns the smallest element. It panics on an empty heap.
func (h *Heap[T]) Pop() T {
	return h.removeAt(0)
}

// PopLast removes and returns the largest element. It panics on an empty heap.
func (h *Heap[T]) PopLast() T {
	return h.removeAt(h.maxIndex())
}

// Slice returns the underlying storage in heap order, not sorted order.
func (h *Heap[T]) Slice() []T {
	return h.data
}

func (h *Heap[T]) maxIndex() int {
	switch len(h.data) {
	case 0:
		panic("heap: empty")
	case 1:
		return 0
	case 2:
		return 1
	}
	if h.data[1].Less(h.data[2]) {
		return 2
	}
	return 1
}

func (h *Heap[T]) removeAt(i int) T {
	v := h.data[i]
	last := len(h.data) - 1
	h.data[i] = h.data[last]
	var zero T
	h.data[last] = zero
	h.data = h.data[:last]
	if i < last {
		h.trickleDown(i)
	}
	return v
}

// isMinLevel reports whether index i sits on a min level (even depth).
func isMinLevel(i int) bool {
	depth := 0
	for i > 0 {
		i = (i - 1) / 2
		depth++
	}
	return depth%2 == 0
}

func (h *Heap[T]) swap(i, j int) {
	h.data[i], h.data[j] = h.data[j], h.data[i]
}

// less orders two indices; on max levels the order is reversed.
func (h *Heap[T]) less(i, j int, minLevel bool) bool {
	if minLevel {
		return h.data[i].Less(h.data[j])
	}
	return h.data[j].Less(h.data[i])
}

func (h *Heap[T]) bubbleUp(i int) {
	if i == 0 {
		return
	}
	p := (i - 1) / 2
	minLevel := isMinLevel(i)
	if h.less(p, i, minLevel) {
		// Element belongs on the opposite kind of level.
		h.swap(i, p)
		h.bubbleUpGrand(p, !minLevel)
		return
	}
	h.bubbleUpGrand(i, minLevel)
}

func (h *Heap[T]) bubbleUpGrand(i int, minLevel bool) {
	for i > 2 {
		gp := ((i-1)/2 - 1) / 2
		if !h.less(i, gp, minLevel) {
			return
		}
		h.swap(i, gp)
		i = gp
	}
}

func (h *Heap[T]) trickleDown(i int) {
	minLevel := isMinLevel(i)
	n := len(h.data)
	for {
		first := 2*i + 1
		if first >= n {
			return
		}

		// Pick the extreme among children and grandchildren.
		m := first
		for _, c := range [...]int{first + 1, 2*first + 1, 2*first + 2, 2*first + 3, 2*first + 4} {
			if c < n && h.less(c, m, minLevel) {
				m = c
			}
		}

		if m > first+1 {
			// Grandchild.
			if !h.less(m, i, minLevel) {
				return
			}
			h.swap(m, i)
			p := (m - 1) / 2
			if h.less(p, m, minLevel) {
				h.swap(m, p)
			}
			i = m
			continue
		}

		if h.less(m, i, minLevel) {
			h.swap(m, i)
		}
		return
	}
}
