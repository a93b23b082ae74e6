// Package minheap implements an array-backed binary min-heap keyed by an
// unsigned integer, satisfying §4.4's "keyed by unsigned integer"
// requirement. No package in this tree imports it yet (the PMM's
// Alloc_run finds contiguous runs by a linear scan instead). It takes no
// lock of its own; a caller guards a shared instance with its own lock.
package minheap

// Heap_t is a min-heap of (key, value) pairs ordered by Key.
type Heap_t[V any] struct {
	items []entry[V]
}

type entry[V any] struct {
	Key uint
	Val V
}

// Len returns the number of elements in the heap.
func (h *Heap_t[V]) Len() int { return len(h.items) }

// Push inserts a (key, val) pair.
func (h *Heap_t[V]) Push(key uint, val V) {
	h.items = append(h.items, entry[V]{key, val})
	h.siftUp(len(h.items) - 1)
}

// Peek returns the minimum-key element without removing it.
func (h *Heap_t[V]) Peek() (uint, V, bool) {
	if len(h.items) == 0 {
		var zero V
		return 0, zero, false
	}
	top := h.items[0]
	return top.Key, top.Val, true
}

// Pop removes and returns the minimum-key element.
func (h *Heap_t[V]) Pop() (uint, V, bool) {
	if len(h.items) == 0 {
		var zero V
		return 0, zero, false
	}
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return top.Key, top.Val, true
}

func (h *Heap_t[V]) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if h.items[p].Key <= h.items[i].Key {
			break
		}
		h.items[p], h.items[i] = h.items[i], h.items[p]
		i = p
	}
}

func (h *Heap_t[V]) siftDown(i int) {
	n := len(h.items)
	for {
		l, r, smallest := 2*i+1, 2*i+2, i
		if l < n && h.items[l].Key < h.items[smallest].Key {
			smallest = l
		}
		if r < n && h.items[r].Key < h.items[smallest].Key {
			smallest = r
		}
		if smallest == i {
			return
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
