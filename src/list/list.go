// Package list implements the kernel's intrusive doubly-linked list:
// O(1) push/pop at either end and O(1) removal given a node pointer, with
// no allocation on the hot path once a node exists. Used by the scheduler's
// per-priority run queues and the pipe's reader/writer wait lists (§3, §4.7,
// §4.9). Grounded on the teacher's fs.BlkList_t, which wraps container/list
// for the same "intrusive-ish" queueing role around Bdev_block_t.
package list

// Node_t is embedded by value in whatever is being linked (a PCB, a waiter
// record, ...). The zero value is an unlinked node.
type Node_t[T any] struct {
	next, prev *Node_t[T]
	list       *List_t[T]
	Val        T
}

// Linked reports whether the node is currently a member of a list.
func (n *Node_t[T]) Linked() bool { return n.list != nil }

// List_t is an intrusive doubly-linked list of *Node_t[T]. The zero value
// is an empty list.
type List_t[T any] struct {
	head, tail *Node_t[T]
	n          int
}

// Len returns the number of nodes currently in the list.
func (l *List_t[T]) Len() int { return l.n }

// Empty reports whether the list has no nodes.
func (l *List_t[T]) Empty() bool { return l.n == 0 }

// PushBack appends n to the tail of the list. n must not already be linked.
func (l *List_t[T]) PushBack(n *Node_t[T]) {
	if n.list != nil {
		panic("node already linked")
	}
	n.list = l
	n.prev = l.tail
	n.next = nil
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.n++
}

// PushFront inserts n at the head of the list.
func (l *List_t[T]) PushFront(n *Node_t[T]) {
	if n.list != nil {
		panic("node already linked")
	}
	n.list = l
	n.next = l.head
	n.prev = nil
	if l.head != nil {
		l.head.prev = n
	} else {
		l.tail = n
	}
	l.head = n
	l.n++
}

// Front returns the head node, or nil if the list is empty.
func (l *List_t[T]) Front() *Node_t[T] { return l.head }

// Remove unlinks n from whichever list it belongs to. It is a no-op if n
// is not linked, so callers don't need to track membership separately.
func (l *List_t[T]) Remove(n *Node_t[T]) {
	if n.list == nil {
		return
	}
	if n.list != l {
		panic("node belongs to a different list")
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.next, n.prev, n.list = nil, nil, nil
	l.n--
}

// PopFront removes and returns the head node, or nil if empty.
func (l *List_t[T]) PopFront() *Node_t[T] {
	n := l.head
	if n == nil {
		return nil
	}
	l.Remove(n)
	return n
}

// Rotate moves n, currently the head, to the tail — the round-robin step
// the scheduler applies to the PCB it just ran (§4.7).
func (l *List_t[T]) Rotate(n *Node_t[T]) {
	l.Remove(n)
	l.PushBack(n)
}

// Each calls f for every node from head to tail. f must not mutate the
// list; collect nodes first if removal during iteration is needed.
func (l *List_t[T]) Each(f func(*Node_t[T])) {
	for n := l.head; n != nil; n = n.next {
		f(n)
	}
}
