// Package tree implements the kernel's tree node: a parent pointer plus a
// child list, used both for the process tree (fork reparenting, §4.7) and
// the VFS mount tree (§3, §4.8). Grounded on the teacher's PCB/fs_node
// "tree_node" back-reference described in spec.md §3.
package tree

import "list"

// Node_t is embedded by value in whatever participates in a tree (a PCB, a
// mount-point fs_node). Val carries the owning object back-reference.
type Node_t[T any] struct {
	parent   *Node_t[T]
	siblings list.Node_t[*Node_t[T]]
	children list.List_t[*Node_t[T]]
	Val      T
}

// Parent returns the parent node, or nil at the root.
func (n *Node_t[T]) Parent() *Node_t[T] { return n.parent }

// NumChildren returns the number of direct children.
func (n *Node_t[T]) NumChildren() int { return n.children.Len() }

// AddChild attaches child under n.
func (n *Node_t[T]) AddChild(child *Node_t[T]) {
	if child.parent != nil {
		panic("child already has a parent")
	}
	child.parent = n
	child.siblings.Val = child
	n.children.PushBack(&child.siblings)
}

// RemoveChild detaches child from n. It is the caller's job to re-parent
// or discard it afterward.
func (n *Node_t[T]) RemoveChild(child *Node_t[T]) {
	n.children.Remove(&child.siblings)
	child.parent = nil
}

// Reparent moves every child of n onto newParent — used by process_kill to
// reparent orphans to init (§4.7).
func (n *Node_t[T]) Reparent(newParent *Node_t[T]) {
	var kids []*Node_t[T]
	n.children.Each(func(ln *list.Node_t[*Node_t[T]]) { kids = append(kids, ln.Val) })
	for _, k := range kids {
		n.RemoveChild(k)
		newParent.AddChild(k)
	}
}

// EachChild calls f for every direct child, in no particular order
// guarantee beyond insertion order.
func (n *Node_t[T]) EachChild(f func(*Node_t[T])) {
	n.children.Each(func(ln *list.Node_t[*Node_t[T]]) { f(ln.Val) })
}
