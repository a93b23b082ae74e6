// Package oommsg defines the out-of-memory notification channel a
// component that can free pages on demand would listen on. Nothing in
// this tree sends on or receives from OomCh; the heap panics on
// exhaustion instead. Kept from the teacher's oommsg/oommsg.go.
package oommsg

// OomCh is sent to when the system is critically low on memory.
var OomCh = make(chan Oommsg_t)

// Oommsg_t describes how many pages are needed; the receiver replies on
// Resume once it has freed (or given up trying to free) that many.
type Oommsg_t struct {
	Need   int
	Resume chan bool
}
