// Package heap is the kernel's byte allocator: Kmalloc/Kfree/Krealloc
// backed by whole pages obtained from paging+mem. There is no teacher
// file to ground this on directly -- biscuit is written in Go and relies
// on the Go runtime's own garbage-collected heap for kernel allocations,
// so it never needed a C-style kmalloc. This package is new, following
// the block-header/first-fit/split/coalesce design SPEC_FULL.md's
// "Heap block" section describes, written in the teacher's idiom: plain
// exported Xxx_t structs, an XXXPANIC-style invariant panic on
// corruption, and interrupt masking instead of a mutex for the critical
// section (matching the teacher's pattern of using archglue-level
// primitives rather than sync.Mutex for core-allocator state).
package heap

import (
	"unsafe"

	"archglue"
	"mem"
	"paging"
)

const alignUnit = 8
const minBlock = 32

// hdr_t precedes every block, whether free or allocated. Free blocks are
// threaded into a doubly-linked free list via next/prevFree; allocated
// blocks only use size/prev (to find the left neighbor for coalescing).
type hdr_t struct {
	free     bool
	size     int // total block size including this header
	prev     *hdr_t
	nextFree *hdr_t
	prevFree *hdr_t
}

const hdrSize = int(unsafe.Sizeof(hdr_t{}))

var freelist *hdr_t
var heapStart, heapEnd uint32 // current kernel-half virtual extent

func roundUp(n, unit int) int { return (n + unit - 1) &^ (unit - 1) }

// Init reserves the initial heap extent starting at vstart, backed by
// one page, and sets up the free list. Called once during boot after
// paging is up.
func Init(vstart uint32) {
	heapStart = vstart
	heapEnd = vstart
	growHeap(mem.PGSIZE)
}

func growHeap(nbytes int) bool {
	npages := roundUp(nbytes, mem.PGSIZE) / mem.PGSIZE
	base := heapEnd
	for i := 0; i < npages; i++ {
		_, pa, ok := mem.Physmem.Refpg_new()
		if !ok {
			return false
		}
		if err := paging.Map_kernel_page(base+uint32(i*mem.PGSIZE), pa, mem.PTE_W); err != 0 {
			return false
		}
	}
	heapEnd = base + uint32(npages*mem.PGSIZE)
	h := (*hdr_t)(unsafe.Pointer(uintptr(base)))
	*h = hdr_t{free: true, size: npages * mem.PGSIZE}
	freeInsert(h)
	tryCoalesceWithTail(h)
	return true
}

func freeInsert(h *hdr_t) {
	h.free = true
	h.nextFree = freelist
	h.prevFree = nil
	if freelist != nil {
		freelist.prevFree = h
	}
	freelist = h
}

func freeRemove(h *hdr_t) {
	if h.prevFree != nil {
		h.prevFree.nextFree = h.nextFree
	} else {
		freelist = h.nextFree
	}
	if h.nextFree != nil {
		h.nextFree.prevFree = h.prevFree
	}
	h.nextFree, h.prevFree = nil, nil
}

func hdrAddr(h *hdr_t) uint32 { return uint32(uintptr(unsafe.Pointer(h))) }

func rightOf(h *hdr_t) *hdr_t {
	next := hdrAddr(h) + uint32(h.size)
	if next >= heapEnd {
		return nil
	}
	return (*hdr_t)(unsafe.Pointer(uintptr(next)))
}

// tryCoalesceWithTail merges h with its immediate right neighbor while
// that neighbor is free; it does not look left (the caller does that via
// h.prev when freeing an allocated block).
func tryCoalesceWithTail(h *hdr_t) {
	for {
		r := rightOf(h)
		if r == nil || !r.free {
			return
		}
		freeRemove(r)
		h.size += r.size
		if nn := rightOf(h); nn != nil {
			nn.prev = h
		}
	}
}

// Kmalloc returns a pointer to a zeroed block of at least n bytes,
// masking interrupts around the free-list search the way the teacher
// masks interrupts around PMM/paging/heap critical sections.
func Kmalloc(n int) unsafe.Pointer {
	if n <= 0 {
		panic("bad kmalloc size")
	}
	need := roundUp(n+hdrSize, alignUnit)
	if need < minBlock {
		need = minBlock
	}

	archglue.Cli()
	defer archglue.Sti()

	for {
		for h := freelist; h != nil; h = h.nextFree {
			if h.size < need {
				continue
			}
			freeRemove(h)
			if h.size-need >= minBlock {
				split(h, need)
			}
			h.free = false
			payload := unsafe.Pointer(uintptr(hdrAddr(h)) + uintptr(hdrSize))
			clear(unsafe.Slice((*byte)(payload), h.size-hdrSize))
			return payload
		}
		if !growHeap(need) {
			panic("out of heap memory") // XXXPANIC: OOM handling belongs to oommsg upstream of here
		}
	}
}

func split(h *hdr_t, used int) {
	rem := h.size - used
	h.size = used
	tail := (*hdr_t)(unsafe.Pointer(uintptr(hdrAddr(h)) + uintptr(used)))
	*tail = hdr_t{free: true, size: rem, prev: h}
	if nn := rightOf(tail); nn != nil {
		nn.prev = tail
	}
	freeInsert(tail)
}

// Kfree releases a block previously returned by Kmalloc, coalescing with
// both neighbors and then handing the result to releaseWholePages.
func Kfree(p unsafe.Pointer) {
	h := (*hdr_t)(unsafe.Pointer(uintptr(p) - uintptr(hdrSize)))
	if h.free {
		panic("double free")
	}

	archglue.Cli()
	defer archglue.Sti()

	freeInsert(h)
	tryCoalesceWithTail(h)
	if left := h.prev; left != nil && left.free {
		freeRemove(h)
		freeRemove(left)
		left.size += h.size
		if nn := rightOf(left); nn != nil {
			nn.prev = left
		}
		freeInsert(left)
		h = left
	}
	releaseWholePages(h)
}

// releaseWholePages unmaps a free block's pages only when the block is
// itself an exact run of whole pages (page-aligned start and end); the
// block is then dropped from the free list. A free block that covers
// whole pages but has a partial page at either end keeps all its pages.
func releaseWholePages(h *hdr_t) {
	start := hdrAddr(h)
	end := start + uint32(h.size)
	pgstart := roundUp(int(start), mem.PGSIZE)
	pgend := (int(end) / mem.PGSIZE) * mem.PGSIZE
	if pgend-pgstart < mem.PGSIZE {
		return
	}
	if uint32(pgstart) == start && uint32(pgend) == end {
		// entire block is whole pages: drop it from the free list and
		// unmap every page composing it.
		freeRemove(h)
		for va := uint32(pgstart); va < uint32(pgend); va += uint32(mem.PGSIZE) {
			paging.Unmap_kernel_page(va)
		}
	}
}

// Krealloc resizes a block, copying the lesser of the old and new sizes
// into a freshly allocated one. It is optional per the spec; provided
// for completeness since nothing in this kernel's own code strictly
// requires in-place growth.
func Krealloc(p unsafe.Pointer, n int) unsafe.Pointer {
	if p == nil {
		return Kmalloc(n)
	}
	h := (*hdr_t)(unsafe.Pointer(uintptr(p) - uintptr(hdrSize)))
	old := h.size - hdrSize
	np := Kmalloc(n)
	cn := old
	if n < cn {
		cn = n
	}
	copy(unsafe.Slice((*byte)(np), cn), unsafe.Slice((*byte)(p), cn))
	Kfree(p)
	return np
}
