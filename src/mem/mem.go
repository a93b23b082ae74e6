// Package mem is the physical memory manager: a flat, refcounted page
// allocator over a single arena of simulated physical memory. Adapted from
// the teacher's mem/mem.go, which backs Pa_t by the patched runtime's
// direct-mapped 64-bit address space (runtime.Get_phys/CPUHint, a per-CPU
// free-list array sized by runtime.MAXCPUS). This kernel targets 32-bit
// single-CPU (SMP is a non-goal), so Physmem_t owns one arena allocated at
// Phys_init time and one free list instead of runtime.MAXCPUS of them; the
// refcounting, free-list linking and XXXPANIC invariants are otherwise
// unchanged from the teacher. Alloc/Free (and the Alloc_run/Free_run
// methods backing them) are new: the teacher's Refpg_new only ever hands
// out a single page at a time, but §4.1's PMM contract wants a
// contiguous multi-page run, so Alloc_run does a linear scan of Pgs for
// n free frames in a row and splices each out of the singly-linked free
// list individually.
package mem

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"util"
)

// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

// PGOFFSET masks offsets within a page.
const PGOFFSET Pa_t = 0xfff

// PGMASK masks the page number of an address.
const PGMASK Pa_t = ^(PGOFFSET)

// Page table entry bits, 32-bit IA-32 format.
const (
	PTE_P   Pa_t = 1 << 0
	PTE_W   Pa_t = 1 << 1
	PTE_U   Pa_t = 1 << 2
	PTE_PWT Pa_t = 1 << 3
	PTE_PCD Pa_t = 1 << 4
	PTE_A   Pa_t = 1 << 5
	PTE_D   Pa_t = 1 << 6
	PTE_PS  Pa_t = 1 << 7
	PTE_G   Pa_t = 1 << 8
	// PTE_COW marks a copy-on-write page in an otherwise-unused PTE bit
	// (bit 9, one of the three OS-available bits on IA-32).
	PTE_COW Pa_t = 1 << 9
)

// PTE_ADDR extracts the physical frame address from a PTE.
const PTE_ADDR Pa_t = PGMASK

// Pa_t is a 32-bit physical address.
type Pa_t uint32

// Bytepg_t is a byte-addressed page.
type Bytepg_t [PGSIZE]uint8

// Pg_t is a generic page of 32-bit words (1024 entries, 4KB).
type Pg_t [1024]uint32

// Pmap_t is a page directory or page table: 1024 32-bit PTEs.
type Pmap_t [1024]Pa_t

// Page_i abstracts physical page allocation for packages (vfs, proc) that
// don't need the full Physmem_t surface.
type Page_i interface {
	Refpg_new() (*Pg_t, Pa_t, bool)
	Refpg_new_nozero() (*Pg_t, Pa_t, bool)
	Refcnt(Pa_t) int
	Dmap(Pa_t) *Pg_t
	Refup(Pa_t)
	Refdown(Pa_t) bool
}

func Pg2bytes(pg *Pg_t) *Bytepg_t { return (*Bytepg_t)(unsafe.Pointer(pg)) }
func Bytepg2pg(pg *Bytepg_t) *Pg_t { return (*Pg_t)(unsafe.Pointer(pg)) }
func Pg2pmap(pg *Pg_t) *Pmap_t     { return (*Pmap_t)(unsafe.Pointer(pg)) }

func pg2pgn(p_pg Pa_t) uint32 { return uint32(p_pg) >> PGSHIFT }

// Physpg_t tracks one physical frame's refcount and free-list link.
type Physpg_t struct {
	Refcnt int32
	nexti  uint32
}

// Physmem_t is the whole-machine physical frame allocator.
type Physmem_t struct {
	arena   []byte
	Pgs     []Physpg_t
	startn  uint32
	freei   uint32
	freelen int32
	pmaps   uint32
	pmaplen int32
	sync.Mutex
	Arenainit bool
}

// Refaddr returns the refcount slot and index for p_pg.
func (phys *Physmem_t) Refaddr(p_pg Pa_t) (*int32, uint32) {
	idx := pg2pgn(p_pg) - phys.startn
	return &phys.Pgs[idx].Refcnt, idx
}

// Refcnt returns the current reference count of a page.
func (phys *Physmem_t) Refcnt(p_pg Pa_t) int {
	ref, _ := phys.Refaddr(p_pg)
	return int(atomic.LoadInt32(ref))
}

// Refup increments the reference count of a page.
func (phys *Physmem_t) Refup(p_pg Pa_t) {
	ref, _ := phys.Refaddr(p_pg)
	c := atomic.AddInt32(ref, 1)
	if c <= 0 {
		panic("wut")
	}
}

func (phys *Physmem_t) _refdec(p_pg Pa_t) (bool, uint32) {
	ref, idx := phys.Refaddr(p_pg)
	c := atomic.AddInt32(ref, -1)
	if c < 0 {
		panic("wut")
	}
	return c == 0, idx
}

// Refdown decrements the reference count of a page, returning true if it
// was freed (refcount hit zero).
func (phys *Physmem_t) Refdown(p_pg Pa_t) bool {
	return phys._phys_put(p_pg, false)
}

// Zeropg is the global zero-filled page template used for zeroed allocations.
var Zeropg *Pg_t

func (phys *Physmem_t) _phys_new(fl *uint32, cnt *int32) (*Pg_t, Pa_t, bool) {
	if !phys.Arenainit {
		panic("arena not initted")
	}
	phys.Lock()
	defer phys.Unlock()
	ff := *fl
	if ff == ^uint32(0) {
		return nil, 0, false
	}
	p_pg := Pa_t(ff+phys.startn) << PGSHIFT
	*fl = phys.Pgs[ff].nexti
	if phys.Pgs[ff].Refcnt < 0 {
		panic("negative ref count")
	}
	*cnt--
	if *cnt < 0 {
		panic("no")
	}
	return phys.Dmap(p_pg), p_pg, true
}

func (phys *Physmem_t) _phys_insert(fl *uint32, idx uint32, cnt *int32) {
	phys.Lock()
	phys.Pgs[idx].nexti = *fl
	*fl = idx
	*cnt++
	phys.Unlock()
}

func (phys *Physmem_t) _phys_put(p_pg Pa_t, ispmap bool) bool {
	add, idx := phys._refdec(p_pg)
	if !add {
		return false
	}
	fl, cnt := &phys.freei, &phys.freelen
	if ispmap {
		fl, cnt = &phys.pmaps, &phys.pmaplen
	}
	phys._phys_insert(fl, idx, cnt)
	return true
}

// Refpg_new allocates a zeroed page. The returned page's refcount starts
// at zero; the caller is expected to Refup it once mapped.
func (phys *Physmem_t) Refpg_new() (*Pg_t, Pa_t, bool) {
	pg, p_pg, ok := phys._phys_new(&phys.freei, &phys.freelen)
	if !ok {
		return nil, 0, false
	}
	*pg = *Zeropg
	return pg, p_pg, true
}

// Refpg_new_nozero allocates an uninitialized page.
func (phys *Physmem_t) Refpg_new_nozero() (*Pg_t, Pa_t, bool) {
	return phys._phys_new(&phys.freei, &phys.freelen)
}

// Pmap_new allocates a new page directory/table, preferring the pmap free
// list before falling back to the general page free list.
func (phys *Physmem_t) Pmap_new() (*Pmap_t, Pa_t, bool) {
	a, b, ok := phys._phys_new(&phys.pmaps, &phys.pmaplen)
	if !ok {
		a, b, ok = phys.Refpg_new()
	}
	return Pg2pmap(a), b, ok
}

// Dec_pmap decrements a pmap's refcount, freeing it back to the pmap free
// list if it reaches zero.
func (phys *Physmem_t) Dec_pmap(p_pmap Pa_t) {
	phys._phys_put(p_pmap, true)
}

// Dmap returns the host-memory view of physical address p. Since this
// kernel's "physical memory" is a single host-allocated arena (there is no
// real direct-map window the way the teacher's patched runtime provides
// one over actual machine RAM), Dmap is just an offset into that arena.
func (phys *Physmem_t) Dmap(p Pa_t) *Pg_t {
	off := util.Rounddown(int(p), PGSIZE)
	if off < 0 || off+PGSIZE > len(phys.arena) {
		panic("physical address out of arena")
	}
	return (*Pg_t)(unsafe.Pointer(&phys.arena[off]))
}

// Dmap8 returns a byte slice view of the page containing p, starting at
// p's offset within that page.
func (phys *Physmem_t) Dmap8(p Pa_t) []uint8 {
	pg := phys.Dmap(p)
	off := p & PGOFFSET
	bpg := Pg2bytes(pg)
	return bpg[off:]
}

// Alloc_run finds n contiguous free general-purpose pages and removes all
// n from the free list, returning the physical address of the first one.
// It reports false if no run that long exists. This backs §4.1's
// alloc(n_pages) -> phys_base | 0 contract, which Refpg_new alone can't
// satisfy since it only ever hands out one page at a time.
func (phys *Physmem_t) Alloc_run(n int) (Pa_t, bool) {
	if n <= 0 {
		panic("bad run length")
	}
	phys.Lock()
	defer phys.Unlock()
	// A page handed out by Refpg_new or Pmap_new can still have Refcnt 0,
	// so free-list membership, not the refcount, decides what is free.
	onFree := make([]bool, len(phys.Pgs))
	for cur := phys.freei; cur != ^uint32(0); cur = phys.Pgs[cur].nexti {
		onFree[cur] = true
	}
	start := -1
	run := 0
	for i := range phys.Pgs {
		if onFree[i] {
			run++
			if run == n {
				start = i - n + 1
				break
			}
		} else {
			run = 0
		}
	}
	if start < 0 {
		return 0, false
	}
	for i := start; i < start+n; i++ {
		phys.unlinkFree(uint32(i))
		phys.Pgs[i].Refcnt = 1
	}
	return Pa_t(uint32(start)+phys.startn) << PGSHIFT, true
}

// unlinkFree removes idx from the general free list. Caller holds phys's
// lock; the free list is singly-linked so removing an interior node means
// walking from the head.
func (phys *Physmem_t) unlinkFree(idx uint32) {
	if phys.freei == idx {
		phys.freei = phys.Pgs[idx].nexti
		phys.freelen--
		return
	}
	for cur := phys.freei; cur != ^uint32(0); cur = phys.Pgs[cur].nexti {
		if phys.Pgs[cur].nexti == idx {
			phys.Pgs[cur].nexti = phys.Pgs[idx].nexti
			phys.freelen--
			return
		}
	}
	panic("page not on free list")
}

// Free_run returns n pages starting at phys_base to the general free
// list, the inverse of Alloc_run (§4.1's free(phys_base, n_pages)). The
// caller must hold the only references into the run.
func (phys *Physmem_t) Free_run(phys_base Pa_t, n int) {
	start := pg2pgn(phys_base) - phys.startn
	phys.Lock()
	defer phys.Unlock()
	for i := uint32(0); i < uint32(n); i++ {
		idx := start + i
		phys.Pgs[idx].Refcnt = 0
		phys.Pgs[idx].nexti = phys.freei
		phys.freei = idx
		phys.freelen++
	}
}

// Alloc reserves n_pages contiguous physical pages and returns their base
// address, or 0 if the arena has no run that long free (§4.1).
func Alloc(n_pages int) Pa_t {
	p, ok := Physmem.Alloc_run(n_pages)
	if !ok {
		return 0
	}
	return p
}

// Free returns n_pages contiguous physical pages previously handed out by
// Alloc back to the allocator (§4.1).
func Free(phys_base Pa_t, n_pages int) {
	Physmem.Free_run(phys_base, n_pages)
}

// Pgcount reports the number of free general and pmap pages.
func (phys *Physmem_t) Pgcount() (int, int) {
	phys.Lock()
	defer phys.Unlock()
	return int(phys.freelen), int(phys.pmaplen)
}

// Physmem is the global physical memory allocator instance.
var Physmem = &Physmem_t{}

// Phys_init reserves npages of simulated physical memory and returns the
// initialized allocator. The arena is a plain Go byte slice acting as the
// kernel's RAM; real hardware discovery (e820 et al.) is out of scope for
// a hosted 32-bit build.
func Phys_init(npages int) *Physmem_t {
	phys := Physmem
	phys.arena = make([]byte, npages*PGSIZE)
	phys.Pgs = make([]Physpg_t, npages)
	phys.startn = 0
	phys.freei = 0
	phys.freelen = int32(npages)
	phys.pmaps = ^uint32(0)
	for i := 0; i < npages; i++ {
		phys.Pgs[i].Refcnt = 0
		if i == npages-1 {
			phys.Pgs[i].nexti = ^uint32(0)
		} else {
			phys.Pgs[i].nexti = uint32(i + 1)
		}
	}
	phys.Arenainit = true
	Zeropg = new(Pg_t)
	fmt.Printf("mem: reserved %v pages (%vKB)\n", npages, npages*PGSIZE/1024)
	return phys
}
