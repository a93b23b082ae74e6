// Package paging implements 32-bit two-level (PD/PT) virtual memory with
// recursive page-directory self-mapping. The address space is split at
// 0xC000_0000: everything above is the kernel half, identically mapped in
// every process; everything below is private per process.
//
// Grounded in the teacher's vm/as.go (Pa_t, Pmap_t naming, Lock_pmap/
// Unlock_pmap/Lockassert_pmap discipline, Page_insert/Page_remove shape,
// XXXPANIC invariants) and mem/dmap.go (the recursive/direct-map slot
// constants). The teacher targets x86-64 with a runtime-provided 4-level
// direct map and copy-on-write vmregions; this kernel is 32-bit with a
// classic two-level PD/PT and recursive mapping instead of a direct map,
// so the page-walk and address-space-clone logic here is new, written in
// the teacher's idiom rather than ported line for line.
package paging

import (
	"sync"

	"defs"
	"mem"
)

// KERNBASE is the virtual address where the kernel half begins.
const KERNBASE uint32 = 0xC0000000

// PDSLOT_RECURSIVE is the last PDE, made to point at the PD itself so the
// current PD and its PTs are reachable at fixed virtual addresses.
const PDSLOT_RECURSIVE = 1023

// recursive-map window: PD is the 1023rd page table's worth of memory at
// the recursive slot; individual PTs live at VPT + j*4KiB.
const (
	VPD uint32 = 0xFFFFF000
	VPT uint32 = 0xFFC00000
)

func pdidx(va uint32) uint32 { return va >> 22 }
func ptidx(va uint32) uint32 { return (va >> 12) & 0x3ff }

// curPD returns the virtual address of the page directory currently
// mapped via the recursive slot.
func curPD() *mem.Pmap_t {
	return mem.Pg2pmap(mem.Physmem.Dmap(curPDpa))
}

// curPT returns the virtual address of the j-th page table, as mapped
// through the recursive window of the currently active PD.
func curPT(j uint32) *mem.Pmap_t {
	pd := curPD()
	pte := pd[j]
	if pte&mem.PTE_P == 0 {
		return nil
	}
	return mem.Pg2pmap(mem.Physmem.Dmap(pte & mem.PTE_ADDR))
}

// curPDpa is the physical address of the page directory that would be
// loaded into CR3 on real hardware; With_address_space swaps it for the
// duration of a call into a foreign address space.
var curPDpa mem.Pa_t

// canonicalPD is the single source of truth for the kernel half; every
// process PD's entries covering the kernel half are mirrored from it
// (invariant P2: PD[i] == canonicalPD[i] for every kernel-half index,
// checked right after any mutation below returns).
var canonicalPD *mem.Pmap_t
var canonicalPDpa mem.Pa_t

// pdlock serializes all paging mutations process-wide; real hardware
// would mask interrupts for the same critical sections instead.
var pdlock sync.Mutex

// Lock_pmap acquires the paging lock.
func Lock_pmap() { pdlock.Lock() }

// Unlock_pmap releases the paging lock.
func Unlock_pmap() { pdlock.Unlock() }

// Init allocates the canonical kernel page directory and activates it.
// Called once during boot, after the PMM is up.
func Init() {
	pd, pdpa, ok := mem.Physmem.Pmap_new()
	if !ok {
		panic("no mem for initial pd")
	}
	pd[PDSLOT_RECURSIVE] = pdpa | mem.PTE_P | mem.PTE_W
	canonicalPD = pd
	canonicalPDpa = pdpa
	curPDpa = pdpa
}

// With_address_space switches the active page directory to cr3 for the
// duration of fn, then restores the previous one. Pointers obtained while
// a foreign PD is active (via curPD/curPT) must be treated as opaque
// outside that window; the caller is responsible for not leaking them.
func With_address_space(cr3 mem.Pa_t, fn func()) {
	pdlock.Lock()
	defer pdlock.Unlock()
	old := curPDpa
	curPDpa = cr3
	fn()
	curPDpa = old
}

// Pgdir_new allocates a fresh page directory for a new process, with the
// kernel half mirrored from the canonical PD and the recursive slot set
// to point at itself.
func Pgdir_new() (*mem.Pmap_t, mem.Pa_t, defs.Err_t) {
	pd, pdpa, ok := mem.Physmem.Pmap_new()
	if !ok {
		return nil, 0, -defs.ENOMEM
	}
	Copy_kernel_space(pd)
	pd[PDSLOT_RECURSIVE] = pdpa | mem.PTE_P | mem.PTE_W
	return pd, pdpa, 0
}

// Copy_kernel_space mirrors every kernel-half PDE from the canonical PD
// into dst, satisfying invariant P2.
func Copy_kernel_space(dst *mem.Pmap_t) {
	start := pdidx(KERNBASE)
	for i := start; i < PDSLOT_RECURSIVE; i++ {
		dst[i] = canonicalPD[i]
	}
}

// Map_kernel_page installs a kernel-half mapping in the canonical PD (and
// therefore, via Copy_kernel_space, in every PD created afterward),
// bumping pa's refcount the way Map does. PDs created before this call
// see the mutation only once Resync_kernel_space is run on them; nothing
// in this tree calls it.
func Map_kernel_page(va uint32, pa mem.Pa_t, perms mem.Pa_t) defs.Err_t {
	if va < KERNBASE {
		panic("not a kernel address")
	}
	pdlock.Lock()
	defer pdlock.Unlock()
	mem.Physmem.Refup(pa)
	err := mapin(canonicalPD, va, pa, perms|mem.PTE_P)
	if err != 0 {
		mem.Physmem.Refdown(pa)
	}
	return err
}

// Unmap_kernel_page removes a kernel-half mapping from the canonical PD,
// freeing pa back to the PMM. Used by the heap to release whole pages.
func Unmap_kernel_page(va uint32) {
	if va < KERNBASE {
		panic("not a kernel address")
	}
	pdlock.Lock()
	defer pdlock.Unlock()
	pdi := pdidx(va)
	pti := ptidx(va)
	pde := canonicalPD[pdi]
	if pde&mem.PTE_P == 0 {
		return
	}
	pt := mem.Pg2pmap(mem.Physmem.Dmap(pde & mem.PTE_ADDR))
	pte := pt[pti]
	if pte&mem.PTE_P == 0 {
		return
	}
	pt[pti] = 0
	mem.Physmem.Refdown(pte & mem.PTE_ADDR)
}

// Resync_kernel_space re-mirrors the kernel half of pd from the canonical
// PD; callers invoke this after Map_kernel_page to keep invariant P2 true
// for PDs that already existed.
func Resync_kernel_space(pd *mem.Pmap_t) {
	Copy_kernel_space(pd)
}

// mapin installs pa at va within pd, allocating a page table if the
// covering PDE is absent.
func mapin(pd *mem.Pmap_t, va uint32, pa mem.Pa_t, perms mem.Pa_t) defs.Err_t {
	pdi := pdidx(va)
	pti := ptidx(va)
	if pdi == PDSLOT_RECURSIVE {
		panic("cannot map into recursive slot")
	}
	pde := pd[pdi]
	var pt *mem.Pmap_t
	if pde&mem.PTE_P == 0 {
		npt, pa2, ok := mem.Physmem.Pmap_new()
		if !ok {
			return -defs.ENOMEM
		}
		ptperms := mem.PTE_P | mem.PTE_W
		if perms&mem.PTE_U != 0 {
			ptperms |= mem.PTE_U
		}
		pd[pdi] = pa2 | ptperms
		pt = npt
	} else {
		pt = mem.Pg2pmap(mem.Physmem.Dmap(pde & mem.PTE_ADDR))
	}
	if pt[pti]&mem.PTE_P != 0 {
		panic("mapping already present")
	}
	pt[pti] = pa | perms
	return 0
}

// Map installs a user-half mapping of pa at va in the address space whose
// PD is pd, bumping pa's refcount (the caller retains its own reference).
func Map(pd *mem.Pmap_t, va uint32, pa mem.Pa_t, perms mem.Pa_t) defs.Err_t {
	if va >= KERNBASE {
		panic("use Map_kernel_page for kernel addresses")
	}
	pdlock.Lock()
	defer pdlock.Unlock()
	mem.Physmem.Refup(pa)
	err := mapin(pd, va, pa, perms|mem.PTE_P|mem.PTE_U)
	if err != 0 {
		mem.Physmem.Refdown(pa)
	}
	return err
}

// Unmap removes the mapping at va in pd, if present, dropping pa's
// refcount. It returns true if a mapping was removed.
func Unmap(pd *mem.Pmap_t, va uint32) bool {
	pdlock.Lock()
	defer pdlock.Unlock()
	pdi := pdidx(va)
	pti := ptidx(va)
	pde := pd[pdi]
	if pde&mem.PTE_P == 0 {
		return false
	}
	pt := mem.Pg2pmap(mem.Physmem.Dmap(pde & mem.PTE_ADDR))
	pte := pt[pti]
	if pte&mem.PTE_P == 0 {
		return false
	}
	pt[pti] = 0
	mem.Physmem.Refdown(pte & mem.PTE_ADDR)
	return true
}

// Get_paddr returns the physical address and permission bits mapped at
// va in pd, if any.
func Get_paddr(pd *mem.Pmap_t, va uint32) (mem.Pa_t, mem.Pa_t, bool) {
	pdlock.Lock()
	defer pdlock.Unlock()
	pde := pd[pdidx(va)]
	if pde&mem.PTE_P == 0 {
		return 0, 0, false
	}
	pt := mem.Pg2pmap(mem.Physmem.Dmap(pde & mem.PTE_ADDR))
	pte := pt[ptidx(va)]
	if pte&mem.PTE_P == 0 {
		return 0, 0, false
	}
	return pte & mem.PTE_ADDR, pte &^ mem.PTE_ADDR, true
}

// Next_vaddr returns the lowest mapped user-half virtual address strictly
// greater than va in pd, or ok=false if none.
func Next_vaddr(pd *mem.Pmap_t, va uint32) (uint32, bool) {
	return walkDir(pd, va, true)
}

// Prev_vaddr returns the highest mapped user-half virtual address
// strictly less than va in pd, or ok=false if none.
func Prev_vaddr(pd *mem.Pmap_t, va uint32) (uint32, bool) {
	return walkDir(pd, va, false)
}

func walkDir(pd *mem.Pmap_t, va uint32, forward bool) (uint32, bool) {
	pdlock.Lock()
	defer pdlock.Unlock()
	best := va
	found := false
	for pdi := uint32(0); pdi < PDSLOT_RECURSIVE; pdi++ {
		pde := pd[pdi]
		if pde&mem.PTE_P == 0 {
			continue
		}
		pt := mem.Pg2pmap(mem.Physmem.Dmap(pde & mem.PTE_ADDR))
		for pti := uint32(0); pti < 1024; pti++ {
			if pt[pti]&mem.PTE_P == 0 {
				continue
			}
			cand := pdi<<22 | pti<<12
			if forward {
				if cand > va && (!found || cand < best) {
					best, found = cand, true
				}
			} else {
				if cand < va && (!found || cand > best) {
					best, found = cand, true
				}
			}
		}
	}
	return best, found
}

// Clear_user_space unmaps and refdowns every present user-half mapping in
// pd, leaving the kernel half and recursive slot untouched.
func Clear_user_space(pd *mem.Pmap_t) {
	pdlock.Lock()
	defer pdlock.Unlock()
	kernStart := pdidx(KERNBASE)
	for pdi := uint32(0); pdi < kernStart; pdi++ {
		pde := pd[pdi]
		if pde&mem.PTE_P == 0 {
			continue
		}
		pt := mem.Pg2pmap(mem.Physmem.Dmap(pde & mem.PTE_ADDR))
		for pti := range pt {
			pte := pt[pti]
			if pte&mem.PTE_P == 0 {
				continue
			}
			mem.Physmem.Refdown(pte & mem.PTE_ADDR)
			pt[pti] = 0
		}
		mem.Physmem.Dec_pmap(pde & mem.PTE_ADDR)
		pd[pdi] = 0
	}
}

// Clone_process_directory creates a new page directory for a forked
// child: the kernel half is mirrored (Copy_kernel_space), and every
// present user-half page is copied into a fresh page mapped at the same
// address with the same permission bits; the parent's PTEs are left as
// they are. It returns the new PD and its physical address.
func Clone_process_directory(src *mem.Pmap_t) (*mem.Pmap_t, mem.Pa_t, defs.Err_t) {
	dst, dstpa, err := Pgdir_new()
	if err != 0 {
		return nil, 0, err
	}
	pdlock.Lock()
	defer pdlock.Unlock()
	kernStart := pdidx(KERNBASE)
	for pdi := uint32(0); pdi < kernStart; pdi++ {
		pde := src[pdi]
		if pde&mem.PTE_P == 0 {
			continue
		}
		spt := mem.Pg2pmap(mem.Physmem.Dmap(pde & mem.PTE_ADDR))
		for pti := range spt {
			pte := spt[pti]
			if pte&mem.PTE_P == 0 {
				continue
			}
			npg, npa, ok := mem.Physmem.Refpg_new_nozero()
			if !ok {
				return nil, 0, -defs.ENOMEM
			}
			*npg = *mem.Physmem.Dmap(pte & mem.PTE_ADDR)
			va := pdi<<22 | uint32(pti)<<12
			mem.Physmem.Refup(npa)
			if e := mapin(dst, va, npa, pte&^mem.PTE_ADDR); e != 0 {
				return nil, 0, e
			}
		}
	}
	return dst, dstpa, 0
}

// Fault_cow handles a write fault on a copy-on-write page: if the page is
// privately held (refcount 1) the mapping is simply upgraded to
// writable; otherwise a fresh page is allocated, the contents copied, and
// the new page mapped writable in place of the shared one.
func Fault_cow(pd *mem.Pmap_t, va uint32) defs.Err_t {
	pdlock.Lock()
	defer pdlock.Unlock()
	pdi := pdidx(va)
	pti := ptidx(va)
	pde := pd[pdi]
	if pde&mem.PTE_P == 0 {
		return -defs.EFAULT
	}
	pt := mem.Pg2pmap(mem.Physmem.Dmap(pde & mem.PTE_ADDR))
	pte := pt[pti]
	if pte&mem.PTE_COW == 0 {
		return -defs.EFAULT
	}
	pa := pte & mem.PTE_ADDR
	if mem.Physmem.Refcnt(pa) == 1 {
		pt[pti] = (pte &^ mem.PTE_COW) | mem.PTE_W
		return 0
	}
	npg, npa, ok := mem.Physmem.Refpg_new_nozero()
	if !ok {
		return -defs.ENOMEM
	}
	*npg = *mem.Physmem.Dmap(pa)
	mem.Physmem.Refdown(pa)
	pt[pti] = npa | (pte &^ mem.PTE_COW &^ mem.PTE_ADDR) | mem.PTE_W
	return 0
}
