package proc

import (
	"archglue"
	"defs"
	"fd"
	"limits"
	"mem"
	"paging"
	"ustr"
)

const kstackPages = 4

// allocKstack maps a fresh private kernel stack in the kernel half,
// shared by every PD (kernel-half mappings are identical everywhere per
// P2), and returns its top/bottom virtual addresses.
func allocKstack() (top, bottom uint32, err defs.Err_t) {
	base, ok := nextKstackSlot()
	if !ok {
		return 0, 0, -defs.ENOMEM
	}
	for i := 0; i < kstackPages; i++ {
		_, pa, ok := mem.Physmem.Refpg_new()
		if !ok {
			for j := 0; j < i; j++ {
				paging.Unmap_kernel_page(base + uint32(j*mem.PGSIZE))
			}
			return 0, 0, -defs.ENOMEM
		}
		if e := paging.Map_kernel_page(base+uint32(i*mem.PGSIZE), pa, mem.PTE_W); e != 0 {
			return 0, 0, e
		}
	}
	return base + uint32(kstackPages*mem.PGSIZE), base, 0
}

// kstackNext is a simple bump allocator over a dedicated kernel-stack
// region; kernel stacks are never reused across processes in this
// design, matching the teacher's "never reclaimed on the killing
// thread's stack" lifetime note for the PCB itself.
var kstackNext uint32 = kstackRegionBase

const kstackRegionBase = 0xD0000000

func nextKstackSlot() (uint32, bool) {
	base := kstackNext
	kstackNext += uint32((kstackPages + 1) * mem.PGSIZE) // +1 page unmapped guard (open question: add a guard mapping)
	return base, true
}

// Fork copies parent's PCB, clones its address space (user-half pages
// copied, §4.2), allocates a fresh kernel stack, clones FD
// slots bumping refcounts, and enqueues the child (§4.7 "Fork / thread").
func Fork(parent *Pcb_t) (*Pcb_t, defs.Err_t) {
	if !limits.Syslimit.Sysprocs.Take() {
		return nil, -defs.ENOMEM
	}
	child := mkPcb(parent.Priority)
	child.Gid = child.Pid // a forked child starts a new thread group

	pd, pdpa, err := paging.Clone_process_directory(parent.Pd)
	if err != 0 {
		limits.Syslimit.Sysprocs.Give()
		return nil, err
	}
	child.Pd = pd
	child.Cr3 = pdpa
	child.Mmap = parent.Mmap

	kstop, kstart, err := allocKstack()
	if err != 0 {
		limits.Syslimit.Sysprocs.Give()
		return nil, err
	}
	child.Mmap.KstackTop, child.Mmap.KstackBottom = kstop, kstart

	uregs := *parent.LiveRegs()
	uregs.Eax = 0 // child sees fork() return 0
	child.Uregs = &uregs
	kregs := archglue.Trapframe_t{}
	child.Kregs = &kregs

	wdPath := make(ustr.Ustr, len(parent.Wd.Path))
	copy(wdPath, parent.Wd.Path)
	child.Wd = &fd.Cwd_t{Fd: parent.Wd.Fd, Path: wdPath}
	for i, slot := range parent.Fds {
		if slot == nil {
			continue
		}
		slot.Lock()
		slot.Refcnt++
		slot.Unlock()
		child.Fds[i] = slot
	}

	parent.TreeNode.AddChild(&child.TreeNode)
	Register(child)
	Enqueue(child)
	return child, 0
}
