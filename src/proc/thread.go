package proc

import (
	"archglue"
	"defs"
	"limits"
	"mem"
	"paging"
)

// threadStartByGid holds, per thread group, the process-wide user-mode trampoline address set by
// the thread_register syscall (§4.12): the entry every new thread's
// Uregs.Eip points at, which receives the real entry point in a register
// and calls it, then exits.
var threadStartByGid = map[int]uint32{}

// Thread_register records eip as entry()'s thread-start trampoline for
// every thread subsequently created in gid's group.
func Thread_register(gid int, eip uint32) {
	threadStartByGid[gid] = eip
}

const userStackPages = 4

// allocUserStack reserves and maps a fresh private user stack within pd,
// returning its top/bottom.
func allocUserStack(pd *mem.Pmap_t, top uint32) (uint32, uint32, defs.Err_t) {
	base := top - uint32(userStackPages*mem.PGSIZE)
	for i := 0; i < userStackPages; i++ {
		_, pa, ok := mem.Physmem.Refpg_new()
		if !ok {
			return 0, 0, -defs.ENOMEM
		}
		va := base + uint32(i*mem.PGSIZE)
		if err := paging.Map(pd, va, pa, mem.PTE_W); err != 0 {
			return 0, 0, err
		}
	}
	return top, base, 0
}

// Thread creates a PCB sharing parent's cr3 and gid (thread-group), with
// a fresh user stack and kernel stack; arg is passed to entry via the
// group's registered thread_start trampoline (§4.7 "Fork / thread").
func Thread(parent *Pcb_t, entry uint32, arg uint32) (*Pcb_t, defs.Err_t) {
	trampoline, ok := threadStartByGid[parent.Gid]
	if !ok {
		return nil, -defs.EINVAL
	}
	if !limits.Syslimit.Sysprocs.Take() {
		return nil, -defs.ENOMEM
	}
	t := mkPcb(parent.Priority)
	t.IsThread = true
	t.Gid = parent.Gid
	t.Pd = parent.Pd
	t.Cr3 = parent.Cr3
	t.Mmap = parent.Mmap
	t.Wd = parent.Wd

	ustop, ubot, err := allocUserStack(parent.Pd, parent.Mmap.StackBottom)
	if err != 0 {
		limits.Syslimit.Sysprocs.Give()
		return nil, err
	}
	t.Mmap.StackTop, t.Mmap.StackBottom = ustop, ubot

	kstop, kstart, err := allocKstack()
	if err != 0 {
		limits.Syslimit.Sysprocs.Give()
		return nil, err
	}
	t.Mmap.KstackTop, t.Mmap.KstackBottom = kstop, kstart

	uregs := archglue.Trapframe_t{
		Eip: trampoline,
		Cs:  archglue.SEL_UCODE,
		Ss:  archglue.SEL_UDATA,
		Esp: ustop,
		Eax: entry, // the trampoline reads its real entry point from eax
		Edi: arg,
	}
	t.Uregs = &uregs
	t.Kregs = &archglue.Trapframe_t{}

	for i, slot := range parent.Fds {
		if slot == nil {
			continue
		}
		slot.Lock()
		slot.Refcnt++
		slot.Unlock()
		t.Fds[i] = slot
	}

	parent.TreeNode.AddChild(&t.TreeNode)
	Register(t)
	Enqueue(t)
	return t, 0
}
