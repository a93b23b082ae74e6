// Package proc is the process/thread model and scheduler: PCBs, the
// three-priority round-robin run lists, the sleep queue, fork/exec/exit/
// wait, signals and the destroyer reaper task (§4.7). There is no teacher
// proc.go in this retrieval pack (biscuit's actual proc/ package wasn't
// captured), so the PCB shape and scheduler loop below are new, grounded
// on the sibling packages that did come through: accnt.Accnt_t is folded
// in unmodified, fd.Fd_t/fd.Cwd_t back the descriptor table and working
// directory exactly as the teacher's fd package shapes them, and
// tree.Node_t/list.Node_t (both written for this repo but modeled on the
// teacher's fs_node "tree_node" and Bdev_block_t-via-container/list
// idioms) give the process tree and run queues their intrusive linkage.
package proc

import (
	"sync"

	"accnt"
	"archglue"
	"defs"
	"fd"
	"fdops"
	"list"
	"mem"
	"paging"
	"tree"
)

// NOFILE is the number of descriptor slots per process (§3 "fds[16]").
const NOFILE = 16

// Fdslot_t is one entry of a PCB's descriptor table: a reference to an
// open Fd_t plus the 64-bit offset and refcount the spec's data model
// calls for. Multiple PCBs (after fork or dup) can point at the same
// Fdslot_t; Refcnt counts how many, satisfying invariant P4.
type Fdslot_t struct {
	sync.Mutex
	Fd     *fd.Fd_t
	Off    int64
	Refcnt int
}

// Mem_t is a PCB's memory-map record (§3).
type Mem_t struct {
	TextStart, TextEnd   uint32
	DataStart, DataEnd   uint32
	HeapStart, HeapBreak uint32
	StackTop, StackBottom     uint32
	KstackTop, KstackBottom   uint32
}

// Sig_t is a signal number. SIGKILL/SIGSTOP never reach userland (§4.7).
type Sig_t int

const (
	SIGKILL Sig_t = 9
	SIGSTOP Sig_t = 19
	SIGSEGV Sig_t = 11
	SIGILL  Sig_t = 4
	SIGPIPE Sig_t = 13
)

// Pcb_t is the process control block (§3). A thread (IsThread true)
// shares Cr3/Pd/Gid/the memory map with its thread-group leader and every
// sibling thread, and owns only its private kernel/user stacks and its
// own register snapshots.
type Pcb_t struct {
	Pid      int
	Gid      int
	IsThread bool
	Priority int
	InKernel bool

	Uregs *archglue.Trapframe_t
	Kregs *archglue.Trapframe_t
	Fpregs archglue.Fxarea_t

	Cr3 mem.Pa_t
	Pd  *mem.Pmap_t

	Mmap Mem_t

	Wd  *fd.Cwd_t
	Fds [NOFILE]*Fdslot_t

	NextSignal    Sig_t
	CurrentSignal Sig_t
	SignalEip     uint32
	SavedSignalRegs *archglue.Trapframe_t

	Exited     bool
	ExitStatus int

	// HasUI/UIEventQueue are per-process UI fields (§3, §4.13), typed
	// generically so proc doesn't import the pipe package. Nothing assigns
	// UIEventQueue: the ui package keeps each responder's event pipe
	// itself, and ui_wait reads it there.
	HasUI        bool
	UIEventQueue fdops.Fdops_i

	Accnt accnt.Accnt_t

	TreeNode tree.Node_t[*Pcb_t]
	listNode list.Node_t[*Pcb_t]

	waiters  []chan struct{}
	mu       sync.Mutex
}

// fdLock serializes fd-table mutations (fd-table lock, §5).
func (p *Pcb_t) fdLock() *sync.Mutex { return &p.mu }

// Closefd drops one reference from slot i, closing the underlying Fd_t
// once the slot's refcount reaches zero.
func (p *Pcb_t) Closefd(i int) defs.Err_t {
	p.mu.Lock()
	slot := p.Fds[i]
	p.Fds[i] = nil
	p.mu.Unlock()
	if slot == nil {
		return -defs.EBADF
	}
	slot.Lock()
	slot.Refcnt--
	rc := slot.Refcnt
	slot.Unlock()
	if rc == 0 {
		fd.Close_panic(slot.Fd)
	}
	return 0
}

// Getfdslot returns the slot at descriptor i, or nil if unoccupied.
func (p *Pcb_t) Getfdslot(i int) *Fdslot_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= NOFILE {
		return nil
	}
	return p.Fds[i]
}

// Newfd installs a fresh Fdslot_t (refcount 1) wrapping f at the lowest
// free descriptor, returning -EMFILE if the table is full.
func (p *Pcb_t) Newfd(f *fd.Fd_t) (int, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < NOFILE; i++ {
		if p.Fds[i] == nil {
			p.Fds[i] = &Fdslot_t{Fd: f, Refcnt: 1}
			return i, 0
		}
	}
	return -1, -defs.EMFILE
}

// Setfd installs slot at descriptor i, bumping its refcount. Used by
// dup/movefd.
func (p *Pcb_t) Setfd(i int, slot *Fdslot_t) {
	slot.Lock()
	slot.Refcnt++
	slot.Unlock()
	p.mu.Lock()
	p.Fds[i] = slot
	p.mu.Unlock()
}

// LiveRegs returns whichever of Uregs/Kregs is the currently-active
// snapshot, per the InKernel flag (§3).
func (p *Pcb_t) LiveRegs() *archglue.Trapframe_t {
	if p.InKernel {
		return p.Kregs
	}
	return p.Uregs
}

// pidLock guards pidtable and nextPid.
var pidLock sync.Mutex
var nextPid = 1
var pidtable = map[int]*Pcb_t{}

func allocPid() int {
	pidLock.Lock()
	defer pidLock.Unlock()
	pid := nextPid
	nextPid++
	return pid
}

// Register records p under its pid so Lookup/Wait can find it.
func Register(p *Pcb_t) {
	pidLock.Lock()
	pidtable[p.Pid] = p
	pidLock.Unlock()
}

// Unregister removes p from the pid table, called by the destroyer once
// p is fully torn down.
func Unregister(pid int) {
	pidLock.Lock()
	delete(pidtable, pid)
	pidLock.Unlock()
}

// Lookup returns the live PCB for pid, if any.
func Lookup(pid int) (*Pcb_t, bool) {
	pidLock.Lock()
	defer pidLock.Unlock()
	p, ok := pidtable[pid]
	return p, ok
}

// initProc is pid 1, the reparenting target for orphaned children (§4.7).
var initProc *Pcb_t

// processTree anchors the process tree above init so Reparent always
// has a destination; it holds no live PCB.
var processTree tree.Node_t[*Pcb_t]

func mkPcb(priority int) *Pcb_t {
	p := &Pcb_t{Pid: allocPid(), Priority: priority}
	p.Gid = p.Pid
	p.TreeNode.Val = p
	p.listNode.Val = p
	return p
}

// Pgdir_new is exposed for exec/fork to reach paging without every caller
// importing it directly; kept thin on purpose.
func Pgdir_new() (*mem.Pmap_t, mem.Pa_t, defs.Err_t) { return paging.Pgdir_new() }
