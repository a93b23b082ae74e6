package proc

import (
	"sync"

	"limits"
	"paging"
)

// destroyQueue holds victims that have been killed but not yet reaped; the
// destroyer task drains it (§4.7 "Exit / wait / destroyer").
var destroyQueue []*Pcb_t
var destroyLock sync.Mutex
var destroyCond = make(chan struct{}, 1)

func wakeDestroyer() {
	select {
	case destroyCond <- struct{}{}:
	default:
	}
}

// Exit records status in the PCB, marks it exited, and then calls
// Process_kill itself to start the teardown.
func Exit(p *Pcb_t, status int) {
	p.mu.Lock()
	p.Exited = true
	p.ExitStatus = status
	p.mu.Unlock()
	Process_kill(p)
}

// Process_kill reparents all children (threads included) to init, drops all FD
// refs (closing at refcount 0), unschedules the victim and enqueues it on
// the destroy queue, waking the destroyer (§4.7).
func Process_kill(p *Pcb_t) {
	if p.TreeNode.NumChildren() > 0 && initProc != nil && p != initProc {
		p.TreeNode.Reparent(&initProc.TreeNode)
	}
	for i := range p.Fds {
		if p.Fds[i] != nil {
			p.Closefd(i)
		}
	}
	Dequeue(p)
	destroyLock.Lock()
	destroyQueue = append(destroyQueue, p)
	destroyLock.Unlock()
	wakeDestroyer()
	notifyParent(p)
}

// notifyParent wakes anyone blocked in Wait_any on p's parent.
func notifyParent(p *Pcb_t) {
	parent := p.TreeNode.Parent()
	if parent == nil {
		return
	}
	pp := parent.Val
	pp.mu.Lock()
	waiters := pp.waiters
	pp.waiters = nil
	pp.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

// Signal_kill delivers SIGKILL, which (§4.7 "Signals") is never
// deliverable to userland and instead kills the process directly.
func Signal_kill(p *Pcb_t) {
	Exit(p, -int(SIGKILL))
}

// destroyerDone signals waiters blocked in Wait once a pid has been
// fully reaped.
var destroyerDone = map[int]chan struct{}{}
var destroyerDoneLock sync.Mutex

func doneChan(pid int) chan struct{} {
	destroyerDoneLock.Lock()
	defer destroyerDoneLock.Unlock()
	if ch, ok := destroyerDone[pid]; ok {
		return ch
	}
	ch := make(chan struct{})
	destroyerDone[pid] = ch
	return ch
}

// Destroyer is the dedicated reaper kernel thread (§4.7): it drains the
// destroy queue, frees the user address space (only for non-thread
// PCBs — a thread shares its group's Pd), returns the process-count
// slot, and unregisters the PID, then wakes anyone blocked in Wait(pid).
// Kernel stack pages are not freed.
func Destroyer() {
	for {
		<-destroyCond
		destroyLock.Lock()
		batch := destroyQueue
		destroyQueue = nil
		destroyLock.Unlock()
		for _, p := range batch {
			reap(p)
		}
	}
}

func reap(p *Pcb_t) {
	if !p.IsThread && p.Pd != nil {
		paging.Clear_user_space(p.Pd)
	}
	// Kernel stack pages are deliberately leaked by this model the same
	// way the kernel stack region is a bump allocator (fork.go) rather
	// than a freelist; a from-scratch reaper would also return them to
	// the PMM via paging.Unmap_kernel_page per page.
	limits.Syslimit.Sysprocs.Give()
	Unregister(p.Pid)
	close(doneChan(p.Pid))
}

// Exit_status_of returns p's recorded exit status, valid once p.Exited.
func Exit_status_of(p *Pcb_t) int { return p.ExitStatus }
