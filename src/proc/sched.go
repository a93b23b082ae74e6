package proc

import (
	"sync"

	"archglue"
	"defs"
	"list"
	"stats"
)

// runq holds the three priority run lists (§3, §4.7); a PCB sits in at
// most one of them, or in none while blocked/sleeping/exiting (P5).
var runq [defs.NPrio]list.List_t[*Pcb_t]
var runqLock sync.Mutex

// current is the PCB the scheduler most recently dispatched.
var current *Pcb_t

// sleeper_t is one entry of the wake-time-ordered sleep queue.
type sleeper_t struct {
	wake int64
	pcb  *Pcb_t
}

// sleepList is kept sorted ascending by wake time via linear insertion,
// per §4.7's "linear insert for simplicity"; its head is always the next
// sleeper due, satisfying P6.
var sleepList []sleeper_t
var sleepLock sync.Mutex
var nowNanos int64 // advanced by the scheduler tick; a host clock drives the real boot loop

// Enqueue places p at the tail of its priority's run list.
func Enqueue(p *Pcb_t) {
	runqLock.Lock()
	defer runqLock.Unlock()
	runq[p.Priority].PushBack(&p.listNode)
}

// Dequeue removes p from its run list, if linked; used when a PCB is
// about to block or exit.
func Dequeue(p *Pcb_t) {
	runqLock.Lock()
	defer runqLock.Unlock()
	if p.listNode.Linked() {
		runq[p.Priority].Remove(&p.listNode)
	}
}

// Process_sleep inserts p into the sleep list ordered by wake time,
// satisfying P6. The caller must already have dequeued p from its run
// list (p is neither runnable nor sleeping at once).
func Process_sleep(p *Pcb_t, wake int64) {
	sleepLock.Lock()
	defer sleepLock.Unlock()
	i := 0
	for i < len(sleepList) && sleepList[i].wake <= wake {
		i++
	}
	sleepList = append(sleepList, sleeper_t{})
	copy(sleepList[i+1:], sleepList[i:])
	sleepList[i] = sleeper_t{wake: wake, pcb: p}
}

// Wake_due moves every sleeper whose wake time is <= now back onto its
// run list (§4.7: "wakes every sleeper whose wake time is within one
// tick of now").
func Wake_due(now int64) {
	sleepLock.Lock()
	i := 0
	for i < len(sleepList) && sleepList[i].wake <= now {
		i++
	}
	due := sleepList[:i]
	sleepList = sleepList[i:]
	sleepLock.Unlock()
	for _, s := range due {
		Enqueue(s.pcb)
		wakeSleeper(s.pcb.Pid)
	}
}

// NextWake reports the earliest pending wake time, for tests/P6 checks.
func NextWake() (int64, bool) {
	sleepLock.Lock()
	defer sleepLock.Unlock()
	if len(sleepList) == 0 {
		return 0, false
	}
	return sleepList[0].wake, true
}

// sleepWake holds one wake channel per currently msleep-blocked pid,
// mirroring exit.go's doneChan map; Wake_due closes a pid's channel
// (wakeSleeper) the same tick it re-enqueues the PCB.
var sleepWake = map[int]chan struct{}{}
var sleepWakeLock sync.Mutex

func sleepChanFor(pid int) chan struct{} {
	sleepWakeLock.Lock()
	defer sleepWakeLock.Unlock()
	if ch, ok := sleepWake[pid]; ok {
		return ch
	}
	ch := make(chan struct{})
	sleepWake[pid] = ch
	return ch
}

func wakeSleeper(pid int) {
	sleepWakeLock.Lock()
	ch, ok := sleepWake[pid]
	delete(sleepWake, pid)
	sleepWakeLock.Unlock()
	if ok {
		close(ch)
	}
}

// Msleep implements the msleep syscall's blocking half: it dequeues p,
// registers it to wake after durNanos, and blocks the calling goroutine
// until a subsequent Wake_due (driven by the PIT tick in the real boot
// loop) reports it due.
func Msleep(p *Pcb_t, durNanos int64) {
	Dequeue(p)
	ch := sleepChanFor(p.Pid)
	Process_sleep(p, Now()+durNanos)
	<-ch
}

// Resched picks the head of the highest-priority non-empty run list,
// rotating it to the tail of that same list (strict round robin, §4.7).
// It returns nil if every list is empty (idle).
func Resched() *Pcb_t {
	runqLock.Lock()
	defer runqLock.Unlock()
	for pr := 0; pr < defs.NPrio; pr++ {
		if n := runq[pr].Front(); n != nil {
			runq[pr].Rotate(n)
			return n.Val
		}
	}
	return nil
}

const tickNanos = 20 * 1000 * 1000 // ~50Hz

// Tick is installed as archglue.TickHandler: it accounts elapsed time,
// drains due sleepers and switches to whatever Resched picks. Kernel-mode
// PCBs (InKernel true) are never rotated out from here, matching "the
// scheduler never rotates a PCB that is currently in the kernel" (§5).
func Tick() {
	nowNanos += int64(tickNanos)
	Wake_due(nowNanos)
	stats.Irqs.Inc()
	if current != nil && current.InKernel {
		return
	}
	next := Resched()
	if next == nil || next == current {
		if current != nil {
			Deliver_pending(current)
		}
		return
	}
	Switch(current, next)
	Deliver_pending(next)
}

// Now returns the scheduler's notion of elapsed time in nanoseconds.
func Now() int64 { return nowNanos }

// Switch performs the bookkeeping half of a context switch: FPU save/
// restore (§4.7 "FPU"), TSS kernel-stack retarget and CR3 reload. The
// actual ring transition (archglue.Enter_usermode) is the boot loop's
// job once this returns the PCB whose registers should be loaded.
func Switch(old, next *Pcb_t) *Pcb_t {
	if old != nil {
		archglue.Fxsave(old.Fpregs.Bytes())
	}
	archglue.Fxrstor(next.Fpregs.Bytes())
	archglue.Tss_set_kstack(next.Mmap.KstackTop)
	archglue.Lcr3(uint32(next.Cr3))
	current = next
	return next
}

// Current returns the PCB the scheduler most recently switched to.
func Current() *Pcb_t { return current }

// Yield voluntarily gives up the remainder of the current time slice
// (§5's explicit-yield preemption point).
func Yield() {
	if current == nil {
		return
	}
	Enqueue(current)
	next := Resched()
	if next != nil && next != current {
		Switch(current, next)
	}
}
