// Package intr wires the CPU-exception half of interrupt dispatch (§4.6):
// it registers the vector-13 (GP fault) and vector-14 (page fault)
// handlers archglue's trampoline calls into, and the catch-all handler
// for every other unregistered exception vector. IRQ handlers (PIT/RTC)
// register themselves directly in archglue (pit.go/rtc.go); the keyboard
// and mouse IRQs are registered by the ui package, which owns input
// routing. There is no teacher intr.go in this retrieval pack — biscuit's
// trap.go/fault handling lived behind its patched runtime — so the
// page-fault policy below (COW duplication, then stack auto-growth, then
// SIGSEGV) is written directly from spec.md §4.6/§4.7's rules, in
// archglue's Register/Handler_f idiom.
package intr

import (
	"github.com/go-logr/logr"

	"archglue"
	"mem"
	"paging"
	"proc"
	"stats"
)

// Log is the component logger, set by Init.
var Log logr.Logger

// guardPages is how far below the mapped stack a fault is still treated
// as "grow the stack" rather than a real segfault (§4.6: "within one
// page below the current user stack bottom").
const guardPages = 1

// Init registers the exception handlers this package owns. It must run
// after archglue.Idt_init and before any user-mode PCB is dispatched.
func Init(log logr.Logger) {
	Log = log.WithName("intr")
	archglue.Register(13, gpFault)
	archglue.Register(14, pageFault)
	for v := 0; v < 32; v++ {
		switch v {
		case 13, 14:
			continue
		}
		vec := v
		archglue.Register(vec, func(vector int, errcode uint32) {
			unhandledException(vec)
		})
	}
}

// unhandledException kills the current process (SIGSEGV, the closest
// analogue spec.md names for "fault the kernel doesn't specially
// handle") or panics the kernel if no process is current (§7: "a fault
// with no current process panics the kernel").
func unhandledException(vector int) {
	stats.IrqVector(vector)
	cur := proc.Current()
	if cur == nil {
		Log.Info("unhandled exception with no current process", "vector", vector)
		panic("unhandled kernel exception")
	}
	Log.Info("unhandled exception, killing process", "vector", vector, "pid", cur.Pid)
	proc.Signal_send(cur, proc.SIGSEGV)
}

// gpFault signals ILL to the current process, per §4.6 "Vector 13 (GP
// fault) signals ILL." A GP fault with no current process is a kernel
// bug; panic loudly rather than silently dropping it.
func gpFault(vector int, errcode uint32) {
	stats.IrqVector(vector)
	cur := proc.Current()
	if cur == nil {
		panic("general protection fault with no current process")
	}
	Log.Info("general protection fault", "pid", cur.Pid, "eip", cur.LiveRegs().Eip)
	proc.Signal_send(cur, proc.SIGILL)
}

// pageFault implements §4.6's three-way policy: a page whose PTE carries
// PTE_COW is resolved in place by paging.Fault_cow (fork's
// Clone_process_directory copies pages and sets no such PTE); a
// fault exactly one guard-page width below the current stack bottom
// grows the stack silently; anything else signals SEGV.
func pageFault(vector int, errcode uint32) {
	stats.IrqVector(vector)
	stats.PageFaults.Inc()
	cur := proc.Current()
	if cur == nil {
		panic("page fault with no current process")
	}
	fault := archglue.Rcr2()

	if err := paging.Fault_cow(cur.Pd, fault&^(uint32(mem.PGSIZE)-1)); err == 0 {
		archglue.Invlpg(fault)
		return
	}

	bottom := cur.Mmap.StackBottom
	low := bottom - uint32(guardPages*mem.PGSIZE)
	if fault >= low && fault < bottom {
		if growStack(cur, low) {
			return
		}
	}

	Log.Info("segmentation fault", "pid", cur.Pid, "fault", fault, "eip", cur.LiveRegs().Eip)
	proc.Signal_send(cur, proc.SIGSEGV)
}

// growStack maps one fresh page at va into the faulting process's address
// space and lowers its recorded stack bottom, implementing the "silent
// auto-growth" behavior §4.6 calls for. The design-notes guard-page TODO
// (spec.md §9) means there is still no unmapped sentinel page below the
// new bottom; a second fault one page further down simply grows again.
func growStack(p *proc.Pcb_t, va uint32) bool {
	_, pa, ok := mem.Physmem.Refpg_new()
	if !ok {
		return false
	}
	if err := paging.Map(p.Pd, va, pa, mem.PTE_W); err != 0 {
		return false
	}
	p.Mmap.StackBottom = va
	return true
}
