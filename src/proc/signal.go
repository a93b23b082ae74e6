package proc

import "defs"

// Signal_register records eip as p's signal handler entry (§4.7/§4.12
// signal_register): when a signal becomes deliverable, Deliver_pending
// writes this address into the live register snapshot's Eip and the
// signal number into Eax; nothing is pushed onto the user stack.
func Signal_register(p *Pcb_t, eip uint32) {
	p.mu.Lock()
	p.SignalEip = eip
	p.mu.Unlock()
}

// Signal_send marks sig as pending on p. SIGKILL and SIGSTOP are never
// deliverable to userland (§4.7): they kill the process directly instead
// of going through the handler-dispatch path below.
func Signal_send(p *Pcb_t, sig Sig_t) defs.Err_t {
	if sig == SIGKILL || sig == SIGSTOP {
		Signal_kill(p)
		return 0
	}
	p.mu.Lock()
	p.NextSignal = sig
	p.mu.Unlock()
	return 0
}

// Deliver_pending checks out p's pending signal (if any) and, if p has a
// registered handler, rewrites its live register snapshot so it resumes in
// the handler instead of where it was interrupted, stashing the original
// snapshot for signal_resume to restore. Called exactly at the syscall
// return and preemption points per §4.12's "signal delivery happens at
// syscall return, identically to a preemption point".
func Deliver_pending(p *Pcb_t) {
	p.mu.Lock()
	sig := p.NextSignal
	p.NextSignal = 0
	hasHandler := p.SignalEip != 0
	p.mu.Unlock()
	if sig == 0 {
		return
	}
	if !hasHandler {
		Signal_kill(p)
		return
	}
	live := p.LiveRegs()
	saved := *live
	p.SavedSignalRegs = &saved
	p.CurrentSignal = sig

	frame := *live
	frame.Eip = p.SignalEip
	frame.Eax = uint32(sig)
	*live = frame
}

// Signal_resume restores the register snapshot Deliver_pending stashed
// before dispatching the handler (§4.12 signal_resume), letting the
// interrupted context continue exactly where the signal preempted it.
func Signal_resume(p *Pcb_t) defs.Err_t {
	if p.SavedSignalRegs == nil {
		return -defs.EINVAL
	}
	*p.LiveRegs() = *p.SavedSignalRegs
	p.SavedSignalRegs = nil
	p.CurrentSignal = 0
	return 0
}
