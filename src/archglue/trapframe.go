package archglue

import "unsafe"

// Trapframe_t is the register snapshot saved by the assembly trampoline on
// every trap: a CPU exception, a PIC-remapped IRQ, or the int 0x80 syscall
// gate. Field order matches what the trampoline pushes, low to high
// address, so &Trapframe_t.Edi is also a valid base for the PUSHA-style
// save the stub performs. The PCB's Uregs/Kregs (§3) are both
// *Trapframe_t: which one is "live" is tracked by the PCB's InKernel flag,
// not by the type.
type Trapframe_t struct {
	// Pushed by the trampoline's manual register save, reverse push order.
	Edi, Esi, Ebp, _esp, Ebx, Edx, Ecx, Eax uint32
	// Gs, Fs, Es, Ds are saved/restored around the segment switch; flat
	// segments mean these are constants in practice but the slots are
	// kept for a faithful trapframe shape.
	Gs, Fs, Es, Ds uint32
	// Vector/Errorcode identify which gate fired and, for exceptions that
	// push one (8, 10-14, 17), the CPU-supplied error code.
	Vector, Errorcode uint32
	// Pushed by the CPU itself on any trap.
	Eip, Cs, Eflags uint32
	// Esp/Ss are only present (and only meaningful) on a ring transition;
	// a trap that stays in kernel mode doesn't have them, so callers must
	// check the saved Cs selector before reading them.
	Esp, Ss uint32
}

// Fxarea_t is the 512-byte FXSAVE/FXRSTOR area; Data must start on a
// 16-byte boundary (mirrors §3's "aligned to 16"). The _align field does
// not move Data to such a boundary; Bytes checks the alignment and panics
// when it does not hold.
type Fxarea_t struct {
	_align [16]byte
	Data   [512]byte
}

// Bytes returns the 16-byte-aligned 512-byte FXSAVE region.
func (f *Fxarea_t) Bytes() *[512]byte {
	if uintptr(unsafe.Pointer(&f.Data[0]))%16 == 0 {
		return &f.Data
	}
	// Extremely unlikely given Go's own allocator alignment, but the
	// teacher-style invariant panic exists for the same reason the heap
	// panics on a corrupt free list: better a loud crash than silent
	// corruption of adjacent FPU state.
	panic("fxarea not 16-byte aligned")
}
