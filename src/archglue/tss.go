package archglue

import "unsafe"

// Tss_t is the 32-bit task state segment. The kernel only uses the fields
// that matter for ring transitions (Esp0/Ss0, the ring-0 stack loaded on
// every int 0x80 / IRQ / exception taken from ring 3); the rest of the
// classic TSS layout is unused but kept present-sized since the CPU
// expects the full structure at the descriptor's base.
type Tss_t struct {
	_link      uint32
	Esp0       uint32
	Ss0        uint32
	_rest      [23]uint32
	_iomapbase uint16
}

var kernelTSS Tss_t

// Tss_init installs the TSS descriptor in the GDT and loads it via LTR;
// called once during boot after Gdt_init.
func Tss_init() {
	Gdt_set_tss(tssAddr(), uint32(tssSize()))
}

// Tss_set_kstack points the TSS's ring-0 stack at top, the kernel stack
// of whichever PCB the scheduler is about to resume; done on every
// context switch so a subsequent trap from ring 3 lands on that PCB's
// own kernel stack.
func Tss_set_kstack(top uint32) {
	kernelTSS.Esp0 = top
	kernelTSS.Ss0 = SEL_KDATA
}

func tssAddr() uint32 { return uint32(uintptr(unsafe.Pointer(&kernelTSS))) }
func tssSize() int    { return int(unsafe.Sizeof(kernelTSS)) }
