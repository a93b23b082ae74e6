// Package archglue is the lowest layer of the kernel: GDT, IDT, PIC, PIT,
// RTC and the serial console. Grounded in the teacher's overall package
// split (biscuit keeps this class of boot-time hardware setup behind its
// patched runtime rather than in src/, so there is no single teacher file
// this mirrors line-for-line); the segment/gate layout and init ordering
// here follow the classic x86 bring-up sequence the teacher's own
// comments describe in mem/dmap.go and vm/as.go (GDT -> IDT -> PIC ->
// PMM -> paging -> heap -> ...), continued down to 32-bit bare-metal
// primitives the teacher's 64-bit/hosted build never needed.
package archglue

import "unsafe"

// Gdtentry_t is one packed 8-byte GDT descriptor.
type Gdtentry_t struct {
	LimitLow  uint16
	BaseLow   uint16
	BaseMid   uint8
	Access    uint8
	Granular  uint8
	BaseHigh  uint8
}

const (
	gdtAccessPresent = 1 << 7
	gdtAccessRing3   = 3 << 5
	gdtAccessSegment = 1 << 4
	gdtAccessExec    = 1 << 3
	gdtAccessRW      = 1 << 1

	gdtGranPages = 1 << 7
	gdtGran32bit = 1 << 6
)

// Segment selectors, fixed by convention across the whole kernel.
const (
	SEL_KCODE = 1 << 3
	SEL_KDATA = 2 << 3
	SEL_UCODE = (3 << 3) | 3
	SEL_UDATA = (4 << 3) | 3
	SEL_TSS   = 5 << 3
)

var gdt [6]Gdtentry_t

func mkgdt(base uint32, limit uint32, access, gran uint8) Gdtentry_t {
	return Gdtentry_t{
		LimitLow: uint16(limit & 0xffff),
		BaseLow:  uint16(base & 0xffff),
		BaseMid:  uint8((base >> 16) & 0xff),
		Access:   access,
		Granular: gran | uint8((limit>>16)&0xf),
		BaseHigh: uint8((base >> 24) & 0xff),
	}
}

// Gdtr_t is the operand loaded by LGDT/LIDT: a 16-bit limit followed by a
// 32-bit linear base address.
type Gdtr_t struct {
	Limit uint16
	Base  uint32
}

// Gdt_init builds the flat GDT: null, kernel code, kernel data, user
// code, user data, and a TSS descriptor (installed later by Tss_init
// once the TSS's address is known).
func Gdt_init() {
	flatgran := uint8(gdtGranPages | gdtGran32bit)
	gdt[0] = Gdtentry_t{}
	gdt[1] = mkgdt(0, 0xfffff, gdtAccessPresent|gdtAccessSegment|gdtAccessExec|gdtAccessRW, flatgran)
	gdt[2] = mkgdt(0, 0xfffff, gdtAccessPresent|gdtAccessSegment|gdtAccessRW, flatgran)
	gdt[3] = mkgdt(0, 0xfffff, gdtAccessPresent|gdtAccessRing3|gdtAccessSegment|gdtAccessExec|gdtAccessRW, flatgran)
	gdt[4] = mkgdt(0, 0xfffff, gdtAccessPresent|gdtAccessRing3|gdtAccessSegment|gdtAccessRW, flatgran)
	// gdt[5] (TSS) is installed by Gdt_set_tss once the TSS is allocated.
	lgdt(&gdt)
}

// Gdt_set_tss installs an available (not busy) 32-bit TSS descriptor at
// selector SEL_TSS, pointing at the given base/limit, then loads the task
// register, which marks it busy. Called once by Tss_init during boot.
func Gdt_set_tss(base uint32, limit uint32) {
	gdt[5] = mkgdt(base, limit, gdtAccessPresent|0x9, 0)
	ltr(SEL_TSS)
}

func lgdt(table *[6]Gdtentry_t) {
	gdtr := Gdtr_t{
		Limit: uint16(unsafe.Sizeof(*table) - 1),
		Base:  uint32(uintptr(unsafe.Pointer(table))),
	}
	lgdt_asm(&gdtr)
}

// lgdt_asm and ltr are implemented in gdt_386.s.
func lgdt_asm(r *Gdtr_t)
func ltr(sel uint16)
