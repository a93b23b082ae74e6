package archglue

// 8259 PIC ports and ICW/OCW constants for the standard master/slave
// remap to vectors 0x20-0x2f, keeping IRQ0 (PIT) at vector 0x20 and IRQ8
// (RTC) at vector 0x28. No APIC: SMP is out of scope, so the legacy PIC
// is the only interrupt controller this kernel drives.
const (
	picMasterCmd = 0x20
	picMasterData = 0x21
	picSlaveCmd   = 0xa0
	picSlaveData  = 0xa1

	icw1Init = 0x11
	icw4_8086 = 0x01

	IRQ_BASE      = 0x20
	IRQ_PIT       = 0
	IRQ_RTC       = 8
	IRQ_KBD       = 1
	IRQ_MOUSE     = 12
	PIC_EOI       = 0x20
)

// Pic_init remaps the PIC so hardware IRQ n arrives at vector
// IRQ_BASE+n, then masks every line except PIT and RTC until their
// owning subsystems unmask them explicitly.
func Pic_init() {
	outb(picMasterCmd, icw1Init)
	outb(picSlaveCmd, icw1Init)
	outb(picMasterData, IRQ_BASE)
	outb(picSlaveData, IRQ_BASE+8)
	outb(picMasterData, 4) // slave is on master's IRQ2
	outb(picSlaveData, 2)
	outb(picMasterData, icw4_8086)
	outb(picSlaveData, icw4_8086)

	outb(picMasterData, 0xff)
	outb(picSlaveData, 0xff)
	Pic_unmask(IRQ_PIT)
	Pic_unmask(IRQ_RTC)
}

// Pic_unmask enables delivery of the given legacy IRQ line.
func Pic_unmask(irq int) {
	if irq < 8 {
		m := inb(picMasterData)
		outb(picMasterData, m&^(1<<uint(irq)))
		return
	}
	m := inb(picSlaveData)
	outb(picSlaveData, m&^(1<<uint(irq-8)))
	outb(picMasterData, inb(picMasterData)&^(1<<2))
}

// Pic_eoi acknowledges an IRQ so the PIC will deliver further interrupts
// on that line (and, for IRQ8-15, on the cascade line too).
func Pic_eoi(irq int) {
	if irq >= 8 {
		outb(picSlaveCmd, PIC_EOI)
	}
	outb(picMasterCmd, PIC_EOI)
}
