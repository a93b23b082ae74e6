package archglue

// PIT channel 0 runs in mode 3 (square wave) to generate the ~50Hz
// scheduler tick the spec calls for. 1193182 is the PIT's fixed input
// clock in Hz.
const pitFreq = 1193182

const (
	pitChan0   = 0x40
	pitCommand = 0x43
)

// TickHandler is invoked by the IRQ0 trampoline on every PIT tick; the
// scheduler installs its own callback here during boot. It must return
// within one tick (§"Interrupts": enqueue work and defer, don't do it).
var TickHandler func()

// Pit_init programs channel 0 for a periodic interrupt at approximately
// hz ticks per second and registers the IRQ0 handler.
func Pit_init(hz int) {
	div := pitFreq / hz
	outb(pitCommand, 0x36) // channel 0, lobyte/hibyte, mode 3, binary
	outb(pitChan0, uint8(div&0xff))
	outb(pitChan0, uint8((div>>8)&0xff))
	Register(IRQ_BASE+IRQ_PIT, func(vector int, errcode uint32) {
		if TickHandler != nil {
			TickHandler()
		}
		Pic_eoi(IRQ_PIT)
	})
}
