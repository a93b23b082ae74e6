package archglue

// PS/2 controller ports. IRQ1 carries keyboard scancodes, IRQ12 carries
// a 3-byte mouse movement/button packet (the standard PS/2 mouse
// protocol) once Mouse_init has sent the enable-streaming command.
const (
	kbdData   = 0x60
	kbdStatus = 0x64

	mouseCmdPort = 0xd4 // write-to-port-2 command, issued via the 8042 cmd port
)

// KeyHandler is invoked with each raw scancode read off IRQ1. A nil
// handler leaves the byte unconsumed by anyone but the PIC EOI.
var KeyHandler func(scancode uint8)

// MouseHandler is invoked with each decoded PS/2 mouse packet: relative
// dx/dy and the current button bitmask (bit0=left, bit1=right,
// bit2=middle).
var MouseHandler func(dx, dy int, buttons uint8)

var mousePacket [3]uint8
var mouseByte int

// Kbd_init registers the IRQ1 scancode handler. The keyboard itself
// needs no setup sequence to start streaming scancodes; the PIC just
// needs the line unmasked.
func Kbd_init() {
	Register(IRQ_BASE+IRQ_KBD, func(vector int, errcode uint32) {
		sc := inb(kbdData)
		if KeyHandler != nil {
			KeyHandler(sc)
		}
		Pic_eoi(IRQ_KBD)
	})
	Pic_unmask(IRQ_KBD)
}

// Mouse_init enables PS/2 mouse packet streaming and registers the
// IRQ12 handler. Each packet arrives as three bytes; the handler
// accumulates them before decoding, mirroring how a real PS/2 driver
// can't assume one interrupt equals one complete packet.
func Mouse_init() {
	kbdWaitInputClear()
	outb(kbdStatus, mouseCmdPort)
	kbdWaitInputClear()
	outb(kbdData, 0xf4) // enable streaming

	Register(IRQ_BASE+IRQ_MOUSE, func(vector int, errcode uint32) {
		mousePacket[mouseByte] = inb(kbdData)
		mouseByte++
		if mouseByte == len(mousePacket) {
			mouseByte = 0
			decodeMousePacket()
		}
		Pic_eoi(IRQ_MOUSE)
	})
	Pic_unmask(IRQ_MOUSE)
}

func kbdWaitInputClear() {
	for inb(kbdStatus)&0x2 != 0 {
	}
}

func decodeMousePacket() {
	if MouseHandler == nil {
		return
	}
	flags := mousePacket[0]
	dx := int(mousePacket[1])
	dy := int(mousePacket[2])
	if flags&0x10 != 0 {
		dx -= 256
	}
	if flags&0x20 != 0 {
		dy -= 256
	}
	MouseHandler(dx, -dy, flags&0x7)
}
