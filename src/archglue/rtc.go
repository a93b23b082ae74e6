package archglue

// RTC (MC146818) index/data ports and the periodic-interrupt-enable bit
// in status register B. IRQ8 provides a coarser secondary tick the
// spec's interrupt table lists alongside the PIT.
const (
	rtcIndex = 0x70
	rtcData  = 0x71

	rtcRegA = 0x0a
	rtcRegB = 0x0b
	rtcRegC = 0x0c

	rtcPIE = 1 << 6
)

// SecondaryTickHandler is invoked on every RTC periodic interrupt.
var SecondaryTickHandler func()

func rtcRead(reg uint8) uint8 {
	outb(rtcIndex, reg)
	return inb(rtcData)
}

func rtcWrite(reg, val uint8) {
	outb(rtcIndex, reg)
	outb(rtcData, val)
}

// Rtc_init selects a 2Hz periodic rate (rate 15 in register A) and
// enables the periodic interrupt, then registers IRQ8.
func Rtc_init() {
	rtcWrite(rtcRegA, 0x20|0x0f) // 32768Hz base, rate 15 -> 32768>>14 = 2Hz
	b := rtcRead(rtcRegB)
	rtcWrite(rtcRegB, b|rtcPIE)

	Register(IRQ_BASE+IRQ_RTC, func(vector int, errcode uint32) {
		rtcRead(rtcRegC) // must read register C to re-arm the interrupt
		if SecondaryTickHandler != nil {
			SecondaryTickHandler()
		}
		Pic_eoi(IRQ_RTC)
	})
}
