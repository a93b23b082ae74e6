package archglue

// outb/inb/outw/inw are implemented in ports_386.s using the IA-32 IN/OUT
// instructions. The teacher's runtime fork provides this class of
// primitive (runtime.Inb/Outb-equivalents) from inside a patched Go
// runtime that isn't part of this repo; here the same primitive is
// supplied the ordinary way Go code reaches assembly it cannot express
// otherwise: a body-less Go declaration backed by a Plan9 assembly file.
func outb(port uint16, val uint8)
func inb(port uint16) uint8
func outw(port uint16, val uint16)
func inw(port uint16) uint16
