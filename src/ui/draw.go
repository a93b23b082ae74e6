package ui

import (
	"image/color"

	"defs"
	"fdops"
	"ustr"
)

func rgbaColor(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func rgb255(hex int) (int, int, int) {
	return (hex >> 16) & 0xff, (hex >> 8) & 0xff, hex & 0xff
}

// alphaMask returns a uniform color.Alpha implementing the window
// opacity cycling §C13 names ("opacity" field of the UI responder).
func alphaMask(opacity float64) color.Alpha {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	return color.Alpha{A: uint8(opacity * 0xff)}
}

func ustrPath(p string) ustr.Ustr {
	return ustr.MkUstrSlice([]byte(p))
}

// rawUbuf adapts a plain byte slice to fdops.Userio_i for the server's
// own reads off a responder's event pipe, the kernel-side counterpart to
// sysc.Uiouser_t which instead walks a live process's page tables.
type rawUbuf struct {
	buf []byte
	off int
}

func (u *rawUbuf) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, u.buf[u.off:])
	u.off += n
	return n, 0
}

func (u *rawUbuf) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(u.buf[u.off:], src)
	u.off += n
	return n, 0
}

func (u *rawUbuf) Remain() int  { return len(u.buf) - u.off }
func (u *rawUbuf) Totalsz() int { return len(u.buf) }

var _ fdops.Userio_i = (*rawUbuf)(nil)
