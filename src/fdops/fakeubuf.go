package fdops

import "defs"

// Fakeubuf is a Userio_i backed by a plain Go byte slice, standing in for
// a real user-address-space copy for host-side tooling (cmd/mkdisk) and
// every package's tests, exactly as the teacher's ufs package does for its
// own test harness.
type Fakeubuf struct {
	buf []uint8
	off int
}

// MkFakeubuf wraps buf for reading/writing starting at offset 0.
func MkFakeubuf(buf []uint8) *Fakeubuf {
	return &Fakeubuf{buf: buf}
}

func (f *Fakeubuf) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, f.buf[f.off:])
	f.off += n
	return n, 0
}

func (f *Fakeubuf) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(f.buf[f.off:], src)
	f.off += n
	return n, 0
}

func (f *Fakeubuf) Remain() int  { return len(f.buf) - f.off }
func (f *Fakeubuf) Totalsz() int { return len(f.buf) }
