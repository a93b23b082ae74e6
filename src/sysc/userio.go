package sysc

import (
	"defs"
	"mem"
	"paging"
)

// Uiouser_t is a fdops.Userio_i backed by a live process's address space,
// the live-memory counterpart to fdops.Fakeubuf (used for host-side
// tooling and tests). It walks pd one page at a time via
// paging.Get_paddr + mem.Physmem.Dmap8, exactly as the page-fault
// handler and exec's loadSegment/writeUserBytes reach user pages, rather
// than mapping the whole region into the kernel's address space at once.
type Uiouser_t struct {
	pd   *mem.Pmap_t
	base uint32
	len  int
	off  int
}

// MkUiouser wraps the len bytes of pd's address space starting at va.
func MkUiouser(pd *mem.Pmap_t, va uint32, len int) *Uiouser_t {
	return &Uiouser_t{pd: pd, base: va, len: len}
}

func (u *Uiouser_t) Remain() int  { return u.len - u.off }
func (u *Uiouser_t) Totalsz() int { return u.len }

// eachPage splits [off, off+n) into per-page spans and calls fn with the
// kernel-side byte slice backing each span.
func (u *Uiouser_t) eachPage(off, n int, fn func(pg []byte)) defs.Err_t {
	for n > 0 {
		va := u.base + uint32(off)
		pgoff := int(va) & (mem.PGSIZE - 1)
		chunk := mem.PGSIZE - pgoff
		if chunk > n {
			chunk = n
		}
		pa, _, ok := paging.Get_paddr(u.pd, va&^uint32(mem.PGSIZE-1))
		if !ok {
			return -defs.EFAULT
		}
		pg := mem.Physmem.Dmap8(pa)
		fn(pg[pgoff : pgoff+chunk])
		off += chunk
		n -= chunk
	}
	return 0
}

func (u *Uiouser_t) Uioread(dst []uint8) (int, defs.Err_t) {
	n := len(dst)
	if n > u.Remain() {
		n = u.Remain()
	}
	got := 0
	err := u.eachPage(u.off, n, func(pg []byte) {
		copy(dst[got:got+len(pg)], pg)
		got += len(pg)
	})
	if err != 0 {
		return got, err
	}
	u.off += got
	return got, 0
}

func (u *Uiouser_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := len(src)
	if n > u.Remain() {
		n = u.Remain()
	}
	put := 0
	err := u.eachPage(u.off, n, func(pg []byte) {
		copy(pg, src[put:put+len(pg)])
		put += len(pg)
	})
	if err != 0 {
		return put, err
	}
	u.off += put
	return put, 0
}

// copyinBytes reads exactly n bytes from pd's address space at va into a
// fresh kernel buffer, for syscall arguments too short-lived to warrant a
// Uiouser_t (path strings, stat buffers the kernel fills and copies out
// in one shot).
func copyinBytes(pd *mem.Pmap_t, va uint32, n int) ([]byte, defs.Err_t) {
	buf := make([]byte, n)
	u := MkUiouser(pd, va, n)
	got, err := u.Uioread(buf)
	if err != 0 {
		return nil, err
	}
	return buf[:got], 0
}

func copyoutBytes(pd *mem.Pmap_t, va uint32, data []byte) defs.Err_t {
	u := MkUiouser(pd, va, len(data))
	_, err := u.Uiowrite(data)
	return err
}

// copyinStr reads a NUL-terminated string from pd at va, one byte at a
// time, up to maxPath bytes (§7 "ENAMETOOLONG").
const maxPath = 512

func copyinStr(pd *mem.Pmap_t, va uint32) ([]byte, defs.Err_t) {
	var out []byte
	for off := 0; off < maxPath; off++ {
		b, err := copyinBytes(pd, va+uint32(off), 1)
		if err != 0 {
			return nil, err
		}
		if b[0] == 0 {
			return out, 0
		}
		out = append(out, b[0])
	}
	return nil, -defs.ENAMETOOLONG
}

// copyinStrvec reads a NUL-terminated array of 4-byte string pointers
// (argv/envp's on-wire shape, §4.12) starting at va.
func copyinStrvec(pd *mem.Pmap_t, va uint32) ([][]byte, defs.Err_t) {
	var out [][]byte
	for i := 0; ; i++ {
		ptrBytes, err := copyinBytes(pd, va+uint32(i*4), 4)
		if err != 0 {
			return nil, err
		}
		ptr := uint32(ptrBytes[0]) | uint32(ptrBytes[1])<<8 | uint32(ptrBytes[2])<<16 | uint32(ptrBytes[3])<<24
		if ptr == 0 {
			return out, 0
		}
		s, err := copyinStr(pd, ptr)
		if err != 0 {
			return nil, err
		}
		out = append(out, s)
	}
}
