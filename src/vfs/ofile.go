package vfs

import (
	"sync"

	"defs"
	"fdops"
	"stat"
)

// Data_i is the raw positional I/O surface a regular-file backend (ustar,
// ext2) exposes to the VFS; it deliberately excludes any notion of a
// current offset, which Ofile_t below owns per-open the way a real
// vnode/open-file-description split keeps a shared inode separate from
// each open's cursor. A backend's Node_t implements Inode_i for the
// namespace operations and Data_i for the bytes; vfs.Open wraps the two
// together.
type Data_i interface {
	Pread(buf []uint8, off int64) (int, defs.Err_t)
	Pwrite(buf []uint8, off int64) (int, defs.Err_t)
	Size() int64
	Truncate(sz int64) defs.Err_t
	Stat(*stat.Stat_t) defs.Err_t
}

// Ofile_t is the per-open-file-descriptor view onto a regular file node:
// it owns the seek offset an fd advances on every read/write, while the
// underlying Node_t (and its bytes) are shared by every open of the same
// path, exactly as dup'd/forked fd slots share one Fdslot_t (proc.Pcb_t)
// but every independent open() gets its own cursor.
type Ofile_t struct {
	mu   sync.Mutex
	node Inode_i
	data Data_i
	off  int64
}

// Open wraps node (which must also implement Data_i) in a fresh Ofile_t
// with the cursor at 0, or at the end for O_APPEND-style callers that pass
// append=true.
func Open(node Inode_i, append bool) (*Ofile_t, defs.Err_t) {
	data, ok := node.(Data_i)
	if !ok {
		return nil, -defs.EINVAL
	}
	o := &Ofile_t{node: node, data: data}
	if append {
		o.off = data.Size()
	}
	return o, 0
}

func (o *Ofile_t) Close() defs.Err_t { return 0 }

func (o *Ofile_t) Reopen() defs.Err_t { return 0 }

func (o *Ofile_t) Fstat(st *stat.Stat_t) defs.Err_t {
	return o.data.Stat(st)
}

func (o *Ofile_t) Lseek(off, whence int) (int, defs.Err_t) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var base int64
	switch whence {
	case defs.SEEK_SET:
		base = 0
	case defs.SEEK_CUR:
		base = o.off
	case defs.SEEK_END:
		base = o.data.Size()
	default:
		return 0, -defs.EINVAL
	}
	n := base + int64(off)
	if n < 0 {
		return 0, -defs.EINVAL
	}
	o.off = n
	return int(n), 0
}

func (o *Ofile_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	o.mu.Lock()
	defer o.mu.Unlock()
	buf := make([]uint8, dst.Remain())
	n, err := o.data.Pread(buf, o.off)
	if err != 0 {
		return 0, err
	}
	if n == 0 {
		return 0, 0
	}
	w, err := dst.Uiowrite(buf[:n])
	if err != 0 {
		return 0, err
	}
	o.off += int64(w)
	return w, 0
}

func (o *Ofile_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	o.mu.Lock()
	defer o.mu.Unlock()
	buf := make([]uint8, src.Remain())
	n, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	w, err := o.data.Pwrite(buf[:n], o.off)
	if err != 0 {
		return w, err
	}
	o.off += int64(w)
	return w, 0
}

func (o *Ofile_t) Pollone(pm fdops.Pollmsg_t) (fdops.Ready_t, defs.Err_t) {
	return (fdops.R_READ | fdops.R_WRITE) & pm.Events, 0
}
