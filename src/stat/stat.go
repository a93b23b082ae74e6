// Package stat mirrors a file's stat(2)/fstat(2) information as a flat,
// fixed-layout struct so it can be copied byte-for-byte to user memory.
// Kept close to the teacher's stat/stat.go.
package stat

import (
	"time"
	"unsafe"
)

// Stat_t mirrors a file's metadata. Field order matches the on-the-wire
// layout copied to userland by the fstat/lstat syscalls (§4.12).
type Stat_t struct {
	_dev   uint
	_ino   uint
	_mode  uint
	_size  uint
	_rdev  uint
	_uid   uint
	_gid   uint
	_nlink uint
	_atime int64
	_mtime int64
	_ctime int64
}

func (st *Stat_t) Wdev(v uint)   { st._dev = v }
func (st *Stat_t) Wino(v uint)   { st._ino = v }
func (st *Stat_t) Wmode(v uint)  { st._mode = v }
func (st *Stat_t) Wsize(v uint)  { st._size = v }
func (st *Stat_t) Wrdev(v uint)  { st._rdev = v }
func (st *Stat_t) Wuid(v uint)   { st._uid = v }
func (st *Stat_t) Wgid(v uint)   { st._gid = v }
func (st *Stat_t) Wnlink(v uint) { st._nlink = v }

func (st *Stat_t) Wtimes(atime, mtime, ctime time.Time) {
	st._atime = atime.UnixNano()
	st._mtime = mtime.UnixNano()
	st._ctime = ctime.UnixNano()
}

func (st *Stat_t) Mode() uint { return st._mode }
func (st *Stat_t) Size() uint { return st._size }
func (st *Stat_t) Rdev() uint { return st._rdev }
func (st *Stat_t) Rino() uint { return st._ino }
func (st *Stat_t) Uid() uint  { return st._uid }
func (st *Stat_t) Gid() uint  { return st._gid }

// Bytes exposes the raw bytes of the structure for a syscall copy-out.
func (st *Stat_t) Bytes() []uint8 {
	const sz = unsafe.Sizeof(*st)
	sl := (*[sz]uint8)(unsafe.Pointer(&st._dev))
	return sl[:]
}

// File mode bits, the subset the VFS backends set (§4.8, §4.10, §4.11).
const (
	IFMT  = 0170000
	IFDIR = 0040000
	IFREG = 0100000
	IFLNK = 0120000
	IFBLK = 0060000
	IFIFO = 0010000
)
