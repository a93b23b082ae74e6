package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defs"
	"fdops"
	"stat"
	"ustr"
)

// memNode is a minimal Inode_i+Data_i fake backed by a byte slice, just
// enough to exercise Ofile_t without pulling in a real backend.
type memNode struct{ buf []uint8 }

func (m *memNode) Type() Ntype_t                                      { return NFILE }
func (m *memNode) Lookup(ustr.Ustr) (Inode_i, defs.Err_t)             { return nil, -defs.ENOENT }
func (m *memNode) Create(ustr.Ustr, uint) (Inode_i, defs.Err_t)       { return nil, -defs.EINVAL }
func (m *memNode) Mkdir(ustr.Ustr, uint) (Inode_i, defs.Err_t)        { return nil, -defs.EINVAL }
func (m *memNode) Unlink(ustr.Ustr) defs.Err_t                        { return -defs.EINVAL }
func (m *memNode) Rename(ustr.Ustr, Inode_i, ustr.Ustr) defs.Err_t    { return -defs.EINVAL }
func (m *memNode) Symlink(ustr.Ustr, ustr.Ustr) defs.Err_t            { return -defs.EINVAL }
func (m *memNode) Readlink() (ustr.Ustr, defs.Err_t)                  { return nil, -defs.EINVAL }
func (m *memNode) Chmod(uint) defs.Err_t                              { return 0 }
func (m *memNode) Readdir() ([]Dirent_t, defs.Err_t)                  { return nil, -defs.ENOTDIR }

func (m *memNode) Pread(buf []uint8, off int64) (int, defs.Err_t) {
	if off >= int64(len(m.buf)) {
		return 0, 0
	}
	n := copy(buf, m.buf[off:])
	return n, 0
}

func (m *memNode) Pwrite(buf []uint8, off int64) (int, defs.Err_t) {
	end := off + int64(len(buf))
	if end > int64(len(m.buf)) {
		grown := make([]uint8, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:end], buf)
	return len(buf), 0
}

func (m *memNode) Size() int64            { return int64(len(m.buf)) }
func (m *memNode) Truncate(sz int64) defs.Err_t {
	if sz < int64(len(m.buf)) {
		m.buf = m.buf[:sz]
	}
	return 0
}
func (m *memNode) Stat(st *stat.Stat_t) defs.Err_t {
	st.Wmode(stat.IFREG | 0644)
	st.Wsize(uint(len(m.buf)))
	return 0
}

func TestOfileReadWriteSeek(t *testing.T) {
	n := &memNode{}
	o, err := Open(n, false)
	require.EqualValues(t, 0, err)

	wrote, err := o.Write(fdops.MkFakeubuf([]uint8("hello world")))
	require.EqualValues(t, 0, err)
	assert.Equal(t, 11, wrote)

	_, err = o.Lseek(0, defs.SEEK_SET)
	require.EqualValues(t, 0, err)

	out := make([]uint8, 5)
	read, err := o.Read(fdops.MkFakeubuf(out))
	require.EqualValues(t, 0, err)
	assert.Equal(t, 5, read)
	assert.Equal(t, "hello", string(out))
}

func TestOfileAppendStartsAtEnd(t *testing.T) {
	n := &memNode{buf: []uint8("0123456789")}
	o, err := Open(n, true)
	require.EqualValues(t, 0, err)
	pos, err := o.Lseek(0, defs.SEEK_CUR)
	require.EqualValues(t, 0, err)
	assert.Equal(t, 10, pos)
}

func TestOfileFstatReportsSize(t *testing.T) {
	n := &memNode{buf: []uint8("abc")}
	o, err := Open(n, false)
	require.EqualValues(t, 0, err)
	var st stat.Stat_t
	require.EqualValues(t, 0, o.Fstat(&st))
	assert.EqualValues(t, 3, st.Size())
}

