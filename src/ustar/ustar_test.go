package ustar

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blkdev"
	"defs"
	"ustr"
	"vfs"
)

func newTar(t *testing.T) *Node_t {
	disk := blkdev.NewMemDisk(0)
	root, err := Mkfs(disk, logr.Discard())
	require.EqualValues(t, 0, err)
	return root
}

// TestMkdirThenCreate reproduces §8's end-to-end scenario 4: mkdir, create,
// write, readdir, read.
func TestMkdirThenCreate(t *testing.T) {
	root := newTar(t)

	a, err := root.Mkdir(ustr.Ustr("a"), 0755)
	require.EqualValues(t, 0, err)
	assert.Equal(t, vfs.NDIR, a.Type())

	b, err := a.Create(ustr.Ustr("b"), 0644)
	require.EqualValues(t, 0, err)

	bn := b.(*Node_t)
	n, werr := bn.Pwrite([]byte("x"), 0)
	require.EqualValues(t, 0, werr)
	assert.Equal(t, 1, n)

	entries, err := a.Readdir()
	require.EqualValues(t, 0, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name.String())

	looked, err := a.Lookup(ustr.Ustr("b"))
	require.EqualValues(t, 0, err)
	buf := make([]byte, 1)
	rn, rerr := looked.(*Node_t).Pread(buf, 0)
	require.EqualValues(t, 0, rerr)
	assert.Equal(t, 1, rn)
	assert.Equal(t, "x", string(buf))
}

func TestCreateDuplicateIsEEXIST(t *testing.T) {
	root := newTar(t)
	_, err := root.Create(ustr.Ustr("f"), 0644)
	require.EqualValues(t, 0, err)
	_, err = root.Create(ustr.Ustr("f"), 0644)
	assert.Equal(t, -defs.EEXIST, err)
}

func TestUnlinkMarksFreeAndAllowsRecreate(t *testing.T) {
	root := newTar(t)
	_, err := root.Create(ustr.Ustr("f"), 0644)
	require.EqualValues(t, 0, err)
	require.EqualValues(t, 0, root.Unlink(ustr.Ustr("f")))

	_, err = root.Lookup(ustr.Ustr("f"))
	assert.Equal(t, -defs.ENOENT, err)

	_, err = root.Create(ustr.Ustr("f"), 0644)
	assert.EqualValues(t, 0, err)
}

func TestRenameUpdatesPath(t *testing.T) {
	root := newTar(t)
	_, err := root.Create(ustr.Ustr("old"), 0644)
	require.EqualValues(t, 0, err)

	require.EqualValues(t, 0, root.Rename(ustr.Ustr("old"), root, ustr.Ustr("new")))

	_, err = root.Lookup(ustr.Ustr("old"))
	assert.Equal(t, -defs.ENOENT, err)
	_, err = root.Lookup(ustr.Ustr("new"))
	assert.EqualValues(t, 0, err)
}

func TestSymlinkReadlink(t *testing.T) {
	root := newTar(t)
	require.EqualValues(t, 0, root.Symlink(ustr.Ustr("/target"), ustr.Ustr("link")))

	l, err := root.Lookup(ustr.Ustr("link"))
	require.EqualValues(t, 0, err)
	assert.Equal(t, vfs.NSYMLINK, l.Type())

	target, err := l.Readlink()
	require.EqualValues(t, 0, err)
	assert.Equal(t, "/target", target.String())
}

// TestWriteOutgrowRelocates exercises §4.10's "copy the file to a new
// larger slot and mark the old slot FREE" path: the initial slot has zero
// capacity, so any non-empty write must relocate.
func TestWriteOutgrowRelocates(t *testing.T) {
	root := newTar(t)
	n, err := root.Create(ustr.Ustr("f"), 0644)
	require.EqualValues(t, 0, err)
	node := n.(*Node_t)

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}
	wn, werr := node.Pwrite(payload, 0)
	require.EqualValues(t, 0, werr)
	assert.Equal(t, len(payload), wn)

	out := make([]byte, len(payload))
	rn, rerr := node.Pread(out, 0)
	require.EqualValues(t, 0, rerr)
	assert.Equal(t, len(payload), rn)
	assert.Equal(t, payload, out)
}

func TestPersistAcrossRemount(t *testing.T) {
	disk := blkdev.NewMemDisk(0)
	root, err := Mkfs(disk, logr.Discard())
	require.EqualValues(t, 0, err)
	n, err := root.Create(ustr.Ustr("durable"), 0644)
	require.EqualValues(t, 0, err)
	_, werr := n.(*Node_t).Pwrite([]byte("hello\n"), 0)
	require.EqualValues(t, 0, werr)

	remounted, err := Mount(disk, logr.Discard())
	require.EqualValues(t, 0, err)
	found, err := remounted.Lookup(ustr.Ustr("durable"))
	require.EqualValues(t, 0, err)
	buf := make([]byte, 6)
	rn, rerr := found.(*Node_t).Pread(buf, 0)
	require.EqualValues(t, 0, rerr)
	assert.Equal(t, "hello\n", string(buf[:rn]))
}
