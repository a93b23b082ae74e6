package ext2

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

func newExt2(t *testing.T, size int64) (*blkdev.MemDisk, *Node_t) {
	disk := blkdev.NewMemDisk(size)
	root, err := Mkfs(disk, logr.Discard())
	require.EqualValues(t, 0, err)
	return disk, root
}

func TestMkfsRootIsEmptyDir(t *testing.T) {
	_, root := newExt2(t, 1<<20)
	assert.Equal(t, vfs.NDIR, root.Type())

	ents, err := root.Readdir()
	require.EqualValues(t, 0, err)
	assert.Len(t, ents, 0)
}

func TestMkdirThenCreate(t *testing.T) {
	_, root := newExt2(t, 1<<20)

	a, err := root.Mkdir(ustr.Ustr("a"), 0755)
	require.EqualValues(t, 0, err)
	assert.Equal(t, vfs.NDIR, a.Type())

	b, err := a.Create(ustr.Ustr("b"), 0644)
	require.EqualValues(t, 0, err)
	bn := b.(*Node_t)

	n, werr := bn.Pwrite([]byte("x"), 0)
	require.EqualValues(t, 0, werr)
	assert.Equal(t, 1, n)

	ents, err := a.Readdir()
	require.EqualValues(t, 0, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "b", ents[0].Name.String())

	looked, err := a.Lookup(ustr.Ustr("b"))
	require.EqualValues(t, 0, err)
	buf := make([]byte, 1)
	rn, rerr := looked.(*Node_t).Pread(buf, 0)
	require.EqualValues(t, 0, rerr)
	assert.Equal(t, "x", string(buf[:rn]))
}

func TestCreateDuplicateIsEEXIST(t *testing.T) {
	_, root := newExt2(t, 1<<20)
	_, err := root.Create(ustr.Ustr("f"), 0644)
	require.EqualValues(t, 0, err)
	_, err = root.Create(ustr.Ustr("f"), 0644)
	assert.Equal(t, -defs.EEXIST, err)
}

func TestUnlinkFreesInodeAndAllowsRecreate(t *testing.T) {
	_, root := newExt2(t, 1<<20)
	_, err := root.Create(ustr.Ustr("f"), 0644)
	require.EqualValues(t, 0, err)
	require.EqualValues(t, 0, root.Unlink(ustr.Ustr("f")))

	_, err = root.Lookup(ustr.Ustr("f"))
	assert.Equal(t, -defs.ENOENT, err)

	_, err = root.Create(ustr.Ustr("f"), 0644)
	assert.EqualValues(t, 0, err)
}

func TestRenameUpdatesLookup(t *testing.T) {
	_, root := newExt2(t, 1<<20)
	_, err := root.Create(ustr.Ustr("old"), 0644)
	require.EqualValues(t, 0, err)

	require.EqualValues(t, 0, root.Rename(ustr.Ustr("old"), root, ustr.Ustr("new")))

	_, err = root.Lookup(ustr.Ustr("old"))
	assert.Equal(t, -defs.ENOENT, err)
	_, err = root.Lookup(ustr.Ustr("new"))
	assert.EqualValues(t, 0, err)
}

func TestSymlinkReadlink(t *testing.T) {
	_, root := newExt2(t, 1<<20)
	require.EqualValues(t, 0, root.Symlink(ustr.Ustr("/target"), ustr.Ustr("link")))

	l, err := root.Lookup(ustr.Ustr("link"))
	require.EqualValues(t, 0, err)
	assert.Equal(t, vfs.NSYMLINK, l.Type())

	target, err := l.(*Node_t).Readlink()
	require.EqualValues(t, 0, err)
	assert.Equal(t, "/target", target.String())
}

// TestWriteSpansIndirectBlocks exercises P10: a file big enough to need
// the single-indirect pointer (12 direct blocks x 1024 bytes = 12288) must
// still round-trip byte for byte.
func TestWriteSpansIndirectBlocks(t *testing.T) {
	_, root := newExt2(t, 4<<20)
	n, err := root.Create(ustr.Ustr("big"), 0644)
	require.EqualValues(t, 0, err)
	node := n.(*Node_t)

	payload := make([]byte, 20000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	wn, werr := node.Pwrite(payload, 0)
	require.EqualValues(t, 0, werr)
	assert.Equal(t, len(payload), wn)
	assert.EqualValues(t, len(payload), node.Size())

	out := make([]byte, len(payload))
	rn, rerr := node.Pread(out, 0)
	require.EqualValues(t, 0, rerr)
	assert.Equal(t, len(payload), rn)
	assert.Equal(t, payload, out)
}

func TestReadPastEOFIsShort(t *testing.T) {
	_, root := newExt2(t, 1<<20)
	n, err := root.Create(ustr.Ustr("f"), 0644)
	require.EqualValues(t, 0, err)
	node := n.(*Node_t)
	_, werr := node.Pwrite([]byte("abc"), 0)
	require.EqualValues(t, 0, werr)

	buf := make([]byte, 10)
	rn, rerr := node.Pread(buf, 0)
	require.EqualValues(t, 0, rerr)
	assert.Equal(t, 3, rn)
}

func TestTruncateToZeroFreesBlocks(t *testing.T) {
	_, root := newExt2(t, 1<<20)
	n, err := root.Create(ustr.Ustr("f"), 0644)
	require.EqualValues(t, 0, err)
	node := n.(*Node_t)
	_, werr := node.Pwrite(make([]byte, 4096), 0)
	require.EqualValues(t, 0, werr)

	require.EqualValues(t, 0, node.Truncate(0))
	assert.EqualValues(t, 0, node.Size())
}

func TestPersistsAcrossRemount(t *testing.T) {
	disk, root := newExt2(t, 1<<20)
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

func TestMountRejectsBadMagic(t *testing.T) {
	disk := blkdev.NewMemDisk(1 << 20)
	_, err := Mount(disk, logr.Discard())
	assert.Equal(t, -defs.EINVAL, err)
}
