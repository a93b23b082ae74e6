// Package vfs implements the mount tree, path resolution, and the
// uniform fs_node operation set every filesystem backend (ustar, ext2)
// implements. Grounded in the teacher's fs package shape (fs/super.go's
// field-accessor style for on-disk structures, fs/blk.go's Disk_i/
// Bdev_block_t block-device abstraction, reused as blkdev.Disk_i) and
// in tree.Node_t for the mount tree itself, which the teacher's own
// Vm_t/Vmregion_t (vm/as.go) models as an ordered structure the same
// way. biscuit's actual fs_node vtable wasn't retrieved in this pack;
// the Inode_i interface and path-resolution walk below are new, written
// in the teacher's defs.Err_t-return idiom.
package vfs

import (
	"sync"

	"bpath"
	"defs"
	"tree"
	"ustr"
)

// Ntype_t enumerates fs_node kinds.
type Ntype_t int

const (
	NFILE Ntype_t = iota
	NDIR
	NSYMLINK
	NBLOCK
	NPIPE
)

// Dirent_t is one entry returned by Readdir.
type Dirent_t struct {
	Ino  int
	Name ustr.Ustr
}

// Inode_i is the per-backend vtable a filesystem node implements. A
// concrete node (ustar.Node_t, ext2.Node_t) satisfies this and also
// Data_i; the read/write/close/fstat/lseek fd surface comes from the
// Ofile_t that Open wraps around it. Pipe endpoints implement
// fdops.Fdops_i directly and are not Inode_i. Inode_i holds the
// namespace operations the VFS layer itself needs (lookup, mkdir,
// create, ...).
type Inode_i interface {
	Type() Ntype_t
	Lookup(name ustr.Ustr) (Inode_i, defs.Err_t)
	Create(name ustr.Ustr, perms uint) (Inode_i, defs.Err_t)
	Mkdir(name ustr.Ustr, perms uint) (Inode_i, defs.Err_t)
	Unlink(name ustr.Ustr) defs.Err_t
	Rename(oldname ustr.Ustr, newdir Inode_i, newname ustr.Ustr) defs.Err_t
	Symlink(target ustr.Ustr, name ustr.Ustr) defs.Err_t
	Readlink() (ustr.Ustr, defs.Err_t)
	Chmod(perms uint) defs.Err_t
	Readdir() ([]Dirent_t, defs.Err_t)
}

// Mount_t is one node of the mount tree: a mounted backend root plus its
// submounts, addressed by the path segment under its parent.
type Mount_t struct {
	Name ustr.Ustr
	Root Inode_i
}

// fsTree is the global mount tree; its root is the "/" mount. One lock
// guards mount/unmount only -- lookups are lock-free because the tree is
// append-only at runtime (§5 "Shared resources").
var (
	fsTree     *tree.Node_t[*Mount_t]
	fsTreeLock sync.Mutex
)

// Init installs root as the "/" mount.
func Init(root Inode_i) {
	fsTree = &tree.Node_t[*Mount_t]{Val: &Mount_t{Name: ustr.MkUstrRoot(), Root: root}}
}

// Mount attaches root at path, creating intermediate VFS directories (in
// the deepest existing backend, via Mkdir) as needed. At the final path
// element it registers a new mount-tree child so the node then appears
// as a directory child of its parent mount, matching §4.8 "Mount".
func Mount(root Inode_i, path ustr.Ustr) defs.Err_t {
	fsTreeLock.Lock()
	defer fsTreeLock.Unlock()

	segs := bpath.Segments(bpath.Canonicalize(path))
	cur := fsTree
	for i, seg := range segs {
		var next *tree.Node_t[*Mount_t]
		cur.EachChild(func(c *tree.Node_t[*Mount_t]) {
			if c.Val.Name.Eq(seg) {
				next = c
			}
		})
		if next == nil {
			if i == len(segs)-1 {
				next = &tree.Node_t[*Mount_t]{Val: &Mount_t{Name: seg, Root: root}}
				cur.AddChild(next)
				return 0
			}
			if _, err := cur.Val.Root.Mkdir(seg, 0755); err != 0 && err != -defs.EEXIST {
				return err
			}
			sub, err := cur.Val.Root.Lookup(seg)
			if err != 0 {
				return err
			}
			next = &tree.Node_t[*Mount_t]{Val: &Mount_t{Name: seg, Root: sub}}
			cur.AddChild(next)
		}
		cur = next
	}
	return 0
}

// deepestMount walks down the mount tree following segs, returning the
// deepest matching mount and the remaining (unconsumed) segments.
func deepestMount(segs []ustr.Ustr) (*tree.Node_t[*Mount_t], []ustr.Ustr) {
	cur := fsTree
	i := 0
	for i < len(segs) {
		var next *tree.Node_t[*Mount_t]
		cur.EachChild(func(c *tree.Node_t[*Mount_t]) {
			if c.Val.Name.Eq(segs[i]) {
				next = c
			}
		})
		if next == nil {
			break
		}
		cur = next
		i++
	}
	return cur, segs[i:]
}

const maxSymlinkDepth = 16

// Resolve walks path (already joined with cwd by the caller) down to its
// target Inode_i, following symlinks unless nofollow is set.
func Resolve(path ustr.Ustr, nofollow bool) (Inode_i, defs.Err_t) {
	return resolve(path, nofollow, 0)
}

func resolve(path ustr.Ustr, nofollow bool, depth int) (Inode_i, defs.Err_t) {
	if depth > maxSymlinkDepth {
		return nil, -defs.EINVAL
	}
	segs := bpath.Segments(bpath.Canonicalize(path))
	mnt, rest := deepestMount(segs)
	cur := mnt.Val.Root
	for i, seg := range rest {
		n, err := cur.Lookup(seg)
		if err != 0 {
			return nil, err
		}
		isLast := i == len(rest)-1
		if n.Type() == NSYMLINK && (!isLast || !nofollow) {
			target, err := n.Readlink()
			if err != 0 {
				return nil, err
			}
			linkDir := ustr.MkUstrRoot()
			for _, s := range segs[:len(segs)-len(rest)+i] {
				linkDir = linkDir.Extend(s)
			}
			if !target.IsAbsolute() {
				target = linkDir.Extend(target)
			}
			for _, s := range rest[i+1:] {
				target = target.Extend(s)
			}
			return resolve(target, nofollow, depth+1)
		}
		cur = n
	}
	return cur, 0
}

// ResolveParent resolves path's directory component and returns it along
// with the leaf name, for create/mkdir/unlink/rename callers.
func ResolveParent(path ustr.Ustr) (Inode_i, ustr.Ustr, defs.Err_t) {
	dir := bpath.Dirname(path)
	leaf := bpath.Basename(path)
	p, err := Resolve(dir, false)
	if err != 0 {
		return nil, nil, err
	}
	return p, leaf, 0
}

// ReaddirMounted implements §4.8 "Readdir": for a directory that is also
// a mount point, enumeration yields ".", ".." (unless root), then the
// submount children, then backend entries.
func ReaddirMounted(mnt *tree.Node_t[*Mount_t]) ([]Dirent_t, defs.Err_t) {
	var out []Dirent_t
	out = append(out, Dirent_t{Name: ustr.MkUstrDot()})
	if mnt.Parent() != nil {
		out = append(out, Dirent_t{Name: ustr.DotDot})
	}
	mnt.EachChild(func(c *tree.Node_t[*Mount_t]) {
		out = append(out, Dirent_t{Name: c.Val.Name})
	})
	backend, err := mnt.Val.Root.Readdir()
	if err != 0 {
		return nil, err
	}
	out = append(out, backend...)
	return out, 0
}
