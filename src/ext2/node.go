package ext2

import (
	"defs"
	"stat"
	"ustr"
	"vfs"
)

// Node_t is one VFS inode backed by an EXT2 on-disk inode, mirroring
// ustar.Node_t's shape: a reference to the shared Fs_t plus this node's
// path (kept for error messages and Lookup's child-path construction)
// and cached type.
type Node_t struct {
	fs    *Fs_t
	ino   uint32
	path  ustr.Ustr
	ntype vfs.Ntype_t
}

var _ vfs.Inode_i = (*Node_t)(nil)
var _ vfs.Data_i = (*Node_t)(nil)

func (n *Node_t) Type() vfs.Ntype_t { return n.ntype }

func ntypeFromFtype(ft byte) vfs.Ntype_t {
	switch ft {
	case ftDir:
		return vfs.NDIR
	case ftSymlink:
		return vfs.NSYMLINK
	default:
		return vfs.NFILE
	}
}

// initEmptyDir writes "." and ".." entries for a freshly allocated
// directory inode whose parent (for root, itself) is parentIno.
func (n *Node_t) initEmptyDir(parentIno uint32) defs.Err_t {
	if err := n.fs.dirAddEntry(n.ino, ".", n.ino, ftDir); err != 0 {
		return err
	}
	return n.fs.dirAddEntry(n.ino, "..", parentIno, ftDir)
}

func (n *Node_t) Lookup(name ustr.Ustr) (vfs.Inode_i, defs.Err_t) {
	n.fs.opsLock.Lock()
	defer n.fs.opsLock.Unlock()
	ino, ft, ok, err := n.fs.dirLookup(n.ino, name.String())
	if err != 0 {
		return nil, err
	}
	if !ok {
		return nil, -defs.ENOENT
	}
	return &Node_t{fs: n.fs, ino: ino, path: joinPath(n.path, name), ntype: ntypeFromFtype(ft)}, 0
}

func joinPath(dir, name ustr.Ustr) ustr.Ustr {
	if dir.Eq(ustr.MkUstrRoot()) {
		return append(ustr.Ustr{'/'}, name...)
	}
	return dir.Extend(name)
}

func (n *Node_t) create(name ustr.Ustr, perms uint, mode uint16, ftype byte) (vfs.Inode_i, defs.Err_t) {
	n.fs.opsLock.Lock()
	defer n.fs.opsLock.Unlock()

	if _, _, ok, _ := n.fs.dirLookup(n.ino, name.String()); ok {
		return nil, -defs.EEXIST
	}
	ino, err := n.fs.allocInode()
	if err != 0 {
		return nil, err
	}
	ni := &inode_t{}
	ni.SetPermissions(mode | uint16(perms&0xfff))
	ni.SetLinkCount(1)
	if err := n.fs.writeInode(ino, ni); err != 0 {
		return nil, err
	}
	if err := n.fs.dirAddEntry(n.ino, name.String(), ino, ftype); err != 0 {
		return nil, err
	}
	child := &Node_t{fs: n.fs, ino: ino, path: joinPath(n.path, name), ntype: ntypeFromFtype(ftype)}
	return child, 0
}

func (n *Node_t) Create(name ustr.Ustr, perms uint) (vfs.Inode_i, defs.Err_t) {
	return n.create(name, perms, sIFREG, ftFile)
}

func (n *Node_t) Mkdir(name ustr.Ustr, perms uint) (vfs.Inode_i, defs.Err_t) {
	child, err := n.create(name, perms, sIFDIR, ftDir)
	if err != 0 {
		return nil, err
	}
	cn := child.(*Node_t)
	ni, err := n.fs.readInode(cn.ino)
	if err != 0 {
		return nil, err
	}
	ni.SetLinkCount(2)
	if err := n.fs.writeInode(cn.ino, ni); err != 0 {
		return nil, err
	}
	if err := cn.initEmptyDir(n.ino); err != 0 {
		return nil, err
	}
	return cn, 0
}

func (n *Node_t) Unlink(name ustr.Ustr) defs.Err_t {
	n.fs.opsLock.Lock()
	defer n.fs.opsLock.Unlock()
	ino, _, ok, err := n.fs.dirLookup(n.ino, name.String())
	if err != 0 {
		return err
	}
	if !ok {
		return -defs.ENOENT
	}
	if err := n.fs.dirRemove(n.ino, name.String()); err != 0 {
		return err
	}
	ni, err := n.fs.readInode(ino)
	if err != 0 {
		return err
	}
	links := ni.LinkCount()
	if links > 0 {
		links--
	}
	ni.SetLinkCount(links)
	if links == 0 {
		if err := n.fs.truncateInode(ino, ni, 0); err != 0 {
			return err
		}
		return n.fs.freeInode(ino)
	}
	return n.fs.writeInode(ino, ni)
}

func (n *Node_t) Rename(oldname ustr.Ustr, newdir vfs.Inode_i, newname ustr.Ustr) defs.Err_t {
	dst, ok := newdir.(*Node_t)
	if !ok {
		return -defs.EINVAL
	}
	n.fs.opsLock.Lock()
	defer n.fs.opsLock.Unlock()

	ino, ft, ok, err := n.fs.dirLookup(n.ino, oldname.String())
	if err != 0 {
		return err
	}
	if !ok {
		return -defs.ENOENT
	}
	if _, _, exists, _ := n.fs.dirLookup(dst.ino, newname.String()); exists {
		return -defs.EEXIST
	}
	if err := n.fs.dirAddEntry(dst.ino, newname.String(), ino, ft); err != 0 {
		return err
	}
	return n.fs.dirRemove(n.ino, oldname.String())
}

func (n *Node_t) Symlink(target ustr.Ustr, name ustr.Ustr) defs.Err_t {
	child, err := n.create(name, 0777, sIFLNK, ftSymlink)
	if err != 0 {
		return err
	}
	cn := child.(*Node_t)
	_, err = cn.Pwrite(target, 0)
	return err
}

func (n *Node_t) Readlink() (ustr.Ustr, defs.Err_t) {
	ni, err := n.fs.readInode(n.ino)
	if err != 0 {
		return nil, err
	}
	buf := make([]byte, ni.Size())
	if len(buf) > 0 {
		if _, err := n.Pread(buf, 0); err != 0 {
			return nil, err
		}
	}
	return ustr.Ustr(buf), 0
}

func (n *Node_t) Chmod(perms uint) defs.Err_t {
	n.fs.opsLock.Lock()
	defer n.fs.opsLock.Unlock()
	ni, err := n.fs.readInode(n.ino)
	if err != 0 {
		return err
	}
	ni.SetPermissions((ni.Permissions() &^ 0xfff) | uint16(perms&0xfff))
	return n.fs.writeInode(n.ino, ni)
}

func (n *Node_t) Readdir() ([]vfs.Dirent_t, defs.Err_t) {
	n.fs.opsLock.Lock()
	defer n.fs.opsLock.Unlock()
	ents, err := n.fs.dirList(n.ino)
	if err != 0 {
		return nil, err
	}
	var out []vfs.Dirent_t
	for _, e := range ents {
		if e.name == "." || e.name == ".." {
			continue
		}
		out = append(out, vfs.Dirent_t{Ino: int(e.ino), Name: ustr.Ustr(e.name)})
	}
	return out, 0
}

// Size/Pread/Pwrite/Truncate/Stat implement vfs.Data_i.

func (n *Node_t) Size() int64 {
	ni, err := n.fs.readInode(n.ino)
	if err != 0 {
		return 0
	}
	return int64(ni.Size())
}

func (n *Node_t) Pread(buf []uint8, off int64) (int, defs.Err_t) {
	ni, err := n.fs.readInode(n.ino)
	if err != 0 {
		return 0, err
	}
	sz := int64(ni.Size())
	if off >= sz {
		return 0, 0
	}
	want := int64(len(buf))
	if off+want > sz {
		want = sz - off
	}
	bsz := n.fs.blockSize()
	got := int64(0)
	for got < want {
		lbi := uint32((off + got) / bsz)
		inblk := (off + got) % bsz
		chunk := bsz - inblk
		if rem := want - got; chunk > rem {
			chunk = rem
		}
		pb, err := n.fs.resolve(ni, lbi, false)
		if err != 0 {
			return int(got), err
		}
		dst := buf[got : got+chunk]
		if pb == 0 {
			for i := range dst {
				dst[i] = 0
			}
		} else {
			blk, err := n.fs.readBlock(pb)
			if err != 0 {
				return int(got), err
			}
			copy(dst, blk[inblk:inblk+chunk])
		}
		got += chunk
	}
	return int(got), 0
}

func (n *Node_t) Pwrite(buf []uint8, off int64) (int, defs.Err_t) {
	ni, err := n.fs.readInode(n.ino)
	if err != 0 {
		return 0, err
	}
	bsz := n.fs.blockSize()
	written := int64(0)
	want := int64(len(buf))
	for written < want {
		lbi := uint32((off + written) / bsz)
		inblk := (off + written) % bsz
		chunk := bsz - inblk
		if rem := want - written; chunk > rem {
			chunk = rem
		}
		pb, err := n.fs.resolve(ni, lbi, true)
		if err != 0 {
			return int(written), err
		}
		blk, err := n.fs.readBlock(pb)
		if err != 0 {
			return int(written), err
		}
		copy(blk[inblk:inblk+chunk], buf[written:written+chunk])
		if err := n.fs.writeBlock(pb, blk); err != 0 {
			return int(written), err
		}
		written += chunk
	}
	newSize := off + want
	if newSize > int64(ni.Size()) {
		ni.SetSize(uint32(newSize))
	}
	if err := n.fs.writeInode(n.ino, ni); err != 0 {
		return int(written), err
	}
	return int(written), 0
}

func (n *Node_t) Truncate(sz int64) defs.Err_t {
	ni, err := n.fs.readInode(n.ino)
	if err != 0 {
		return err
	}
	return n.fs.truncateInode(n.ino, ni, sz)
}

func (n *Node_t) Stat(st *stat.Stat_t) defs.Err_t {
	ni, err := n.fs.readInode(n.ino)
	if err != 0 {
		return err
	}
	mode := uint(sIFREG)
	switch n.ntype {
	case vfs.NDIR:
		mode = sIFDIR
	case vfs.NSYMLINK:
		mode = sIFLNK
	}
	st.Wmode(mode | uint(ni.Permissions()&0xfff))
	st.Wsize(uint(ni.Size()))
	st.Wino(uint(n.ino))
	st.Wnlink(uint(ni.LinkCount()))
	return 0
}
