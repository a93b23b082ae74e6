package ext2

import "defs"

// dirIter walks every physical block backing dirIno's directory data,
// invoking fn with each block's raw bytes and its logical index. fn
// returns stop=true to end the walk early and dirty=true when it modified
// the block, which is then written back.
func (fs *Fs_t) dirIter(dirIno uint32, fn func(lbi uint32, buf []byte) (stop bool, dirty bool)) defs.Err_t {
	ni, err := fs.readInode(dirIno)
	if err != 0 {
		return err
	}
	nblocks := (int64(ni.Size()) + fs.blockSize() - 1) / fs.blockSize()
	for lbi := int64(0); lbi < nblocks; lbi++ {
		pb, err := fs.resolve(ni, uint32(lbi), false)
		if err != 0 {
			return err
		}
		if pb == 0 {
			continue
		}
		buf, err := fs.readBlock(pb)
		if err != 0 {
			return err
		}
		stop, dirty := fn(uint32(lbi), buf)
		if dirty {
			if err := fs.writeBlock(pb, buf); err != 0 {
				return err
			}
		}
		if stop {
			return 0
		}
	}
	return 0
}

// dirLookup scans dirIno's entries for name, returning its inode number
// and file type.
func (fs *Fs_t) dirLookup(dirIno uint32, name string) (uint32, byte, bool, defs.Err_t) {
	var found dirent_t
	var ok bool
	err := fs.dirIter(dirIno, func(lbi uint32, buf []byte) (bool, bool) {
		off := 0
		for off+direntHdr <= len(buf) {
			d := decodeDirent(buf[off:])
			if d.reclen == 0 {
				break
			}
			if d.ino != 0 && d.name == name {
				found = d
				ok = true
				return true, false
			}
			off += int(d.reclen)
		}
		return false, false
	})
	if err != 0 {
		return 0, 0, false, err
	}
	return found.ino, found.ftype, ok, 0
}

// dirList returns every live entry in dirIno.
func (fs *Fs_t) dirList(dirIno uint32) ([]dirent_t, defs.Err_t) {
	var out []dirent_t
	err := fs.dirIter(dirIno, func(lbi uint32, buf []byte) (bool, bool) {
		off := 0
		for off+direntHdr <= len(buf) {
			d := decodeDirent(buf[off:])
			if d.reclen == 0 {
				break
			}
			if d.ino != 0 {
				out = append(out, d)
			}
			off += int(d.reclen)
		}
		return false, false
	})
	return out, err
}

// dirAddEntry inserts (name, ino, ftype) into dirIno, splitting a
// sufficiently oversized trailing entry (the standard ext2 packing
// scheme) or appending a fresh block when no existing block has room.
func (fs *Fs_t) dirAddEntry(dirIno uint32, name string, ino uint32, ftype byte) defs.Err_t {
	need := direntSpace(len(name))
	inserted := false
	err := fs.dirIter(dirIno, func(lbi uint32, buf []byte) (bool, bool) {
		off := 0
		for off+direntHdr <= len(buf) {
			d := decodeDirent(buf[off:])
			if d.reclen == 0 {
				break
			}
			used := direntSpace(len(d.name))
			if d.ino == 0 && d.reclen >= need {
				// A deleted entry's slot, reused in place.
				encodeDirent(buf[off:off+int(d.reclen)], dirent_t{
					ino: ino, reclen: d.reclen, ftype: ftype, name: name,
				})
				inserted = true
				return true, true
			}
			if d.reclen-used >= need {
				encodeDirent(buf[off:off+int(used)], dirent_t{
					ino: d.ino, reclen: used, ftype: d.ftype, name: d.name,
				})
				encodeDirent(buf[off+int(used):off+int(d.reclen)], dirent_t{
					ino: ino, reclen: d.reclen - used, ftype: ftype, name: name,
				})
				inserted = true
				return true, true
			}
			off += int(d.reclen)
		}
		return false, false
	})
	if err != 0 {
		return err
	}
	if inserted {
		return 0
	}

	ni, err := fs.readInode(dirIno)
	if err != 0 {
		return err
	}
	lbi := uint32(ni.Size()) / uint32(fs.blockSize())
	pb, err := fs.resolve(ni, lbi, true)
	if err != 0 {
		return err
	}
	buf := make([]byte, fs.blockSize())
	encodeDirent(buf, dirent_t{ino: ino, reclen: uint16(fs.blockSize()), ftype: ftype, name: name})
	if err := fs.writeBlock(pb, buf); err != 0 {
		return err
	}
	ni.SetSize(ni.Size() + uint32(fs.blockSize()))
	return fs.writeInode(dirIno, ni)
}

// dirRemove zeros out name's entry's inode number, marking the slot free
// for dirAddEntry's reuse path; the entry's space is never merged with a
// neighbor (ext2's usual behavior merges on delete, but the simpler
// tombstone-and-reuse scheme here is sufficient for this kernel's VFS
// operations, which never rely on directory compaction).
func (fs *Fs_t) dirRemove(dirIno uint32, name string) defs.Err_t {
	removed := false
	err := fs.dirIter(dirIno, func(lbi uint32, buf []byte) (bool, bool) {
		off := 0
		for off+direntHdr <= len(buf) {
			d := decodeDirent(buf[off:])
			if d.reclen == 0 {
				break
			}
			if d.ino != 0 && d.name == name {
				le.PutUint32(buf[off:], 0)
				removed = true
				return true, true
			}
			off += int(d.reclen)
		}
		return false, false
	})
	if err != 0 {
		return err
	}
	if !removed {
		return -defs.ENOENT
	}
	return 0
}

// truncateInode resizes ino to sz bytes. Growing only updates the size
// field (new logical blocks are allocated lazily on first write, leaving
// the gap as a sparse hole read back as zeros). Shrinking to zero frees
// every block the inode owns, including indirect blocks; shrinking to a
// nonzero size only updates the size field, since the only caller that
// needs a hard zero (Unlink) always truncates to zero first.
func (fs *Fs_t) truncateInode(ino uint32, ni *inode_t, sz int64) defs.Err_t {
	if sz != 0 {
		ni.SetSize(uint32(sz))
		return fs.writeInode(ino, ni)
	}
	for i := 0; i < direct; i++ {
		if p := ni.BlockPointer(i); p != 0 {
			fs.freeBlock(p)
			ni.SetBlockPointer(i, 0)
		}
	}
	for _, depth := range []int{1, 2, 3} {
		idx := singleIndIdx + depth - 1
		if p := ni.BlockPointer(idx); p != 0 {
			fs.freeIndirect(p, depth)
			ni.SetBlockPointer(idx, 0)
		}
	}
	ni.SetSize(0)
	return fs.writeInode(ino, ni)
}

func (fs *Fs_t) freeIndirect(blk uint32, depth int) {
	if depth > 1 {
		buf, err := fs.readBlock(blk)
		if err == 0 {
			ppb := int(fs.ppb())
			for i := 0; i < ppb; i++ {
				child := le.Uint32(buf[i*4:])
				if child != 0 {
					fs.freeIndirect(child, depth-1)
				}
			}
		}
	}
	fs.freeBlock(blk)
}
