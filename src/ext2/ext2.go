package ext2

import (
	"sync"

	"github.com/go-logr/logr"

	"blkdev"
	"defs"
	"hashtable"
)

// Fs_t is one mounted EXT2 image: a single block group (this kernel
// never builds multi-gigabyte images, so the rev0 group-descriptor table
// is always one entry long), its cached superblock/BGD, and the four
// locks §4.11/§5 calls for (ops/inode/block/BGD). The in-memory inode
// cache is a hashtable.Hashtable_t keyed by inode number, per
// SPEC_FULL.md's "Supplemented features".
type Fs_t struct {
	disk blkdev.Disk_i
	log  logr.Logger

	opsLock   sync.Mutex
	blockLock sync.Mutex
	inodeLock sync.Mutex
	bgdLock   sync.Mutex

	sb  superblock_t
	bgd bgd_t

	cache *hashtable.Hashtable_t
}

func (fs *Fs_t) blockSize() int64 { return fs.sb.BlockSize() }

func (fs *Fs_t) ppb() uint32 { return uint32(fs.blockSize() / 4) }

func (fs *Fs_t) readBlock(num uint32) ([]byte, defs.Err_t) {
	buf := make([]byte, fs.blockSize())
	if err := fs.disk.ReadAt(buf, int64(num)*fs.blockSize()); err != 0 {
		fs.log.Info("block read failed", "block", num, "err", err.String())
		return nil, err
	}
	return buf, 0
}

func (fs *Fs_t) writeBlock(num uint32, buf []byte) defs.Err_t {
	if err := fs.disk.WriteAt(buf, int64(num)*fs.blockSize()); err != 0 {
		fs.log.Info("block write failed", "block", num, "err", err.String())
		return err
	}
	return 0
}

func (fs *Fs_t) zeroBlock(num uint32) defs.Err_t {
	return fs.writeBlock(num, make([]byte, fs.blockSize()))
}

// allocBlock finds the first unset bit in the block bitmap, sets it, and
// returns the corresponding block number. It holds blockLock and bgdLock
// for the duration, matching §4.11's per-resource lock ordering.
func (fs *Fs_t) allocBlock() (uint32, defs.Err_t) {
	fs.blockLock.Lock()
	defer fs.blockLock.Unlock()
	fs.bgdLock.Lock()
	defer fs.bgdLock.Unlock()

	bm, err := fs.readBlock(fs.bgd.BlockBitmap())
	if err != 0 {
		return 0, err
	}
	total := fs.sb.BlockCount() - fs.sb.FirstDataBlock()
	idx, ok := firstClearBit(bm, int(total))
	if !ok {
		return 0, -defs.ENOSPC
	}
	setBit(bm, idx)
	if err := fs.writeBlock(fs.bgd.BlockBitmap(), bm); err != 0 {
		return 0, err
	}
	fs.bgd.SetFreeBlockCount(fs.bgd.FreeBlockCount() - 1)
	fs.sb.SetFreeBlockCount(fs.sb.FreeBlockCount() - 1)
	if err := fs.syncMeta(); err != 0 {
		return 0, err
	}
	num := fs.sb.FirstDataBlock() + uint32(idx)
	if err := fs.zeroBlock(num); err != 0 {
		return 0, err
	}
	return num, 0
}

func (fs *Fs_t) freeBlock(num uint32) defs.Err_t {
	fs.blockLock.Lock()
	defer fs.blockLock.Unlock()
	fs.bgdLock.Lock()
	defer fs.bgdLock.Unlock()

	bm, err := fs.readBlock(fs.bgd.BlockBitmap())
	if err != 0 {
		return err
	}
	idx := int(num - fs.sb.FirstDataBlock())
	clearBit(bm, idx)
	if err := fs.writeBlock(fs.bgd.BlockBitmap(), bm); err != 0 {
		return err
	}
	fs.bgd.SetFreeBlockCount(fs.bgd.FreeBlockCount() + 1)
	fs.sb.SetFreeBlockCount(fs.sb.FreeBlockCount() + 1)
	return fs.syncMeta()
}

// allocInode mirrors allocBlock over the inode bitmap/table; returned
// inode numbers are 1-based, matching ext2's convention.
func (fs *Fs_t) allocInode() (uint32, defs.Err_t) {
	fs.inodeLock.Lock()
	defer fs.inodeLock.Unlock()
	fs.bgdLock.Lock()
	defer fs.bgdLock.Unlock()

	bm, err := fs.readBlock(fs.bgd.InodeBitmap())
	if err != 0 {
		return 0, err
	}
	idx, ok := firstClearBit(bm, int(fs.sb.InodeCount()))
	if !ok {
		return 0, -defs.ENOSPC
	}
	setBit(bm, idx)
	if err := fs.writeBlock(fs.bgd.InodeBitmap(), bm); err != 0 {
		return 0, err
	}
	fs.bgd.SetFreeInodeCount(fs.bgd.FreeInodeCount() - 1)
	fs.sb.SetFreeInodeCount(fs.sb.FreeInodeCount() - 1)
	if err := fs.syncMeta(); err != 0 {
		return 0, err
	}
	return uint32(idx) + 1, 0
}

func (fs *Fs_t) freeInode(ino uint32) defs.Err_t {
	fs.inodeLock.Lock()
	defer fs.inodeLock.Unlock()
	fs.bgdLock.Lock()
	defer fs.bgdLock.Unlock()

	bm, err := fs.readBlock(fs.bgd.InodeBitmap())
	if err != 0 {
		return err
	}
	clearBit(bm, int(ino-1))
	if err := fs.writeBlock(fs.bgd.InodeBitmap(), bm); err != 0 {
		return err
	}
	fs.bgd.SetFreeInodeCount(fs.bgd.FreeInodeCount() + 1)
	fs.sb.SetFreeInodeCount(fs.sb.FreeInodeCount() + 1)
	fs.cache.Del(int(ino))
	return fs.syncMeta()
}

// inodeLoc returns the block and in-block byte offset of ino's on-disk
// record within the block group's inode table.
func (fs *Fs_t) inodeLoc(ino uint32) (uint32, int64) {
	perBlock := uint32(fs.blockSize()) / inodeSize
	idx := ino - 1
	block := fs.bgd.InodeTable() + idx/perBlock
	off := int64(idx%perBlock) * inodeSize
	return block, off
}

func (fs *Fs_t) readInode(ino uint32) (*inode_t, defs.Err_t) {
	if v, ok := fs.cache.Get(int(ino)); ok {
		cp := *v.(*inode_t)
		return &cp, 0
	}
	block, off := fs.inodeLoc(ino)
	buf, err := fs.readBlock(block)
	if err != 0 {
		return nil, err
	}
	n := &inode_t{}
	copy(n.buf[:], buf[off:off+inodeSize])
	cp := *n
	fs.cache.Set(int(ino), &cp)
	return n, 0
}

func (fs *Fs_t) writeInode(ino uint32, n *inode_t) defs.Err_t {
	block, off := fs.inodeLoc(ino)
	buf, err := fs.readBlock(block)
	if err != 0 {
		return err
	}
	copy(buf[off:off+inodeSize], n.buf[:])
	if err := fs.writeBlock(block, buf); err != 0 {
		return err
	}
	if _, ok := fs.cache.Get(int(ino)); ok {
		fs.cache.Del(int(ino))
	}
	cp := *n
	fs.cache.Set(int(ino), &cp)
	return 0
}

// syncMeta writes the superblock and block group descriptor back to
// their fixed locations. Called after every bitmap/counter mutation so a
// host-side fsck sees consistent metadata even without a clean unmount.
func (fs *Fs_t) syncMeta() defs.Err_t {
	if err := fs.disk.WriteAt(fs.sb.buf[:], 1024); err != 0 {
		return err
	}
	return fs.disk.WriteAt(fs.bgd.buf[:], 1024+sbSize)
}

// resolve maps a logical block index within an inode to its physical
// block number, walking direct/single/double/triple-indirect pointers
// generically (§4.11 "indirect/double/triple-indirect pointers"). When
// alloc is true, holes along the path are filled with freshly allocated
// blocks; the inode's pointer slots are written back by the caller after
// resolve returns via n (resolve mutates it in place).
func (fs *Fs_t) resolve(n *inode_t, lbi uint32, alloc bool) (uint32, defs.Err_t) {
	ppb := fs.ppb()
	if lbi < direct {
		ptr := n.BlockPointer(int(lbi))
		if ptr == 0 && alloc {
			nb, err := fs.allocBlock()
			if err != 0 {
				return 0, err
			}
			n.SetBlockPointer(int(lbi), nb)
			ptr = nb
		}
		return ptr, 0
	}
	lbi -= direct

	if lbi < ppb {
		return fs.resolveIndirect(n, singleIndIdx, 1, lbi, alloc)
	}
	lbi -= ppb

	if lbi < ppb*ppb {
		return fs.resolveIndirect(n, doubleIndIdx, 2, lbi, alloc)
	}
	lbi -= ppb * ppb

	return fs.resolveIndirect(n, tripleIndIdx, 3, lbi, alloc)
}

func (fs *Fs_t) resolveIndirect(n *inode_t, slot, depth int, lbi uint32, alloc bool) (uint32, defs.Err_t) {
	root := n.BlockPointer(slot)
	if root == 0 {
		if !alloc {
			return 0, 0
		}
		nb, err := fs.allocBlock()
		if err != 0 {
			return 0, err
		}
		n.SetBlockPointer(slot, nb)
		root = nb
	}
	return fs.walkIndirect(root, depth, lbi, alloc)
}

// walkIndirect descends depth levels of indirection starting at block
// blk, allocating child blocks along the way when alloc is set.
func (fs *Fs_t) walkIndirect(blk uint32, depth int, lbi uint32, alloc bool) (uint32, defs.Err_t) {
	buf, err := fs.readBlock(blk)
	if err != 0 {
		return 0, err
	}
	ppb := fs.ppb()

	if depth == 1 {
		entry := le.Uint32(buf[lbi*4:])
		if entry == 0 && alloc {
			nb, err := fs.allocBlock()
			if err != 0 {
				return 0, err
			}
			le.PutUint32(buf[lbi*4:], nb)
			if err := fs.writeBlock(blk, buf); err != 0 {
				return 0, err
			}
			entry = nb
		}
		return entry, 0
	}

	span := pow32(ppb, depth-1)
	idx := lbi / span
	rem := lbi % span
	entry := le.Uint32(buf[idx*4:])
	if entry == 0 {
		if !alloc {
			return 0, 0
		}
		nb, err := fs.allocBlock()
		if err != 0 {
			return 0, err
		}
		le.PutUint32(buf[idx*4:], nb)
		if err := fs.writeBlock(blk, buf); err != 0 {
			return 0, err
		}
		entry = nb
	}
	return fs.walkIndirect(entry, depth-1, rem, alloc)
}

func pow32(base uint32, exp int) uint32 {
	r := uint32(1)
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}

func firstClearBit(bm []byte, limit int) (int, bool) {
	for i := 0; i < limit; i++ {
		if bm[i/8]&(1<<uint(i%8)) == 0 {
			return i, true
		}
	}
	return 0, false
}

func setBit(bm []byte, i int)   { bm[i/8] |= 1 << uint(i%8) }
func clearBit(bm []byte, i int) { bm[i/8] &^= 1 << uint(i%8) }
