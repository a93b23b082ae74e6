package ext2

import (
	"github.com/go-logr/logr"

	"blkdev"
	"defs"
	"hashtable"
	"ustr"
	"vfs"
)

const defaultBlockSize = 1024

// Mkfs formats disk as a fresh rev0 EXT2 image occupying its full size,
// laid out as a single block group: superblock, BGD, block bitmap, inode
// bitmap, inode table, then data blocks (§4.11). It returns the mounted
// root directory node.
func Mkfs(disk blkdev.Disk_i, log logr.Logger) (*Node_t, defs.Err_t) {
	sz := disk.Size()
	if sz <= 0 {
		return nil, -defs.EINVAL
	}
	bsz := int64(defaultBlockSize)
	totalBlocks := uint32(sz / bsz)
	if totalBlocks < 32 {
		return nil, -defs.ENOSPC
	}

	// One inode per 4 data blocks is a generous ratio for a hosted test
	// image; real mkfs.ext2 tunes this from expected average file size.
	inodeCount := totalBlocks / 4
	if inodeCount < 16 {
		inodeCount = 16
	}
	inodeBlocks := (inodeCount*inodeSize + uint32(bsz) - 1) / uint32(bsz)
	inodeBitmapBlocks := uint32(1)
	blockBitmapBlocks := uint32(1)

	fs := &Fs_t{disk: disk, log: log, cache: hashtable.MkHash(256)}
	fs.sb.SetLogBlockSize(0) // 1024 << 0
	fs.sb.SetMagic(ext2Magic)
	fs.sb.SetBlockCount(totalBlocks)
	fs.sb.SetInodeCount(inodeCount)
	fs.sb.SetBlocksPerGroup(totalBlocks)
	fs.sb.SetInodesPerGroup(inodeCount)
	fs.sb.SetFirstInode(11) // reserved inodes 1-10, matching real ext2
	fs.sb.SetInodeSize(inodeSize)

	metaStart := uint32((1024+sbSize)/bsz) + 1 // superblock + BGD occupy the first block(s)
	if metaStart < 1 {
		metaStart = 1
	}
	blockBitmapAt := metaStart
	inodeBitmapAt := blockBitmapAt + blockBitmapBlocks
	inodeTableAt := inodeBitmapAt + inodeBitmapBlocks
	firstData := inodeTableAt + inodeBlocks

	fs.sb.SetFirstDataBlock(firstData)
	fs.sb.SetFreeBlockCount(totalBlocks - firstData)
	fs.sb.SetFreeInodeCount(inodeCount - 1) // root consumes inode 2

	fs.bgd.SetBlockBitmap(blockBitmapAt)
	fs.bgd.SetInodeBitmap(inodeBitmapAt)
	fs.bgd.SetInodeTable(inodeTableAt)
	fs.bgd.SetFreeBlockCount(fs.sb.FreeBlockCount())
	fs.bgd.SetFreeInodeCount(fs.sb.FreeInodeCount())

	for b := uint32(0); b < firstData; b++ {
		if err := fs.zeroBlock(b); err != 0 {
			return nil, err
		}
	}
	// Mark inodes 1..10 (reserved) used in the inode bitmap up front so
	// allocInode never hands one out; inode numbering is 1-based so bit i
	// corresponds to inode i+1.
	bm, err := fs.readBlock(inodeBitmapAt)
	if err != 0 {
		return nil, err
	}
	for i := 0; i < 10; i++ {
		setBit(bm, i)
	}
	if err := fs.writeBlock(inodeBitmapAt, bm); err != 0 {
		return nil, err
	}

	if err := fs.syncMeta(); err != 0 {
		return nil, err
	}

	root := &inode_t{}
	root.SetPermissions(sIFDIR | 0755)
	root.SetLinkCount(2)
	if err := fs.writeInode(rootIno, root); err != 0 {
		return nil, err
	}

	rn := &Node_t{fs: fs, ino: rootIno, path: ustr.MkUstrRoot(), ntype: vfs.NDIR}
	if err := rn.initEmptyDir(rootIno); err != 0 {
		return nil, err
	}
	return rn, 0
}

// Mount reads an existing image's superblock/BGD and returns its root
// node, failing with -EINVAL if the magic number doesn't match.
func Mount(disk blkdev.Disk_i, log logr.Logger) (*Node_t, defs.Err_t) {
	fs := &Fs_t{disk: disk, log: log, cache: hashtable.MkHash(256)}
	if err := disk.ReadAt(fs.sb.buf[:], 1024); err != 0 {
		return nil, err
	}
	if fs.sb.Magic() != ext2Magic {
		return nil, -defs.EINVAL
	}
	if err := disk.ReadAt(fs.bgd.buf[:], 1024+sbSize); err != 0 {
		return nil, err
	}
	return &Node_t{fs: fs, ino: rootIno, path: ustr.MkUstrRoot(), ntype: vfs.NDIR}, 0
}
