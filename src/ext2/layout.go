// Package ext2 implements the rev0 EXT2 backend (§4.11): superblock,
// block group descriptors, inodes with direct/indirect/double-indirect/
// triple-indirect block pointers, and variable-length directory entries,
// exposed as a VFS tree the same way ustar is. Grounded in
// original_source/src/ext2/ext2.h's on-disk struct layouts and in the
// teacher's fs/super.go field-accessor idiom (a fixed-size byte buffer
// with named Get/Set methods at constant offsets) already used for
// ustar's header_t.
package ext2

import "encoding/binary"

const (
	ext2Magic       = 0xEF53
	rootIno  uint32 = 2
	badIno   uint32 = 1

	sbSize  = 1024
	bgdSize = 32 // block_bitmap, inode_bitmap, inode_table, 2x free counts, dir_count, unused

	inodeSize = 128

	direct       = 12
	singleIndIdx = 12
	doubleIndIdx = 13
	tripleIndIdx = 14

	direntHdr = 8 // inode(4) + rec_len(2) + name_len(1) + type(1)

	ftUnknown = 0
	ftFile    = 1
	ftDir     = 2
	ftSymlink = 7
)

var le = binary.LittleEndian

// superblock_t is the 1024-byte rev0 superblock, laid out per
// original_source/src/ext2/ext2.h's ext2_superblock_s.
type superblock_t struct {
	buf [sbSize]byte
}

const (
	sbInodeCount       = 0
	sbBlockCount       = 4
	sbRootBlockCount   = 8
	sbFreeBlockCount   = 12
	sbFreeInodeCount   = 16
	sbFirstDataBlock   = 20
	sbLogBlockSize     = 24
	sbLogFragSize      = 28
	sbBlocksPerGroup   = 32
	sbFragsPerGroup    = 36
	sbInodesPerGroup   = 40
	sbMountTime        = 44
	sbWriteTime        = 48
	sbMountCount       = 52
	sbMountCountAllow  = 54
	sbMagic            = 56
	sbState            = 58
	sbErr              = 60
	sbVersionMinor     = 62
	sbLastCheck        = 64
	sbCheckInterval    = 68
	sbOsID             = 72
	sbVersionMajor     = 76
	sbFirstInode       = 84
	sbInodeSize        = 88
)

func (s *superblock_t) u32(off int) uint32     { return le.Uint32(s.buf[off:]) }
func (s *superblock_t) setU32(off int, v uint32) { le.PutUint32(s.buf[off:], v) }
func (s *superblock_t) u16(off int) uint16     { return le.Uint16(s.buf[off:]) }
func (s *superblock_t) setU16(off int, v uint16) { le.PutUint16(s.buf[off:], v) }

func (s *superblock_t) InodeCount() uint32      { return s.u32(sbInodeCount) }
func (s *superblock_t) SetInodeCount(v uint32)   { s.setU32(sbInodeCount, v) }
func (s *superblock_t) BlockCount() uint32       { return s.u32(sbBlockCount) }
func (s *superblock_t) SetBlockCount(v uint32)   { s.setU32(sbBlockCount, v) }
func (s *superblock_t) FreeBlockCount() uint32    { return s.u32(sbFreeBlockCount) }
func (s *superblock_t) SetFreeBlockCount(v uint32) { s.setU32(sbFreeBlockCount, v) }
func (s *superblock_t) FreeInodeCount() uint32    { return s.u32(sbFreeInodeCount) }
func (s *superblock_t) SetFreeInodeCount(v uint32) { s.setU32(sbFreeInodeCount, v) }
func (s *superblock_t) FirstDataBlock() uint32    { return s.u32(sbFirstDataBlock) }
func (s *superblock_t) SetFirstDataBlock(v uint32) { s.setU32(sbFirstDataBlock, v) }
func (s *superblock_t) LogBlockSize() uint32      { return s.u32(sbLogBlockSize) }
func (s *superblock_t) SetLogBlockSize(v uint32)  { s.setU32(sbLogBlockSize, v) }
func (s *superblock_t) BlocksPerGroup() uint32    { return s.u32(sbBlocksPerGroup) }
func (s *superblock_t) SetBlocksPerGroup(v uint32) { s.setU32(sbBlocksPerGroup, v) }
func (s *superblock_t) InodesPerGroup() uint32    { return s.u32(sbInodesPerGroup) }
func (s *superblock_t) SetInodesPerGroup(v uint32) { s.setU32(sbInodesPerGroup, v) }
func (s *superblock_t) Magic() uint16             { return s.u16(sbMagic) }
func (s *superblock_t) SetMagic(v uint16)         { s.setU16(sbMagic, v) }
func (s *superblock_t) FirstInode() uint32        { return s.u32(sbFirstInode) }
func (s *superblock_t) SetFirstInode(v uint32)    { s.setU32(sbFirstInode, v) }
func (s *superblock_t) InodeSize() uint16         { return s.u16(sbInodeSize) }
func (s *superblock_t) SetInodeSize(v uint16)     { s.setU16(sbInodeSize, v) }

// BlockSize returns the filesystem's block size in bytes (1024 << log).
func (s *superblock_t) BlockSize() int64 { return 1024 << s.LogBlockSize() }

// bgd_t is one 32-byte block group descriptor.
type bgd_t struct {
	buf [bgdSize]byte
}

const (
	bgdBlockBitmap    = 0
	bgdInodeBitmap    = 4
	bgdInodeTable     = 8
	bgdFreeBlockCount = 12
	bgdFreeInodeCount = 16
	bgdDirCount       = 20
)

func (b *bgd_t) BlockBitmap() uint32      { return le.Uint32(b.buf[bgdBlockBitmap:]) }
func (b *bgd_t) SetBlockBitmap(v uint32)  { le.PutUint32(b.buf[bgdBlockBitmap:], v) }
func (b *bgd_t) InodeBitmap() uint32      { return le.Uint32(b.buf[bgdInodeBitmap:]) }
func (b *bgd_t) SetInodeBitmap(v uint32)  { le.PutUint32(b.buf[bgdInodeBitmap:], v) }
func (b *bgd_t) InodeTable() uint32       { return le.Uint32(b.buf[bgdInodeTable:]) }
func (b *bgd_t) SetInodeTable(v uint32)   { le.PutUint32(b.buf[bgdInodeTable:], v) }
func (b *bgd_t) FreeBlockCount() uint32   { return le.Uint32(b.buf[bgdFreeBlockCount:]) }
func (b *bgd_t) SetFreeBlockCount(v uint32) { le.PutUint32(b.buf[bgdFreeBlockCount:], v) }
func (b *bgd_t) FreeInodeCount() uint32   { return le.Uint32(b.buf[bgdFreeInodeCount:]) }
func (b *bgd_t) SetFreeInodeCount(v uint32) { le.PutUint32(b.buf[bgdFreeInodeCount:], v) }
func (b *bgd_t) DirCount() uint32         { return le.Uint32(b.buf[bgdDirCount:]) }
func (b *bgd_t) SetDirCount(v uint32)     { le.PutUint32(b.buf[bgdDirCount:], v) }

// inode_t is the 128-byte on-disk inode, laid out per ext2_inode_s.
type inode_t struct {
	buf [inodeSize]byte
}

const (
	inPermissions = 0
	inUID         = 2
	inSize        = 4
	inAtime       = 8
	inCtime       = 12
	inMtime       = 16
	inDtime       = 20
	inGID         = 24
	inLinks       = 26
	inSectors     = 28
	inFlags       = 32
	inOs1         = 36
	inBlockPtr    = 40 // 15 x uint32
	inGeneration  = 100
	inFileACL     = 104
	inDirACL      = 108
	inFragAddr    = 112
)

func (n *inode_t) Permissions() uint16     { return le.Uint16(n.buf[inPermissions:]) }
func (n *inode_t) SetPermissions(v uint16) { le.PutUint16(n.buf[inPermissions:], v) }
func (n *inode_t) Size() uint32            { return le.Uint32(n.buf[inSize:]) }
func (n *inode_t) SetSize(v uint32)        { le.PutUint32(n.buf[inSize:], v) }
func (n *inode_t) Atime() uint32           { return le.Uint32(n.buf[inAtime:]) }
func (n *inode_t) SetAtime(v uint32)       { le.PutUint32(n.buf[inAtime:], v) }
func (n *inode_t) Ctime() uint32           { return le.Uint32(n.buf[inCtime:]) }
func (n *inode_t) SetCtime(v uint32)       { le.PutUint32(n.buf[inCtime:], v) }
func (n *inode_t) Mtime() uint32           { return le.Uint32(n.buf[inMtime:]) }
func (n *inode_t) SetMtime(v uint32)       { le.PutUint32(n.buf[inMtime:], v) }
func (n *inode_t) Dtime() uint32           { return le.Uint32(n.buf[inDtime:]) }
func (n *inode_t) SetDtime(v uint32)       { le.PutUint32(n.buf[inDtime:], v) }
func (n *inode_t) LinkCount() uint16       { return le.Uint16(n.buf[inLinks:]) }
func (n *inode_t) SetLinkCount(v uint16)   { le.PutUint16(n.buf[inLinks:], v) }
func (n *inode_t) SectorCount() uint32     { return le.Uint32(n.buf[inSectors:]) }
func (n *inode_t) SetSectorCount(v uint32) { le.PutUint32(n.buf[inSectors:], v) }

func (n *inode_t) BlockPointer(i int) uint32 {
	return le.Uint32(n.buf[inBlockPtr+4*i:])
}
func (n *inode_t) SetBlockPointer(i int, v uint32) {
	le.PutUint32(n.buf[inBlockPtr+4*i:], v)
}

func (n *inode_t) IsZero() bool {
	for _, b := range n.buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// File-type/permission bits, matching ext2_h's EXT2_S_* constants.
const (
	sIFMT  = 0xF000
	sIFDIR = 0x4000
	sIFREG = 0x8000
	sIFLNK = 0xA000
)

func ftypeFor(perm uint16) byte {
	switch perm & sIFMT {
	case sIFDIR:
		return ftDir
	case sIFLNK:
		return ftSymlink
	default:
		return ftFile
	}
}
