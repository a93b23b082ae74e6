// Package ustar implements the USTAR-backed filesystem backend (§4.10): a
// POSIX tar-formatted block device exposed as a VFS tree. Grounded in the
// teacher's fs/super.go field-accessor style (a byte-array-backed struct
// with named Get/Set methods reading fixed offsets) and in blkdev.Disk_i
// for the underlying byte-addressable store. archive/tar (stdlib) is a
// sequential-stream codec, not a random-access one, so it has no home here:
// this backend needs in-place header rewrites (rename, chmod, FREE-flip)
// at a known byte offset, which a streaming tar reader/writer can't do;
// the header layout below is therefore decoded/encoded by hand, in the
// teacher's fixed-offset-field idiom rather than a borrowed library.
package ustar

import (
	"encoding/binary"
	"strconv"
)

// blockSize is the on-disk unit: one header block, and payload rounded up
// to a whole number of these (§4.10, §6 "512-byte block alignment").
const blockSize = 512

// Typeflag values. REGULAR/DIR/SYMLINK follow the POSIX ustar convention;
// FREE is this backend's own recovered-slot marker (§4.10: "FREE ('~')
// marks a deleted/reclaimable slot" — not a standard tar type, since
// standard tar has no notion of an on-disk free list).
const (
	typeRegular = '0'
	typeDir     = '5'
	typeSymlink = '2'
	typeFree    = '~'
)

// header_t is one 512-byte USTAR header, laid out exactly per POSIX ustar
// except for capacityBlocks, a 4-byte little-endian field this backend
// repurposes from the trailing pad (bytes 500-503, unused by every real
// tar reader) to record how many 512-byte payload blocks this slot
// reserves — distinct from the logical file size, so that a file can
// shrink and grow back without reallocating (§4.10 "writes that outgrow
// the current slot... extend... or copy to a new larger slot").
type header_t struct {
	buf [blockSize]byte
}

const (
	offName     = 0
	lenName     = 100
	offMode     = 100
	lenMode     = 8
	offSize     = 124
	lenSize     = 12
	offMtime    = 136
	lenMtime    = 12
	offTypeflag = 156
	offLinkname = 157
	lenLinkname = 100
	offMagic    = 257
	offCapacity = 500
)

func mkHeader() *header_t {
	h := &header_t{}
	copy(h.buf[offMagic:], "ustar\x0000")
	return h
}

func decodeHeader(raw []byte) *header_t {
	h := &header_t{}
	copy(h.buf[:], raw)
	return h
}

func (h *header_t) IsZero() bool {
	for _, b := range h.buf {
		if b != 0 {
			return false
		}
	}
	return true
}

func fieldString(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

func setString(buf []byte, s string) {
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, s)
}

func fieldOctal(buf []byte) int64 {
	s := fieldString(buf)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0
	}
	return n
}

func setOctal(buf []byte, v int64, width int) {
	s := strconv.FormatInt(v, 8)
	for len(s) < width-1 {
		s = "0" + s
	}
	setString(buf[:width-1], s)
	buf[width-1] = 0
}

func (h *header_t) Name() string        { return fieldString(h.buf[offName : offName+lenName]) }
func (h *header_t) SetName(s string)    { setString(h.buf[offName:offName+lenName], s) }
func (h *header_t) Mode() uint          { return uint(fieldOctal(h.buf[offMode : offMode+lenMode])) }
func (h *header_t) SetMode(m uint)      { setOctal(h.buf[offMode:offMode+lenMode], int64(m), lenMode) }
func (h *header_t) Size() int64         { return fieldOctal(h.buf[offSize : offSize+lenSize]) }
func (h *header_t) SetSize(n int64)     { setOctal(h.buf[offSize:offSize+lenSize], n, lenSize) }
func (h *header_t) Mtime() int64        { return fieldOctal(h.buf[offMtime : offMtime+lenMtime]) }
func (h *header_t) SetMtime(t int64)    { setOctal(h.buf[offMtime:offMtime+lenMtime], t, lenMtime) }
func (h *header_t) Typeflag() byte      { return h.buf[offTypeflag] }
func (h *header_t) SetTypeflag(t byte)  { h.buf[offTypeflag] = t }
func (h *header_t) Linkname() string    { return fieldString(h.buf[offLinkname : offLinkname+lenLinkname]) }
func (h *header_t) SetLinkname(s string) {
	setString(h.buf[offLinkname:offLinkname+lenLinkname], s)
}

// CapacityBlocks is the number of 512-byte payload blocks reserved for
// this slot, the backend's own extension (see the package doc comment).
func (h *header_t) CapacityBlocks() uint32 {
	return binary.LittleEndian.Uint32(h.buf[offCapacity:])
}

func (h *header_t) SetCapacityBlocks(n uint32) {
	binary.LittleEndian.PutUint32(h.buf[offCapacity:], n)
}

func (h *header_t) CapacityBytes() int64 { return int64(h.CapacityBlocks()) * blockSize }

func roundUpBlocks(n int64) int64 {
	return (n + blockSize - 1) / blockSize
}
