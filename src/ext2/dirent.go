package ext2

// Directory entries (§4.11): a 4-byte inode number, 2-byte record
// length, 1-byte name length, 1-byte type, then the name padded so the
// whole record length is a multiple of 4.

type dirent_t struct {
	ino     uint32
	reclen  uint16
	nameLen uint8
	ftype   uint8
	name    string
}

func direntSpace(nameLen int) uint16 {
	n := direntHdr + nameLen
	return uint16((n + 3) &^ 3)
}

func decodeDirent(buf []byte) dirent_t {
	nameLen := int(buf[6])
	return dirent_t{
		ino:     le.Uint32(buf[0:]),
		reclen:  le.Uint16(buf[4:]),
		nameLen: buf[6],
		ftype:   buf[7],
		name:    string(buf[direntHdr : direntHdr+nameLen]),
	}
}

func encodeDirent(buf []byte, d dirent_t) {
	for i := range buf {
		buf[i] = 0
	}
	le.PutUint32(buf[0:], d.ino)
	le.PutUint16(buf[4:], d.reclen)
	buf[6] = uint8(len(d.name))
	buf[7] = d.ftype
	copy(buf[direntHdr:], d.name)
}
