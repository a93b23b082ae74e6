package ui

import "encoding/binary"

// EventType enumerates the fixed ui_event kinds delivered through a
// responder's event pipe (§C13 "Event delivery"): scancodes, mouse
// activity, and the synthetic lifecycle events the server raises itself
// as windows gain/lose focus or get asked to resize.
type EventType uint32

const (
	EvWake EventType = iota + 1
	EvSleep
	EvResizeRequest
	EvKey
	EvMouseMove
	EvMouseButton
	EvClose
)

// Event_t is the fixed 24-byte record written to a responder's pipe.
// A/B/C/D/E are reused per event type (key code, or x/y/buttons for
// mouse events, or a requested width/height for resize) rather than a
// tagged union, matching the wire-format discipline the ext2 dirent and
// inode layouts already use elsewhere in this tree.
type Event_t struct {
	Type       EventType
	A, B, C, D uint32
}

// Bytes encodes e as its fixed little-endian wire record.
func (e Event_t) Bytes() [24]byte {
	var out [24]byte
	binary.LittleEndian.PutUint32(out[0:4], uint32(e.Type))
	binary.LittleEndian.PutUint32(out[4:8], e.A)
	binary.LittleEndian.PutUint32(out[8:12], e.B)
	binary.LittleEndian.PutUint32(out[12:16], e.C)
	binary.LittleEndian.PutUint32(out[16:20], e.D)
	return out
}

func decodeEvent(b [24]byte) Event_t {
	return Event_t{
		Type: EventType(binary.LittleEndian.Uint32(b[0:4])),
		A:    binary.LittleEndian.Uint32(b[4:8]),
		B:    binary.LittleEndian.Uint32(b[8:12]),
		C:    binary.LittleEndian.Uint32(b[12:16]),
		D:    binary.LittleEndian.Uint32(b[16:20]),
	}
}
