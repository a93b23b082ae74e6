package ui

import (
	"image"

	"fdops"
	"pipe"
)

// responder is a per-window record (§C13 "UI responder"): owning PCB,
// screen-space geometry, opacity, drag/resize state, the three
// framebuffers the spec names (contents, saved background, chrome), and
// the event pipe the owning process reads through ui_wait (Server.Wait);
// no fd is installed for it.
type responder struct {
	win  uint32
	pid  int
	x, y int
	w, h int

	opacity         float64
	dragging, sizing bool

	contents   *image.RGBA // written by the app via ui_swap_buffers
	background *image.RGBA // sampled from the back buffer under the window
	chrome     *image.RGBA // rendered title bar + shadow

	events   *pipe.Pipe_t
	eventsWr *pipe.WriteEnd
}

func newResponder(win uint32, pid, x, y, w, h int) *responder {
	r := &responder{
		win: win, pid: pid,
		x: x, y: y, w: w, h: h,
		opacity: 1.0,
	}
	r.contents = image.NewRGBA(image.Rect(0, 0, w, h))
	r.background = image.NewRGBA(image.Rect(0, 0, w, h))
	r.chrome = image.NewRGBA(image.Rect(0, 0, w, titleBarHeight))
	r.events = pipe.MkPipe(false)
	r.eventsWr = r.events.NewWriteEnd()
	return r
}

func (r *responder) rect() image.Rectangle {
	return image.Rect(r.x, r.y, r.x+r.w, r.y+r.h)
}

// send pushes ev onto the responder's event pipe. Delivery is fire-and-
// forget from a fresh goroutine so a window that never drains its queue
// can't stall the compositor's redraw path; lifecycle events are not
// delivery-guaranteed by §C13.
func (r *responder) send(ev Event_t) {
	b := ev.Bytes()
	go func() {
		r.eventsWr.Write(fdops.MkFakeubuf(b[:]))
	}()
}
