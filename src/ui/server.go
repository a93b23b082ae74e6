// Package ui is the compositing UI service (§C13): a linear framebuffer
// server that owns the responder list, routes keyboard/mouse input into
// per-window event pipes, and renders window chrome with gg the same way
// mazboot's framebuffer demo drives a gg.Context over a raw pixel
// buffer — the closest in-pack precedent for a Go program painting its
// own window system onto memory it owns outright. It implements
// sysc.UIBackend_i so sysc never imports this package directly.
package ui

import (
	"image"
	"image/draw"
	"sync"

	"github.com/fogleman/gg"
	"github.com/go-logr/logr"

	"defs"
	"proc"
	"vfs"
)

const (
	fbWidth        = 1024
	fbHeight       = 768
	titleBarHeight = 24
	cursorSize     = 16
)

// Server is the singleton compositor state. Everything from the
// responder list to the back buffer lives behind mu, since redraws can
// be triggered from the syscall path (ui_swap_buffers, ui_resume) and,
// once wired to IRQ1/IRQ12, from interrupt context as well.
type Server struct {
	mu sync.Mutex
	log logr.Logger

	back      *image.RGBA // §C13 "back buffer"
	blit      *image.RGBA // §C13 "window blit buffer"
	wallpaper *image.RGBA
	cursorBg  *image.RGBA
	cursorX, cursorY int

	responders []*responder // head (index 0) is the key window
	nextWin    uint32
}

// New allocates the framebuffer-sized back/blit buffers and a default
// solid-color wallpaper; LoadWallpaper replaces it once the root fs is
// mounted.
func New(log logr.Logger) *Server {
	s := &Server{log: log.WithName("ui")}
	s.back = image.NewRGBA(image.Rect(0, 0, fbWidth, fbHeight))
	s.blit = image.NewRGBA(image.Rect(0, 0, fbWidth, titleBarHeight+64))
	s.wallpaper = image.NewRGBA(image.Rect(0, 0, fbWidth, fbHeight))
	draw.Draw(s.wallpaper, s.wallpaper.Bounds(), image.NewUniform(rgbaColor(0x2e, 0x34, 0x40)), image.Point{}, draw.Src)
	s.cursorBg = image.NewRGBA(image.Rect(0, 0, cursorSize, cursorSize))
	return s
}

// Framebuffer returns the composited back buffer, the linear surface a
// boot-loop driver would blit to the real hardware framebuffer.
func (s *Server) Framebuffer() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.back
}

// LoadWallpaper decodes path's raw 1024x768x4 image (§6) off root and
// installs it, called once during UI init, the last step of the boot
// order (GDT -> TSS -> IDT -> PIC -> PMM -> paging -> heap -> exception
// handlers and timers -> scheduler -> syscalls -> storage -> VFS -> UI).
func (s *Server) LoadWallpaper(path string) defs.Err_t {
	node, err := vfs.Resolve(ustrPath(path), true)
	if err != 0 {
		return err
	}
	data, ok := node.(vfs.Data_i)
	if !ok {
		return -defs.EINVAL
	}
	raw := make([]byte, fbWidth*fbHeight*4)
	n, err := data.Pread(raw, 0)
	if err != 0 {
		return err
	}
	if n < len(raw) {
		return -defs.EINVAL
	}
	img := image.NewRGBA(image.Rect(0, 0, fbWidth, fbHeight))
	copy(img.Pix, raw)
	s.mu.Lock()
	s.wallpaper = img
	s.mu.Unlock()
	return 0
}

func (s *Server) Register(pid int) defs.Err_t {
	p, ok := proc.Lookup(pid)
	if !ok {
		return -defs.ESRCH
	}
	p.HasUI = true
	s.log.V(1).Info("register", "pid", pid)
	return 0
}

// MakeResponder allocates a window of width x height, cascading its
// position by however many windows already exist, and makes it the new
// key window (§6 "UI server allocates a responder, sends it a wake
// event").
func (s *Server) MakeResponder(pid int, width, height uint32) (uint32, defs.Err_t) {
	if width == 0 || height == 0 || width > fbWidth || height > fbHeight {
		return 0, -defs.EINVAL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextWin++
	win := s.nextWin
	n := len(s.responders)
	x := 40 + (n*30)%(fbWidth-int(width)-40)
	y := 40 + (n*30)%(fbHeight-int(height)-40)
	r := newResponder(win, pid, x, y, int(width), int(height))

	var prevKey *responder
	if len(s.responders) > 0 {
		prevKey = s.responders[0]
	}
	s.responders = append([]*responder{r}, s.responders...)
	if prevKey != nil {
		prevKey.send(Event_t{Type: EvSleep})
	}
	r.send(Event_t{Type: EvWake})
	s.redrawLocked()
	return win, 0
}

// Split divides win's region along dir (0=vertical, 1=horizontal) at
// pos pixels from its origin and returns the new sibling's handle
// (§C13's fs_node-style node split, adapted to screen regions).
func (s *Server) Split(pid int, win, dir, pos uint32) (uint32, defs.Err_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.findLocked(win)
	if r == nil || r.pid != pid {
		return 0, -defs.EINVAL
	}
	var nw, nh, nx, ny int
	if dir == 0 {
		if int(pos) <= 0 || int(pos) >= r.w {
			return 0, -defs.EINVAL
		}
		nx, ny, nw, nh = r.x+int(pos), r.y, r.w-int(pos), r.h
		r.w = int(pos)
	} else {
		if int(pos) <= 0 || int(pos) >= r.h {
			return 0, -defs.EINVAL
		}
		nx, ny, nw, nh = r.x, r.y+int(pos), r.w, r.h-int(pos)
		r.h = int(pos)
	}
	r.contents = image.NewRGBA(image.Rect(0, 0, r.w, r.h))
	r.background = image.NewRGBA(image.Rect(0, 0, r.w, r.h))

	s.nextWin++
	win2 := s.nextWin
	sib := newResponder(win2, pid, nx, ny, nw, nh)
	s.responders = append(s.responders, sib)
	s.redrawLocked()
	return win2, 0
}

// Resume makes win the key window, rotating the previous key window to
// sleep (§6's Meta+Tab swap, generalized to any explicit resume).
func (s *Server) Resume(pid int, win uint32) defs.Err_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(win)
	if idx < 0 || s.responders[idx].pid != pid {
		return -defs.EINVAL
	}
	if idx == 0 {
		return 0
	}
	r := s.responders[idx]
	prevKey := s.responders[0]
	s.responders = append(s.responders[:idx], s.responders[idx+1:]...)
	s.responders = append([]*responder{r}, s.responders...)
	prevKey.send(Event_t{Type: EvSleep})
	r.send(Event_t{Type: EvWake})
	s.redrawLocked()
	return 0
}

// SwapBuffers composites win's current contents into the back buffer
// and is where a real driver would flush the affected rectangle to
// hardware; Framebuffer() exposes the result instead of touching
// hardware directly.
func (s *Server) SwapBuffers(pid int, win uint32) defs.Err_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.findLocked(win)
	if r == nil || r.pid != pid {
		return -defs.EINVAL
	}
	s.redrawLocked()
	return 0
}

func (s *Server) Wait(pid int, win uint32) ([24]byte, defs.Err_t) {
	s.mu.Lock()
	r := s.findLocked(win)
	s.mu.Unlock()
	if r == nil || r.pid != pid {
		return [24]byte{}, -defs.EINVAL
	}
	buf := make([]byte, 24)
	u := rawUbuf{buf: buf}
	n, err := r.events.NewReadEnd().Read(&u)
	if err != 0 {
		return [24]byte{}, err
	}
	var out [24]byte
	copy(out[:], buf[:n])
	return out, 0
}

// Yield is the UI-aware cooperative yield (§4.12 ui_yield): it performs
// no scheduling itself (proc owns that) and exists so a window's event
// loop has a syscall to call between frames without this package
// depending on proc.Yield's caller-context assumptions.
func (s *Server) Yield(pid int) defs.Err_t {
	return 0
}

func (s *Server) SetWallpaper(pid int, path string) defs.Err_t {
	return s.LoadWallpaper(path)
}

func (s *Server) findLocked(win uint32) *responder {
	for _, r := range s.responders {
		if r.win == win {
			return r
		}
	}
	return nil
}

func (s *Server) indexLocked(win uint32) int {
	for i, r := range s.responders {
		if r.win == win {
			return i
		}
	}
	return -1
}

// redrawLocked repaints the back buffer painter's-algorithm style:
// wallpaper, then each window tail to head (so the key window ends up
// on top), then the cursor (§C13 "Z-order & compositing"). This redraws
// the whole buffer on every call rather than the spec's four-stage
// per-window diff (sample background / blit / copy to back / copy
// affected rect to framebuffer); simpler, and cheap enough at this
// resolution and window count not to matter. Caller holds s.mu.
func (s *Server) redrawLocked() {
	draw.Draw(s.back, s.back.Bounds(), s.wallpaper, image.Point{}, draw.Src)
	for i := len(s.responders) - 1; i >= 0; i-- {
		s.paintWindowLocked(s.responders[i], i == 0)
	}
	s.paintCursorLocked()
}

func (s *Server) paintWindowLocked(r *responder, isKey bool) {
	rect := r.rect()
	if !rect.In(s.back.Bounds()) {
		rect = rect.Intersect(s.back.Bounds())
	}
	opacity := r.opacity
	draw.DrawMask(s.back, rect, r.contents, image.Point{}, image.NewUniform(alphaMask(opacity)), image.Point{}, draw.Over)

	dc := gg.NewContextForRGBA(s.chromeCanvas(r.w))
	titleColor := 0x4c566a
	if isKey {
		titleColor = 0x5e81ac
	}
	dc.SetRGB255(rgb255(titleColor))
	dc.Clear()
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored("window", 8, float64(titleBarHeight)/2, 0, 0.5)
	chromeRect := image.Rect(r.x, r.y-titleBarHeight, r.x+r.w, r.y)
	if chromeRect.Min.Y >= 0 {
		draw.Draw(s.back, chromeRect, dc.Image(), image.Point{}, draw.Over)
	}
}

func (s *Server) chromeCanvas(w int) *image.RGBA {
	if w != s.blit.Bounds().Dx() {
		s.blit = image.NewRGBA(image.Rect(0, 0, w, titleBarHeight))
	}
	return s.blit
}

func (s *Server) paintCursorLocked() {
	rect := image.Rect(s.cursorX, s.cursorY, s.cursorX+cursorSize, s.cursorY+cursorSize)
	if !rect.In(s.back.Bounds()) {
		return
	}
	draw.Draw(s.back, rect, image.NewUniform(rgbaColor(0xec, 0xef, 0xf4)), image.Point{}, draw.Over)
}

// MoveCursor updates the cursor position, redraws, and delivers an
// EvMouseMove to the key window. Wired to the IRQ12 mouse handler in
// input.go.
func (s *Server) MoveCursor(x, y int) {
	s.mu.Lock()
	s.cursorX, s.cursorY = x, y
	s.redrawLocked()
	var head *responder
	if len(s.responders) > 0 {
		head = s.responders[0]
	}
	s.mu.Unlock()
	if head != nil {
		head.send(Event_t{Type: EvMouseMove, A: uint32(x), B: uint32(y)})
	}
}

// DeliverButton routes a button-state change to the key window (§C13's
// mouse-button event). Wired to the IRQ12 mouse handler in input.go.
func (s *Server) DeliverButton(buttons uint32) {
	s.mu.Lock()
	var head *responder
	if len(s.responders) > 0 {
		head = s.responders[0]
	}
	s.mu.Unlock()
	if head != nil {
		head.send(Event_t{Type: EvMouseButton, A: buttons})
	}
}

// DeliverKey routes a scancode to the key window's event pipe (§C13
// "Responder list... head is the key window and receives keyboard
// input").
func (s *Server) DeliverKey(scancode uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responders) == 0 {
		return
	}
	s.responders[0].send(Event_t{Type: EvKey, A: scancode})
}
