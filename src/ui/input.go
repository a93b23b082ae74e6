package ui

import "archglue"

// wireInput hands the compositor's input callbacks to archglue's IRQ1/
// IRQ12 handler vars and unmasks both lines. Must run after New so
// global is non-nil, and after the PIC has been remapped by
// archglue.Pic_init.
func wireInput(s *Server) {
	archglue.KeyHandler = func(scancode uint8) {
		s.DeliverKey(uint32(scancode))
	}
	archglue.MouseHandler = func(dx, dy int, buttons uint8) {
		s.mu.Lock()
		x, y := s.cursorX+dx, s.cursorY+dy
		s.mu.Unlock()
		if x < 0 {
			x = 0
		}
		if y < 0 {
			y = 0
		}
		if x >= fbWidth {
			x = fbWidth - 1
		}
		if y >= fbHeight {
			y = fbHeight - 1
		}
		s.MoveCursor(x, y)
		if buttons != 0 {
			s.DeliverButton(uint32(buttons))
		}
	}
	archglue.Kbd_init()
	archglue.Mouse_init()
}
