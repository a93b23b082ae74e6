package sysc

import (
	"defs"
	"proc"
)

// UIBackend_i is the seam between the syscall layer and the compositor
// (§C13): sysc depends only on this interface, and the UI package
// registers an implementation at boot via SetUIBackend, the same
// inversion archglue.Register uses for interrupt handlers, so sysc never
// imports the UI package and the UI package never imports sysc. Path and
// event-buffer copyin/copyout stay on sysc's side of the seam, the same
// split fs.go already draws between path arguments and vfs.Resolve.
type UIBackend_i interface {
	Register(pid int) defs.Err_t
	MakeResponder(pid int, width, height uint32) (win uint32, err defs.Err_t)
	Split(pid int, win, dir, pos uint32) (newWin uint32, err defs.Err_t)
	Resume(pid int, win uint32) defs.Err_t
	SwapBuffers(pid int, win uint32) defs.Err_t
	Wait(pid int, win uint32) (event [24]byte, err defs.Err_t)
	Yield(pid int) defs.Err_t
	SetWallpaper(pid int, path string) defs.Err_t
}

var uiBackend UIBackend_i

// SetUIBackend installs the compositor that backs every ui_* and
// set_wallpaper syscall from here on. Called once from the boot path
// once the framebuffer and responder list are up.
func SetUIBackend(b UIBackend_i) { uiBackend = b }

func sysUIRegister(p *proc.Pcb_t) int {
	if uiBackend == nil {
		return defs.Err_t(-defs.ENODEV).Rc()
	}
	return uiBackend.Register(p.Pid).Rc()
}

func sysUIMakeResponder(p *proc.Pcb_t, width, height uint32) int {
	if uiBackend == nil {
		return defs.Err_t(-defs.ENODEV).Rc()
	}
	win, err := uiBackend.MakeResponder(p.Pid, width, height)
	if err != 0 {
		return err.Rc()
	}
	return int(win)
}

func sysUISplit(p *proc.Pcb_t, win, dir, pos, _ uint32) int {
	if uiBackend == nil {
		return defs.Err_t(-defs.ENODEV).Rc()
	}
	newWin, err := uiBackend.Split(p.Pid, win, dir, pos)
	if err != 0 {
		return err.Rc()
	}
	return int(newWin)
}

func sysUIResume(p *proc.Pcb_t, win uint32) int {
	if uiBackend == nil {
		return defs.Err_t(-defs.ENODEV).Rc()
	}
	return uiBackend.Resume(p.Pid, win).Rc()
}

func sysUISwapBuffers(p *proc.Pcb_t, win uint32) int {
	if uiBackend == nil {
		return defs.Err_t(-defs.ENODEV).Rc()
	}
	return uiBackend.SwapBuffers(p.Pid, win).Rc()
}

func sysUIWait(p *proc.Pcb_t, win, bufVa uint32) int {
	if uiBackend == nil {
		return defs.Err_t(-defs.ENODEV).Rc()
	}
	ev, err := uiBackend.Wait(p.Pid, win)
	if err != 0 {
		return err.Rc()
	}
	if err := copyoutBytes(p.Pd, bufVa, ev[:]); err != 0 {
		return err.Rc()
	}
	return 0
}

func sysUIYield(p *proc.Pcb_t) int {
	if uiBackend == nil {
		return defs.Err_t(-defs.ENODEV).Rc()
	}
	return uiBackend.Yield(p.Pid).Rc()
}

func sysSetWallpaper(p *proc.Pcb_t, pathVa uint32) int {
	if uiBackend == nil {
		return defs.Err_t(-defs.ENODEV).Rc()
	}
	pathBytes, err := copyinStr(p.Pd, pathVa)
	if err != 0 {
		return err.Rc()
	}
	return uiBackend.SetWallpaper(p.Pid, string(pathBytes)).Rc()
}
