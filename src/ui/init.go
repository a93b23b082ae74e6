package ui

import (
	"github.com/go-logr/logr"

	"sysc"
	"ustr"
	"vfs"
)

// global is the process-wide compositor instance, created once during
// boot and torn down never; UI is the last step of the boot order
// (GDT -> TSS -> IDT -> PIC -> PMM -> paging -> heap -> exception
// handlers and timers -> scheduler -> syscalls -> storage -> VFS -> UI).
var global *Server

// Init brings up the compositor and registers it as sysc's UI backend.
// Must run after vfs.Init (wallpaper lookup needs the root mounted) and
// before any process can reach a ui_* syscall.
func Init(log logr.Logger) *Server {
	global = New(log)
	sysc.SetUIBackend(global)
	loadDefaultWallpaper(log)
	wireInput(global)
	return global
}

// loadDefaultWallpaper resolves the first entry under /wallpapers and
// loads it (§6); a missing or empty directory just leaves the solid
// fallback color New already installed.
func loadDefaultWallpaper(log logr.Logger) {
	dir, err := vfs.Resolve(ustr.MkUstrSlice([]byte("/wallpapers")), false)
	if err != 0 {
		log.V(1).Info("no /wallpapers directory, using fallback color")
		return
	}
	ents, err := dir.Readdir()
	if err != 0 || len(ents) == 0 {
		return
	}
	first := ents[0].Name
	if err := global.LoadWallpaper("/wallpapers/" + first.String()); err != 0 {
		log.Error(nil, "failed to load default wallpaper", "err", err)
	}
}
