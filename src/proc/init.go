package proc

import (
	"archglue"
	"defs"
	"fd"
)

// Init brings up the scheduler side of the process model: it creates pid 1
// (init, priority normal) and starts the destroyer reaper goroutine, then
// wires the PIT tick handler to the scheduler (§4.7 "Boot"). It does not
// touch paging/GDT/IDT/PIC setup, which the boot sequence runs before this.
func Init() *Pcb_t {
	initProc = mkPcb(defs.PrioNormal)
	processTree.AddChild(&initProc.TreeNode)
	Register(initProc)
	Enqueue(initProc)

	go Destroyer()

	archglue.TickHandler = Tick

	return initProc
}

// Bootstrap_root attaches rootFd as init's (and therefore every
// subsequently forked descendant's, via fork's Cwd_t copy) working
// directory, once the VFS layer has mounted a root filesystem. It is
// split from Init because mounting the root happens after the scheduler
// exists but the root filesystem backend (ustar/ext2) is wired in later
// during boot.
func Bootstrap_root(rootFd *fd.Fd_t) {
	if initProc == nil {
		return
	}
	initProc.Wd = fd.MkRootCwd(rootFd)
}
