// Package sysc is the syscall layer: the int 0x80 dispatch table (§4.12)
// that turns a trapframe's EAX/EDI/ECX/EDX/ESI into a call against proc,
// vfs, pipe and the UI backend, and copies results back across the
// user/kernel boundary via Uiouser_t. Grounded in archglue's
// Register/Handler_f gate convention (the same one intr uses for
// exceptions) and in proc.Pcb_t's fd table/Cwd_t for the userland-facing
// half of every fs_node operation vfs already exposes.
package sysc

import (
	"github.com/go-logr/logr"

	"archglue"
	"defs"
	"proc"
	"stats"
)

// Log is the component logger, set by Init.
var Log logr.Logger

// Init registers Handle as the int 0x80 handler. Must run after
// archglue.Idt_init.
func Init(log logr.Logger) {
	Log = log.WithName("sysc")
	archglue.Register(archglue.Int0x80Vector, Handle)
}

// Handle is archglue's Handler_f for the syscall gate: it reads the
// ABI-mandated registers off the current trapframe, dispatches by
// number, and writes the result back into EAX as Handler_f's contract
// with the trampoline for returning to userland with a result.
func Handle(vector int, errcode uint32) {
	stats.Syscalls.Inc()
	p := proc.Current()
	if p == nil {
		panic("syscall trap with no current process")
	}
	tf := p.LiveRegs()
	num := tf.Eax
	a1, a2, a3, a4 := tf.Edi, tf.Ecx, tf.Edx, tf.Esi

	rc := dispatch(p, int(num), a1, a2, a3, a4)
	tf.Eax = uint32(rc)
	// Signal delivery happens at syscall return, identically to a
	// preemption point (§4.12); this may overwrite tf.Eax/tf.Eip again
	// to redirect into a registered handler.
	proc.Deliver_pending(p)
}

// dispatch is split out from Handle so tests can drive it directly
// without a live trapframe.
func dispatch(p *proc.Pcb_t, num int, a1, a2, a3, a4 uint32) int {
	switch num {
	case SYS_EXIT:
		return sysExit(p, a1)
	case SYS_FORK:
		return sysFork(p)
	case SYS_EXECVE:
		return sysExecve(p, a1, a2, a3)
	case SYS_MSLEEP:
		return sysMsleep(p, a1)
	case SYS_PAGEALLOC:
		return sysPagealloc(p, a1)
	case SYS_PAGEFREE:
		return sysPagefree(p, a1)
	case SYS_SIGNAL_REGISTER:
		return sysSignalRegister(p, a1)
	case SYS_SIGNAL_RESUME:
		return sysSignalResume(p)
	case SYS_SIGNAL_SEND:
		return sysSignalSend(p, a1, a2)
	case SYS_GETPID:
		return sysGetpid(p)
	case SYS_OPEN:
		return sysOpen(p, a1, a2, a3)
	case SYS_CLOSE:
		return sysClose(p, a1)
	case SYS_READ:
		return sysRead(p, a1, a2, a3)
	case SYS_WRITE:
		return sysWrite(p, a1, a2, a3)
	case SYS_READDIR:
		return sysReaddir(p, a1, a2, a3)
	case SYS_CHMOD:
		return sysChmod(p, a1, a2)
	case SYS_READLINK:
		return sysReadlink(p, a1, a2, a3)
	case SYS_UNLINK:
		return sysUnlink(p, a1)
	case SYS_SYMLINK:
		return sysSymlink(p, a1, a2)
	case SYS_MKDIR:
		return sysMkdir(p, a1, a2)
	case SYS_PIPE:
		return sysPipe(p, a1)
	case SYS_MOVEFD:
		return sysMovefd(p, a1, a2)
	case SYS_CHDIR:
		return sysChdir(p, a1)
	case SYS_GETCWD:
		return sysGetcwd(p, a1, a2)
	case SYS_WAIT:
		return sysWait(p, a1)
	case SYS_FSTAT:
		return sysFstat(p, a1, a2)
	case SYS_LSTAT:
		return sysLstat(p, a1, a2)
	case SYS_LSEEK:
		return sysLseek(p, a1, a2, a3)
	case SYS_THREAD:
		return sysThread(p, a1, a2)
	case SYS_DUP:
		return sysDup(p, a1)
	case SYS_THREAD_REGISTER:
		return sysThreadRegister(p, a1)
	case SYS_YIELD:
		return sysYield(p)
	case SYS_UI_REGISTER:
		return sysUIRegister(p)
	case SYS_UI_MAKE_RESPONDER:
		return sysUIMakeResponder(p, a1, a2)
	case SYS_UI_SPLIT:
		return sysUISplit(p, a1, a2, a3, a4)
	case SYS_UI_RESUME:
		return sysUIResume(p, a1)
	case SYS_UI_SWAP_BUFFERS:
		return sysUISwapBuffers(p, a1)
	case SYS_UI_WAIT:
		return sysUIWait(p, a1, a2)
	case SYS_UI_YIELD:
		return sysUIYield(p)
	case SYS_RENAME:
		return sysRename(p, a1, a2)
	case SYS_RESOLVE:
		return sysResolve(p, a1, a2, a3)
	case SYS_SYSTIME:
		return sysSystime(p)
	case SYS_PRIORITY:
		return sysPriority(p, a1)
	case SYS_SET_WALLPAPER:
		return sysSetWallpaper(p, a1)
	default:
		return defs.Err_t(-defs.EINVAL).Rc()
	}
}
