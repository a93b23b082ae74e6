package sysc

import (
	"defs"
	"proc"
	"ustr"
)

func sysExit(p *proc.Pcb_t, status uint32) int {
	proc.Exit(p, int(int32(status)))
	return 0
}

// sysFork delegates the entire job to proc.Fork, which already clones
// the address space, the fd table and the kernel stack, zeroes the
// child's Eax so it "returns" 0, and registers/enqueues it; the parent
// just needs the child's pid back in its own Eax.
func sysFork(p *proc.Pcb_t) int {
	child, err := proc.Fork(p)
	if err != 0 {
		return err.Rc()
	}
	return child.Pid
}

func sysExecve(p *proc.Pcb_t, pathVa, argvVa, envpVa uint32) int {
	pathBytes, err := copyinStr(p.Pd, pathVa)
	if err != 0 {
		return err.Rc()
	}
	argvBytes, err := copyinStrvec(p.Pd, argvVa)
	if err != 0 {
		return err.Rc()
	}
	envpBytes, err := copyinStrvec(p.Pd, envpVa)
	if err != 0 {
		return err.Rc()
	}
	path := ustr.MkUstrSlice(pathBytes)
	argv := make([]ustr.Ustr, len(argvBytes))
	for i, b := range argvBytes {
		argv[i] = ustr.MkUstrSlice(b)
	}
	envp := make([]ustr.Ustr, len(envpBytes))
	for i, b := range envpBytes {
		envp[i] = ustr.MkUstrSlice(b)
	}
	if err := proc.Exec(p, path, argv, envp); err != 0 {
		return err.Rc()
	}
	return 0
}

// sysMsleep blocks the calling goroutine directly in proc.Msleep; the
// tick handler's Wake_due is what eventually unblocks it, same as Wait
// blocks on exit.go's doneChan.
func sysMsleep(p *proc.Pcb_t, millis uint32) int {
	proc.Msleep(p, int64(millis)*1000*1000)
	return 0
}

func sysSignalRegister(p *proc.Pcb_t, eip uint32) int {
	proc.Signal_register(p, eip)
	return 0
}

func sysSignalResume(p *proc.Pcb_t) int {
	return proc.Signal_resume(p).Rc()
}

func sysSignalSend(p *proc.Pcb_t, pid, sig uint32) int {
	target, ok := proc.Lookup(int(pid))
	if !ok {
		return defs.Err_t(-defs.ESRCH).Rc()
	}
	return proc.Signal_send(target, proc.Sig_t(sig)).Rc()
}

func sysGetpid(p *proc.Pcb_t) int {
	return p.Pid
}

// sysWait implements both wait(pid) and wait(-1) ("any child", §4.12)
// under one handler, the same convention waitpid(2) uses.
func sysWait(p *proc.Pcb_t, pidArg uint32) int {
	pid := int(int32(pidArg))
	if pid == -1 {
		_, status, err := proc.Wait_any(p)
		if err != 0 {
			return err.Rc()
		}
		return status
	}
	status, err := proc.Wait(pid)
	if err != 0 {
		return err.Rc()
	}
	return status
}

// sysThread delegates to proc.Thread, which already registers and
// enqueues the new thread (mirroring proc.Fork's contract).
func sysThread(p *proc.Pcb_t, entry, arg uint32) int {
	t, err := proc.Thread(p, entry, arg)
	if err != 0 {
		return err.Rc()
	}
	return t.Pid
}

func sysThreadRegister(p *proc.Pcb_t, eip uint32) int {
	proc.Thread_register(p.Gid, eip)
	return 0
}

func sysYield(p *proc.Pcb_t) int {
	proc.Yield()
	return 0
}

func sysSystime(p *proc.Pcb_t) int {
	return int(proc.Now())
}

// sysPriority sets p's scheduling priority (§3's "priority ∈ {0,1,2}"),
// moving it between run lists if it's currently runnable.
func sysPriority(p *proc.Pcb_t, level uint32) int {
	if level >= uint32(defs.NPrio) {
		return defs.Err_t(-defs.EINVAL).Rc()
	}
	proc.Dequeue(p)
	p.Priority = int(level)
	proc.Enqueue(p)
	return 0
}
