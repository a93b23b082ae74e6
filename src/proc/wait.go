package proc

import (
	"defs"
	"tree"
)

// Wait blocks the caller until pid has been fully reaped by the destroyer,
// then returns its exit status. The real design's waitpid is explicitly a
// placeholder (§4.7 Open Questions: "a proper per-process exit condition
// variable replacing the polling-via-sleep design") — this blocks on the
// destroyer's per-pid done channel instead of busy-waiting, which is the
// closest fixed-point available without inventing a wait-queue type the
// spec doesn't otherwise call for.
func Wait(pid int) (int, defs.Err_t) {
	p, ok := Lookup(pid)
	if !ok {
		return 0, -defs.ECHILD
	}
	<-doneChan(pid)
	return p.ExitStatus, 0
}

// Wait_any blocks until any direct child of parent exits, returning its pid
// and status. It scans parent's children under the same linear-scan
// discipline the spec uses elsewhere (readdir, sleep-queue insertion) and
// re-scans after waking, since several children may race to exit.
func Wait_any(parent *Pcb_t) (int, int, defs.Err_t) {
	for {
		var dead *Pcb_t
		parent.TreeNode.EachChild(func(n *tree.Node_t[*Pcb_t]) {
			if dead == nil && n.Val.Exited {
				dead = n.Val
			}
		})
		if dead != nil {
			pid := dead.Pid
			<-doneChan(pid)
			return pid, dead.ExitStatus, 0
		}
		if parent.TreeNode.NumChildren() == 0 {
			return 0, 0, -defs.ECHILD
		}
		notifyCh := make(chan struct{})
		parent.mu.Lock()
		parent.waiters = append(parent.waiters, notifyCh)
		parent.mu.Unlock()
		<-notifyCh
	}
}
