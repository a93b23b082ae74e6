package archglue

// curTrapframe points at the register snapshot the assembly trampoline
// just saved on the current kernel stack, for the duration of one
// dispatch() call. Handler_f itself only carries (vector, errcode)
// because every vector's trampoline stub pushes the same fixed-layout
// frame and sets this pointer immediately before calling dispatch; a
// handler that needs the full register state (intr's fault and syscall
// handlers) reads it back out via CurTrapframe instead of every call
// site threading a frame pointer through Register's signature.
var curTrapframe *Trapframe_t

// CurTrapframe returns the trapframe belonging to the interrupt currently
// being dispatched. Valid only from inside a Handler_f.
func CurTrapframe() *Trapframe_t { return curTrapframe }

// SetCurTrapframe is called by the trampoline glue (assembly outside this
// tree) right before invoking dispatch; exported so that glue can reach it without
// an unexported cross-file assembly linkname trick.
func SetCurTrapframe(tf *Trapframe_t) { curTrapframe = tf }
