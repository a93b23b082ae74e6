package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"archglue"
	"defs"
	"mem"
)

func TestSignalKillBypassesHandlerDispatch(t *testing.T) {
	initProc = mkPcb(defs.PrioNormal)
	processTree.AddChild(&initProc.TreeNode)
	defer func() { initProc = nil }()

	p := mkPcb(defs.PrioNormal)
	p.Pd = &mem.Pmap_t{}
	Register(p)
	Enqueue(p)
	Signal_register(p, 0x1000) // a handler is registered, but SIGKILL ignores it

	err := Signal_send(p, SIGKILL)
	assert.Equal(t, defs.Err_t(0), err)
	<-doneChan(p.Pid)
	assert.True(t, p.Exited)
	assert.Equal(t, -int(SIGKILL), p.ExitStatus)
}

func TestDeliverPendingRewritesLiveRegsToHandler(t *testing.T) {
	p := mkPcb(defs.PrioNormal)
	p.Uregs = &archglue.Trapframe_t{Eip: 0x5000, Esp: 0x8000}
	Signal_register(p, 0x2000)
	Signal_send(p, SIGPIPE)

	Deliver_pending(p)

	assert.Equal(t, uint32(0x2000), p.Uregs.Eip)
	assert.Equal(t, uint32(SIGPIPE), p.Uregs.Eax)
	assert.NotNil(t, p.SavedSignalRegs)
	assert.Equal(t, uint32(0x5000), p.SavedSignalRegs.Eip, "the interrupted eip must survive in the saved snapshot")
}

func TestSignalResumeRestoresInterruptedContext(t *testing.T) {
	p := mkPcb(defs.PrioNormal)
	p.Uregs = &archglue.Trapframe_t{Eip: 0x5000, Esp: 0x8000}
	Signal_register(p, 0x2000)
	Signal_send(p, SIGPIPE)
	Deliver_pending(p)

	err := Signal_resume(p)
	assert.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, uint32(0x5000), p.Uregs.Eip)
	assert.Nil(t, p.SavedSignalRegs)
}

func TestSignalResumeWithoutPendingDispatchIsEINVAL(t *testing.T) {
	p := mkPcb(defs.PrioNormal)
	p.Uregs = &archglue.Trapframe_t{}
	assert.Equal(t, -defs.EINVAL, Signal_resume(p))
}

func TestSignalSendWithoutHandlerKillsProcess(t *testing.T) {
	initProc = mkPcb(defs.PrioNormal)
	processTree.AddChild(&initProc.TreeNode)
	defer func() { initProc = nil }()

	p := mkPcb(defs.PrioNormal)
	Register(p)
	Enqueue(p)
	Signal_send(p, SIGPIPE)

	Deliver_pending(p)
	<-doneChan(p.Pid)
	assert.True(t, p.Exited)
}
