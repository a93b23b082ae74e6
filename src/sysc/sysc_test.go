package sysc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"defs"
	"fd"
	"fdops"
	"mem"
	"pipe"
	"proc"
	"ustr"
)

func mkTestPcb(pid int) *proc.Pcb_t {
	p := &proc.Pcb_t{Pid: pid, Priority: defs.PrioNormal, Pd: &mem.Pmap_t{}}
	p.Wd = fd.MkRootCwd(nil)
	return p
}

func TestGetpidReturnsOwnPid(t *testing.T) {
	p := mkTestPcb(42)
	assert.Equal(t, 42, dispatch(p, SYS_GETPID, 0, 0, 0, 0))
}

func TestUnknownSyscallIsEinval(t *testing.T) {
	p := mkTestPcb(1)
	rc := dispatch(p, 999, 0, 0, 0, 0)
	assert.Equal(t, defs.Err_t(-defs.EINVAL).Rc(), rc)
}

func TestPipeRoundTripThroughFdTable(t *testing.T) {
	p := mkTestPcb(1)
	pp := pipe.MkPipe(true)
	rfd, err := p.Newfd(&fd.Fd_t{Fops: pp.NewReadEnd(), Perms: fd.FD_READ})
	assert.Equal(t, defs.Err_t(0), err)
	wfd, err := p.Newfd(&fd.Fd_t{Fops: pp.NewWriteEnd(), Perms: fd.FD_WRITE})
	assert.Equal(t, defs.Err_t(0), err)

	msg := []byte("hello\n")
	slot := p.Getfdslot(wfd)
	n, werr := slot.Fd.Fops.Write(fdops.MkFakeubuf(msg))
	assert.Equal(t, defs.Err_t(0), werr)
	assert.Equal(t, len(msg), n)

	dst := make([]byte, 16)
	rslot := p.Getfdslot(rfd)
	got, rerr := rslot.Fd.Fops.Read(fdops.MkFakeubuf(dst))
	assert.Equal(t, defs.Err_t(0), rerr)
	assert.Equal(t, len(msg), got)
	assert.Equal(t, msg, dst[:got])
}

func TestMovefdClosesDestinationAndNullsSource(t *testing.T) {
	p := mkTestPcb(1)
	pp := pipe.MkPipe(true)
	rfd, _ := p.Newfd(&fd.Fd_t{Fops: pp.NewReadEnd(), Perms: fd.FD_READ})

	rc := dispatch(p, SYS_MOVEFD, uint32(rfd), 9, 0, 0)
	assert.Equal(t, 0, rc)
	assert.Nil(t, p.Getfdslot(rfd))
	assert.NotNil(t, p.Getfdslot(9))
}

func TestCwdPathAssignmentRoundTrips(t *testing.T) {
	p := mkTestPcb(1)
	assert.True(t, p.Wd.Path.Eq(ustr.MkUstrRoot()))

	p.Wd.Lock()
	p.Wd.Path = ustr.MkUstrSlice([]byte("/a/b"))
	p.Wd.Unlock()

	assert.Equal(t, "/a/b", p.Wd.Path.String())
}

func TestPrioritySetterMovesRunList(t *testing.T) {
	p := mkTestPcb(1)
	proc.Enqueue(p)
	rc := sysPriority(p, uint32(defs.PrioHigh))
	assert.Equal(t, 0, rc)
	assert.Equal(t, defs.PrioHigh, p.Priority)
	proc.Dequeue(p)
}

func TestPriorityRejectsOutOfRange(t *testing.T) {
	p := mkTestPcb(1)
	rc := sysPriority(p, 7)
	assert.Equal(t, defs.Err_t(-defs.EINVAL).Rc(), rc)
}

func TestUISyscallsAreEnodevWithoutBackend(t *testing.T) {
	p := mkTestPcb(1)
	uiBackend = nil
	assert.Equal(t, defs.Err_t(-defs.ENODEV).Rc(), dispatch(p, SYS_UI_REGISTER, 0, 0, 0, 0))
	assert.Equal(t, defs.Err_t(-defs.ENODEV).Rc(), dispatch(p, SYS_SET_WALLPAPER, 0, 0, 0, 0))
}
