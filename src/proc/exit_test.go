package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"defs"
	"fd"
	"fdops"
	"mem"
	"stat"
)

// noopFdops is a minimal Fdops_i stand-in for tests that only need to
// observe refcounting, not the underlying file's actual semantics.
type noopFdops struct{}

func (noopFdops) Close() defs.Err_t                                { return 0 }
func (noopFdops) Fstat(*stat.Stat_t) defs.Err_t                    { return 0 }
func (noopFdops) Lseek(off, whence int) (int, defs.Err_t)          { return 0, 0 }
func (noopFdops) Read(fdops.Userio_i) (int, defs.Err_t)            { return 0, 0 }
func (noopFdops) Reopen() defs.Err_t                               { return 0 }
func (noopFdops) Write(fdops.Userio_i) (int, defs.Err_t)           { return 0, 0 }
func (noopFdops) Pollone(fdops.Pollmsg_t) (fdops.Ready_t, defs.Err_t) { return 0, 0 }

func TestProcessKillReparentsChildrenToInit(t *testing.T) {
	initProc = mkPcb(defs.PrioNormal)
	processTree.AddChild(&initProc.TreeNode)
	defer func() { initProc = nil }()

	parent := mkPcb(defs.PrioNormal)
	parent.Pd = &mem.Pmap_t{}
	child := mkPcb(defs.PrioNormal)
	parent.TreeNode.AddChild(&child.TreeNode)
	Enqueue(parent)

	Process_kill(parent)
	<-doneChan(parent.Pid)

	assert.Equal(t, initProc, child.TreeNode.Parent().Val)
	assert.Equal(t, 0, parent.TreeNode.NumChildren())
}

func TestProcessKillDropsFdRefsToZero(t *testing.T) {
	initProc = mkPcb(defs.PrioNormal)
	processTree.AddChild(&initProc.TreeNode)
	defer func() { initProc = nil }()

	p := mkPcb(defs.PrioNormal)
	p.Pd = &mem.Pmap_t{}
	i, _ := p.Newfd(&fd.Fd_t{Fops: noopFdops{}})
	slot := p.Getfdslot(i)
	Enqueue(p)

	Process_kill(p)
	<-doneChan(p.Pid)

	assert.Equal(t, 0, slot.Refcnt)
	assert.Nil(t, p.Getfdslot(i))
}

func TestExitRecordsStatusBeforeTeardown(t *testing.T) {
	initProc = mkPcb(defs.PrioNormal)
	processTree.AddChild(&initProc.TreeNode)
	defer func() { initProc = nil }()

	p := mkPcb(defs.PrioNormal)
	p.Pd = &mem.Pmap_t{}
	Enqueue(p)
	Exit(p, 7)
	assert.True(t, p.Exited)
	assert.Equal(t, 7, p.ExitStatus)
	<-doneChan(p.Pid)
}
