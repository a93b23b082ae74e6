package proc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"defs"
	"mem"
)

func TestWaitReturnsChildStatusAfterReap(t *testing.T) {
	initProc = mkPcb(defs.PrioNormal)
	processTree.AddChild(&initProc.TreeNode)
	defer func() { initProc = nil }()

	child := mkPcb(defs.PrioNormal)
	child.Pd = &mem.Pmap_t{}
	Register(child)
	Enqueue(child)

	go func() {
		time.Sleep(5 * time.Millisecond)
		Exit(child, 42)
	}()

	status, err := Wait(child.Pid)
	assert.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, 42, status)
}

func TestWaitUnknownPidIsECHILD(t *testing.T) {
	_, err := Wait(999999)
	assert.Equal(t, -defs.ECHILD, err)
}

func TestWaitAnyReturnsFirstExitedChild(t *testing.T) {
	initProc = mkPcb(defs.PrioNormal)
	processTree.AddChild(&initProc.TreeNode)
	defer func() { initProc = nil }()

	parent := mkPcb(defs.PrioNormal)
	c1 := mkPcb(defs.PrioNormal)
	c1.Pd = &mem.Pmap_t{}
	c2 := mkPcb(defs.PrioNormal)
	c2.Pd = &mem.Pmap_t{}
	parent.TreeNode.AddChild(&c1.TreeNode)
	parent.TreeNode.AddChild(&c2.TreeNode)
	Register(c1)
	Register(c2)
	Enqueue(c1)
	Enqueue(c2)

	go func() {
		time.Sleep(5 * time.Millisecond)
		Exit(c2, 9)
	}()

	pid, status, err := Wait_any(parent)
	assert.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, c2.Pid, pid)
	assert.Equal(t, 9, status)
}

func TestWaitAnyNoChildrenIsECHILD(t *testing.T) {
	p := mkPcb(defs.PrioNormal)
	_, _, err := Wait_any(p)
	assert.Equal(t, -defs.ECHILD, err)
}
