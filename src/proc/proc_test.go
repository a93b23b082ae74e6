package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"archglue"
	"defs"
	"fd"
)

func TestNewfdFindsLowestFreeSlot(t *testing.T) {
	p := mkPcb(defs.PrioNormal)
	i0, err := p.Newfd(&fd.Fd_t{Fops: noopFdops{}})
	assert.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, 0, i0)

	i1, err := p.Newfd(&fd.Fd_t{Fops: noopFdops{}})
	assert.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, 1, i1)

	p.Closefd(0)
	i2, err := p.Newfd(&fd.Fd_t{Fops: noopFdops{}})
	assert.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, 0, i2, "the slot vacated by closefd(0) must be reused before growing the table")
}

func TestNewfdReturnsEMFILEWhenFull(t *testing.T) {
	p := mkPcb(defs.PrioNormal)
	for i := 0; i < NOFILE; i++ {
		_, err := p.Newfd(&fd.Fd_t{Fops: noopFdops{}})
		assert.Equal(t, defs.Err_t(0), err)
	}
	_, err := p.Newfd(&fd.Fd_t{Fops: noopFdops{}})
	assert.Equal(t, -defs.EMFILE, err)
}

func TestClosefdDropsRefcountNotUnderlyingFdUntilZero(t *testing.T) {
	parent := mkPcb(defs.PrioNormal)
	i, _ := parent.Newfd(&fd.Fd_t{Fops: noopFdops{}})
	slot := parent.Getfdslot(i)

	child := mkPcb(defs.PrioNormal)
	child.Setfd(i, slot)
	assert.Equal(t, 2, slot.Refcnt)

	assert.Equal(t, defs.Err_t(0), parent.Closefd(i))
	assert.Equal(t, 1, slot.Refcnt, "closing one reference must not tear down a slot still referenced elsewhere")

	assert.Equal(t, defs.Err_t(0), child.Closefd(i))
	assert.Equal(t, 0, slot.Refcnt)
}

func TestClosefdOnEmptySlotIsEBADF(t *testing.T) {
	p := mkPcb(defs.PrioNormal)
	assert.Equal(t, -defs.EBADF, p.Closefd(3))
}

func TestRegisterLookupUnregister(t *testing.T) {
	p := mkPcb(defs.PrioNormal)
	Register(p)
	got, ok := Lookup(p.Pid)
	assert.True(t, ok)
	assert.Equal(t, p, got)

	Unregister(p.Pid)
	_, ok = Lookup(p.Pid)
	assert.False(t, ok)
}

func TestLiveRegsPicksKernelOrUserSnapshot(t *testing.T) {
	p := mkPcb(defs.PrioNormal)
	p.Uregs = &archglue.Trapframe_t{Eip: 1}
	p.Kregs = &archglue.Trapframe_t{Eip: 2}
	assert.Same(t, p.Uregs, p.LiveRegs())
	p.InKernel = true
	assert.Same(t, p.Kregs, p.LiveRegs())
}
