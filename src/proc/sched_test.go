package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"archglue"
	"defs"
)

func freshPcb(prio int) *Pcb_t {
	return mkPcb(prio)
}

func TestReschedRoundRobin(t *testing.T) {
	a := freshPcb(defs.PrioNormal)
	b := freshPcb(defs.PrioNormal)
	Enqueue(a)
	Enqueue(b)
	defer func() { Dequeue(a); Dequeue(b) }()

	first := Resched()
	second := Resched()
	assert.Equal(t, a, first)
	assert.Equal(t, b, second)
	assert.Equal(t, a, Resched(), "after two rotations the run list cycles back to a")
}

func TestReschedPrefersHigherPriority(t *testing.T) {
	low := freshPcb(defs.PrioLow)
	high := freshPcb(defs.PrioHigh)
	Enqueue(low)
	Enqueue(high)
	defer func() { Dequeue(low); Dequeue(high) }()

	assert.Equal(t, high, Resched())
}

func TestReschedEmptyIsNil(t *testing.T) {
	for pr := 0; pr < defs.NPrio; pr++ {
		assert.True(t, runq[pr].Empty())
	}
	assert.Nil(t, Resched())
}

func TestProcessSleepOrdersByWakeTime(t *testing.T) {
	sleepList = nil
	p1 := freshPcb(defs.PrioNormal)
	p2 := freshPcb(defs.PrioNormal)
	p3 := freshPcb(defs.PrioNormal)

	Process_sleep(p2, 200)
	Process_sleep(p1, 100)
	Process_sleep(p3, 300)

	if assert.Len(t, sleepList, 3) {
		assert.Equal(t, p1, sleepList[0].pcb)
		assert.Equal(t, p2, sleepList[1].pcb)
		assert.Equal(t, p3, sleepList[2].pcb)
	}
}

func TestWakeDueMovesOnlyExpiredSleepers(t *testing.T) {
	sleepList = nil
	due := freshPcb(defs.PrioNormal)
	notYet := freshPcb(defs.PrioNormal)
	Process_sleep(due, 100)
	Process_sleep(notYet, 500)

	Wake_due(150)

	assert.True(t, due.listNode.Linked())
	assert.False(t, notYet.listNode.Linked())
	next, ok := NextWake()
	assert.True(t, ok)
	assert.Equal(t, int64(500), next)

	Dequeue(due)
	Dequeue(notYet)
	sleepList = nil
}

func TestTickDeliversPendingSignalAtPreemptionPoint(t *testing.T) {
	sleepList = nil
	p := freshPcb(defs.PrioNormal)
	p.Uregs = &archglue.Trapframe_t{Eip: 0x5000}
	Enqueue(p)
	current = p
	Signal_register(p, 0x2000)
	Signal_send(p, SIGPIPE)

	// Only p is runnable, so Resched hands Tick back the same PCB and it
	// never reaches Switch (untestable here: it calls real CPU-control
	// asm). Deliver_pending must still run on the no-switch path, since a
	// tick with nothing else to run is still a return to userland.
	Tick()

	assert.Equal(t, uint32(0x2000), p.Uregs.Eip)
	assert.Equal(t, uint32(SIGPIPE), p.Uregs.Eax)

	Dequeue(p)
	current = nil
}

func TestTickSkipsInKernelCurrent(t *testing.T) {
	sleepList = nil
	for pr := range runq {
		runq[pr] = runq[pr]
	}
	p := freshPcb(defs.PrioNormal)
	p.InKernel = true
	current = p
	before := Now()
	Tick()
	assert.Greater(t, Now(), before)
	assert.Equal(t, p, current, "Tick must never rotate out a PCB currently in the kernel")
	current = nil
}
