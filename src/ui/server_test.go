package ui

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"

	"defs"
)

func TestMakeResponderBecomesKeyWindow(t *testing.T) {
	s := New(logr.Discard())
	win, err := s.MakeResponder(1, 200, 100)
	assert.Equal(t, defs.Err_t(0), err)
	assert.NotZero(t, win)
	assert.Equal(t, win, s.responders[0].win)
}

func TestSecondWindowBecomesKeyAndFirstSleeps(t *testing.T) {
	s := New(logr.Discard())
	w1, _ := s.MakeResponder(1, 200, 100)
	w2, _ := s.MakeResponder(2, 200, 100)
	assert.Equal(t, w2, s.responders[0].win)
	assert.Equal(t, w1, s.responders[1].win)

	// w1 holds its own creation EvWake and the EvSleep from w2's creation;
	// send writes each from its own goroutine, so their order is not fixed.
	ev1, err := s.Wait(1, w1)
	assert.Equal(t, defs.Err_t(0), err)
	ev2, err := s.Wait(1, w1)
	assert.Equal(t, defs.Err_t(0), err)
	assert.ElementsMatch(t, []EventType{EvWake, EvSleep},
		[]EventType{decodeEvent(ev1).Type, decodeEvent(ev2).Type})
}

func TestResumeReordersResponderList(t *testing.T) {
	s := New(logr.Discard())
	w1, _ := s.MakeResponder(1, 200, 100)
	s.MakeResponder(2, 200, 100)

	err := s.Resume(1, w1)
	assert.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, w1, s.responders[0].win)
}

func TestSplitRejectsOutOfRangePosition(t *testing.T) {
	s := New(logr.Discard())
	win, _ := s.MakeResponder(1, 200, 100)
	_, err := s.Split(1, win, 0, 500)
	assert.Equal(t, defs.Err_t(-defs.EINVAL), err)
}

func TestSplitCreatesSibling(t *testing.T) {
	s := New(logr.Discard())
	win, _ := s.MakeResponder(1, 200, 100)
	sib, err := s.Split(1, win, 0, 80)
	assert.Equal(t, defs.Err_t(0), err)
	assert.NotEqual(t, win, sib)
	assert.Len(t, s.responders, 2)
}

func TestMakeResponderRejectsOversizedWindow(t *testing.T) {
	s := New(logr.Discard())
	_, err := s.MakeResponder(1, 5000, 100)
	assert.Equal(t, defs.Err_t(-defs.EINVAL), err)
}

func TestWaitRejectsWrongOwner(t *testing.T) {
	s := New(logr.Discard())
	win, _ := s.MakeResponder(1, 200, 100)
	_, err := s.Wait(2, win)
	assert.Equal(t, defs.Err_t(-defs.EINVAL), err)
}
