package proc

import "testing"

// TestMain starts the destroyer once for the whole package so tests that
// kill a PCB can block on its doneChan the same way Wait does in
// production, instead of every test re-deriving its own reap logic.
func TestMain(m *testing.M) {
	go Destroyer()
	m.Run()
}
