// Package limits tracks system-wide resource ceilings — max processes,
// max pipes, max cached VFS nodes — that gate fork/pipe/VFS-cache growth.
// Kept from the teacher's limits/limits.go; §4.7/§4.9/§4.8's "rolls back
// on partial failure" discipline relies on Taken/Given being symmetric.
package limits

import "sync/atomic"

// Sysatomic_t is a numeric limit that can be atomically decremented
// ("taken") and incremented ("given back").
type Sysatomic_t int64

// Taken tries to decrement the limit by n. It returns false (and leaves
// the limit unchanged) if doing so would drive it negative.
func (s *Sysatomic_t) Taken(n uint) bool {
	g := atomic.AddInt64((*int64)(s), -int64(n))
	if g >= 0 {
		return true
	}
	atomic.AddInt64((*int64)(s), int64(n))
	return false
}

// Given increases the limit by n.
func (s *Sysatomic_t) Given(n uint) {
	atomic.AddInt64((*int64)(s), int64(n))
}

// Take/Give are the single-unit conveniences fd-table and pipe allocation
// use on every open/close.
func (s *Sysatomic_t) Take() bool { return s.Taken(1) }
func (s *Sysatomic_t) Give()      { s.Given(1) }

// Syslimit_t tracks system-wide resource limits referenced by more than
// one subsystem.
type Syslimit_t struct {
	Sysprocs Sysatomic_t // max live PCBs (§4.7 fork)
	Pipes    Sysatomic_t // max live pipes (§4.9)
	Vnodes   Sysatomic_t // max cached fs_node entries (§4.8)
	Fds      Sysatomic_t // max open fd slots system-wide
}

// Syslimit holds the process-wide default limits.
var Syslimit = MkSysLimit()

// MkSysLimit returns a fresh set of default limits.
func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		Sysprocs: 8192,
		Pipes:    4096,
		Vnodes:   65536,
		Fds:      65536,
	}
}
