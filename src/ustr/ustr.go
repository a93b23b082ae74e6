// Package ustr implements the kernel's path/string type: a byte slice with
// no hidden allocator dependency, so it can be built and compared during
// VFS resolution without touching the heap allocator it helps implement.
// Kept close to the teacher's ustr/ustr.go.
package ustr

import "strings"

// Ustr is an immutable-by-convention path or string used by the kernel.
type Ustr []uint8

// Isdot reports whether the string equals ".".
func (us Ustr) Isdot() bool {
	return len(us) == 1 && us[0] == '.'
}

// Isdotdot reports whether the string equals "..".
func (us Ustr) Isdotdot() bool {
	return len(us) == 2 && us[0] == '.' && us[1] == '.'
}

// Eq compares two Ustr values for byte equality.
func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

// MkUstr creates an empty Ustr value.
func MkUstr() Ustr { return Ustr{} }

// MkUstrDot returns a Ustr representing ".".
func MkUstrDot() Ustr { return Ustr(".") }

// MkUstrRoot returns a Ustr for the root directory "/".
func MkUstrRoot() Ustr { return Ustr("/") }

// DotDot is a reusable Ustr containing "..".
var DotDot = Ustr{'.', '.'}

// MkUstrSlice converts a NUL-terminated byte slice to a Ustr, truncating at
// the first NUL. Used when copying a path in from user memory.
func MkUstrSlice(buf []uint8) Ustr {
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0 {
			return buf[:i]
		}
	}
	return buf
}

// Extend appends '/' and p to the current Ustr and returns the result.
func (us Ustr) Extend(p Ustr) Ustr {
	tmp := make(Ustr, len(us))
	copy(tmp, us)
	r := append(tmp, '/')
	return append(r, p...)
}

// ExtendStr appends '/' and the string p.
func (us Ustr) ExtendStr(p string) Ustr {
	return us.Extend(Ustr(p))
}

// IsAbsolute reports whether the path begins with '/'.
func (us Ustr) IsAbsolute() bool {
	return len(us) > 0 && us[0] == '/'
}

// IndexByte returns the index of b in the string, or -1.
func (us Ustr) IndexByte(b uint8) int {
	for i, v := range us {
		if v == b {
			return i
		}
	}
	return -1
}

// String converts the Ustr to a Go string.
func (us Ustr) String() string {
	return string(us)
}

// Split breaks the path into its '/'-delimited, non-empty components.
func (us Ustr) Split() []Ustr {
	parts := strings.Split(string(us), "/")
	out := make([]Ustr, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, Ustr(p))
		}
	}
	return out
}
