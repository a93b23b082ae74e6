// Package bpath canonicalizes VFS paths: it resolves "." and ".." segments
// component-wise, the way §4.8 of the specification requires, without
// touching the mount tree itself (that's vfs.Resolve's job). Grounded on
// the teacher's fd.Cwd_t.Canonicalpath, which calls an (unretrieved)
// bpath.Canonicalize with the same signature this package now defines.
package bpath

import "ustr"

// Canonicalize resolves "." and ".." components of p, which must already
// be an absolute path (callers join a relative path onto the cwd first).
// ".." at the root stays at the root. The result is always absolute and
// never contains "." or ".." components.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	segs := p.Split()
	out := make([]ustr.Ustr, 0, len(segs))
	for _, s := range segs {
		switch {
		case s.Isdot():
			continue
		case s.Isdotdot():
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return ustr.MkUstrRoot()
	}
	ret := append(ustr.Ustr{'/'}, out[0]...)
	for _, s := range out[1:] {
		ret = ret.Extend(s)
	}
	return ret
}

// Segments splits an already-canonical absolute path into its non-empty
// components, in the order fs_open_node walks them (§4.8).
func Segments(p ustr.Ustr) []ustr.Ustr {
	return p.Split()
}

// Dirname returns everything up to (not including) the final segment, as
// a canonical absolute path.
func Dirname(p ustr.Ustr) ustr.Ustr {
	segs := Segments(p)
	if len(segs) == 0 {
		return ustr.MkUstrRoot()
	}
	ret := ustr.MkUstrRoot()
	for i, s := range segs[:len(segs)-1] {
		if i == 0 {
			ret = append(ustr.Ustr{'/'}, s...)
		} else {
			ret = ret.Extend(s)
		}
	}
	return ret
}

// Basename returns the final path segment.
func Basename(p ustr.Ustr) ustr.Ustr {
	segs := Segments(p)
	if len(segs) == 0 {
		return ustr.MkUstrRoot()
	}
	return segs[len(segs)-1]
}
