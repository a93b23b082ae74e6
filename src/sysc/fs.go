package sysc

import (
	"defs"
	"fd"
	"fdops"
	"mem"
	"paging"
	"pipe"
	"proc"
	"stat"
	"ustr"
	"vfs"
)

// fdnum resolves a userland descriptor to its slot, or -EBADF.
func fdnum(p *proc.Pcb_t, n uint32) (*proc.Fdslot_t, defs.Err_t) {
	slot := p.Getfdslot(int(int32(n)))
	if slot == nil {
		return nil, -defs.EBADF
	}
	return slot, 0
}

// copyinPath reads and canonicalizes a NUL-terminated user path relative
// to p's current working directory (§4.12's path arguments).
func copyinPath(p *proc.Pcb_t, va uint32) (ustr.Ustr, defs.Err_t) {
	b, err := copyinStr(p.Pd, va)
	if err != 0 {
		return nil, err
	}
	return p.Wd.Canonicalpath(ustr.MkUstrSlice(b)), 0
}

func sysOpen(p *proc.Pcb_t, pathVa, flags, mode uint32) int {
	path, err := copyinPath(p, pathVa)
	if err != 0 {
		return err.Rc()
	}
	nofollow := flags&defs.O_NOFOLLOW != 0
	node, err := vfs.Resolve(path, nofollow)
	if err != 0 {
		if err != -defs.ENOENT || flags&defs.O_CREAT == 0 {
			return err.Rc()
		}
		parent, name, perr := vfs.ResolveParent(path)
		if perr != 0 {
			return perr.Rc()
		}
		node, err = parent.Create(name, uint(mode))
		if err != 0 {
			return err.Rc()
		}
	} else if flags&defs.O_CREAT != 0 && flags&defs.O_EXCL != 0 {
		return defs.Err_t(-defs.EEXIST).Rc()
	}
	of, err := vfs.Open(node, flags&defs.O_APPEND != 0)
	if err != 0 {
		return err.Rc()
	}
	if flags&defs.O_TRUNC != 0 {
		if data, ok := node.(vfs.Data_i); ok {
			data.Truncate(0)
		}
	}
	perms := fd.FD_READ
	switch flags & 0x3 {
	case defs.O_WRONLY:
		perms = fd.FD_WRITE
	case defs.O_RDWR:
		perms = fd.FD_READ | fd.FD_WRITE
	}
	if flags&defs.O_CLOEXEC != 0 {
		perms |= fd.FD_CLOEXEC
	}
	fdno, err := p.Newfd(&fd.Fd_t{Fops: of, Perms: perms})
	if err != 0 {
		return err.Rc()
	}
	return fdno
}

func sysClose(p *proc.Pcb_t, fdVa uint32) int {
	return p.Closefd(int(int32(fdVa))).Rc()
}

func sysRead(p *proc.Pcb_t, fdn, bufVa, n uint32) int {
	slot, err := fdnum(p, fdn)
	if err != 0 {
		return err.Rc()
	}
	if slot.Fd.Perms&fd.FD_READ == 0 {
		return defs.Err_t(-defs.EBADF).Rc()
	}
	u := MkUiouser(p.Pd, bufVa, int(n))
	got, err := slot.Fd.Fops.Read(u)
	if err != 0 {
		return err.Rc()
	}
	return got
}

func sysWrite(p *proc.Pcb_t, fdn, bufVa, n uint32) int {
	slot, err := fdnum(p, fdn)
	if err != 0 {
		return err.Rc()
	}
	if slot.Fd.Perms&fd.FD_WRITE == 0 {
		return defs.Err_t(-defs.EBADF).Rc()
	}
	u := MkUiouser(p.Pd, bufVa, int(n))
	put, err := slot.Fd.Fops.Write(u)
	if err != 0 {
		if err == -defs.EPIPE {
			proc.Signal_send(p, proc.SIGPIPE)
		}
		return err.Rc()
	}
	return put
}

// dirEncode packs dirents as a 4-byte little-endian ino, a 1-byte name
// length and the name bytes, back to back; sysReaddir stops packing once
// the next entry wouldn't fit in the caller's buffer.
func dirEncode(ents []vfs.Dirent_t, cap int) []byte {
	var out []byte
	for _, d := range ents {
		name := d.Name.String()
		rec := 4 + 1 + len(name)
		if len(out)+rec > cap {
			break
		}
		ino := uint32(d.Ino)
		out = append(out, byte(ino), byte(ino>>8), byte(ino>>16), byte(ino>>24))
		out = append(out, byte(len(name)))
		out = append(out, name...)
	}
	return out
}

func sysReaddir(p *proc.Pcb_t, pathVa, bufVa, bufLen uint32) int {
	path, err := copyinPath(p, pathVa)
	if err != 0 {
		return err.Rc()
	}
	node, err := vfs.Resolve(path, false)
	if err != 0 {
		return err.Rc()
	}
	ents, err := node.Readdir()
	if err != 0 {
		return err.Rc()
	}
	packed := dirEncode(ents, int(bufLen))
	if err := copyoutBytes(p.Pd, bufVa, packed); err != 0 {
		return err.Rc()
	}
	return len(packed)
}

func sysChmod(p *proc.Pcb_t, pathVa, mode uint32) int {
	path, err := copyinPath(p, pathVa)
	if err != 0 {
		return err.Rc()
	}
	node, err := vfs.Resolve(path, false)
	if err != 0 {
		return err.Rc()
	}
	return node.Chmod(uint(mode)).Rc()
}

func sysReadlink(p *proc.Pcb_t, pathVa, bufVa, bufLen uint32) int {
	path, err := copyinPath(p, pathVa)
	if err != 0 {
		return err.Rc()
	}
	node, err := vfs.Resolve(path, true)
	if err != 0 {
		return err.Rc()
	}
	target, err := node.Readlink()
	if err != 0 {
		return err.Rc()
	}
	b := []byte(target.String())
	if len(b) > int(bufLen) {
		b = b[:bufLen]
	}
	if err := copyoutBytes(p.Pd, bufVa, b); err != 0 {
		return err.Rc()
	}
	return len(b)
}

func sysUnlink(p *proc.Pcb_t, pathVa uint32) int {
	path, err := copyinPath(p, pathVa)
	if err != 0 {
		return err.Rc()
	}
	parent, name, err := vfs.ResolveParent(path)
	if err != 0 {
		return err.Rc()
	}
	return parent.Unlink(name).Rc()
}

func sysSymlink(p *proc.Pcb_t, targetVa, pathVa uint32) int {
	targetBytes, err := copyinStr(p.Pd, targetVa)
	if err != 0 {
		return err.Rc()
	}
	path, err := copyinPath(p, pathVa)
	if err != 0 {
		return err.Rc()
	}
	parent, name, err := vfs.ResolveParent(path)
	if err != 0 {
		return err.Rc()
	}
	return parent.Symlink(ustr.MkUstrSlice(targetBytes), name).Rc()
}

func sysMkdir(p *proc.Pcb_t, pathVa, mode uint32) int {
	path, err := copyinPath(p, pathVa)
	if err != 0 {
		return err.Rc()
	}
	parent, name, err := vfs.ResolveParent(path)
	if err != 0 {
		return err.Rc()
	}
	_, err = parent.Mkdir(name, uint(mode))
	return err.Rc()
}

// sysPipe installs a fresh pipe's two ends at the caller's two lowest
// free descriptors and writes them out as two consecutive uint32s at
// bufVa (§4.9's pipe(2)-style fd pair).
func sysPipe(p *proc.Pcb_t, bufVa uint32) int {
	pp := pipe.MkPipe(true)
	rfd, err := p.Newfd(&fd.Fd_t{Fops: pp.NewReadEnd(), Perms: fd.FD_READ})
	if err != 0 {
		return err.Rc()
	}
	wfd, err := p.Newfd(&fd.Fd_t{Fops: pp.NewWriteEnd(), Perms: fd.FD_WRITE})
	if err != 0 {
		p.Closefd(rfd)
		return err.Rc()
	}
	out := []byte{
		byte(rfd), byte(rfd >> 8), byte(rfd >> 16), byte(rfd >> 24),
		byte(wfd), byte(wfd >> 8), byte(wfd >> 16), byte(wfd >> 24),
	}
	if err := copyoutBytes(p.Pd, bufVa, out); err != 0 {
		return err.Rc()
	}
	return 0
}

// sysMovefd closes dst if occupied, moves src's slot pointer onto dst and
// nulls src (§4.12's movefd).
func sysMovefd(p *proc.Pcb_t, srcVa, dstVa uint32) int {
	src, dst := int(int32(srcVa)), int(int32(dstVa))
	slot := p.Getfdslot(src)
	if slot == nil {
		return defs.Err_t(-defs.EBADF).Rc()
	}
	if p.Getfdslot(dst) != nil {
		p.Closefd(dst)
	}
	p.Setfd(dst, slot)
	p.Closefd(src)
	return 0
}

func sysDup(p *proc.Pcb_t, fdn uint32) int {
	slot, err := fdnum(p, fdn)
	if err != 0 {
		return err.Rc()
	}
	nfd, err := p.Newfd(nil)
	if err != 0 {
		return err.Rc()
	}
	p.Setfd(nfd, slot)
	return nfd
}

func sysChdir(p *proc.Pcb_t, pathVa uint32) int {
	path, err := copyinPath(p, pathVa)
	if err != 0 {
		return err.Rc()
	}
	node, err := vfs.Resolve(path, false)
	if err != 0 {
		return err.Rc()
	}
	if node.Type() != vfs.NDIR {
		return defs.Err_t(-defs.ENOTDIR).Rc()
	}
	p.Wd.Lock()
	p.Wd.Path = path
	p.Wd.Unlock()
	return 0
}

func sysGetcwd(p *proc.Pcb_t, bufVa, bufLen uint32) int {
	p.Wd.Lock()
	cur := append(ustr.Ustr{}, p.Wd.Path...)
	p.Wd.Unlock()
	b := []byte(cur.String())
	if len(b) > int(bufLen) {
		return defs.Err_t(-defs.ENAMETOOLONG).Rc()
	}
	if err := copyoutBytes(p.Pd, bufVa, b); err != 0 {
		return err.Rc()
	}
	return len(b)
}

func sysLseek(p *proc.Pcb_t, fdn, off, whence uint32) int {
	slot, err := fdnum(p, fdn)
	if err != 0 {
		return err.Rc()
	}
	n, err := slot.Fd.Fops.Lseek(int(int32(off)), int(whence))
	if err != 0 {
		return err.Rc()
	}
	return n
}

// statNode fills st either via the backend's Data_i.Stat (regular files)
// or, for nodes with no byte stream (directories, symlinks in backends
// that don't implement Data_i for them), a minimal mode-only stat.
func statNode(node vfs.Inode_i, st *stat.Stat_t) defs.Err_t {
	if data, ok := node.(vfs.Data_i); ok {
		return data.Stat(st)
	}
	var mode uint
	switch node.Type() {
	case vfs.NDIR:
		mode = stat.IFDIR | 0755
	case vfs.NSYMLINK:
		mode = stat.IFLNK | 0777
	default:
		mode = stat.IFREG | 0644
	}
	st.Wmode(mode)
	return 0
}

func sysFstat(p *proc.Pcb_t, fdn, bufVa uint32) int {
	slot, err := fdnum(p, fdn)
	if err != 0 {
		return err.Rc()
	}
	var st stat.Stat_t
	if err := slot.Fd.Fops.Fstat(&st); err != 0 {
		return err.Rc()
	}
	if err := copyoutBytes(p.Pd, bufVa, st.Bytes()); err != 0 {
		return err.Rc()
	}
	return 0
}

func sysLstat(p *proc.Pcb_t, pathVa, bufVa uint32) int {
	path, err := copyinPath(p, pathVa)
	if err != 0 {
		return err.Rc()
	}
	node, err := vfs.Resolve(path, true)
	if err != 0 {
		return err.Rc()
	}
	var st stat.Stat_t
	if err := statNode(node, &st); err != 0 {
		return err.Rc()
	}
	if err := copyoutBytes(p.Pd, bufVa, st.Bytes()); err != 0 {
		return err.Rc()
	}
	return 0
}

func sysRename(p *proc.Pcb_t, oldVa, newVa uint32) int {
	oldPath, err := copyinPath(p, oldVa)
	if err != 0 {
		return err.Rc()
	}
	newPath, err := copyinPath(p, newVa)
	if err != 0 {
		return err.Rc()
	}
	oldParent, oldName, err := vfs.ResolveParent(oldPath)
	if err != 0 {
		return err.Rc()
	}
	newParent, newName, err := vfs.ResolveParent(newPath)
	if err != 0 {
		return err.Rc()
	}
	return oldParent.Rename(oldName, newParent, newName).Rc()
}

// sysResolve implements the resolve(wd, p) syscall (§4.12, P8): it
// canonicalizes path the same way every other path argument does and
// copies the result back out, so resolve(wd, resolve(wd, p)) is a no-op
// the second time through.
func sysResolve(p *proc.Pcb_t, pathVa, bufVa, bufLen uint32) int {
	path, err := copyinPath(p, pathVa)
	if err != 0 {
		return err.Rc()
	}
	b := []byte(path.String())
	if len(b) > int(bufLen) {
		return defs.Err_t(-defs.ENAMETOOLONG).Rc()
	}
	if err := copyoutBytes(p.Pd, bufVa, b); err != 0 {
		return err.Rc()
	}
	return len(b)
}

// sysPagealloc maps n fresh, zeroed user pages starting at the current
// heap break, rolling back whatever it already mapped on partial
// failure (§4.4 "pagealloc rolls back its partial map").
func sysPagealloc(p *proc.Pcb_t, n uint32) int {
	if n == 0 {
		n = 1
	}
	base := p.Mmap.HeapBreak
	mapped := uint32(0)
	for mapped < n {
		_, pa, ok := mem.Physmem.Refpg_new()
		if !ok {
			rollbackPages(p, base, mapped)
			return defs.Err_t(-defs.ENOMEM).Rc()
		}
		va := base + mapped*uint32(mem.PGSIZE)
		if err := paging.Map(p.Pd, va, pa, mem.Pa_t(mem.PTE_W|mem.PTE_U)); err != 0 {
			rollbackPages(p, base, mapped)
			return err.Rc()
		}
		mapped++
	}
	p.Mmap.HeapBreak = base + n*uint32(mem.PGSIZE)
	return int(base)
}

func rollbackPages(p *proc.Pcb_t, base, n uint32) {
	for i := uint32(0); i < n; i++ {
		paging.Unmap(p.Pd, base+i*uint32(mem.PGSIZE))
	}
}

// sysPagefree unmaps the single page at va, per pagealloc's counterpart.
func sysPagefree(p *proc.Pcb_t, va uint32) int {
	if !paging.Unmap(p.Pd, va) {
		return defs.Err_t(-defs.EINVAL).Rc()
	}
	return 0
}

var _ fdops.Userio_i = (*Uiouser_t)(nil)
