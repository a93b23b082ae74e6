package proc

import (
	"encoding/binary"

	"archglue"
	"defs"
	"mem"
	"paging"
	"ustr"
	"vfs"
)

// ArgvPageVa is the fixed user-visible address of the argv/envp page
// (§3 "A distinct page at KERNEL_START - 0x1000"; KERNEL_START here is
// paging.KERNBASE). The user-mode _start trampoline reads argc/argv/envp
// from this address rather than from a register, since int 0x80 only
// carries four argument registers.
const ArgvPageVa = paging.KERNBASE - uint32(mem.PGSIZE)

const userStackTop = paging.KERNBASE - uint32(2*mem.PGSIZE) // one page below the argv page, §3 layout

// elfMaxLoads is the maximum number of PT_LOAD segments an ET_EXEC image
// may have (§4.7 "Exec": "accepts only ET_EXEC with ≤ 2 PT_LOAD
// segments (text + data)").
const elfMaxLoads = 2

const (
	etExec  = 2
	ptLoad  = 1
	pfX     = 1 << 0
	pfW     = 1 << 1
	elfMagic = 0x464c457f // "\x7fELF" little-endian
)

// elfPhdr is one decoded 32-bit ELF program header.
type elfPhdr struct {
	ptype  uint32
	offset uint32
	vaddr  uint32
	filesz uint32
	memsz  uint32
	flags  uint32
}

// parseElf32 decodes the ELF32 header and its PT_LOAD program headers by
// hand, in the teacher's fixed-offset-field idiom (ustar/ext2's
// header_t/inode_t accessors) rather than pulling in debug/elf: this
// kernel only ever needs ET_EXEC/PT_LOAD, and rejecting anything else
// (dynamic linking and PIEs are an explicit non-goal, §1) is simpler done
// by hand than by working around a general-purpose loader.
func parseElf32(img []byte) (entry uint32, loads []elfPhdr, err defs.Err_t) {
	if len(img) < 52 {
		return 0, nil, -defs.ENOEXEC
	}
	le := binary.LittleEndian
	if le.Uint32(img[0:4]) != elfMagic {
		return 0, nil, -defs.ENOEXEC
	}
	if img[4] != 1 { // EI_CLASS == ELFCLASS32
		return 0, nil, -defs.ENOEXEC
	}
	etype := le.Uint16(img[16:18])
	if etype != etExec {
		return 0, nil, -defs.ENOEXEC
	}
	entry = le.Uint32(img[24:28])
	phoff := le.Uint32(img[28:32])
	phentsize := le.Uint16(img[42:44])
	phnum := le.Uint16(img[44:46])

	for i := uint16(0); i < phnum; i++ {
		off := int(phoff) + int(i)*int(phentsize)
		if off+32 > len(img) {
			return 0, nil, -defs.ENOEXEC
		}
		ph := img[off:]
		ptype := le.Uint32(ph[0:4])
		if ptype != ptLoad {
			continue
		}
		if len(loads) >= elfMaxLoads {
			return 0, nil, -defs.ENOEXEC
		}
		loads = append(loads, elfPhdr{
			ptype:  ptype,
			offset: le.Uint32(ph[4:8]),
			vaddr:  le.Uint32(ph[8:12]),
			filesz: le.Uint32(ph[16:20]),
			memsz:  le.Uint32(ph[20:24]),
			flags:  le.Uint32(ph[24:28]),
		})
	}
	return entry, loads, 0
}

// loadSegment maps ph's pages into pd and copies its file contents in,
// zero-filling the BSS tail (memsz - filesz).
func loadSegment(pd *mem.Pmap_t, img []byte, ph elfPhdr) defs.Err_t {
	permflags := mem.Pa_t(mem.PTE_W)
	if ph.flags&pfW == 0 {
		// A segment without PF_W maps without PTE_W (read-only). IA-32
		// without PAE has no NX bit, so every segment stays executable;
		// non-goal per spec.md §1 (no W^X enforcement implied).
		permflags = 0
	}
	base := ph.vaddr &^ (uint32(mem.PGSIZE) - 1)
	end := ph.vaddr + ph.memsz
	for va := base; va < end; va += uint32(mem.PGSIZE) {
		_, pa, ok := mem.Physmem.Refpg_new()
		if !ok {
			return -defs.ENOMEM
		}
		if err := paging.Map(pd, va, pa, permflags); err != 0 {
			return err
		}
	}
	if ph.filesz > 0 {
		if int(ph.offset+ph.filesz) > len(img) {
			return -defs.ENOEXEC
		}
		writeUserBytes(pd, ph.vaddr, img[ph.offset:ph.offset+ph.filesz])
	}
	return 0
}

// writeUserBytes copies data into pd's user address space starting at
// va, crossing page boundaries as needed. It assumes every page in range
// is already mapped (loadSegment maps them just before calling this).
func writeUserBytes(pd *mem.Pmap_t, va uint32, data []byte) {
	for len(data) > 0 {
		pa, _, ok := paging.Get_paddr(pd, va)
		if !ok {
			panic("writeUserBytes: unmapped page")
		}
		pg := mem.Physmem.Dmap8(pa)
		n := copy(pg, data)
		data = data[n:]
		va += uint32(n)
	}
}

// argvEnvpPage renders argv/envp as the two halves of one page, pointer
// array then string storage, the layout §3 assigns to the fixed
// KERNEL_START-0x1000 page: each half starts with a NULL-terminated
// uint32 pointer array into the string storage that follows it inside
// this same page.
func argvEnvpPage(argv, envp []ustr.Ustr) ([]byte, defs.Err_t) {
	page := make([]byte, mem.PGSIZE)
	half := mem.PGSIZE / 2
	if err := packVec(page[:half], ArgvPageVa, argv); err != 0 {
		return nil, err
	}
	if err := packVec(page[half:], ArgvPageVa+uint32(half), envp); err != 0 {
		return nil, err
	}
	return page, 0
}

func packVec(region []byte, regionVa uint32, vec []ustr.Ustr) defs.Err_t {
	ptrBytes := (len(vec) + 1) * 4
	strOff := ptrBytes
	le := binary.LittleEndian
	for i, s := range vec {
		if strOff+len(s)+1 > len(region) {
			return -defs.ENOEXEC
		}
		le.PutUint32(region[i*4:], regionVa+uint32(strOff))
		copy(region[strOff:], s)
		strOff += len(s) + 1
	}
	le.PutUint32(region[len(vec)*4:], 0)
	return 0
}

// mapArgvPage allocates and maps the argv/envp page, then writes content
// into it via the same user-space byte writer loadSegment uses.
func mapArgvPage(pd *mem.Pmap_t, content []byte) defs.Err_t {
	_, pa, ok := mem.Physmem.Refpg_new()
	if !ok {
		return -defs.ENOMEM
	}
	if err := paging.Map(pd, ArgvPageVa, pa, mem.PTE_W); err != 0 {
		return err
	}
	writeUserBytes(pd, ArgvPageVa, content)
	return 0
}

const heapInitialPages = 4
const stackPages = 4

// maxShebangDepth bounds the "#!" recursion so a self-referential
// interpreter chain cannot loop forever.
const maxShebangDepth = 8

// Exec loads an ELF32 executable into p's own address space, replacing
// its current image (§4.7 "Exec"). A "#!" shebang line is handled by
// rewriting argv to prepend the interpreter path (and at most one inline
// interpreter argument) and recursively exec'ing that interpreter
// instead, per §4.7.
func Exec(p *Pcb_t, path ustr.Ustr, argv, envp []ustr.Ustr) defs.Err_t {
	return execDepth(p, path, argv, envp, 0)
}

func execDepth(p *Pcb_t, path ustr.Ustr, argv, envp []ustr.Ustr, depth int) defs.Err_t {
	if depth > maxShebangDepth {
		return -defs.ENOEXEC
	}
	full := p.Wd.Canonicalpath(path)
	node, err := vfs.Resolve(full, false)
	if err != 0 {
		return err
	}
	data, ok := node.(vfs.Data_i)
	if !ok {
		return -defs.EINVAL
	}
	sz := data.Size()
	img := make([]byte, sz)
	if sz > 0 {
		if _, err := data.Pread(img, 0); err != 0 {
			return err
		}
	}

	if len(img) >= 2 && img[0] == '#' && img[1] == '!' {
		interp, inlineArg := parseShebang(img)
		newArgv := make([]ustr.Ustr, 0, len(argv)+2)
		newArgv = append(newArgv, interp)
		if len(inlineArg) > 0 {
			newArgv = append(newArgv, inlineArg)
		}
		newArgv = append(newArgv, path)
		if len(argv) > 1 {
			newArgv = append(newArgv, argv[1:]...)
		}
		return execDepth(p, interp, newArgv, envp, depth+1)
	}

	entry, loads, err := parseElf32(img)
	if err != 0 {
		return err
	}

	pd, pdpa, err := Pgdir_new()
	if err != 0 {
		return err
	}

	var mm Mem_t
	for i, ld := range loads {
		if err := loadSegment(pd, img, ld); err != 0 {
			return err
		}
		end := ld.vaddr + ld.memsz
		if i == 0 {
			mm.TextStart, mm.TextEnd = ld.vaddr, end
		} else {
			mm.DataStart, mm.DataEnd = ld.vaddr, end
		}
	}
	heapStart := mm.DataEnd
	if heapStart == 0 {
		heapStart = mm.TextEnd
	}
	heapStart = (heapStart + uint32(mem.PGSIZE) - 1) &^ (uint32(mem.PGSIZE) - 1)
	for i := 0; i < heapInitialPages; i++ {
		_, pa, ok := mem.Physmem.Refpg_new()
		if !ok {
			return -defs.ENOMEM
		}
		if err := paging.Map(pd, heapStart+uint32(i*mem.PGSIZE), pa, mem.PTE_W); err != 0 {
			return err
		}
	}
	mm.HeapStart = heapStart
	mm.HeapBreak = heapStart + uint32(heapInitialPages*mem.PGSIZE)

	stackBase := userStackTop - uint32(stackPages*mem.PGSIZE)
	for i := 0; i < stackPages; i++ {
		_, pa, ok := mem.Physmem.Refpg_new()
		if !ok {
			return -defs.ENOMEM
		}
		if err := paging.Map(pd, stackBase+uint32(i*mem.PGSIZE), pa, mem.PTE_W); err != 0 {
			return err
		}
	}
	mm.StackTop, mm.StackBottom = userStackTop, stackBase

	argvPage, err := argvEnvpPage(argv, envp)
	if err != 0 {
		return err
	}
	if err := mapArgvPage(pd, argvPage); err != 0 {
		return err
	}

	// The old image is only torn down once the new one is fully built,
	// so a failed exec above leaves the caller's original address space
	// untouched (the syscall layer can still report -ENOEXEC/-ENOMEM
	// without having destroyed anything).
	oldPd, oldCr3 := p.Pd, p.Cr3
	mm.KstackTop, mm.KstackBottom = p.Mmap.KstackTop, p.Mmap.KstackBottom
	p.Pd, p.Cr3 = pd, pdpa
	p.Mmap = mm
	p.Uregs = &archglue.Trapframe_t{
		Eip: entry,
		Cs:  archglue.SEL_UCODE,
		Ss:  archglue.SEL_UDATA,
		Esp: userStackTop,
	}
	p.InKernel = false

	if oldPd != nil {
		paging.Clear_user_space(oldPd)
		mem.Physmem.Dec_pmap(oldCr3)
	}
	return 0
}

// parseShebang extracts the interpreter path and an optional single
// inline argument from a "#!interp [arg]\n" first line.
func parseShebang(img []byte) (interp, arg ustr.Ustr) {
	nl := 0
	for nl < len(img) && img[nl] != '\n' {
		nl++
	}
	line := img[2:nl]
	// trim leading spaces
	i := 0
	for i < len(line) && line[i] == ' ' {
		i++
	}
	line = line[i:]
	sp := 0
	for sp < len(line) && line[sp] != ' ' {
		sp++
	}
	interp = ustr.Ustr(append([]byte{}, line[:sp]...))
	if sp < len(line) {
		a := line[sp+1:]
		j := 0
		for j < len(a) && a[j] == ' ' {
			j++
		}
		if j < len(a) {
			arg = ustr.Ustr(append([]byte{}, a[j:]...))
		}
	}
	return
}
