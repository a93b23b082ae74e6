// Command kernel is Mako's boot entry point. It runs after the real-mode
// bootloader has loaded the kernel image and jumped to protected mode;
// the assembly trampoline that builds the IDT's per-vector stub table
// and ultimately calls Boot is outside this tree's scope (archglue's
// own comments note biscuit keeps the equivalent bring-up behind its
// patched runtime rather than in ordinary Go source).
//
// Boot order extends the sequence archglue's package doc starts: GDT
// -> TSS -> IDT -> PIC -> PMM -> paging -> heap -> exception handlers and
// timers -> scheduler -> syscalls -> storage -> VFS -> UI.
package main

import (
	"github.com/go-logr/logr"

	"archglue"
	"blkdev"
	"ext2"
	"fd"
	"heap"
	"intr"
	"mem"
	"paging"
	"proc"
	"stats"
	"sysc"
	"ui"
	"ustar"
	"ustr"
	"vfs"
)

// physPages sizes the simulated RAM arena; 64MiB at a 4KiB page size,
// comfortably above what boot needs for the heap's initial extent plus
// a handful of process address spaces.
const physPages = 64 * 1024 * 1024 / mem.PGSIZE

// kheapStart is where the kernel heap's virtual extent begins, just
// above KERNBASE; paging.Init must run first so the canonical PD exists
// to map into.
const kheapStart = paging.KERNBASE + 0x1000000

// Boot brings every subsystem up in dependency order and returns once
// init (pid 1) is runnable. stubs is the 256-entry IDT trampoline table
// the assembly entry point builds; rootDisk is the block device carrying
// the root filesystem image, already attached by the bootloader (an
// AHCI/IDE identify-and-attach sequence is out of scope here, same as
// the teacher's own ahci package, which this spec drops per the Domain
// Stack's dropped-deps list).
func Boot(log logr.Logger, stubs [256]uintptr, rootDisk blkdev.Disk_i) {
	archglue.Serial_init()
	log = logr.New(archglue.NewSerial())

	archglue.Gdt_init()
	archglue.Tss_init()
	archglue.Idt_init(stubs)
	archglue.Pic_init()

	mem.Phys_init(physPages)
	paging.Init()
	heap.Init(kheapStart)

	intr.Init(log)
	archglue.Pit_init(50)
	archglue.Rtc_init()

	initp := proc.Init()
	sysc.Init(log)

	root := mountRoot(log, rootDisk)
	vfs.Init(root)
	if err := vfs.Mount(&stats.ProfNode_t{}, ustr.MkUstrSlice([]byte("/dev/prof"))); err != 0 {
		log.Info("failed to mount /dev/prof", "errno", err)
	}
	rootFd := openRootFd(root)
	proc.Bootstrap_root(rootFd)

	ui.Init(log)

	log.Info("boot complete", "pid1", initp.Pid)
}

// mountRoot tries ext2 first (the richer backend), falling back to
// ustar for a bare tar-format root image; §4.9's mount operation picks
// whichever backend recognizes the image's on-disk format.
func mountRoot(log logr.Logger, disk blkdev.Disk_i) vfs.Inode_i {
	if root, err := ext2.Mount(disk, log.WithName("ext2")); err == 0 {
		return root
	}
	root, err := ustar.Mount(disk, log.WithName("ustar"))
	if err != 0 {
		panic("no recognizable root filesystem on boot disk")
	}
	return root
}

// openRootFd opens the mounted root for pid 1's cwd, the same Ofile_t
// every later open() syscall produces but constructed directly since no
// process exists yet to go through sysc.sysOpen.
func openRootFd(root vfs.Inode_i) *fd.Fd_t {
	of, err := vfs.Open(root, false)
	if err != 0 {
		panic("failed to open root inode")
	}
	return &fd.Fd_t{Fops: of, Perms: fd.FD_READ}
}

func main() {
	// Unreachable under the ordinary go test/go build toolchain: this
	// binary's entry is the assembly trampoline, not runtime.rt0_go.
	// Left as documentation of the call Boot expects, the way the
	// teacher's own kernel/chentry.go exists only as a build-time tool
	// rather than something invoked by `go run`.
	var stubs [256]uintptr
	disk := blkdev.NewMemDisk(16 * 1024 * 1024)
	Boot(logr.Discard(), stubs, disk)
}
