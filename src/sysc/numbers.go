package sysc

// Syscall numbers, in the table's declared order (§4.12). The ABI passes
// the number in EAX and up to four arguments in EDI/ECX/EDX/ESI; the
// return value (an Err_t's Rc(), or a non-error result) comes back in
// EAX.
const (
	SYS_EXIT = iota
	SYS_FORK
	SYS_EXECVE
	SYS_MSLEEP
	SYS_PAGEALLOC
	SYS_PAGEFREE
	SYS_SIGNAL_REGISTER
	SYS_SIGNAL_RESUME
	SYS_SIGNAL_SEND
	SYS_GETPID
	SYS_OPEN
	SYS_CLOSE
	SYS_READ
	SYS_WRITE
	SYS_READDIR
	SYS_CHMOD
	SYS_READLINK
	SYS_UNLINK
	SYS_SYMLINK
	SYS_MKDIR
	SYS_PIPE
	SYS_MOVEFD
	SYS_CHDIR
	SYS_GETCWD
	SYS_WAIT
	SYS_FSTAT
	SYS_LSTAT
	SYS_LSEEK
	SYS_THREAD
	SYS_DUP
	SYS_THREAD_REGISTER
	SYS_YIELD
	SYS_UI_REGISTER
	SYS_UI_MAKE_RESPONDER
	SYS_UI_SPLIT
	SYS_UI_RESUME
	SYS_UI_SWAP_BUFFERS
	SYS_UI_WAIT
	SYS_UI_YIELD
	SYS_RENAME
	SYS_RESOLVE
	SYS_SYSTIME
	SYS_PRIORITY

	// SYS_SET_WALLPAPER isn't part of the table above; the spec mentions
	// it separately (§6, persistent wallpaper format) without assigning
	// it a slot, so it is numbered right after the table ends.
	SYS_SET_WALLPAPER
)
