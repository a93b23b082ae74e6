package archglue

// Lcr3/Rcr3 load/read the CR3 control register, i.e. switch/observe the
// active page directory. paging.With_address_space calls these around a
// foreign-PD section.
func Lcr3(pdpa uint32)
func Rcr3() uint32

// Rcr2 reads the CR2 control register, which the CPU loads with the
// faulting linear address on every vector-14 page fault. intr's page
// fault handler reads this to decide between COW duplication, stack
// auto-growth, and SIGSEGV (§4.6).
func Rcr2() uint32

// Invlpg flushes a single TLB entry for va after a PTE changes.
func Invlpg(va uint32)

// Fxsave/Fxrstor save/restore the 512-byte FPU/SSE register file into a
// 16-byte-aligned buffer, used by the scheduler around every context
// switch (§4.7 "FPU").
func Fxsave(area *[512]byte)
func Fxrstor(area *[512]byte)

// Enter_usermode drops to ring 3 using the register values in tf: it
// loads the user data selectors, pushes tf's iret frame (Eip, Cs, Eflags,
// Esp, Ss) and executes IRET. It never returns.
func Enter_usermode(tf *Trapframe_t)
