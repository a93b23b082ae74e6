package archglue

// Cli/Sti mask and unmask maskable interrupts (CLI/STI). The PMM, paging
// and heap critical sections use these instead of a mutex, matching the
// "Interrupts masked during PMM/paging/heap mutations" rule; there is
// deliberately no nesting count here, so callers must pair every Cli
// with exactly one Sti and not call either reentrantly.
func Cli()
func Sti()
