//go:build amd64

package translate

import "unsafe"

// callBlock is implemented in entry_amd64.s; it transfers control to
// a translated block's entry point with the block-ABI context
// register loaded and returns the exit-reason word the block leaves
// in its accumulator on RET.
//
// Running raw, GC-stack-map-free machine code under a normal
// goroutine relies on the same accommodation wazero's compiler engine
// depends on: the call is a bounded, non-preemptible leaf (no Go call
// within the block, no allocation, no blocking), so it completes
// before the runtime's asynchronous preemption or stack-scan would
// need to reason about the PC inside it.
func callBlock(entry uintptr, ctx unsafe.Pointer) uint64

// CallBlock transfers control to a compiled block's entry point,
// passing ctx as the block ABI's context pointer, and returns the
// exit reason (one of the Exit* constants) the block left behind.
func CallBlock(entry uintptr, ctx unsafe.Pointer) uint64 {
	return callBlock(entry, ctx)
}
