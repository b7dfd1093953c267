/*
   Hart: architectural state for one emulated RV64GC hart.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package hart holds the per-hart architectural state: the integer and
// floating point register files, privileged CSRs, pending-interrupt
// bitmap, TLBs, and the instret/cycle counters. Translated code reaches
// any field of Context by a fixed offset from the context-base host
// register (see emu/translate).
package hart

import "sync"

// Privilege levels the core tracks. The guest may also run M-mode
// firmware (SBI); M-mode CSRs are held in the generic CSR file (csrs)
// so they round-trip through CSRRW/CSRRS/etc, but only S and U are
// given dedicated fast-path fields, since those are what the
// translator's inline fast paths and the trap helper touch on every
// block.
const (
	PrivUser       uint8 = 0
	PrivSupervisor uint8 = 1
	PrivMachine    uint8 = 3
)

// TLBEntry is one direct-mapped software TLB slot, shared shape for
// both the instruction and data TLBs. Padded to 32 bytes (a power of
// two) so the translator's inline TLB probe can index ITLB/DTLB with
// a shift-and-SIB-scale-8 addressing mode instead of a multiply.
type TLBEntry struct {
	Tag        uint64 // guest virtual page number
	HostBase   uintptr
	Perm       uint8 // bit 0 read, bit 1 write, bit 2 execute, bit 3 user
	Generation uint32
	_          uint64
}

const (
	PermRead  uint8 = 1 << 0
	PermWrite uint8 = 1 << 1
	PermExec  uint8 = 1 << 2
	PermUser  uint8 = 1 << 3
)

// TLBBits is log2 of the number of entries in each TLB.
const TLBBits = 10

// Context is the fixed-layout per-hart register file. Fields that the
// codegen addresses by constant offset (X, F, PC, the S-mode CSR fast
// path, the pending-interrupt bitmap, the TLBs) come first and must
// never be reordered without re-deriving emu/translate's offset table.
type Context struct {
	X  [32]uint64
	F  [32]uint64 // NaN-boxed for single precision
	PC uint64

	Fflags uint8
	Frm    uint8
	Priv   uint8

	// S-mode trap/paging CSRs, given dedicated fields because the
	// inline TLB fast path and the trap helper read/write them on
	// every translated block.
	Sstatus  uint64
	Sie      uint64
	Stvec    uint64
	Sscratch uint64
	Sepc     uint64
	Scause   uint64
	Stval    uint64
	Sip      uint64
	Satp     uint64

	// Counters.
	Cycle   uint64
	Instret uint64
	Time    uint64

	PendingIRQ uint64 // per-hart pending-interrupt bitmap; not written by any code path, pending bits live in Sip

	ITLB [1 << TLBBits]TLBEntry
	DTLB [1 << TLBBits]TLBEntry

	TLBGeneration uint32 // bumped by SFENCE.VMA / satp write

	// Reservation for LR/SC.
	ReserveValid bool
	ReserveAddr  uint64

	// Pending-operation descriptor: translated code fills these in
	// before exiting to the fiber on a TLB miss or any other
	// helper-required case, since a block can't pass Go call
	// arguments when it exits by RET into the trampoline.
	PendingVAddr uint64
	PendingRd    uint8
	PendingValue uint64

	// PendingChainCell is the host address of the blockcache.ChainSite
	// cell a block exited through, filled in by the chain-exit trailer
	// alongside PendingVAddr/PendingRd/PendingValue. The fiber resolves
	// it into the successor block's Entry the first time that exit is
	// taken; zero means the exit didn't go through a chain site.
	PendingChainCell uint64

	cond *sync.Cond

	// Generic CSR file, covers everything not given a fast-path field
	// above (misa, mstatus, mie/mtvec/mepc/mcause/mscratch/mtval/mip,
	// medeleg/mideleg, the M-mode view of the machine, performance
	// counters, etc).
	csrs [4096]uint64
	mu   sync.Mutex // guards cross-hart CSR pokes (e.g. IPI-delivered mip bits)

	HartID uint64

	Shutdown bool
}

// New returns a zeroed hart context with register x0 permanently zero
// (the field itself is simply never written by RegWrite).
func New(hartID uint64) *Context {
	c := &Context{HartID: hartID}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// RegRead returns the value of integer register r. x0 always reads 0.
func (c *Context) RegRead(r uint8) uint64 {
	if r == 0 {
		return 0
	}
	return c.X[r&0x1f]
}

// RegWrite sets integer register r, eliding writes to x0.
func (c *Context) RegWrite(r uint8, v uint64) {
	if r == 0 {
		return
	}
	c.X[r&0x1f] = v
}

// BumpTLBGeneration invalidates every TLB entry without iterating: an
// entry is valid only while its stored generation equals this counter.
func (c *Context) BumpTLBGeneration() {
	c.TLBGeneration++
	c.ReserveValid = false
}
