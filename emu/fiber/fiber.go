/*
   Execution fiber: the outer per-hart loop that dispatches into
   translated blocks and handles every exit reason the translator can
   produce.

   Grounded on emu/cpu.go's Execute dispatch loop (fetch block, run,
   branch on completion code), generalized from direct interpretation
   to calling into compiled host code via translate.Translator and
   falling back to a Go interpreter for anything the translator routed
   away from codegen.

   Copyright (c) 2024, Richard Cornwell
*/

// Package fiber runs one RV64GC hart: it repeatedly looks up or
// compiles the block at the current PC, calls into it, and reacts to
// whatever exit reason the block hands back (fall through to the
// next block, service a TLB miss, interpret one instruction, or
// deliver a trap/interrupt).
package fiber

import (
	"sync/atomic"
	"unsafe"

	"rv64vm/emu/blockcache"
	"rv64vm/emu/decode"
	"rv64vm/emu/hart"
	"rv64vm/emu/memory"
	"rv64vm/emu/mmu"
	"rv64vm/emu/softfp"
	"rv64vm/emu/translate"
)

// Fiber owns one hart's execution state and the shared subsystems it
// drives: the MMU, the block cache/translator, and the software
// floating point kernel.
type Fiber struct {
	Ctx   *hart.Context
	Mem   *memory.Memory
	MMU   *mmu.MMU
	Cache *blockcache.Cache
	Trans *translate.Translator
	FP    softfp.Kernel
}

// New wires a fiber around an already-constructed hart context and
// the shared VM-wide subsystems.
func New(ctx *hart.Context, mem *memory.Memory, m *mmu.MMU, cache *blockcache.Cache, tr *translate.Translator, fp softfp.Kernel) *Fiber {
	return &Fiber{Ctx: ctx, Mem: mem, MMU: m, Cache: cache, Trans: tr, FP: fp}
}

// Run drives the hart until RequestShutdown is observed. Intended to
// be the body of the one goroutine owning this hart.
func (f *Fiber) Run() {
	for !f.Ctx.IsShutdown() {
		f.Step()
	}
}

// Step runs exactly one dispatch: checks for a deliverable interrupt,
// then either calls a compiled block or interprets one instruction,
// reacting to its exit reason. Exported so tests and a debug monitor
// can single-step a hart.
func (f *Fiber) Step() {
	if cause, ok := f.Ctx.PendingEnabledInterrupt(); ok && f.Ctx.Sstatus&hart.SstatusSIE != 0 {
		f.Ctx.EnterTrap(cause|hart.InterruptBit, 0)
		return
	}

	block, fault, ok := f.lookupOrTranslate()
	if fault != nil {
		f.Ctx.EnterTrap(fault.Cause, fault.Tval)
		return
	}
	if !ok {
		// Translation failed for a reason other than a page fault
		// (e.g. an arena allocation error): treat as an instruction
		// access fault rather than crashing the hart loop.
		f.Ctx.EnterTrap(hart.CauseInsnFault, f.Ctx.PC)
		return
	}

	exit := translate.CallBlock(block.Entry, unsafe.Pointer(f.Ctx))
	f.handleExit(exit)
}

// lookupOrTranslate resolves the block cache entry for the hart's
// current PC, compiling one on a miss. Only a miss needs the guest
// physical address (and so only a miss can fault on the walk); a
// cache hit never touches the MMU, matching a translated block's own
// chain-patch dispatch, which also never re-walks on every entry.
func (f *Fiber) lookupOrTranslate() (*blockcache.Block, *mmu.Fault, bool) {
	key := blockcache.Key{ASID: f.Ctx.Satp, PC: f.Ctx.PC}
	if b, ok := f.Cache.Lookup(key); ok {
		return b, nil, true
	}

	paddr, fault := f.MMU.TranslateInsnPhys(f.Ctx, f.Ctx.PC)
	if fault != nil {
		return nil, fault, false
	}
	b, err := f.Trans.Translate(f.Ctx.Satp, f.Ctx.PC, paddr)
	if err != nil {
		return nil, nil, false
	}
	return b, nil, true
}

func (f *Fiber) handleExit(exit uint64) {
	switch exit {
	case translate.ExitBlockEnd:
		// ctx.PC already holds the next guest PC; the outer loop picks
		// it back up on the next Step. If this exit came through a
		// chain site, resolve it so later executions jump straight to
		// the successor instead of returning through here again.
		f.resolveChain()
	case translate.ExitTLBMissLoad:
		f.serviceTLBMissLoad()
	case translate.ExitTLBMissStore:
		f.serviceTLBMissStore()
	case translate.ExitHelper:
		f.interpretOne()
	}
}

// resolveChain installs the successor block's entry point into the
// chain cell the just-finished exit recorded, if any. The store is a
// single aligned 64-bit write: a copy of the block already running
// concurrently on another hart's TLB-shared code only ever observes
// either the original zero cell or this fully-formed address.
func (f *Fiber) resolveChain() {
	cellAddr := f.Ctx.PendingChainCell
	if cellAddr == 0 {
		return
	}
	f.Ctx.PendingChainCell = 0

	block, fault, ok := f.lookupOrTranslate()
	if fault != nil {
		f.Ctx.EnterTrap(fault.Cause, fault.Tval)
		return
	}
	if !ok {
		f.Ctx.EnterTrap(hart.CauseInsnFault, f.Ctx.PC)
		return
	}

	cell := (*uint64)(unsafe.Pointer(uintptr(cellAddr)))
	atomic.StoreUint64(cell, uint64(block.Entry))
}

// loadSplit emulates a multi-byte load whose span crosses a page
// boundary: each byte is translated independently, since the two
// halves of the access may resolve to different pages with different
// permissions.
func (f *Fiber) loadSplit(vaddr uint64, size uint8) (uint64, *mmu.Fault) {
	var v uint64
	for i := uint8(0); i < size; i++ {
		host, fault := f.MMU.TranslateLoad(f.Ctx, vaddr+uint64(i), 1)
		if fault != nil {
			return 0, fault
		}
		v |= uint64(readHost8(host)) << (8 * i)
	}
	return v, nil
}

// storeSplit is loadSplit's store counterpart.
func (f *Fiber) storeSplit(vaddr uint64, val uint64, size uint8) *mmu.Fault {
	for i := uint8(0); i < size; i++ {
		host, fault := f.MMU.TranslateStore(f.Ctx, vaddr+uint64(i), 1)
		if fault != nil {
			return fault
		}
		writeHost8(host, uint8(val>>(8*i)))
	}
	return nil
}

func (f *Fiber) serviceTLBMissLoad() {
	vaddr := f.Ctx.PendingVAddr
	rd := f.Ctx.PendingRd

	var v uint64
	var fault *mmu.Fault
	if mmu.CrossesPage(vaddr, 8) {
		v, fault = f.loadSplit(vaddr, 8)
	} else {
		var host uintptr
		host, fault = f.MMU.TranslateLoad(f.Ctx, vaddr, 8)
		if fault == nil {
			v = readHost64(host)
		}
	}
	if fault != nil {
		f.Ctx.EnterTrap(fault.Cause, fault.Tval)
		return
	}
	if rd != 0 {
		f.Ctx.RegWrite(rd, v)
	}
	f.Ctx.Instret++
	f.Ctx.PC += 4
}

func (f *Fiber) serviceTLBMissStore() {
	vaddr := f.Ctx.PendingVAddr
	value := f.Ctx.PendingValue

	var fault *mmu.Fault
	if mmu.CrossesPage(vaddr, 8) {
		fault = f.storeSplit(vaddr, value, 8)
	} else {
		var host uintptr
		host, fault = f.MMU.TranslateStore(f.Ctx, vaddr, 8)
		if fault == nil {
			writeHost64(host, value)
		}
	}
	if fault != nil {
		f.Ctx.EnterTrap(fault.Cause, fault.Tval)
		return
	}
	f.Ctx.Instret++
	f.Ctx.PC += 4
}

func readHost64(host uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(host))
}

func writeHost64(host uintptr, v uint64) {
	*(*uint64)(unsafe.Pointer(host)) = v
}

func readHost32(host uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(host))
}

func writeHost32(host uintptr, v uint32) {
	*(*uint32)(unsafe.Pointer(host)) = v
}

func readHost16(host uintptr) uint16 {
	return *(*uint16)(unsafe.Pointer(host))
}

func writeHost16(host uintptr, v uint16) {
	*(*uint16)(unsafe.Pointer(host)) = v
}

func readHost8(host uintptr) uint8 {
	return *(*uint8)(unsafe.Pointer(host))
}

func writeHost8(host uintptr, v uint8) {
	*(*uint8)(unsafe.Pointer(host)) = v
}

// fetchAtPC decodes the instruction at the hart's current PC, the
// same 16-vs-32-bit-width rule the translator's own fetch uses.
func (f *Fiber) fetchAtPC() (decode.Instruction, *mmu.Fault) {
	host, fault := f.MMU.TranslateInsn(f.Ctx, f.Ctx.PC)
	if fault != nil {
		return decode.Instruction{}, fault
	}
	lo := readHost16(host)
	if lo&0x3 != 0x3 {
		return decode.Decode(uint32(lo)), nil
	}
	hiHost, fault := f.MMU.TranslateInsn(f.Ctx, f.Ctx.PC+2)
	if fault != nil {
		return decode.Instruction{}, fault
	}
	hi := readHost16(hiHost)
	return decode.Decode(uint32(lo) | uint32(hi)<<16), nil
}
