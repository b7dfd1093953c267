/*
   Per-opcode code generators called by Translate's decode loop.

   Copyright (c) 2024, Richard Cornwell
*/

package translate

import (
	"unsafe"

	"rv64vm/emu/blockcache"
	"rv64vm/emu/decode"
	"rv64vm/emu/hart"
	"rv64vm/emu/memory"
)

// aluOp names which x86 ALU operation a RISC-V ALU instruction maps
// to; reg-reg and reg-imm forms use the same RISC-V semantics x86
// already implements bit-for-bit (two's complement add/sub, bitwise
// and/or/xor), so no translation beyond opcode selection is needed.
type aluOp int

const (
	addOp aluOp = iota
	subOp
	andOp
	orOp
	xorOp
)

func (op aluOp) regRegEncode(a *asm, dst, src int) {
	switch op {
	case addOp:
		a.addRegReg(dst, src)
	case subOp:
		a.subRegReg(dst, src)
	case andOp:
		a.andRegReg(dst, src)
	case orOp:
		a.orRegReg(dst, src)
	case xorOp:
		a.xorRegReg(dst, src)
	}
}

func (op aluOp) immExt() byte {
	switch op {
	case addOp:
		return 0
	case orOp:
		return 1
	case andOp:
		return 4
	case subOp:
		return 5
	case xorOp:
		return 6
	}
	return 0
}

// scratch registers available for codegen once ctxReg (RBX) is
// reserved as the context pointer for the block's lifetime.
const (
	s0 = RAX
	s1 = RCX
	s2 = RDX
	s3 = RSI
	s4 = RDI
)

// emitRegReg emits `X[rd] = X[rs1] <op> X[rs2]`.
func emitRegReg(a *asm, in decode.Instruction, op aluOp) {
	a.loadMem64(s0, ctxReg, xRegOffset(in.Rs1))
	a.loadMem64(s1, ctxReg, xRegOffset(in.Rs2))
	op.regRegEncode(a, s0, s1)
	if in.Rd != 0 {
		a.storeMem64(ctxReg, xRegOffset(in.Rd), s0)
	}
}

// emitRegImm emits `X[rd] = X[rs1] <op> sext(imm)`.
func emitRegImm(a *asm, in decode.Instruction, op aluOp) {
	a.loadMem64(s0, ctxReg, xRegOffset(in.Rs1))
	a.aluRegImm32Ext(op.immExt(), s0, int32(in.Imm))
	if in.Rd != 0 {
		a.storeMem64(ctxReg, xRegOffset(in.Rd), s0)
	}
}

// emitLui emits `X[rd] = sext(imm)` (imm already shifted into place
// by the decoder).
func emitLui(a *asm, in decode.Instruction) {
	if in.Rd == 0 {
		return
	}
	a.movRegImm64(s0, uint64(in.Imm))
	a.storeMem64(ctxReg, xRegOffset(in.Rd), s0)
}

// emitAuipc emits `X[rd] = pc + sext(imm)`; pc is a translation-time
// constant since it's this instruction's own guest address.
func emitAuipc(a *asm, in decode.Instruction, pc uint64) {
	if in.Rd == 0 {
		return
	}
	a.movRegImm64(s0, pc+uint64(in.Imm))
	a.storeMem64(ctxReg, xRegOffset(in.Rd), s0)
}

// emitInstretCommit adds delta to ctx.Instret, unconditionally. Called
// at the top of every exit trailer so instret stays correct whichever
// path out of the block is taken, including the chained fast path
// that never returns to the fiber at all.
func emitInstretCommit(a *asm, delta uint64) {
	if delta == 0 {
		return
	}
	a.loadMem64(s1, ctxReg, offInstret)
	a.addRegImm32(s1, int32(delta))
	a.storeMem64(ctxReg, offInstret, s1)
}

// emitChainExit emits a block exit that can chain directly to its
// successor: site.Cell starts zero, so the first execution falls
// through to the ordinary ExitBlockEnd trailer, which records
// site's host address in ctx.PendingChainCell before returning. The
// fiber resolves the site once it has looked up or compiled the
// successor, storing the successor's Entry into the cell. Every later
// execution of this exit loads a non-zero cell and jumps straight
// there without involving the fiber at all.
//
// instretDelta is committed before the cell is tested, so the chained
// fast path keeps incrementing instret even once it stops returning
// to Go.
func emitChainExit(a *asm, site *blockcache.ChainSite, nextPC uint64, instretDelta uint64) {
	emitInstretCommit(a, instretDelta)

	a.movRegImm64(s0, uint64(uintptr(unsafe.Pointer(&site.Cell))))
	a.loadMem64(s1, s0, 0)
	a.testRegReg(s1, s1)
	unchained := a.jccRel32(ccE)
	a.jmpReg(s1)

	a.patchRel32(unchained, a.here())
	a.storeMem64(ctxReg, offPendingChainCell, s0)
	a.movRegImm64(s1, nextPC)
	a.storeMem64(ctxReg, offPC, s1)
	a.movRegImm64(s0, ExitBlockEnd)
	a.ret()
}

// emitHelperExit emits the trailer for an instruction the translator
// doesn't codegen: record its own PC (not the next one — the fiber's
// step helper decodes and executes exactly this instruction) and
// return ExitHelper. Never a chain site: the fiber always has to run
// to interpret the instruction, so there is no direct-jump fast path
// to install.
func emitHelperExit(a *asm, pc uint64, instretDelta uint64) {
	emitInstretCommit(a, instretDelta)
	a.movRegImm64(s0, pc)
	a.storeMem64(ctxReg, offPC, s0)
	a.movRegImm64(s0, ExitHelper)
	a.ret()
}

// branchCC maps a RISC-V branch opcode to the x86 condition code
// tested after `cmp rs1, rs2`, which computes rs1-rs2 the same way
// RISC-V's branch comparisons are defined.
func branchCC(op decode.Op) byte {
	switch op {
	case decode.Beq:
		return ccE
	case decode.Bne:
		return ccNE
	case decode.Blt:
		return ccL
	case decode.Bge:
		return ccGE
	case decode.Bltu:
		return ccB
	case decode.Bgeu:
		return ccAE
	}
	return ccE
}

// emitBranch emits a conditional branch: compare rs1/rs2, then one of
// two chain-exit sequences runs depending on the flag, each recording
// its own next PC and becoming its own chain site (a loop's backward
// branch and its fallthrough successor chain independently). Both
// arms commit instretDelta+1, since the branch itself always retires
// regardless of which way it goes.
func emitBranch(a *asm, in decode.Instruction, pc uint64, instretDelta uint64) []*blockcache.ChainSite {
	a.loadMem64(s0, ctxReg, xRegOffset(in.Rs1))
	a.loadMem64(s1, ctxReg, xRegOffset(in.Rs2))
	a.cmpRegReg(s0, s1)
	takenPatch := a.jccRel32(branchCC(in.Op))

	// Not-taken arm: falls straight through from the jcc.
	notTaken := &blockcache.ChainSite{}
	emitChainExit(a, notTaken, pc+uint64(in.Length), instretDelta+1)

	// Taken arm.
	a.patchRel32(takenPatch, a.here())
	taken := &blockcache.ChainSite{}
	emitChainExit(a, taken, uint64(int64(pc)+in.Imm), instretDelta+1)

	return []*blockcache.ChainSite{notTaken, taken}
}

// emitLoadFastPath emits an inline DTLB probe for a 64-bit aligned
// load; a hit loads directly through the resolved host pointer. A
// miss — bad tag, stale generation, missing permission, or a span
// that crosses into the next page — stashes the fault address and
// exits to the fiber's TLB-miss helper, which performs the full page
// walk (or the page-crossing split/trap decision), refills the TLB,
// and resumes at the next instruction itself (the block does not
// resume here, since the refill might have raised a page fault
// instead). PendingVAddr/PendingRd are recorded before either path
// runs, since every register touched afterward is free to reuse.
func emitLoadFastPath(a *asm, in decode.Instruction, pc uint64, instretDelta uint64) {
	a.loadMem64(s0, ctxReg, xRegOffset(in.Rs1))
	a.addRegImm32(s0, int32(in.Imm)) // s0 = vaddr

	a.storeMem64(ctxReg, offPendingVAddr, s0)
	a.movRegImm64(s1, uint64(in.Rd))
	a.storeMem64(ctxReg, offPendingRd, s1)

	a.movRegReg(s3, s0)
	a.andRegImm32(s3, memory.PageMask)
	a.cmpRegImm32(s3, memory.PageSize-8)
	missCross := a.jccRel32(ccA) // span crosses into the next page

	a.movRegReg(s1, s0)
	a.shrRegImm8(s1, memory.PageShift) // s1 = vpn
	a.movRegReg(s2, s1)
	a.andRegImm32(s2, tlbMask) // s2 = idx
	a.shlRegImm8(s2, 2)        // s2 = idx<<2, SIB scale 8 -> idx*32

	a.cmpRegMem64Indexed(s1, ctxReg, s2, 3, offDTLB+offTLBTag)
	missTag := a.jccRel32(ccNE)

	a.loadMem32Indexed(s3, ctxReg, s2, 3, offDTLB+offTLBGeneration)
	a.loadMem32(s4, ctxReg, offTLBGen)
	a.cmpRegReg32(s3, s4)
	missGen := a.jccRel32(ccNE)

	a.loadMem8ZeroExtIndexed(s3, ctxReg, s2, 3, offDTLB+offTLBPerm)
	a.andRegImm32(s3, uint32(hart.PermRead))
	missPerm := a.jccRel32(ccE)

	// Hit: host pointer = entry.HostBase + (vaddr & 0xfff).
	a.loadMem64Indexed(s3, ctxReg, s2, 3, offDTLB+offTLBHostBase)
	a.movRegReg(s4, s0)
	a.andRegImm32(s4, memory.PageMask)
	a.addRegReg(s3, s4)
	a.loadMem64(s4, s3, 0)
	if in.Rd != 0 {
		a.storeMem64(ctxReg, xRegOffset(in.Rd), s4)
	}
	hitDone := a.jmpRel32()

	missOffset := a.here()
	a.patchRel32(missCross, missOffset)
	a.patchRel32(missTag, missOffset)
	a.patchRel32(missGen, missOffset)
	a.patchRel32(missPerm, missOffset)

	emitInstretCommit(a, instretDelta)
	a.movRegImm64(s0, pc)
	a.storeMem64(ctxReg, offPC, s0)
	a.movRegImm64(s0, ExitTLBMissLoad)
	a.ret()

	a.patchRel32(hitDone, a.here())
}

// emitStoreFastPath mirrors emitLoadFastPath for a 64-bit aligned
// store. PendingVAddr/PendingValue are recorded up front, before
// either the tag/generation/permission registers or the store value
// register get reused, so every miss exit (including the page-
// crossing one) sees the right operands without needing to recompute
// vaddr partway through.
func emitStoreFastPath(a *asm, in decode.Instruction, pc uint64, instretDelta uint64) {
	a.loadMem64(s0, ctxReg, xRegOffset(in.Rs1))
	a.addRegImm32(s0, int32(in.Imm)) // s0 = vaddr
	a.loadMem64(s1, ctxReg, xRegOffset(in.Rs2)) // s1 = store value

	a.storeMem64(ctxReg, offPendingVAddr, s0)
	a.storeMem64(ctxReg, offPendingValue, s1)

	a.movRegReg(s4, s0)
	a.andRegImm32(s4, memory.PageMask)
	a.cmpRegImm32(s4, memory.PageSize-8)
	missCross := a.jccRel32(ccA) // span crosses into the next page

	a.movRegReg(s2, s0)
	a.shrRegImm8(s2, memory.PageShift)
	a.movRegReg(s3, s2)
	a.andRegImm32(s3, tlbMask)
	a.shlRegImm8(s3, 2)

	a.cmpRegMem64Indexed(s2, ctxReg, s3, 3, offDTLB+offTLBTag)
	missTag := a.jccRel32(ccNE)

	a.loadMem32Indexed(s4, ctxReg, s3, 3, offDTLB+offTLBGeneration)
	a.loadMem32(s2, ctxReg, offTLBGen)
	a.cmpRegReg32(s4, s2)
	missGen := a.jccRel32(ccNE)

	a.loadMem8ZeroExtIndexed(s4, ctxReg, s3, 3, offDTLB+offTLBPerm)
	a.andRegImm32(s4, uint32(hart.PermWrite))
	missPerm := a.jccRel32(ccE)

	a.loadMem64Indexed(s4, ctxReg, s3, 3, offDTLB+offTLBHostBase)
	a.movRegReg(s2, s0)
	a.andRegImm32(s2, memory.PageMask)
	a.addRegReg(s4, s2)
	a.storeMem64(s4, 0, s1)
	hitDone := a.jmpRel32()

	missOffset := a.here()
	a.patchRel32(missCross, missOffset)
	a.patchRel32(missTag, missOffset)
	a.patchRel32(missGen, missOffset)
	a.patchRel32(missPerm, missOffset)

	emitInstretCommit(a, instretDelta)
	a.movRegImm64(s0, pc)
	a.storeMem64(ctxReg, offPC, s0)
	a.movRegImm64(s0, ExitTLBMissStore)
	a.ret()

	a.patchRel32(hitDone, a.here())
}

func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
