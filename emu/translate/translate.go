/*
   Basic-block translator: decodes guest instructions starting at a
   PC and emits x86-64 machine code for the hot subset (ALU reg/imm
   ops, LUI/AUIPC, conditional branches, the 64-bit load/store fast
   path with its inline TLB probe), exiting to the fiber's helper ABI
   for everything else (CSR, system, AMO, F/D extension, MUL/DIV/REM,
   JAL/JALR, the compressed aliases of all of the above). The fiber's
   `step` helper interprets exactly the one instruction that caused
   the exit and resumes, so semantic coverage is complete even though
   codegen coverage is partial; see DESIGN.md for why that split was
   drawn here rather than inlining the whole opcode set.

   Grounded on cpu_standard.go/cpu_system.go's dispatch-by-opcode
   shape, replacing direct interpretation with x86-64 emission.

   Copyright (c) 2024, Richard Cornwell
*/

// Package translate compiles RV64GC basic blocks into host machine
// code.
package translate

import (
	"fmt"

	"rv64vm/emu/blockcache"
	"rv64vm/emu/decode"
	"rv64vm/emu/hart"
	"rv64vm/emu/memory"
)

// Exit reasons a translated block leaves in its return value (AX on
// entry to callBlock's RET).
const (
	ExitBlockEnd = iota // ctx.PC is the next guest PC to dispatch
	ExitTLBMissLoad     // ctx.PendingVAddr/PendingRd need a slow-path load
	ExitTLBMissStore    // ctx.PendingVAddr/PendingValue need a slow-path store
	ExitHelper          // ctx.PC is one instruction the fiber must interpret
)

// maxBlockInsns caps translation length so a pathological straight
// line run of ALU ops can't grow one block without bound.
const maxBlockInsns = 48

// Translator compiles blocks on demand and inserts them into cache.
type Translator struct {
	mem   *memory.Memory
	cache *blockcache.Cache
	bufs  []*codeBuf
}

// New returns a translator writing into fresh code-cache arenas as
// needed, indexing compiled blocks into cache.
func New(mem *memory.Memory, cache *blockcache.Cache) *Translator {
	return &Translator{mem: mem, cache: cache}
}

func (t *Translator) currentBuf() (*codeBuf, error) {
	if len(t.bufs) == 0 {
		b, err := newCodeBuf()
		if err != nil {
			return nil, err
		}
		t.bufs = append(t.bufs, b)
	}
	return t.bufs[len(t.bufs)-1], nil
}

// inlineable reports whether op is translated to native code directly
// rather than routed to the fiber's interpreter.
func inlineable(op decode.Op) bool {
	switch op {
	case decode.Add, decode.Sub, decode.And, decode.Or, decode.Xor,
		decode.Addi, decode.Andi, decode.Ori, decode.Xori,
		decode.Lui, decode.Auipc,
		decode.Ld, decode.Sd,
		decode.Beq, decode.Bne, decode.Blt, decode.Bge, decode.Bltu, decode.Bgeu:
		return true
	default:
		return false
	}
}

// Translate compiles the basic block of guest physical code starting
// at physPC (already translated from the guest virtual PC by the
// caller's MMU lookup) and inserts it into the block cache, returning
// the new Block. asid identifies the address space for cache keying.
func (t *Translator) Translate(asid uint64, virtPC uint64, physPC uint64) (*blockcache.Block, error) {
	a := newAsm()
	pc := virtPC
	paddr := physPC
	count := 0
	terminated := false
	var sites []*blockcache.ChainSite

	for count < maxBlockInsns {
		word, err := t.fetch(paddr)
		if err != nil {
			return nil, err
		}
		in := decode.Decode(word)

		if !inlineable(in.Op) {
			emitHelperExit(a, pc, uint64(count))
			pc += uint64(in.Length) // the helper-run instruction ends this block's guest span
			terminated = true
			break
		}

		switch in.Op {
		case decode.Add:
			emitRegReg(a, in, addOp)
		case decode.Sub:
			emitRegReg(a, in, subOp)
		case decode.And:
			emitRegReg(a, in, andOp)
		case decode.Or:
			emitRegReg(a, in, orOp)
		case decode.Xor:
			emitRegReg(a, in, xorOp)
		case decode.Addi:
			emitRegImm(a, in, addOp)
		case decode.Andi:
			emitRegImm(a, in, andOp)
		case decode.Ori:
			emitRegImm(a, in, orOp)
		case decode.Xori:
			emitRegImm(a, in, xorOp)
		case decode.Lui:
			emitLui(a, in)
		case decode.Auipc:
			emitAuipc(a, in, pc)
		case decode.Ld:
			emitLoadFastPath(a, in, pc, uint64(count))
		case decode.Sd:
			emitStoreFastPath(a, in, pc, uint64(count))
		case decode.Beq, decode.Bne, decode.Blt, decode.Bge, decode.Bltu, decode.Bgeu:
			sites = append(sites, emitBranch(a, in, pc, uint64(count))...)
			terminated = true
		}

		count++
		pc += uint64(in.Length)
		paddr += uint64(in.Length)

		if terminated {
			break
		}
	}

	if !terminated {
		// Hit the instruction-count cap with a straight run of
		// inlined instructions; chain to the next block the ordinary
		// way.
		site := &blockcache.ChainSite{}
		emitChainExit(a, site, pc, uint64(count))
		sites = append(sites, site)
	}

	return t.commit(asid, virtPC, uint32(pc-virtPC), a.code(), sites)
}

func (t *Translator) fetch(paddr uint64) (uint32, error) {
	lo, err := t.mem.ReadUint16(paddr)
	if err != nil {
		return 0, err
	}
	if lo&0x3 != 0x3 {
		return uint32(lo), nil
	}
	hi, err := t.mem.ReadUint16(paddr + 2)
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

func (t *Translator) commit(asid, virtPC uint64, guestLen uint32, code []byte, sites []*blockcache.ChainSite) (*blockcache.Block, error) {
	buf, err := t.currentBuf()
	if err != nil {
		return nil, err
	}
	dst, ok := buf.reserve(len(code))
	if !ok {
		nb, err := newCodeBuf()
		if err != nil {
			return nil, err
		}
		t.bufs = append(t.bufs, nb)
		buf = nb
		dst, ok = buf.reserve(len(code))
		if !ok {
			return nil, fmt.Errorf("translate: block of %d bytes exceeds arena size", len(code))
		}
	}
	copy(dst, code)
	if err := buf.makeExecutable(); err != nil {
		return nil, err
	}

	entry := uintptrOf(dst)
	block := &blockcache.Block{
		Key:        blockcache.Key{ASID: asid, PC: virtPC},
		Code:       dst,
		Entry:      entry,
		GuestLen:   guestLen,
		ChainSites: sites,
	}
	t.cache.Insert(block)
	return block, nil
}

// Flush discards every compiled block and every code-cache arena; the
// next Translate call starts from empty arenas again. Used when the
// guest issues a self-modifying-code pattern the MMU/decoder can't
// otherwise detect safely, or on a full VM reset.
func (t *Translator) Flush() {
	t.cache.Flush()
	for _, b := range t.bufs {
		b.close()
	}
	t.bufs = nil
}

// hart.TLBBits / memory.PageShift-derived constants used by the
// inline TLB probe codegen.
var (
	tlbMask = uint32(1<<hart.TLBBits - 1)
)
