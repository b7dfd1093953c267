/*
   Single-instruction interpreter: executes exactly the one guest
   instruction a translated block exited on (ExitHelper), then resumes
   the block dispatch loop. Covers every opcode the translator never
   inlines: control transfer (JAL/JALR), CSR/system instructions,
   M-extension, A-extension, the full F/D extension, and every load/
   store width other than the inline 64-bit fast path.

   Grounded on cpu_standard.go/cpu_system.go's per-opcode execute
   functions, generalized to RV64GC semantics.

   Copyright (c) 2024, Richard Cornwell
*/

package fiber

import (
	"math"
	"math/bits"
	"sync/atomic"
	"unsafe"

	"rv64vm/emu/decode"
	"rv64vm/emu/hart"
	"rv64vm/emu/mmu"
)

// stepOutcome reports what execute did to ctx.PC and ctx.Instret, so
// interpretOne knows whether it still needs to advance either itself.
type stepOutcome int

const (
	outcomeAdvance       stepOutcome = iota // retired normally; interpretOne advances PC and Instret
	outcomeRetiredBranch                    // retired and set PC itself (Jal/Jalr/Sret/Mret/Ecall/Ebreak); Instret still needs bumping
	outcomeFaulted                          // did not retire; EnterTrap already redirected PC
)

// interpretOne decodes and executes the instruction at ctx.PC. Instret
// is bumped exactly when the instruction actually retires; a faulted
// instruction leaves PC wherever EnterTrap pointed it.
func (f *Fiber) interpretOne() {
	in, fault := f.fetchAtPC()
	if fault != nil {
		f.Ctx.EnterTrap(fault.Cause, fault.Tval)
		return
	}

	pc := f.Ctx.PC
	next := pc + uint64(in.Length)
	switch f.execute(in, pc) {
	case outcomeAdvance:
		f.Ctx.Instret++
		f.Ctx.PC = next
	case outcomeRetiredBranch:
		f.Ctx.Instret++
	case outcomeFaulted:
	}
}

// execute runs one decoded instruction and reports its outcome.
func (f *Fiber) execute(in decode.Instruction, pc uint64) stepOutcome {
	c := f.Ctx
	switch in.Op {
	case decode.Illegal:
		c.EnterTrap(hart.CauseIllegalInsn, uint64(in.Raw))
		return outcomeFaulted

	case decode.Jal:
		c.RegWrite(in.Rd, pc+uint64(in.Length))
		c.PC = uint64(int64(pc) + in.Imm)
		return outcomeRetiredBranch
	case decode.Jalr:
		target := (c.RegRead(in.Rs1) + uint64(in.Imm)) &^ 1
		c.RegWrite(in.Rd, pc+uint64(in.Length))
		c.PC = target
		return outcomeRetiredBranch

	case decode.Slt:
		c.RegWrite(in.Rd, boolToU64(int64(c.RegRead(in.Rs1)) < int64(c.RegRead(in.Rs2))))
	case decode.Sltu:
		c.RegWrite(in.Rd, boolToU64(c.RegRead(in.Rs1) < c.RegRead(in.Rs2)))
	case decode.Slti:
		c.RegWrite(in.Rd, boolToU64(int64(c.RegRead(in.Rs1)) < in.Imm))
	case decode.Sltiu:
		c.RegWrite(in.Rd, boolToU64(c.RegRead(in.Rs1) < uint64(in.Imm)))
	case decode.Sll:
		c.RegWrite(in.Rd, c.RegRead(in.Rs1)<<(c.RegRead(in.Rs2)&0x3f))
	case decode.Srl:
		c.RegWrite(in.Rd, c.RegRead(in.Rs1)>>(c.RegRead(in.Rs2)&0x3f))
	case decode.Sra:
		c.RegWrite(in.Rd, uint64(int64(c.RegRead(in.Rs1))>>(c.RegRead(in.Rs2)&0x3f)))
	case decode.Slli:
		c.RegWrite(in.Rd, c.RegRead(in.Rs1)<<uint(in.Imm&0x3f))
	case decode.Srli:
		c.RegWrite(in.Rd, c.RegRead(in.Rs1)>>uint(in.Imm&0x3f))
	case decode.Srai:
		c.RegWrite(in.Rd, uint64(int64(c.RegRead(in.Rs1))>>uint(in.Imm&0x3f)))

	case decode.Addiw:
		c.RegWrite(in.Rd, signExt32(uint32(c.RegRead(in.Rs1))+uint32(in.Imm)))
	case decode.Slliw:
		c.RegWrite(in.Rd, signExt32(uint32(c.RegRead(in.Rs1))<<uint(in.Imm&0x1f)))
	case decode.Srliw:
		c.RegWrite(in.Rd, signExt32(uint32(c.RegRead(in.Rs1))>>uint(in.Imm&0x1f)))
	case decode.Sraiw:
		c.RegWrite(in.Rd, uint64(int64(int32(uint32(c.RegRead(in.Rs1)))>>uint(in.Imm&0x1f))))
	case decode.Addw:
		c.RegWrite(in.Rd, signExt32(uint32(c.RegRead(in.Rs1))+uint32(c.RegRead(in.Rs2))))
	case decode.Subw:
		c.RegWrite(in.Rd, signExt32(uint32(c.RegRead(in.Rs1))-uint32(c.RegRead(in.Rs2))))
	case decode.Sllw:
		c.RegWrite(in.Rd, signExt32(uint32(c.RegRead(in.Rs1))<<(c.RegRead(in.Rs2)&0x1f)))
	case decode.Srlw:
		c.RegWrite(in.Rd, signExt32(uint32(c.RegRead(in.Rs1))>>(c.RegRead(in.Rs2)&0x1f)))
	case decode.Sraw:
		c.RegWrite(in.Rd, uint64(int64(int32(uint32(c.RegRead(in.Rs1)))>>(c.RegRead(in.Rs2)&0x1f))))

	case decode.Fence, decode.FenceI:
		// Ordering is already total across this single hart's own
		// instruction stream; cross-hart visibility of device/MMIO
		// effects goes through the host's own memory model since guest
		// memory is backed by one shared Go byte slice.

	case decode.Ecall:
		cause := hart.CauseEcallU
		if c.Priv == hart.PrivSupervisor {
			cause = hart.CauseEcallS
		}
		c.EnterTrap(cause, 0)
		return outcomeRetiredBranch
	case decode.Ebreak:
		c.EnterTrap(hart.CauseBreakpoint, pc)
		return outcomeRetiredBranch
	case decode.Sret:
		c.Sret()
		return outcomeRetiredBranch
	case decode.Mret:
		c.Sret() // M-mode firmware is out of scope; treated as S-mode return.
		return outcomeRetiredBranch
	case decode.Wfi:
		c.WaitForInterrupt()
	case decode.SfenceVma:
		f.MMU.Sfence(c)

	case decode.Csrrw, decode.Csrrs, decode.Csrrc, decode.Csrrwi, decode.Csrrsi, decode.Csrrci:
		f.execCSR(in)

	case decode.Lb, decode.Lh, decode.Lw, decode.Lbu, decode.Lhu, decode.Lwu:
		if f.execLoad(in) {
			return outcomeFaulted
		}
	case decode.Sb, decode.Sh, decode.Sw:
		if f.execStore(in) {
			return outcomeFaulted
		}

	case decode.Mul, decode.Mulh, decode.Mulhsu, decode.Mulhu,
		decode.Div, decode.Divu, decode.Rem, decode.Remu,
		decode.Mulw, decode.Divw, decode.Divuw, decode.Remw, decode.Remuw:
		f.execMulDiv(in)

	case decode.LrW, decode.ScW, decode.AmoswapW, decode.AmoaddW, decode.AmoxorW,
		decode.AmoandW, decode.AmoorW, decode.AmominW, decode.AmomaxW, decode.AmominuW, decode.AmomaxuW,
		decode.LrD, decode.ScD, decode.AmoswapD, decode.AmoaddD, decode.AmoxorD,
		decode.AmoandD, decode.AmoorD, decode.AmominD, decode.AmomaxD, decode.AmominuD, decode.AmomaxuD:
		if f.execAtomic(in) {
			return outcomeFaulted
		}

	case decode.Flw, decode.Fld:
		if f.execFLoad(in) {
			return outcomeFaulted
		}
	case decode.Fsw, decode.Fsd:
		if f.execFStore(in) {
			return outcomeFaulted
		}

	default:
		if isFPOp(in.Op) {
			f.execFP(in)
		} else {
			c.EnterTrap(hart.CauseIllegalInsn, uint64(in.Raw))
			return outcomeFaulted
		}
	}
	return outcomeAdvance
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func signExt32(v uint32) uint64 { return uint64(int64(int32(v))) }

// execCSR performs the read-modify-write dance common to all six
// Zicsr instructions: the old value always goes to rd (unless x0),
// and rs1==x0 (for the non-immediate forms) suppresses the write,
// per the privileged spec's "no side effect on a pure read" carve-out.
func (f *Fiber) execCSR(in decode.Instruction) {
	c := f.Ctx
	addr := uint16(in.Imm)
	old := c.ReadCSR(addr)

	var operand uint64
	immForm := in.Op == decode.Csrrwi || in.Op == decode.Csrrsi || in.Op == decode.Csrrci
	if immForm {
		operand = uint64(in.Rs1)
	} else {
		operand = c.RegRead(in.Rs1)
	}

	writes := true
	var newVal uint64
	switch in.Op {
	case decode.Csrrw, decode.Csrrwi:
		newVal = operand
	case decode.Csrrs, decode.Csrrsi:
		newVal = old | operand
		writes = immForm || in.Rs1 != 0
	case decode.Csrrc, decode.Csrrci:
		newVal = old &^ operand
		writes = immForm || in.Rs1 != 0
	}
	if writes {
		c.WriteCSR(addr, newVal)
	}
	c.RegWrite(in.Rd, old)
}

// execLoad runs an integer load narrower than the translator's inline
// 64-bit fast path. A span that crosses a page boundary is emulated
// byte-by-byte rather than trapped, since an ordinary load (unlike an
// AMO or an FP load) has no architectural reason to require natural
// alignment. Reports whether it trapped internally, so execute knows
// not to let interpretOne also advance PC.
func (f *Fiber) execLoad(in decode.Instruction) bool {
	c := f.Ctx
	vaddr := c.RegRead(in.Rs1) + uint64(in.Imm)
	var size uint8
	switch in.Op {
	case decode.Lb, decode.Lbu:
		size = 1
	case decode.Lh, decode.Lhu:
		size = 2
	case decode.Lw, decode.Lwu:
		size = 4
	}

	var raw uint64
	var fault *mmu.Fault
	if mmu.CrossesPage(vaddr, size) {
		raw, fault = f.loadSplit(vaddr, size)
	} else {
		var host uintptr
		host, fault = f.MMU.TranslateLoad(c, vaddr, size)
		if fault == nil {
			switch size {
			case 1:
				raw = uint64(readHost8(host))
			case 2:
				raw = uint64(readHost16(host))
			case 4:
				raw = uint64(readHost32(host))
			}
		}
	}
	if fault != nil {
		c.EnterTrap(fault.Cause, fault.Tval)
		return true
	}

	var v uint64
	switch in.Op {
	case decode.Lb:
		v = uint64(int64(int8(raw)))
	case decode.Lbu:
		v = raw
	case decode.Lh:
		v = uint64(int64(int16(raw)))
	case decode.Lhu:
		v = raw
	case decode.Lw:
		v = uint64(int64(int32(raw)))
	case decode.Lwu:
		v = raw
	}
	c.RegWrite(in.Rd, v)
	return false
}

// execStore mirrors execLoad for Sb/Sh/Sw.
func (f *Fiber) execStore(in decode.Instruction) bool {
	c := f.Ctx
	vaddr := c.RegRead(in.Rs1) + uint64(in.Imm)
	val := c.RegRead(in.Rs2)
	var size uint8
	switch in.Op {
	case decode.Sb:
		size = 1
	case decode.Sh:
		size = 2
	case decode.Sw:
		size = 4
	}

	var fault *mmu.Fault
	if mmu.CrossesPage(vaddr, size) {
		fault = f.storeSplit(vaddr, val, size)
	} else {
		var host uintptr
		host, fault = f.MMU.TranslateStore(c, vaddr, size)
		if fault == nil {
			switch in.Op {
			case decode.Sb:
				writeHost8(host, uint8(val))
			case decode.Sh:
				writeHost16(host, uint16(val))
			case decode.Sw:
				writeHost32(host, uint32(val))
			}
		}
	}
	if fault != nil {
		c.EnterTrap(fault.Cause, fault.Tval)
		return true
	}
	return false
}

func (f *Fiber) execMulDiv(in decode.Instruction) {
	c := f.Ctx
	a, b := c.RegRead(in.Rs1), c.RegRead(in.Rs2)
	switch in.Op {
	case decode.Mul:
		c.RegWrite(in.Rd, a*b)
	case decode.Mulh:
		hi, _ := bits.Mul64(a, b)
		if int64(a) < 0 {
			hi -= b
		}
		if int64(b) < 0 {
			hi -= a
		}
		c.RegWrite(in.Rd, hi)
	case decode.Mulhu:
		hi, _ := bits.Mul64(a, b)
		c.RegWrite(in.Rd, hi)
	case decode.Mulhsu:
		hi, _ := bits.Mul64(a, b)
		if int64(a) < 0 {
			hi -= b
		}
		c.RegWrite(in.Rd, hi)
	case decode.Div:
		sa, sb := int64(a), int64(b)
		switch {
		case sb == 0:
			c.RegWrite(in.Rd, ^uint64(0))
		case sa == math.MinInt64 && sb == -1:
			c.RegWrite(in.Rd, a)
		default:
			c.RegWrite(in.Rd, uint64(sa/sb))
		}
	case decode.Divu:
		if b == 0 {
			c.RegWrite(in.Rd, ^uint64(0))
		} else {
			c.RegWrite(in.Rd, a/b)
		}
	case decode.Rem:
		sa, sb := int64(a), int64(b)
		switch {
		case sb == 0:
			c.RegWrite(in.Rd, a)
		case sa == math.MinInt64 && sb == -1:
			c.RegWrite(in.Rd, 0)
		default:
			c.RegWrite(in.Rd, uint64(sa%sb))
		}
	case decode.Remu:
		if b == 0 {
			c.RegWrite(in.Rd, a)
		} else {
			c.RegWrite(in.Rd, a%b)
		}
	case decode.Mulw:
		c.RegWrite(in.Rd, signExt32(uint32(a)*uint32(b)))
	case decode.Divw:
		sa, sb := int32(uint32(a)), int32(uint32(b))
		if sb == 0 {
			c.RegWrite(in.Rd, ^uint64(0))
		} else if sa == math.MinInt32 && sb == -1 {
			c.RegWrite(in.Rd, signExt32(uint32(sa)))
		} else {
			c.RegWrite(in.Rd, signExt32(uint32(sa/sb)))
		}
	case decode.Divuw:
		ua, ub := uint32(a), uint32(b)
		if ub == 0 {
			c.RegWrite(in.Rd, ^uint64(0))
		} else {
			c.RegWrite(in.Rd, signExt32(ua/ub))
		}
	case decode.Remw:
		sa, sb := int32(uint32(a)), int32(uint32(b))
		if sb == 0 {
			c.RegWrite(in.Rd, signExt32(uint32(sa)))
		} else if sa == math.MinInt32 && sb == -1 {
			c.RegWrite(in.Rd, 0)
		} else {
			c.RegWrite(in.Rd, signExt32(uint32(sa%sb)))
		}
	case decode.Remuw:
		ua, ub := uint32(a), uint32(b)
		if ub == 0 {
			c.RegWrite(in.Rd, signExt32(ua))
		} else {
			c.RegWrite(in.Rd, signExt32(ua%ub))
		}
	}
}

// execAtomic runs the A-extension: LR/SC against the per-hart
// reservation, and AMO read-modify-writes against the host memory
// slice using sync/atomic so concurrent harts touching the same word
// observe a total order. Unlike a plain load/store, a page-crossing
// AMO/LR/SC always traps rather than splitting: a split access can't
// be made atomic, so there is no correct emulation to fall back to.
// Reports whether it trapped internally.
func (f *Fiber) execAtomic(in decode.Instruction) bool {
	c := f.Ctx
	is64 := false
	switch in.Op {
	case decode.LrD, decode.ScD, decode.AmoswapD, decode.AmoaddD, decode.AmoxorD,
		decode.AmoandD, decode.AmoorD, decode.AmominD, decode.AmomaxD, decode.AmominuD, decode.AmomaxuD:
		is64 = true
	}

	vaddr := c.RegRead(in.Rs1)
	size := uint8(4)
	if is64 {
		size = 8
	}

	switch in.Op {
	case decode.LrW, decode.LrD:
		if mmu.CrossesPage(vaddr, size) {
			c.EnterTrap(hart.CauseLoadMisaligned, vaddr)
			return true
		}
		host, fault := f.MMU.TranslateLoad(c, vaddr, size)
		if fault != nil {
			c.EnterTrap(fault.Cause, fault.Tval)
			return true
		}
		c.ReserveValid = true
		c.ReserveAddr = vaddr
		if is64 {
			c.RegWrite(in.Rd, readHost64(host))
		} else {
			c.RegWrite(in.Rd, signExt32(readHost32(host)))
		}
		return false
	case decode.ScW, decode.ScD:
		if !c.ReserveValid || c.ReserveAddr != vaddr {
			c.RegWrite(in.Rd, 1) // failure
			return false
		}
		if mmu.CrossesPage(vaddr, size) {
			c.EnterTrap(hart.CauseStoreMisaligned, vaddr)
			return true
		}
		host, fault := f.MMU.TranslateStore(c, vaddr, size)
		if fault != nil {
			c.EnterTrap(fault.Cause, fault.Tval)
			return true
		}
		if is64 {
			writeHost64(host, c.RegRead(in.Rs2))
		} else {
			writeHost32(host, uint32(c.RegRead(in.Rs2)))
		}
		c.ReserveValid = false
		c.RegWrite(in.Rd, 0) // success
		return false
	}

	if mmu.CrossesPage(vaddr, size) {
		c.EnterTrap(hart.CauseStoreMisaligned, vaddr)
		return true
	}
	host, fault := f.MMU.TranslateStore(c, vaddr, size)
	if fault != nil {
		c.EnterTrap(fault.Cause, fault.Tval)
		return true
	}
	rs2 := c.RegRead(in.Rs2)

	if is64 {
		ptr := (*uint64)(unsafe.Pointer(host))
		for {
			old := atomic.LoadUint64(ptr)
			newVal := amoCombine64(in.Op, old, rs2)
			if atomic.CompareAndSwapUint64(ptr, old, newVal) {
				c.RegWrite(in.Rd, old)
				return false
			}
		}
	}
	ptr := (*uint32)(unsafe.Pointer(host))
	rs2w := uint32(rs2)
	for {
		old := atomic.LoadUint32(ptr)
		newVal := amoCombine32(in.Op, old, rs2w)
		if atomic.CompareAndSwapUint32(ptr, old, newVal) {
			c.RegWrite(in.Rd, signExt32(old))
			return false
		}
	}
}

func amoCombine32(op decode.Op, old, v uint32) uint32 {
	switch op {
	case decode.AmoswapW:
		return v
	case decode.AmoaddW:
		return old + v
	case decode.AmoxorW:
		return old ^ v
	case decode.AmoandW:
		return old & v
	case decode.AmoorW:
		return old | v
	case decode.AmominW:
		if int32(old) < int32(v) {
			return old
		}
		return v
	case decode.AmomaxW:
		if int32(old) > int32(v) {
			return old
		}
		return v
	case decode.AmominuW:
		if old < v {
			return old
		}
		return v
	case decode.AmomaxuW:
		if old > v {
			return old
		}
		return v
	}
	return old
}

func amoCombine64(op decode.Op, old, v uint64) uint64 {
	switch op {
	case decode.AmoswapD:
		return v
	case decode.AmoaddD:
		return old + v
	case decode.AmoxorD:
		return old ^ v
	case decode.AmoandD:
		return old & v
	case decode.AmoorD:
		return old | v
	case decode.AmominD:
		if int64(old) < int64(v) {
			return old
		}
		return v
	case decode.AmomaxD:
		if int64(old) > int64(v) {
			return old
		}
		return v
	case decode.AmominuD:
		if old < v {
			return old
		}
		return v
	case decode.AmomaxuD:
		if old > v {
			return old
		}
		return v
	}
	return old
}
