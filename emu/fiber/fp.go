/*
   F/D-extension interpretation: every floating point opcode goes
   through the fiber's helper ABI rather than inline codegen, since
   correct IEEE 754 semantics need the softfp.Kernel rather than raw
   x86-64 SSE instructions the translator would otherwise have to
   hand-encode. NaN-boxing of single values inside the 64-bit F
   registers follows the privileged spec: a write to a single-width
   destination sets the upper 32 bits to all ones, and a read that
   finds them not all ones treats the value as the canonical QNaN.

   Copyright (c) 2024, Richard Cornwell
*/

package fiber

import (
	"rv64vm/emu/decode"
	"rv64vm/emu/hart"
	"rv64vm/emu/mmu"
	"rv64vm/emu/softfp"
)

const canonicalNaNS uint32 = 0x7fc00000
const canonicalNaND uint64 = 0x7ff8000000000000
const nanBoxTop uint64 = 0xffffffff00000000

func (f *Fiber) freadS(r uint8) uint32 {
	v := f.Ctx.F[r&0x1f]
	if v&nanBoxTop != nanBoxTop {
		return canonicalNaNS
	}
	return uint32(v)
}

func (f *Fiber) fwriteS(r uint8, v uint32) {
	f.Ctx.F[r&0x1f] = nanBoxTop | uint64(v)
}

func (f *Fiber) freadD(r uint8) uint64 { return f.Ctx.F[r&0x1f] }

func (f *Fiber) fwriteD(r uint8, v uint64) { f.Ctx.F[r&0x1f] = v }

func isNaNS(v uint32) bool { return v&0x7f800000 == 0x7f800000 && v&0x7fffff != 0 }
func isNaND(v uint64) bool { return v&0x7ff0000000000000 == 0x7ff0000000000000 && v&0xfffffffffffff != 0 }

// execFLoad reports whether it trapped internally. A page-crossing F
// load always traps rather than splitting: unlike an integer load, the
// value must land in an F register as a single NaN-boxed unit, so
// there's no well-defined byte-at-a-time emulation to fall back to.
func (f *Fiber) execFLoad(in decode.Instruction) bool {
	c := f.Ctx
	vaddr := c.RegRead(in.Rs1) + uint64(in.Imm)
	size := uint8(4)
	if in.Op == decode.Fld {
		size = 8
	}
	if mmu.CrossesPage(vaddr, size) {
		c.EnterTrap(hart.CauseLoadMisaligned, vaddr)
		return true
	}
	host, fault := f.MMU.TranslateLoad(c, vaddr, size)
	if fault != nil {
		c.EnterTrap(fault.Cause, fault.Tval)
		return true
	}
	if in.Op == decode.Fld {
		f.fwriteD(in.Rd, readHost64(host))
	} else {
		f.fwriteS(in.Rd, readHost32(host))
	}
	return false
}

// execFStore is execFLoad's store counterpart; same always-trap
// page-crossing policy.
func (f *Fiber) execFStore(in decode.Instruction) bool {
	c := f.Ctx
	vaddr := c.RegRead(in.Rs1) + uint64(in.Imm)
	size := uint8(4)
	if in.Op == decode.Fsd {
		size = 8
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
	if in.Op == decode.Fsd {
		writeHost64(host, f.freadD(in.Rs2))
	} else {
		writeHost32(host, f.freadS(in.Rs2))
	}
	return false
}

func isFPOp(op decode.Op) bool {
	switch op {
	case decode.FmaddS, decode.FmsubS, decode.FnmsubS, decode.FnmaddS,
		decode.FaddS, decode.FsubS, decode.FmulS, decode.FdivS, decode.FsqrtS,
		decode.FsgnjS, decode.FsgnjnS, decode.FsgnjxS, decode.FminS, decode.FmaxS,
		decode.FcvtWS, decode.FcvtWuS, decode.FmvXW, decode.FeqS, decode.FltS, decode.FleS, decode.FclassS,
		decode.FcvtSW, decode.FcvtSWu, decode.FmvWX, decode.FcvtLS, decode.FcvtLuS, decode.FcvtSL, decode.FcvtSLu,
		decode.FmaddD, decode.FmsubD, decode.FnmsubD, decode.FnmaddD,
		decode.FaddD, decode.FsubD, decode.FmulD, decode.FdivD, decode.FsqrtD,
		decode.FsgnjD, decode.FsgnjnD, decode.FsgnjxD, decode.FminD, decode.FmaxD,
		decode.FcvtSD, decode.FcvtDS,
		decode.FeqD, decode.FltD, decode.FleD, decode.FclassD,
		decode.FcvtWD, decode.FcvtWuD, decode.FcvtDW, decode.FcvtDWu,
		decode.FcvtLD, decode.FcvtLuD, decode.FcvtDL, decode.FcvtDLu,
		decode.FmvXD, decode.FmvDX:
		return true
	default:
		return false
	}
}

func (f *Fiber) execFP(in decode.Instruction) {
	c := f.Ctx
	k := f.FP
	rm := in.Rm
	var flags uint8

	switch in.Op {
	case decode.FmaddS, decode.FmsubS, decode.FnmsubS, decode.FnmaddS:
		a, b, cc := f.freadS(in.Rs1), f.freadS(in.Rs2), f.freadS(in.Rs3)
		if in.Op == decode.FmsubS || in.Op == decode.FnmaddS {
			cc ^= 0x80000000
		}
		if in.Op == decode.FnmsubS || in.Op == decode.FnmaddS {
			a ^= 0x80000000
		}
		res, fl := k.FMAS(a, b, cc, rm)
		f.fwriteS(in.Rd, res)
		flags = fl
	case decode.FmaddD, decode.FmsubD, decode.FnmsubD, decode.FnmaddD:
		a, b, cc := f.freadD(in.Rs1), f.freadD(in.Rs2), f.freadD(in.Rs3)
		if in.Op == decode.FmsubD || in.Op == decode.FnmaddD {
			cc ^= 0x8000000000000000
		}
		if in.Op == decode.FnmsubD || in.Op == decode.FnmaddD {
			a ^= 0x8000000000000000
		}
		res, fl := k.FMAD(a, b, cc, rm)
		f.fwriteD(in.Rd, res)
		flags = fl

	case decode.FaddS:
		res, fl := k.AddS(f.freadS(in.Rs1), f.freadS(in.Rs2), rm)
		f.fwriteS(in.Rd, res)
		flags = fl
	case decode.FsubS:
		res, fl := k.SubS(f.freadS(in.Rs1), f.freadS(in.Rs2), rm)
		f.fwriteS(in.Rd, res)
		flags = fl
	case decode.FmulS:
		res, fl := k.MulS(f.freadS(in.Rs1), f.freadS(in.Rs2), rm)
		f.fwriteS(in.Rd, res)
		flags = fl
	case decode.FdivS:
		res, fl := k.DivS(f.freadS(in.Rs1), f.freadS(in.Rs2), rm)
		f.fwriteS(in.Rd, res)
		flags = fl
	case decode.FsqrtS:
		res, fl := k.SqrtS(f.freadS(in.Rs1), rm)
		f.fwriteS(in.Rd, res)
		flags = fl

	case decode.FaddD:
		res, fl := k.AddD(f.freadD(in.Rs1), f.freadD(in.Rs2), rm)
		f.fwriteD(in.Rd, res)
		flags = fl
	case decode.FsubD:
		res, fl := k.SubD(f.freadD(in.Rs1), f.freadD(in.Rs2), rm)
		f.fwriteD(in.Rd, res)
		flags = fl
	case decode.FmulD:
		res, fl := k.MulD(f.freadD(in.Rs1), f.freadD(in.Rs2), rm)
		f.fwriteD(in.Rd, res)
		flags = fl
	case decode.FdivD:
		res, fl := k.DivD(f.freadD(in.Rs1), f.freadD(in.Rs2), rm)
		f.fwriteD(in.Rd, res)
		flags = fl
	case decode.FsqrtD:
		res, fl := k.SqrtD(f.freadD(in.Rs1), rm)
		f.fwriteD(in.Rd, res)
		flags = fl

	case decode.FsgnjS:
		a, b := f.freadS(in.Rs1), f.freadS(in.Rs2)
		f.fwriteS(in.Rd, a&0x7fffffff|b&0x80000000)
	case decode.FsgnjnS:
		a, b := f.freadS(in.Rs1), f.freadS(in.Rs2)
		f.fwriteS(in.Rd, a&0x7fffffff|(^b)&0x80000000)
	case decode.FsgnjxS:
		a, b := f.freadS(in.Rs1), f.freadS(in.Rs2)
		f.fwriteS(in.Rd, a^(b&0x80000000))
	case decode.FsgnjD:
		a, b := f.freadD(in.Rs1), f.freadD(in.Rs2)
		f.fwriteD(in.Rd, a&0x7fffffffffffffff|b&0x8000000000000000)
	case decode.FsgnjnD:
		a, b := f.freadD(in.Rs1), f.freadD(in.Rs2)
		f.fwriteD(in.Rd, a&0x7fffffffffffffff|(^b)&0x8000000000000000)
	case decode.FsgnjxD:
		a, b := f.freadD(in.Rs1), f.freadD(in.Rs2)
		f.fwriteD(in.Rd, a^(b&0x8000000000000000))

	case decode.FminS, decode.FmaxS:
		a, b := f.freadS(in.Rs1), f.freadS(in.Rs2)
		f.fwriteS(in.Rd, fMinMaxS(k, a, b, in.Op == decode.FmaxS))
	case decode.FminD, decode.FmaxD:
		a, b := f.freadD(in.Rs1), f.freadD(in.Rs2)
		f.fwriteD(in.Rd, fMinMaxD(k, a, b, in.Op == decode.FmaxD))

	case decode.FeqS:
		_, eq, fl := k.CompareS(f.freadS(in.Rs1), f.freadS(in.Rs2))
		c.RegWrite(in.Rd, boolToU64(eq))
		flags = fl
	case decode.FltS:
		lt, _, fl := k.CompareS(f.freadS(in.Rs1), f.freadS(in.Rs2))
		c.RegWrite(in.Rd, boolToU64(lt))
		flags = fl
	case decode.FleS:
		lt, eq, fl := k.CompareS(f.freadS(in.Rs1), f.freadS(in.Rs2))
		c.RegWrite(in.Rd, boolToU64(lt || eq))
		flags = fl
	case decode.FeqD:
		_, eq, fl := k.CompareD(f.freadD(in.Rs1), f.freadD(in.Rs2))
		c.RegWrite(in.Rd, boolToU64(eq))
		flags = fl
	case decode.FltD:
		lt, _, fl := k.CompareD(f.freadD(in.Rs1), f.freadD(in.Rs2))
		c.RegWrite(in.Rd, boolToU64(lt))
		flags = fl
	case decode.FleD:
		lt, eq, fl := k.CompareD(f.freadD(in.Rs1), f.freadD(in.Rs2))
		c.RegWrite(in.Rd, boolToU64(lt || eq))
		flags = fl

	case decode.FclassS:
		c.RegWrite(in.Rd, uint64(classifyS(f.freadS(in.Rs1))))
	case decode.FclassD:
		c.RegWrite(in.Rd, uint64(classifyD(f.freadD(in.Rs1))))

	case decode.FmvXW:
		c.RegWrite(in.Rd, uint64(int64(int32(f.freadS(in.Rs1)))))
	case decode.FmvWX:
		f.fwriteS(in.Rd, uint32(c.RegRead(in.Rs1)))
	case decode.FmvXD:
		c.RegWrite(in.Rd, f.freadD(in.Rs1))
	case decode.FmvDX:
		f.fwriteD(in.Rd, c.RegRead(in.Rs1))

	case decode.FcvtWS:
		res, fl := k.S2I(f.freadS(in.Rs1), rm)
		c.RegWrite(in.Rd, signExt32(uint32(res)))
		flags = fl
	case decode.FcvtWuS:
		res, fl := k.S2UI(f.freadS(in.Rs1), rm)
		c.RegWrite(in.Rd, signExt32(uint32(res)))
		flags = fl
	case decode.FcvtLS:
		res, fl := k.S2I(f.freadS(in.Rs1), rm)
		c.RegWrite(in.Rd, uint64(res))
		flags = fl
	case decode.FcvtLuS:
		res, fl := k.S2UI(f.freadS(in.Rs1), rm)
		c.RegWrite(in.Rd, res)
		flags = fl
	case decode.FcvtSW:
		res, fl := k.I2S(int64(int32(c.RegRead(in.Rs1))), rm)
		f.fwriteS(in.Rd, res)
		flags = fl
	case decode.FcvtSWu:
		res, fl := k.UI2S(uint64(uint32(c.RegRead(in.Rs1))), rm)
		f.fwriteS(in.Rd, res)
		flags = fl
	case decode.FcvtSL:
		res, fl := k.I2S(int64(c.RegRead(in.Rs1)), rm)
		f.fwriteS(in.Rd, res)
		flags = fl
	case decode.FcvtSLu:
		res, fl := k.UI2S(c.RegRead(in.Rs1), rm)
		f.fwriteS(in.Rd, res)
		flags = fl

	case decode.FcvtWD:
		res, fl := k.D2I(f.freadD(in.Rs1), rm)
		c.RegWrite(in.Rd, signExt32(uint32(res)))
		flags = fl
	case decode.FcvtWuD:
		res, fl := k.D2UI(f.freadD(in.Rs1), rm)
		c.RegWrite(in.Rd, signExt32(uint32(res)))
		flags = fl
	case decode.FcvtLD:
		res, fl := k.D2I(f.freadD(in.Rs1), rm)
		c.RegWrite(in.Rd, uint64(res))
		flags = fl
	case decode.FcvtLuD:
		res, fl := k.D2UI(f.freadD(in.Rs1), rm)
		c.RegWrite(in.Rd, res)
		flags = fl
	case decode.FcvtDW:
		f.fwriteD(in.Rd, k.I2D(int64(int32(c.RegRead(in.Rs1)))))
	case decode.FcvtDWu:
		f.fwriteD(in.Rd, k.UI2D(uint64(uint32(c.RegRead(in.Rs1)))))
	case decode.FcvtDL:
		f.fwriteD(in.Rd, k.I2D(int64(c.RegRead(in.Rs1))))
	case decode.FcvtDLu:
		f.fwriteD(in.Rd, k.UI2D(c.RegRead(in.Rs1)))

	case decode.FcvtSD:
		res, fl := k.D2S(f.freadD(in.Rs1), rm)
		f.fwriteS(in.Rd, res)
		flags = fl
	case decode.FcvtDS:
		f.fwriteD(in.Rd, k.S2D(f.freadS(in.Rs1)))
	}

	c.Fflags |= flags
}

func fMinMaxS(k softfp.Kernel, a, b uint32, max bool) uint32 {
	if isNaNS(a) && isNaNS(b) {
		return canonicalNaNS
	}
	if isNaNS(a) {
		return b
	}
	if isNaNS(b) {
		return a
	}
	lt, _, _ := k.CompareS(a, b)
	if max {
		if lt {
			return b
		}
		return a
	}
	if lt {
		return a
	}
	return b
}

func fMinMaxD(k softfp.Kernel, a, b uint64, max bool) uint64 {
	if isNaND(a) && isNaND(b) {
		return canonicalNaND
	}
	if isNaND(a) {
		return b
	}
	if isNaND(b) {
		return a
	}
	lt, _, _ := k.CompareD(a, b)
	if max {
		if lt {
			return b
		}
		return a
	}
	if lt {
		return a
	}
	return b
}

// classifyS/classifyD return the fclass bit position per the
// privileged spec's table (bit 0 = -inf, ..., bit 9 = quiet NaN).
func classifyS(v uint32) uint16 {
	sign := v&0x80000000 != 0
	exp := (v >> 23) & 0xff
	mant := v & 0x7fffff
	switch {
	case exp == 0xff && mant != 0:
		if mant&0x400000 != 0 {
			return 1 << 9
		}
		return 1 << 8
	case exp == 0xff:
		if sign {
			return 1 << 0
		}
		return 1 << 7
	case exp == 0 && mant == 0:
		if sign {
			return 1 << 3
		}
		return 1 << 4
	case exp == 0:
		if sign {
			return 1 << 2
		}
		return 1 << 5
	default:
		if sign {
			return 1 << 1
		}
		return 1 << 6
	}
}

func classifyD(v uint64) uint16 {
	sign := v&0x8000000000000000 != 0
	exp := (v >> 52) & 0x7ff
	mant := v & 0xfffffffffffff
	switch {
	case exp == 0x7ff && mant != 0:
		if mant&0x8000000000000 != 0 {
			return 1 << 9
		}
		return 1 << 8
	case exp == 0x7ff:
		if sign {
			return 1 << 0
		}
		return 1 << 7
	case exp == 0 && mant == 0:
		if sign {
			return 1 << 3
		}
		return 1 << 4
	case exp == 0:
		if sign {
			return 1 << 2
		}
		return 1 << 5
	default:
		if sign {
			return 1 << 1
		}
		return 1 << 6
	}
}
