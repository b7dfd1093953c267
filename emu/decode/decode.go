/*
   RV64GC decoder: 32-bit and 16-bit (compressed) guest encodings to a
   canonical Instruction record.

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

// Package decode turns a 16- or 32-bit RISC-V guest encoding into a
// canonical Instruction record. Decode is a pure, total function: every
// bit pattern yields a record, reserved and unimplemented encodings
// yield Illegal, never an error and never a panic.
package decode

// Instruction is the canonical decode of one guest instruction.
type Instruction struct {
	Op     Op
	Rd     uint8
	Rs1    uint8
	Rs2    uint8
	Rs3    uint8  // fused multiply-add third source
	Rm     uint8  // rounding mode (funct3 for FP ops)
	Imm    int64  // sign-extended immediate / offset
	Aq     bool   // AMO acquire
	Rl     bool   // AMO release
	Length uint8  // 2 or 4
	Raw    uint32 // original encoding, for disassembly/debug
}

// Decode decodes the instruction whose low bits are bits. For a
// compressed (length 2) instruction only the low 16 bits are significant;
// the caller supplies the full word when it has one, but Decode only
// reads what the length requires.
func Decode(bits uint32) Instruction {
	if bits&0x3 != 0x3 {
		return decodeCompressed(uint16(bits))
	}
	if bits&0x1c != 0x1c {
		return decode32(bits)
	}
	// Encodings of length >= 48 bits: reserved.
	return Instruction{Op: Illegal, Length: 2, Raw: bits}
}

func signExtend(v uint32, bit uint) int64 {
	shift := 32 - bit
	return int64(int32(v<<shift)) >> shift
}

func decode32(bits uint32) Instruction {
	in := Instruction{Length: 4, Raw: bits}
	opcode := bits & 0x7f
	funct3 := uint8((bits >> 12) & 0x7)
	funct7 := uint8((bits >> 25) & 0x7f)
	rd := uint8((bits >> 7) & 0x1f)
	rs1 := uint8((bits >> 15) & 0x1f)
	rs2 := uint8((bits >> 20) & 0x1f)
	in.Rd, in.Rs1, in.Rs2 = rd, rs1, rs2
	in.Rm = funct3

	switch opcode {
	case 0x37: // LUI
		in.Op = Lui
		in.Imm = int64(int32(bits & 0xfffff000))
	case 0x17: // AUIPC
		in.Op = Auipc
		in.Imm = int64(int32(bits & 0xfffff000))
	case 0x6f: // JAL
		in.Op = Jal
		imm := (bits>>11)&0x100000 | bits&0xff000 | (bits>>9)&0x800 | (bits>>20)&0x7fe
		in.Imm = signExtend(imm, 21)
	case 0x67: // JALR
		if funct3 != 0 {
			return Instruction{Op: Illegal, Length: 4, Raw: bits}
		}
		in.Op = Jalr
		in.Imm = signExtend(bits>>20, 12)
	case 0x63: // Branch
		imm := (bits>>19)&0x1000 | (bits<<4)&0x800 | (bits>>20)&0x7e0 | (bits>>7)&0x1e
		in.Imm = signExtend(imm, 13)
		switch funct3 {
		case 0:
			in.Op = Beq
		case 1:
			in.Op = Bne
		case 4:
			in.Op = Blt
		case 5:
			in.Op = Bge
		case 6:
			in.Op = Bltu
		case 7:
			in.Op = Bgeu
		default:
			return Instruction{Op: Illegal, Length: 4, Raw: bits}
		}
	case 0x03: // Load
		in.Imm = signExtend(bits>>20, 12)
		switch funct3 {
		case 0:
			in.Op = Lb
		case 1:
			in.Op = Lh
		case 2:
			in.Op = Lw
		case 3:
			in.Op = Ld
		case 4:
			in.Op = Lbu
		case 5:
			in.Op = Lhu
		case 6:
			in.Op = Lwu
		default:
			return Instruction{Op: Illegal, Length: 4, Raw: bits}
		}
	case 0x23: // Store
		imm := (bits>>20)&0xfe0 | (bits>>7)&0x1f
		in.Imm = signExtend(imm, 12)
		switch funct3 {
		case 0:
			in.Op = Sb
		case 1:
			in.Op = Sh
		case 2:
			in.Op = Sw
		case 3:
			in.Op = Sd
		default:
			return Instruction{Op: Illegal, Length: 4, Raw: bits}
		}
	case 0x13: // OP-IMM
		in.Imm = signExtend(bits>>20, 12)
		switch funct3 {
		case 0:
			in.Op = Addi
		case 1:
			if funct7>>1 != 0 {
				return Instruction{Op: Illegal, Length: 4, Raw: bits}
			}
			in.Op = Slli
			in.Imm = int64((bits >> 20) & 0x3f)
		case 2:
			in.Op = Slti
		case 3:
			in.Op = Sltiu
		case 4:
			in.Op = Xori
		case 5:
			in.Imm = int64((bits >> 20) & 0x3f)
			switch funct7 >> 1 {
			case 0:
				in.Op = Srli
			case 0x10:
				in.Op = Srai
			default:
				return Instruction{Op: Illegal, Length: 4, Raw: bits}
			}
		case 6:
			in.Op = Ori
		case 7:
			in.Op = Andi
		}
	case 0x1b: // OP-IMM-32
		in.Imm = signExtend(bits>>20, 12)
		switch funct3 {
		case 0:
			in.Op = Addiw
		case 1:
			if funct7 != 0 {
				return Instruction{Op: Illegal, Length: 4, Raw: bits}
			}
			in.Op = Slliw
			in.Imm = int64(rs2)
		case 5:
			in.Imm = int64(rs2)
			switch funct7 {
			case 0:
				in.Op = Srliw
			case 0x20:
				in.Op = Sraiw
			default:
				return Instruction{Op: Illegal, Length: 4, Raw: bits}
			}
		default:
			return Instruction{Op: Illegal, Length: 4, Raw: bits}
		}
	case 0x33: // OP (R-type, also M extension)
		in.Op = decodeOp(funct3, funct7)
	case 0x3b: // OP-32 (also MULW/DIVW family)
		in.Op = decodeOp32(funct3, funct7)
	case 0x0f: // MISC-MEM
		switch funct3 {
		case 0:
			in.Op = Fence
		case 1:
			in.Op = FenceI
		default:
			return Instruction{Op: Illegal, Length: 4, Raw: bits}
		}
	case 0x73: // SYSTEM
		return decodeSystem(bits, in, funct3, rs1, rs2, rd)
	case 0x2f: // AMO
		in.Aq = bits&0x04000000 != 0
		in.Rl = bits&0x02000000 != 0
		in.Op = decodeAmo(funct3, funct7>>2)
	case 0x07: // LOAD-FP
		in.Imm = signExtend(bits>>20, 12)
		switch funct3 {
		case 2:
			in.Op = Flw
		case 3:
			in.Op = Fld
		default:
			// Reserved funct3 codes are illegal, never left with the
			// opcode field unset.
			return Instruction{Op: Illegal, Length: 4, Raw: bits}
		}
	case 0x27: // STORE-FP
		imm := (bits>>20)&0xfe0 | (bits>>7)&0x1f
		in.Imm = signExtend(imm, 12)
		switch funct3 {
		case 2:
			in.Op = Fsw
		case 3:
			in.Op = Fsd
		default:
			return Instruction{Op: Illegal, Length: 4, Raw: bits}
		}
	case 0x43, 0x47, 0x4b, 0x4f: // FMADD/FMSUB/FNMSUB/FNMADD
		in.Rs3 = uint8((bits >> 27) & 0x1f)
		double := funct7&0x3 == 1
		in.Op = decodeFused(uint8(opcode), double)
	case 0x53: // OP-FP
		in.Op = decodeOpFP(funct7, funct3, rs2)
	default:
		return Instruction{Op: Illegal, Length: 4, Raw: bits}
	}
	return in
}

func decodeOp(funct3, funct7 uint8) Op {
	switch {
	case funct7 == 0x00 && funct3 == 0:
		return Add
	case funct7 == 0x20 && funct3 == 0:
		return Sub
	case funct7 == 0x00 && funct3 == 1:
		return Sll
	case funct7 == 0x00 && funct3 == 2:
		return Slt
	case funct7 == 0x00 && funct3 == 3:
		return Sltu
	case funct7 == 0x00 && funct3 == 4:
		return Xor
	case funct7 == 0x00 && funct3 == 5:
		return Srl
	case funct7 == 0x20 && funct3 == 5:
		return Sra
	case funct7 == 0x00 && funct3 == 6:
		return Or
	case funct7 == 0x00 && funct3 == 7:
		return And
	case funct7 == 0x01:
		switch funct3 {
		case 0:
			return Mul
		case 1:
			return Mulh
		case 2:
			return Mulhsu
		case 3:
			return Mulhu
		case 4:
			return Div
		case 5:
			return Divu
		case 6:
			return Rem
		case 7:
			return Remu
		}
	}
	return Illegal
}

func decodeOp32(funct3, funct7 uint8) Op {
	switch {
	case funct7 == 0x00 && funct3 == 0:
		return Addw
	case funct7 == 0x20 && funct3 == 0:
		return Subw
	case funct7 == 0x00 && funct3 == 1:
		return Sllw
	case funct7 == 0x00 && funct3 == 5:
		return Srlw
	case funct7 == 0x20 && funct3 == 5:
		return Sraw
	case funct7 == 0x01:
		switch funct3 {
		case 0:
			return Mulw
		case 4:
			return Divw
		case 5:
			return Divuw
		case 6:
			return Remw
		case 7:
			return Remuw
		}
	}
	return Illegal
}

func decodeAmo(funct3 uint8, funct5 uint8) Op {
	if funct3 == 2 {
		switch funct5 {
		case 0x00:
			return AmoaddW
		case 0x01:
			return AmoswapW
		case 0x02:
			return LrW
		case 0x03:
			return ScW
		case 0x04:
			return AmoxorW
		case 0x08:
			return AmoorW
		case 0x0c:
			return AmoandW
		case 0x10:
			return AmominW
		case 0x14:
			return AmomaxW
		case 0x18:
			return AmominuW
		case 0x1c:
			return AmomaxuW
		}
	}
	if funct3 == 3 {
		switch funct5 {
		case 0x00:
			return AmoaddD
		case 0x01:
			return AmoswapD
		case 0x02:
			return LrD
		case 0x03:
			return ScD
		case 0x04:
			return AmoxorD
		case 0x08:
			return AmoorD
		case 0x0c:
			return AmoandD
		case 0x10:
			return AmominD
		case 0x14:
			return AmomaxD
		case 0x18:
			return AmominuD
		case 0x1c:
			return AmomaxuD
		}
	}
	return Illegal
}

func decodeFused(opcode uint8, double bool) Op {
	switch opcode {
	case 0x43:
		if double {
			return FmaddD
		}
		return FmaddS
	case 0x47:
		if double {
			return FmsubD
		}
		return FmsubS
	case 0x4b:
		if double {
			return FnmsubD
		}
		return FnmsubS
	case 0x4f:
		if double {
			return FnmaddD
		}
		return FnmaddS
	}
	return Illegal
}

func decodeOpFP(funct7, funct3, rs2 uint8) Op {
	switch funct7 {
	case 0x00:
		return FaddS
	case 0x04:
		return FsubS
	case 0x08:
		return FmulS
	case 0x0c:
		return FdivS
	case 0x2c:
		return FsqrtS
	case 0x10:
		switch funct3 {
		case 0:
			return FsgnjS
		case 1:
			return FsgnjnS
		case 2:
			return FsgnjxS
		}
	case 0x14:
		if funct3 == 0 {
			return FminS
		}
		return FmaxS
	case 0x60:
		if rs2 == 0 {
			return FcvtWS
		}
		if rs2 == 2 {
			return FcvtLS
		}
		if rs2 == 3 {
			return FcvtLuS
		}
		return FcvtWuS
	case 0x70:
		if funct3 == 0 {
			return FmvXW
		}
		return FclassS
	case 0x50:
		switch funct3 {
		case 0:
			return FleS
		case 1:
			return FltS
		case 2:
			return FeqS
		}
	case 0x68:
		if rs2 == 0 {
			return FcvtSW
		}
		if rs2 == 2 {
			return FcvtSL
		}
		if rs2 == 3 {
			return FcvtSLu
		}
		return FcvtSWu
	case 0x78:
		return FmvWX
	case 0x01:
		return FaddD
	case 0x05:
		return FsubD
	case 0x09:
		return FmulD
	case 0x0d:
		return FdivD
	case 0x2d:
		return FsqrtD
	case 0x11:
		switch funct3 {
		case 0:
			return FsgnjD
		case 1:
			return FsgnjnD
		case 2:
			return FsgnjxD
		}
	case 0x15:
		if funct3 == 0 {
			return FminD
		}
		return FmaxD
	case 0x20:
		return FcvtSD
	case 0x21:
		return FcvtDS
	case 0x51:
		switch funct3 {
		case 0:
			return FleD
		case 1:
			return FltD
		case 2:
			return FeqD
		}
	case 0x61:
		switch rs2 {
		case 0:
			return FcvtWD
		case 1:
			return FcvtWuD
		case 2:
			return FcvtLD
		case 3:
			return FcvtLuD
		}
	case 0x69:
		switch rs2 {
		case 0:
			return FcvtDW
		case 1:
			return FcvtDWu
		case 2:
			return FcvtDL
		case 3:
			return FcvtDLu
		}
	case 0x71:
		if funct3 == 0 {
			return FmvXD
		}
		return FclassD
	case 0x79:
		return FmvDX
	}
	return Illegal
}

func decodeSystem(bits uint32, in Instruction, funct3, rs1, rs2, rd uint8) Instruction {
	switch funct3 {
	case 0:
		switch {
		case bits>>20 == 0:
			in.Op = Ecall
		case bits>>20 == 1:
			in.Op = Ebreak
		case bits>>20 == 0x102:
			in.Op = Sret
		case bits>>20 == 0x302:
			in.Op = Mret
		case bits>>20 == 0x105:
			in.Op = Wfi
		case (bits>>25)&0x7f == 0x09:
			in.Op = SfenceVma
		default:
			return Instruction{Op: Illegal, Length: 4, Raw: bits}
		}
	case 1:
		in.Op = Csrrw
		in.Imm = int64(bits >> 20)
	case 2:
		in.Op = Csrrs
		in.Imm = int64(bits >> 20)
	case 3:
		in.Op = Csrrc
		in.Imm = int64(bits >> 20)
	case 5:
		in.Op = Csrrwi
		in.Imm = int64(bits >> 20)
		in.Rs1 = rs1 // zimm carried in Rs1 by convention
	case 6:
		in.Op = Csrrsi
		in.Imm = int64(bits >> 20)
		in.Rs1 = rs1
	case 7:
		in.Op = Csrrci
		in.Imm = int64(bits >> 20)
		in.Rs1 = rs1
	default:
		return Instruction{Op: Illegal, Length: 4, Raw: bits}
	}
	return in
}
