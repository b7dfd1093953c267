/*
   RV64GC decoder: 16-bit compressed (RVC) instructions, canonicalised
   to their 32-bit-equivalent opcode and operand semantics.

   Copyright (c) 2024, Richard Cornwell
*/

package decode

// r2 remaps the 3-bit compressed register field r' to x8..x15.
func r2(field uint16) uint8 {
	return uint8(field&0x7) + 8
}

func decodeCompressed(bits uint16) Instruction {
	in := Instruction{Length: 2, Raw: uint32(bits)}
	quadrant := bits & 0x3
	funct3 := (bits >> 13) & 0x7

	switch quadrant {
	case 0:
		return decodeC0(bits, in, funct3)
	case 1:
		return decodeC1(bits, in, funct3)
	case 2:
		return decodeC2(bits, in, funct3)
	}
	return Instruction{Op: Illegal, Length: 2, Raw: uint32(bits)}
}

func decodeC0(bits uint16, in Instruction, funct3 uint16) Instruction {
	rdp := r2(bits >> 2)
	rs1p := r2(bits >> 7)
	switch funct3 {
	case 0: // C.ADDI4SPN -> addi rd', x2, nzuimm
		imm := (bits>>7)&0x30 | (bits>>1)&0x3c0 | (bits>>4)&0x4 | (bits>>2)&0x8
		if imm == 0 {
			return Instruction{Op: Illegal, Length: 2, Raw: uint32(bits)}
		}
		in.Op, in.Rd, in.Rs1, in.Imm = Addi, rdp, 2, int64(imm)
	case 1: // C.FLD -> fld rd', rs1', imm
		imm := (bits>>7)&0x38 | (bits<<1)&0xc0
		in.Op, in.Rd, in.Rs1, in.Imm = Fld, rdp, rs1p, int64(imm)
	case 2: // C.LW -> lw rd', rs1', imm
		imm := (bits>>7)&0x38 | (bits<<1)&0x40 | (bits>>4)&0x4
		in.Op, in.Rd, in.Rs1, in.Imm = Lw, rdp, rs1p, int64(imm)
	case 3: // C.LD -> ld rd', rs1', imm
		imm := (bits>>7)&0x38 | (bits<<1)&0xc0
		in.Op, in.Rd, in.Rs1, in.Imm = Ld, rdp, rs1p, int64(imm)
	case 5: // C.FSD -> fsd rs1', rs2', imm
		imm := (bits>>7)&0x38 | (bits<<1)&0xc0
		in.Op, in.Rs1, in.Rs2, in.Imm = Fsd, rs1p, rdp, int64(imm)
	case 6: // C.SW -> sw rs1', rs2', imm
		imm := (bits>>7)&0x38 | (bits<<1)&0x40 | (bits>>4)&0x4
		in.Op, in.Rs1, in.Rs2, in.Imm = Sw, rs1p, rdp, int64(imm)
	case 7: // C.SD -> sd rs1', rs2', imm
		imm := (bits>>7)&0x38 | (bits<<1)&0xc0
		in.Op, in.Rs1, in.Rs2, in.Imm = Sd, rs1p, rdp, int64(imm)
	default:
		return Instruction{Op: Illegal, Length: 2, Raw: uint32(bits)}
	}
	return in
}

func decodeC1(bits uint16, in Instruction, funct3 uint16) Instruction {
	rd := uint8((bits >> 7) & 0x1f)
	switch funct3 {
	case 0: // C.ADDI / C.NOP -> addi rd, rd, imm
		imm := signExtend(uint32((bits>>7)&0x20|(bits>>2)&0x1f), 6)
		in.Op, in.Rd, in.Rs1, in.Imm = Addi, rd, rd, imm
	case 1: // C.ADDIW -> addiw rd, rd, imm
		imm := signExtend(uint32((bits>>7)&0x20|(bits>>2)&0x1f), 6)
		in.Op, in.Rd, in.Rs1, in.Imm = Addiw, rd, rd, imm
	case 2: // C.LI -> addi rd, x0, imm
		imm := signExtend(uint32((bits>>7)&0x20|(bits>>2)&0x1f), 6)
		in.Op, in.Rd, in.Rs1, in.Imm = Addi, rd, 0, imm
	case 3:
		if rd == 2 { // C.ADDI16SP -> addi x2, x2, imm
			imm := (bits>>3)&0x200 | (bits>>2)&0x10 | (bits<<1)&0x40 | (bits<<4)&0x180 | (bits<<3)&0x20
			in.Op, in.Rd, in.Rs1, in.Imm = Addi, 2, 2, signExtend(uint32(imm), 10)
			if imm == 0 {
				return Instruction{Op: Illegal, Length: 2, Raw: uint32(bits)}
			}
			return in
		}
		// C.LUI -> lui rd, imm
		imm := (bits>>2)&0x1f | (bits>>7)&0x20
		if imm == 0 {
			return Instruction{Op: Illegal, Length: 2, Raw: uint32(bits)}
		}
		in.Op, in.Rd, in.Imm = Lui, rd, signExtend(uint32(imm), 6)<<12
	case 4:
		return decodeC1Alu(bits, in)
	case 5: // C.J -> jal x0, imm
		imm := cjImm(bits)
		in.Op, in.Rd, in.Imm = Jal, 0, imm
	case 6: // C.BEQZ -> beq rs1', x0, imm
		in.Op, in.Rs1, in.Rs2, in.Imm = Beq, r2(bits>>7), 0, cbImm(bits)
	case 7: // C.BNEZ -> bne rs1', x0, imm
		in.Op, in.Rs1, in.Rs2, in.Imm = Bne, r2(bits>>7), 0, cbImm(bits)
	}
	return in
}

func decodeC1Alu(bits uint16, in Instruction) Instruction {
	rdp := r2(bits >> 7)
	sub := (bits >> 10) & 0x3
	switch sub {
	case 0: // C.SRLI
		shamt := (bits>>7)&0x20 | (bits>>2)&0x1f
		in.Op, in.Rd, in.Rs1, in.Imm = Srli, rdp, rdp, int64(shamt)
	case 1: // C.SRAI
		shamt := (bits>>7)&0x20 | (bits>>2)&0x1f
		in.Op, in.Rd, in.Rs1, in.Imm = Srai, rdp, rdp, int64(shamt)
	case 2: // C.ANDI
		imm := signExtend(uint32((bits>>7)&0x20|(bits>>2)&0x1f), 6)
		in.Op, in.Rd, in.Rs1, in.Imm = Andi, rdp, rdp, imm
	case 3:
		rs2p := r2(bits >> 2)
		opSel := (bits >> 5) & 0x3
		wide := bits&0x1000 != 0
		in.Rd, in.Rs1, in.Rs2 = rdp, rdp, rs2p
		switch {
		case !wide && opSel == 0:
			in.Op = Sub
		case !wide && opSel == 1:
			in.Op = Xor
		case !wide && opSel == 2:
			in.Op = Or
		case !wide && opSel == 3:
			in.Op = And
		case wide && opSel == 0:
			in.Op = Subw
		case wide && opSel == 1:
			in.Op = Addw
		default:
			return Instruction{Op: Illegal, Length: 2, Raw: uint32(bits)}
		}
	}
	return in
}

func cjImm(bits uint16) int64 {
	imm := (bits>>1)&0x800 | (bits>>7)&0x10 | (bits>>1)&0x300 | (bits<<2)&0x400 |
		(bits>>1)&0x40 | (bits<<1)&0x80 | (bits>>2)&0xe | (bits<<3)&0x20
	return signExtend(uint32(imm), 12)
}

func cbImm(bits uint16) int64 {
	imm := (bits>>4)&0x100 | (bits>>7)&0x18 | (bits<<1)&0xc0 | (bits>>2)&0x6 | (bits<<3)&0x20
	return signExtend(uint32(imm), 9)
}

func decodeC2(bits uint16, in Instruction, funct3 uint16) Instruction {
	rd := uint8((bits >> 7) & 0x1f)
	rs2 := uint8((bits >> 2) & 0x1f)
	switch funct3 {
	case 0: // C.SLLI
		shamt := (bits>>7)&0x20 | (bits>>2)&0x1f
		in.Op, in.Rd, in.Rs1, in.Imm = Slli, rd, rd, int64(shamt)
	case 1: // C.FLDSP
		imm := (bits>>7)&0x20 | (bits>>2)&0x18 | (bits<<4)&0x1c0
		in.Op, in.Rd, in.Rs1, in.Imm = Fld, rd, 2, int64(imm)
	case 2: // C.LWSP
		imm := (bits>>7)&0x20 | (bits>>2)&0x1c | (bits<<4)&0xc0
		in.Op, in.Rd, in.Rs1, in.Imm = Lw, rd, 2, int64(imm)
	case 3: // C.LDSP
		imm := (bits>>7)&0x20 | (bits>>2)&0x18 | (bits<<4)&0x1c0
		in.Op, in.Rd, in.Rs1, in.Imm = Ld, rd, 2, int64(imm)
	case 4:
		return decodeC2Jr(bits, in, rd, rs2)
	case 5: // C.FSDSP
		imm := (bits>>7)&0x38 | (bits>>1)&0x1c0
		in.Op, in.Rs1, in.Rs2, in.Imm = Fsd, 2, rs2, int64(imm)
	case 6: // C.SWSP
		imm := (bits>>7)&0x3c | (bits>>1)&0xc0
		in.Op, in.Rs1, in.Rs2, in.Imm = Sw, 2, rs2, int64(imm)
	case 7: // C.SDSP
		imm := (bits>>7)&0x38 | (bits>>1)&0x1c0
		in.Op, in.Rs1, in.Rs2, in.Imm = Sd, 2, rs2, int64(imm)
	default:
		return Instruction{Op: Illegal, Length: 2, Raw: uint32(bits)}
	}
	return in
}

func decodeC2Jr(bits uint16, in Instruction, rd, rs2 uint8) Instruction {
	big := bits&0x1000 != 0
	switch {
	case !big && rs2 == 0:
		if rd == 0 {
			return Instruction{Op: Illegal, Length: 2, Raw: uint32(bits)}
		}
		// C.JR -> jalr x0, rd, 0
		in.Op, in.Rd, in.Rs1, in.Imm = Jalr, 0, rd, 0
	case !big && rs2 != 0:
		// C.MV -> add rd, x0, rs2
		in.Op, in.Rd, in.Rs1, in.Rs2 = Add, rd, 0, rs2
	case big && rd == 0 && rs2 == 0:
		// C.EBREAK
		in.Op = Ebreak
	case big && rs2 == 0:
		// C.JALR -> jalr x1, rd, 0
		in.Op, in.Rd, in.Rs1, in.Imm = Jalr, 1, rd, 0
	default:
		// C.ADD -> add rd, rd, rs2
		in.Op, in.Rd, in.Rs1, in.Rs2 = Add, rd, rd, rs2
	}
	return in
}
