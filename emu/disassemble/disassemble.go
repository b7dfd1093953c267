/*
	   RV64GC disassembler

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
		RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
		IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
		CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package disassembler formats a decoded instruction back into RISC-V
// assembler text, grouped by operand shape the way a disassembler's
// disassembler dispatches by instruction type (RR/RX/RS/SI/SS) rather
// than one switch arm per mnemonic.
package disassembler

import (
	"fmt"
	"strings"

	"rv64vm/emu/decode"
)

var intRegNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

var fpRegNames = [32]string{
	"ft0", "ft1", "ft2", "ft3", "ft4", "ft5", "ft6", "ft7",
	"fs0", "fs1", "fa0", "fa1", "fa2", "fa3", "fa4", "fa5",
	"fa6", "fa7", "fs2", "fs3", "fs4", "fs5", "fs6", "fs7",
	"fs8", "fs9", "fs10", "fs11", "ft8", "ft9", "ft10", "ft11",
}

func ireg(r uint8) string { return intRegNames[r&0x1f] }
func freg(r uint8) string { return fpRegNames[r&0x1f] }

// kind buckets opcodes by operand shape so Format only needs one
// formatting rule per shape instead of one per mnemonic.
type kind int

const (
	kindIllegal kind = iota
	kindNone         // fence, fence.i, ecall, ebreak, wfi, sret, mret
	kindRType        // rd, rs1, rs2
	kindIType        // rd, rs1, imm
	kindShift        // rd, rs1, shamt (imm used as unsigned shift count)
	kindLoad         // rd, imm(rs1)
	kindStore        // rs2, imm(rs1)
	kindBranch       // rs1, rs2, imm (pc-relative)
	kindUType        // rd, imm (lui/auipc)
	kindJal          // rd, imm (pc-relative)
	kindCSR          // rd, csr, rs1
	kindCSRI         // rd, csr, zimm (zimm carried in Rs1 by decode convention)
	kindAmo          // rd, rs2, (rs1)
	kindFRType       // frd, frs1, frs2
	kindFR1          // frd, frs1
	kindFLoad        // frd, imm(rs1)
	kindFStore       // frs2, imm(rs1)
	kindFCmp         // rd, frs1, frs2 (integer destination)
	kindFR1X         // rd, frs1 (fclass/fmv.x.*, integer destination)
	kindFXR1         // frd, rs1 (fmv.*.x / fcvt.*.w*, fp destination)
	kindFMA          // frd, frs1, frs2, frs3
	kindSfence       // rs1, rs2 (sfence.vma)
)

var kindOf = map[decode.Op]kind{
	decode.Fence: kindNone, decode.FenceI: kindNone, decode.Ecall: kindNone,
	decode.Ebreak: kindNone, decode.Wfi: kindNone, decode.Sret: kindNone, decode.Mret: kindNone,

	decode.Lui: kindUType, decode.Auipc: kindUType,
	decode.Jal: kindJal,

	decode.Beq: kindBranch, decode.Bne: kindBranch, decode.Blt: kindBranch,
	decode.Bge: kindBranch, decode.Bltu: kindBranch, decode.Bgeu: kindBranch,

	decode.Lb: kindLoad, decode.Lh: kindLoad, decode.Lw: kindLoad,
	decode.Lbu: kindLoad, decode.Lhu: kindLoad, decode.Lwu: kindLoad, decode.Ld: kindLoad,

	decode.Sb: kindStore, decode.Sh: kindStore, decode.Sw: kindStore, decode.Sd: kindStore,

	decode.Jalr: kindLoad, // rd, imm(rs1) — same textual shape as a load

	decode.Addi: kindIType, decode.Slti: kindIType, decode.Sltiu: kindIType,
	decode.Xori: kindIType, decode.Ori: kindIType, decode.Andi: kindIType,
	decode.Addiw: kindIType,
	decode.Slli:  kindShift, decode.Srli: kindShift, decode.Srai: kindShift,
	decode.Slliw: kindShift, decode.Srliw: kindShift, decode.Sraiw: kindShift,

	decode.Add: kindRType, decode.Sub: kindRType, decode.Sll: kindRType,
	decode.Slt: kindRType, decode.Sltu: kindRType, decode.Xor: kindRType,
	decode.Srl: kindRType, decode.Sra: kindRType, decode.Or: kindRType, decode.And: kindRType,
	decode.Addw: kindRType, decode.Subw: kindRType, decode.Sllw: kindRType,
	decode.Srlw: kindRType, decode.Sraw: kindRType,
	decode.Mul: kindRType, decode.Mulh: kindRType, decode.Mulhsu: kindRType, decode.Mulhu: kindRType,
	decode.Div: kindRType, decode.Divu: kindRType, decode.Rem: kindRType, decode.Remu: kindRType,
	decode.Mulw: kindRType, decode.Divw: kindRType, decode.Divuw: kindRType,
	decode.Remw: kindRType, decode.Remuw: kindRType,

	decode.Csrrw: kindCSR, decode.Csrrs: kindCSR, decode.Csrrc: kindCSR,
	decode.Csrrwi: kindCSRI, decode.Csrrsi: kindCSRI, decode.Csrrci: kindCSRI,

	decode.SfenceVma: kindSfence,

	decode.LrW: kindAmo, decode.LrD: kindAmo,
	decode.ScW: kindAmo, decode.ScD: kindAmo,
	decode.AmoswapW: kindAmo, decode.AmoaddW: kindAmo, decode.AmoxorW: kindAmo,
	decode.AmoandW: kindAmo, decode.AmoorW: kindAmo, decode.AmominW: kindAmo,
	decode.AmomaxW: kindAmo, decode.AmominuW: kindAmo, decode.AmomaxuW: kindAmo,
	decode.AmoswapD: kindAmo, decode.AmoaddD: kindAmo, decode.AmoxorD: kindAmo,
	decode.AmoandD: kindAmo, decode.AmoorD: kindAmo, decode.AmominD: kindAmo,
	decode.AmomaxD: kindAmo, decode.AmominuD: kindAmo, decode.AmomaxuD: kindAmo,

	decode.Flw: kindFLoad, decode.Fld: kindFLoad,
	decode.Fsw: kindFStore, decode.Fsd: kindFStore,

	decode.FaddS: kindFRType, decode.FsubS: kindFRType, decode.FmulS: kindFRType, decode.FdivS: kindFRType,
	decode.FsgnjS: kindFRType, decode.FsgnjnS: kindFRType, decode.FsgnjxS: kindFRType,
	decode.FminS: kindFRType, decode.FmaxS: kindFRType,
	decode.FaddD: kindFRType, decode.FsubD: kindFRType, decode.FmulD: kindFRType, decode.FdivD: kindFRType,
	decode.FsgnjD: kindFRType, decode.FsgnjnD: kindFRType, decode.FsgnjxD: kindFRType,
	decode.FminD: kindFRType, decode.FmaxD: kindFRType,

	decode.FsqrtS: kindFR1, decode.FsqrtD: kindFR1, decode.FcvtSD: kindFR1, decode.FcvtDS: kindFR1,

	decode.FeqS: kindFCmp, decode.FltS: kindFCmp, decode.FleS: kindFCmp,
	decode.FeqD: kindFCmp, decode.FltD: kindFCmp, decode.FleD: kindFCmp,

	decode.FclassS: kindFR1X, decode.FmvXW: kindFR1X, decode.FcvtWS: kindFR1X, decode.FcvtWuS: kindFR1X,
	decode.FcvtLS: kindFR1X, decode.FcvtLuS: kindFR1X,
	decode.FclassD: kindFR1X, decode.FmvXD: kindFR1X, decode.FcvtWD: kindFR1X, decode.FcvtWuD: kindFR1X,
	decode.FcvtLD: kindFR1X, decode.FcvtLuD: kindFR1X,

	decode.FmvWX: kindFXR1, decode.FcvtSW: kindFXR1, decode.FcvtSWu: kindFXR1,
	decode.FcvtSL: kindFXR1, decode.FcvtSLu: kindFXR1,
	decode.FmvDX: kindFXR1, decode.FcvtDW: kindFXR1, decode.FcvtDWu: kindFXR1,
	decode.FcvtDL: kindFXR1, decode.FcvtDLu: kindFXR1,

	decode.FmaddS: kindFMA, decode.FmsubS: kindFMA, decode.FnmsubS: kindFMA, decode.FnmaddS: kindFMA,
	decode.FmaddD: kindFMA, decode.FmsubD: kindFMA, decode.FnmsubD: kindFMA, decode.FnmaddD: kindFMA,
}

var csrNames = map[int64]string{
	0x001: "fflags", 0x002: "frm", 0x003: "fcsr",
	0xc00: "cycle", 0xc01: "time", 0xc02: "instret",
	0x100: "sstatus", 0x104: "sie", 0x105: "stvec", 0x106: "scounteren",
	0x140: "sscratch", 0x141: "sepc", 0x142: "scause", 0x143: "stval", 0x144: "sip",
	0x180: "satp",
	0x300: "mstatus", 0x301: "misa", 0x302: "medeleg", 0x303: "mideleg",
	0x304: "mie", 0x305: "mtvec", 0x306: "mcounteren",
	0x340: "mscratch", 0x341: "mepc", 0x342: "mcause", 0x343: "mtval", 0x344: "mip",
	0xf14: "mhartid",
}

func csrName(addr int64) string {
	if name, ok := csrNames[addr]; ok {
		return name
	}
	return fmt.Sprintf("0x%03x", addr)
}

// Format renders in, whose encoding was fetched from pc, as a line of
// RISC-V assembler text. Unknown/illegal encodings render as a raw
// ".word" directive the way an unrecognized opcode falls back to raw hex for
// an instruction its opcode map doesn't recognize.
func Format(pc uint64, in decode.Instruction) string {
	if in.Op == decode.Illegal {
		return fmt.Sprintf(".word 0x%08x", in.Raw)
	}

	op := in.Op.String()
	switch kindOf[in.Op] {
	case kindNone:
		return op
	case kindRType:
		return fmt.Sprintf("%-8s %s, %s, %s", op, ireg(in.Rd), ireg(in.Rs1), ireg(in.Rs2))
	case kindIType:
		return fmt.Sprintf("%-8s %s, %s, %d", op, ireg(in.Rd), ireg(in.Rs1), in.Imm)
	case kindShift:
		return fmt.Sprintf("%-8s %s, %s, %d", op, ireg(in.Rd), ireg(in.Rs1), in.Imm&0x3f)
	case kindLoad:
		return fmt.Sprintf("%-8s %s, %d(%s)", op, ireg(in.Rd), in.Imm, ireg(in.Rs1))
	case kindStore:
		return fmt.Sprintf("%-8s %s, %d(%s)", op, ireg(in.Rs2), in.Imm, ireg(in.Rs1))
	case kindBranch:
		return fmt.Sprintf("%-8s %s, %s, 0x%x", op, ireg(in.Rs1), ireg(in.Rs2), pc+uint64(in.Imm))
	case kindUType:
		return fmt.Sprintf("%-8s %s, 0x%x", op, ireg(in.Rd), uint64(in.Imm)>>12)
	case kindJal:
		return fmt.Sprintf("%-8s %s, 0x%x", op, ireg(in.Rd), pc+uint64(in.Imm))
	case kindCSR:
		return fmt.Sprintf("%-8s %s, %s, %s", op, ireg(in.Rd), csrName(in.Imm), ireg(in.Rs1))
	case kindCSRI:
		return fmt.Sprintf("%-8s %s, %s, %d", op, ireg(in.Rd), csrName(in.Imm), in.Rs1)
	case kindSfence:
		return fmt.Sprintf("%-8s %s, %s", op, ireg(in.Rs1), ireg(in.Rs2))
	case kindAmo:
		var b strings.Builder
		fmt.Fprintf(&b, "%-8s %s, ", amoMnemonic(op, in), ireg(in.Rd))
		if in.Op != decode.LrW && in.Op != decode.LrD {
			fmt.Fprintf(&b, "%s, ", ireg(in.Rs2))
		}
		fmt.Fprintf(&b, "(%s)", ireg(in.Rs1))
		return b.String()
	case kindFRType:
		return fmt.Sprintf("%-8s %s, %s, %s", op, freg(in.Rd), freg(in.Rs1), freg(in.Rs2))
	case kindFR1:
		return fmt.Sprintf("%-8s %s, %s", op, freg(in.Rd), freg(in.Rs1))
	case kindFLoad:
		return fmt.Sprintf("%-8s %s, %d(%s)", op, freg(in.Rd), in.Imm, ireg(in.Rs1))
	case kindFStore:
		return fmt.Sprintf("%-8s %s, %d(%s)", op, freg(in.Rs2), in.Imm, ireg(in.Rs1))
	case kindFCmp:
		return fmt.Sprintf("%-8s %s, %s, %s", op, ireg(in.Rd), freg(in.Rs1), freg(in.Rs2))
	case kindFR1X:
		return fmt.Sprintf("%-8s %s, %s", op, ireg(in.Rd), freg(in.Rs1))
	case kindFXR1:
		return fmt.Sprintf("%-8s %s, %s", op, freg(in.Rd), ireg(in.Rs1))
	case kindFMA:
		return fmt.Sprintf("%-8s %s, %s, %s, %s", op, freg(in.Rd), freg(in.Rs1), freg(in.Rs2), freg(in.Rs3))
	default:
		return fmt.Sprintf(".word 0x%08x", in.Raw)
	}
}

// amoMnemonic appends the width-agnostic .aq/.rl suffixes AMOs carry.
func amoMnemonic(op string, in decode.Instruction) string {
	if !in.Aq && !in.Rl {
		return op
	}
	suffix := ""
	if in.Aq {
		suffix += ".aq"
	}
	if in.Rl {
		suffix += ".rl"
	}
	return op + suffix
}
