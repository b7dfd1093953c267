/*
   RV64GC decoder: opcode enumeration.

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

package decode

// Op is a canonical opcode tag. The zero value is Illegal so a
// zero-initialized Instruction is never mistaken for a valid decode.
type Op uint16

const (
	Illegal Op = iota

	// RV64I base.
	Lui
	Auipc
	Jal
	Jalr
	Beq
	Bne
	Blt
	Bge
	Bltu
	Bgeu
	Lb
	Lh
	Lw
	Lbu
	Lhu
	Lwu
	Ld
	Sb
	Sh
	Sw
	Sd
	Addi
	Slti
	Sltiu
	Xori
	Ori
	Andi
	Slli
	Srli
	Srai
	Add
	Sub
	Sll
	Slt
	Sltu
	Xor
	Srl
	Sra
	Or
	And
	Fence
	FenceI
	Ecall
	Ebreak
	Addiw
	Slliw
	Srliw
	Sraiw
	Addw
	Subw
	Sllw
	Srlw
	Sraw

	// Zicsr.
	Csrrw
	Csrrs
	Csrrc
	Csrrwi
	Csrrsi
	Csrrci

	// M extension.
	Mul
	Mulh
	Mulhsu
	Mulhu
	Div
	Divu
	Rem
	Remu
	Mulw
	Divw
	Divuw
	Remw
	Remuw

	// A extension.
	LrW
	ScW
	AmoswapW
	AmoaddW
	AmoxorW
	AmoandW
	AmoorW
	AmominW
	AmomaxW
	AmominuW
	AmomaxuW
	LrD
	ScD
	AmoswapD
	AmoaddD
	AmoxorD
	AmoandD
	AmoorD
	AmominD
	AmomaxD
	AmominuD
	AmomaxuD

	// F/D extensions.
	Flw
	Fsw
	Fld
	Fsd
	FmaddS
	FmsubS
	FnmsubS
	FnmaddS
	FaddS
	FsubS
	FmulS
	FdivS
	FsqrtS
	FsgnjS
	FsgnjnS
	FsgnjxS
	FminS
	FmaxS
	FcvtWS
	FcvtWuS
	FmvXW
	FeqS
	FltS
	FleS
	FclassS
	FcvtSW
	FcvtSWu
	FmvWX
	FcvtLS
	FcvtLuS
	FcvtSL
	FcvtSLu
	FmaddD
	FmsubD
	FnmsubD
	FnmaddD
	FaddD
	FsubD
	FmulD
	FdivD
	FsqrtD
	FsgnjD
	FsgnjnD
	FsgnjxD
	FminD
	FmaxD
	FcvtSD
	FcvtDS
	FeqD
	FltD
	FleD
	FclassD
	FcvtWD
	FcvtWuD
	FcvtDW
	FcvtDWu
	FcvtLD
	FcvtLuD
	FcvtDL
	FcvtDLu
	FmvXD
	FmvDX

	// Privileged / system.
	Sret
	Mret
	Wfi
	SfenceVma

	numOps
)

var mnemonics = [numOps]string{
	Illegal: "illegal",
	Lui: "lui", Auipc: "auipc", Jal: "jal", Jalr: "jalr",
	Beq: "beq", Bne: "bne", Blt: "blt", Bge: "bge", Bltu: "bltu", Bgeu: "bgeu",
	Lb: "lb", Lh: "lh", Lw: "lw", Lbu: "lbu", Lhu: "lhu", Lwu: "lwu", Ld: "ld",
	Sb: "sb", Sh: "sh", Sw: "sw", Sd: "sd",
	Addi: "addi", Slti: "slti", Sltiu: "sltiu", Xori: "xori", Ori: "ori", Andi: "andi",
	Slli: "slli", Srli: "srli", Srai: "srai",
	Add: "add", Sub: "sub", Sll: "sll", Slt: "slt", Sltu: "sltu", Xor: "xor", Srl: "srl", Sra: "sra", Or: "or", And: "and",
	Fence: "fence", FenceI: "fence.i", Ecall: "ecall", Ebreak: "ebreak",
	Addiw: "addiw", Slliw: "slliw", Srliw: "srliw", Sraiw: "sraiw",
	Addw: "addw", Subw: "subw", Sllw: "sllw", Srlw: "srlw", Sraw: "sraw",
	Csrrw: "csrrw", Csrrs: "csrrs", Csrrc: "csrrc", Csrrwi: "csrrwi", Csrrsi: "csrrsi", Csrrci: "csrrci",
	Mul: "mul", Mulh: "mulh", Mulhsu: "mulhsu", Mulhu: "mulhu",
	Div: "div", Divu: "divu", Rem: "rem", Remu: "remu",
	Mulw: "mulw", Divw: "divw", Divuw: "divuw", Remw: "remw", Remuw: "remuw",
	LrW: "lr.w", ScW: "sc.w", AmoswapW: "amoswap.w", AmoaddW: "amoadd.w", AmoxorW: "amoxor.w",
	AmoandW: "amoand.w", AmoorW: "amoor.w", AmominW: "amomin.w", AmomaxW: "amomax.w",
	AmominuW: "amominu.w", AmomaxuW: "amomaxu.w",
	LrD: "lr.d", ScD: "sc.d", AmoswapD: "amoswap.d", AmoaddD: "amoadd.d", AmoxorD: "amoxor.d",
	AmoandD: "amoand.d", AmoorD: "amoor.d", AmominD: "amomin.d", AmomaxD: "amomax.d",
	AmominuD: "amominu.d", AmomaxuD: "amomaxu.d",
	Flw: "flw", Fsw: "fsw", Fld: "fld", Fsd: "fsd",
	FmaddS: "fmadd.s", FmsubS: "fmsub.s", FnmsubS: "fnmsub.s", FnmaddS: "fnmadd.s",
	FaddS: "fadd.s", FsubS: "fsub.s", FmulS: "fmul.s", FdivS: "fdiv.s", FsqrtS: "fsqrt.s",
	FsgnjS: "fsgnj.s", FsgnjnS: "fsgnjn.s", FsgnjxS: "fsgnjx.s", FminS: "fmin.s", FmaxS: "fmax.s",
	FcvtWS: "fcvt.w.s", FcvtWuS: "fcvt.wu.s", FmvXW: "fmv.x.w",
	FeqS: "feq.s", FltS: "flt.s", FleS: "fle.s", FclassS: "fclass.s",
	FcvtSW: "fcvt.s.w", FcvtSWu: "fcvt.s.wu", FmvWX: "fmv.w.x",
	FcvtLS: "fcvt.l.s", FcvtLuS: "fcvt.lu.s", FcvtSL: "fcvt.s.l", FcvtSLu: "fcvt.s.lu",
	FmaddD: "fmadd.d", FmsubD: "fmsub.d", FnmsubD: "fnmsub.d", FnmaddD: "fnmadd.d",
	FaddD: "fadd.d", FsubD: "fsub.d", FmulD: "fmul.d", FdivD: "fdiv.d", FsqrtD: "fsqrt.d",
	FsgnjD: "fsgnj.d", FsgnjnD: "fsgnjn.d", FsgnjxD: "fsgnjx.d", FminD: "fmin.d", FmaxD: "fmax.d",
	FcvtSD: "fcvt.s.d", FcvtDS: "fcvt.d.s",
	FeqD: "feq.d", FltD: "flt.d", FleD: "fle.d", FclassD: "fclass.d",
	FcvtWD: "fcvt.w.d", FcvtWuD: "fcvt.wu.d", FcvtDW: "fcvt.d.w", FcvtDWu: "fcvt.d.wu",
	FcvtLD: "fcvt.l.d", FcvtLuD: "fcvt.lu.d", FcvtDL: "fcvt.d.l", FcvtDLu: "fcvt.d.lu",
	FmvXD: "fmv.x.d", FmvDX: "fmv.d.x",
	Sret: "sret", Mret: "mret", Wfi: "wfi", SfenceVma: "sfence.vma",
}

// String returns the RISC-V assembler mnemonic for op, or "illegal".
func (op Op) String() string {
	if op >= numOps {
		return "illegal"
	}
	return mnemonics[op]
}
