/*
   rvasm assembles raw RV64GC instruction words for test fixtures, the
   same role emu/assemble plays for IBM/370 CPU tests: build
   instruction bytes programmatically instead of hard coding magic hex
   constants inline.

   Copyright (c) 2024, Richard Cornwell
*/

// Package rvasm is a minimal RV64GC instruction encoder used only by
// tests in this module.
package rvasm

// RType encodes an R-type instruction (register/register ALU ops).
func RType(opcode, funct3, rd, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// IType encodes an I-type instruction (immediate ALU ops, loads, JALR).
func IType(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// SType encodes an S-type instruction (stores).
func SType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1f)<<7 | opcode
}

// BType encodes a B-type instruction (conditional branches). imm must
// be even; bit 0 is always zero.
func BType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	bit12 := (u >> 12) & 0x1
	bit11 := (u >> 11) & 0x1
	bits105 := (u >> 5) & 0x3f
	bits41 := (u >> 1) & 0xf
	return bit12<<31 | bits105<<25 | rs2<<20 | rs1<<15 | funct3<<12 | bits41<<8 | bit11<<7 | opcode
}

// UType encodes a U-type instruction (LUI, AUIPC).
func UType(opcode, rd uint32, imm int32) uint32 {
	return uint32(imm)&0xfffff000 | rd<<7 | opcode
}

// JType encodes a J-type instruction (JAL).
func JType(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	bit20 := (u >> 20) & 0x1
	bits101 := (u >> 1) & 0x3ff
	bit11 := (u >> 11) & 0x1
	bits1912 := (u >> 12) & 0xff
	return bit20<<31 | bits101<<21 | bit11<<20 | bits1912<<12 | rd<<7 | opcode
}

// Ebreak returns the 32-bit EBREAK encoding.
func Ebreak() uint32 {
	return IType(0x73, 0, 0, 0, 1)
}

// Ecall returns the 32-bit ECALL encoding.
func Ecall() uint32 {
	return IType(0x73, 0, 0, 0, 0)
}

// CLi encodes C.LI rd, imm (quadrant 1, funct3 2).
func CLi(rd uint8, imm int8) uint16 {
	u := uint16(uint8(imm))
	bit5 := (u >> 5) & 0x1
	bits40 := u & 0x1f
	return 0x4000 | bit5<<12 | uint16(rd&0x1f)<<7 | bits40<<2 | 0x1
}

// CAdd encodes C.ADD rd, rs2 (quadrant 2, funct3 4, bit12 set).
func CAdd(rd, rs2 uint8) uint16 {
	return 0x8000 | 0x1000 | uint16(rd&0x1f)<<7 | uint16(rs2&0x1f)<<2 | 0x2
}

// CMv encodes C.MV rd, rs2 (quadrant 2, funct3 4, bit12 clear).
func CMv(rd, rs2 uint8) uint16 {
	return 0x8000 | uint16(rd&0x1f)<<7 | uint16(rs2&0x1f)<<2 | 0x2
}

// CNop encodes C.NOP / C.ADDI x0, 0.
func CNop() uint16 {
	return 0x1
}
