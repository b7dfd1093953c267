package decode

import (
	"math"
	"testing"

	"rv64vm/internal/rvasm"
)

func TestDecodeTotality(t *testing.T) {
	t.Parallel()
	// Property: decode never panics and every 32-bit pattern yields a
	// defined opcode (Illegal counts as defined).
	seed := uint32(0x9e3779b9)
	for i := 0; i < 200000; i++ {
		seed = seed*1664525 + 1013904223
		in := Decode(seed)
		if in.Op >= numOps {
			t.Fatalf("decode(%#x) returned out-of-range op %d", seed, in.Op)
		}
	}
	if Decode(math.MaxUint32).Op != Illegal {
		t.Fatalf("all-ones pattern should decode illegal, got %s", Decode(math.MaxUint32).Op)
	}
}

func TestDecodeAddiSmoke(t *testing.T) {
	t.Parallel()
	// addi x1, x0, 42
	word := rvasm.IType(0x13, 0, 1, 0, 42)
	in := Decode(word)
	if in.Op != Addi || in.Rd != 1 || in.Rs1 != 0 || in.Imm != 42 {
		t.Fatalf("addi x1,x0,42 decoded wrong: %+v", in)
	}

	in = Decode(rvasm.Ebreak())
	if in.Op != Ebreak {
		t.Fatalf("ebreak decoded as %s", in.Op)
	}
}

func TestDecodeCompressedExpansion(t *testing.T) {
	t.Parallel()
	// c.li x5, -1
	in := decodeCompressed(rvasm.CLi(5, -1))
	if in.Op != Addi || in.Rd != 5 || in.Rs1 != 0 || in.Imm != -1 {
		t.Fatalf("c.li x5,-1 decoded wrong: %+v", in)
	}

	// c.add x5, x6
	in = decodeCompressed(rvasm.CAdd(5, 6))
	if in.Op != Add || in.Rd != 5 || in.Rs1 != 5 || in.Rs2 != 6 {
		t.Fatalf("c.add x5,x6 decoded wrong: %+v", in)
	}
}

func TestDecodeReservedLoadFPIsIllegal(t *testing.T) {
	t.Parallel()
	// LOAD-FP opcode (0x07) with a reserved funct3: must decode illegal,
	// never leave Op unset.
	word := rvasm.IType(0x07, 0, 1, 0, 0) // funct3 = 0, reserved for LOAD-FP
	in := Decode(word)
	if in.Op != Illegal {
		t.Fatalf("reserved LOAD-FP funct3 decoded as %s, want illegal", in.Op)
	}
}

func TestDecodeBranchImmediates(t *testing.T) {
	t.Parallel()
	word := rvasm.BType(0x63, 0, 1, 2, -8)
	in := Decode(word)
	if in.Op != Beq || in.Imm != -8 {
		t.Fatalf("beq imm decoded wrong: %+v", in)
	}
}

func TestDecodeLengthDiscrimination(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		bits uint32
		want uint8
	}{
		{0x00000001, 2}, // low bits 01 -> compressed
		{0x00000013, 4}, // addi nop, 32-bit
		{0x0000001f, 2}, // bits 4:2 == 111 -> reserved, length 2
	} {
		if got := Decode(tc.bits).Length; got != tc.want {
			t.Errorf("Decode(%#x).Length = %d, want %d", tc.bits, got, tc.want)
		}
	}
}
