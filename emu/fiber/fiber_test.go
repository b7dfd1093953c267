package fiber

import (
	"testing"

	"rv64vm/emu/blockcache"
	"rv64vm/emu/hart"
	"rv64vm/emu/memory"
	"rv64vm/emu/mmu"
	"rv64vm/emu/softfp"
	"rv64vm/emu/translate"
)

func newTestFiber(t *testing.T) *Fiber {
	t.Helper()
	mem := memory.New(4 * memory.PageSize)
	m := mmu.New(mem)
	cache := blockcache.New()
	tr := translate.New(mem, cache)
	ctx := hart.New(0)
	return New(ctx, mem, m, cache, tr, softfp.ReferenceKernel{})
}

func rType(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func iType(imm uint32, rs1, funct3, rd, opcode uint32) uint32 {
	return imm<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func TestStepRunsInlinedBlockThenHelperECALL(t *testing.T) {
	f := newTestFiber(t)

	// addi x1, x0, 5 ; addi x2, x0, 7 ; add x3, x1, x2 ; ecall
	f.Mem.WriteUint32(0, iType(5, 0, 0x0, 1, 0x13))
	f.Mem.WriteUint32(4, iType(7, 0, 0x0, 2, 0x13))
	f.Mem.WriteUint32(8, rType(0x00, 2, 1, 0x0, 3, 0x33))
	f.Mem.WriteUint32(12, 0x00000073) // ecall

	f.Ctx.Priv = hart.PrivUser
	f.Ctx.Stvec = 0x8000_0000

	f.Step() // compiles and runs the whole block, ending on the ecall helper exit

	if got := f.Ctx.RegRead(3); got != 12 {
		t.Fatalf("x3 = %d, want 12", got)
	}
	if f.Ctx.Scause != hart.CauseEcallU {
		t.Fatalf("scause = %d, want EcallU", f.Ctx.Scause)
	}
	if f.Ctx.PC != 0x8000_0000 {
		t.Fatalf("pc after trap = %#x, want stvec", f.Ctx.PC)
	}
}

func TestInterpretJAL(t *testing.T) {
	f := newTestFiber(t)

	// jal x1, 0x100
	imm := uint32(0x100)
	word := (imm&0x100000)<<11 | ((imm>>1)&0x3ff)<<21 | ((imm>>11)&1)<<20 | ((imm>>12)&0xff)<<12 | 1<<7 | 0x6f
	f.Mem.WriteUint32(0, word)

	f.interpretOne()

	if f.Ctx.PC != 0x100 {
		t.Fatalf("pc = %#x, want 0x100", f.Ctx.PC)
	}
	if got := f.Ctx.RegRead(1); got != 4 {
		t.Fatalf("x1 (return address) = %#x, want 4", got)
	}
}

func TestInterpretMul(t *testing.T) {
	f := newTestFiber(t)
	f.Ctx.RegWrite(1, 6)
	f.Ctx.RegWrite(2, 7)

	// mul x3, x1, x2
	f.Mem.WriteUint32(0, rType(0x01, 2, 1, 0x0, 3, 0x33))
	f.interpretOne()

	if got := f.Ctx.RegRead(3); got != 42 {
		t.Fatalf("x3 = %d, want 42", got)
	}
	if f.Ctx.PC != 4 {
		t.Fatalf("pc = %#x, want 4", f.Ctx.PC)
	}
}

func TestInterpretDivByZero(t *testing.T) {
	f := newTestFiber(t)
	f.Ctx.RegWrite(1, 10)
	f.Ctx.RegWrite(2, 0)

	// div x3, x1, x2
	f.Mem.WriteUint32(0, rType(0x01, 2, 1, 0x4, 3, 0x33))
	f.interpretOne()

	if got := f.Ctx.RegRead(3); got != ^uint64(0) {
		t.Fatalf("x3 = %#x, want all-ones (RISC-V div-by-zero result)", got)
	}
}

func TestInterpretCSRReadWrite(t *testing.T) {
	f := newTestFiber(t)
	f.Ctx.RegWrite(1, 0xabc)

	// csrrw x2, sscratch, x1
	f.Mem.WriteUint32(0, iType(uint32(hart.CSRSscratch), 1, 0x1, 2, 0x73))
	f.interpretOne()

	if f.Ctx.Sscratch != 0xabc {
		t.Fatalf("sscratch = %#x, want 0xabc", f.Ctx.Sscratch)
	}
	if got := f.Ctx.RegRead(2); got != 0 {
		t.Fatalf("x2 (old sscratch) = %#x, want 0", got)
	}
}

func TestInterpretLoadStoreRoundTrip(t *testing.T) {
	f := newTestFiber(t)
	f.Ctx.RegWrite(1, 0x100) // base address
	f.Ctx.RegWrite(2, 0x1234)

	// sw x2, 0(x1)
	f.Mem.WriteUint32(0, func() uint32 {
		imm := uint32(0)
		return (imm&0xfe0)<<20 | 2<<20 | 1<<15 | 0x2<<12 | (imm&0x1f)<<7 | 0x23
	}())
	f.interpretOne()

	// lw x3, 0(x1)
	f.Mem.WriteUint32(4, iType(0, 1, 0x2, 3, 0x03))
	f.interpretOne()

	if got := f.Ctx.RegRead(3); got != 0x1234 {
		t.Fatalf("x3 = %#x, want 0x1234", got)
	}
}

func TestStepDeliversPendingInterruptBeforeDispatch(t *testing.T) {
	f := newTestFiber(t)
	f.Ctx.Sie = hart.STIP
	f.Ctx.Sstatus = hart.SstatusSIE
	f.Ctx.Stvec = 0x8000_1000

	f.Ctx.PostInterrupt(hart.STIP)
	f.Step()

	if f.Ctx.Scause&hart.InterruptBit == 0 {
		t.Fatalf("expected an interrupt trap, scause=%#x", f.Ctx.Scause)
	}
	if f.Ctx.PC != 0x8000_1000 {
		t.Fatalf("pc after interrupt trap = %#x, want stvec", f.Ctx.PC)
	}
}
