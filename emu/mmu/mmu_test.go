package mmu

import (
	"testing"
	"unsafe"

	"rv64vm/emu/hart"
	"rv64vm/emu/memory"
)

func writePTE(mem *memory.Memory, tableAddr uint64, vpn uint64, ppn uint64, flags uint64) {
	pte := (ppn << 10) | flags
	if err := mem.WriteUint64(tableAddr+vpn*8, pte); err != nil {
		panic(err)
	}
}

func TestBareModeIdentityMaps(t *testing.T) {
	mem := memory.New(64 * 1024)
	m := New(mem)
	c := hart.New(0)

	ptr, fault := m.TranslateLoad(c, 0x1000, 8)
	if fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}
	want := mem.HostPointer(0x1000)
	if ptr != want {
		t.Fatalf("got %#x, want %#x", ptr, want)
	}
}

func TestSv39WalkAndTLBRefill(t *testing.T) {
	mem := memory.New(1 << 20)
	m := New(mem)
	c := hart.New(0)

	const root = 0x2000
	const l1 = 0x3000
	const l0 = 0x4000
	const dataPage = 0x10000

	writePTE(mem, root, 1, l1>>memory.PageShift, pteV)
	writePTE(mem, l1, 2, l0>>memory.PageShift, pteV)
	writePTE(mem, l0, 3, dataPage>>memory.PageShift, pteV|pteR|pteW|pteX|pteU|pteA|pteD)

	vaddr := uint64(1)<<(memory.PageShift+2*vpnBits) | uint64(2)<<(memory.PageShift+vpnBits) | uint64(3)<<memory.PageShift | 0x20

	c.Satp = (satpModeSv39 << 60) | (root >> memory.PageShift)

	ptr, fault := m.TranslateLoad(c, vaddr, 8)
	if fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}
	want := mem.HostPointer(dataPage + 0x20)
	if ptr != want {
		t.Fatalf("got %#x want %#x", ptr, want)
	}

	// Second access must hit the TLB and return the same pointer.
	ptr2, fault2 := m.TranslateLoad(c, vaddr, 8)
	if fault2 != nil {
		t.Fatalf("unexpected fault on TLB hit: %+v", fault2)
	}
	if ptr2 != want {
		t.Fatalf("TLB hit pointer mismatch: got %#x want %#x", ptr2, want)
	}
}

func TestPageFaultOnInvalidPTE(t *testing.T) {
	mem := memory.New(1 << 20)
	m := New(mem)
	c := hart.New(0)
	const root = 0x2000
	c.Satp = (satpModeSv39 << 60) | (root >> memory.PageShift)
	// Root PTE left zero -> invalid.

	_, fault := m.TranslateLoad(c, 0x1000, 8)
	if fault == nil {
		t.Fatalf("expected page fault")
	}
	if fault.Cause != hart.CauseLoadPageFault {
		t.Fatalf("cause = %d, want %d", fault.Cause, hart.CauseLoadPageFault)
	}
}

func TestUserPageDeniedInSupervisor(t *testing.T) {
	mem := memory.New(1 << 20)
	m := New(mem)
	c := hart.New(0)
	c.Priv = hart.PrivSupervisor

	const root = 0x2000
	// A leaf in the root table maps a 1 GiB gigapage, whose PPN must be
	// gigapage-aligned or the walk faults as a misaligned superpage.
	const dataPage = 0x0
	writePTE(mem, root, 0, dataPage>>memory.PageShift, pteV|pteR|pteW|pteU)
	c.Satp = (satpModeSv39 << 60) | (root >> memory.PageShift)

	_, fault := m.TranslateLoad(c, 0x0, 8)
	if fault == nil {
		t.Fatalf("expected fault: SUM clear, supervisor touching user page")
	}

	c.Sstatus |= hart.SstatusSUM
	c.BumpTLBGeneration()
	_, fault = m.TranslateLoad(c, 0x0, 8)
	if fault != nil {
		t.Fatalf("unexpected fault with SUM set: %+v", fault)
	}
}

func TestSfenceInvalidatesTLB(t *testing.T) {
	mem := memory.New(1 << 20)
	m := New(mem)
	c := hart.New(0)
	const root = 0x2000
	const dataPage = 0x0 // gigapage leaf at the root: PPN must be 1 GiB-aligned
	writePTE(mem, root, 0, dataPage>>memory.PageShift, pteV|pteR|pteW|pteU|pteA|pteD)
	c.Satp = (satpModeSv39 << 60) | (root >> memory.PageShift)

	if _, fault := m.TranslateLoad(c, 0x0, 8); fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}

	// Corrupt the PTE directly; a stale TLB entry would hide this.
	writePTE(mem, root, 0, dataPage>>memory.PageShift, 0)
	m.Sfence(c)

	if _, fault := m.TranslateLoad(c, 0x0, 8); fault == nil {
		t.Fatalf("expected fault after sfence exposed the now-invalid PTE")
	}
}

func TestCrossesPage(t *testing.T) {
	if !CrossesPage(memory.PageSize-4, 8) {
		t.Fatalf("expected page-crossing access to be detected")
	}
	if CrossesPage(memory.PageSize-8, 8) {
		t.Fatalf("expected non-crossing access")
	}
}

func TestHostPointerDereferencable(t *testing.T) {
	mem := memory.New(4096)
	m := New(mem)
	c := hart.New(0)
	if err := mem.WriteByte(0x42, 7); err != nil {
		t.Fatalf("write: %v", err)
	}
	ptr, fault := m.TranslateLoad(c, 0x42, 1)
	if fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}
	if got := *(*byte)(unsafe.Pointer(ptr)); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}
