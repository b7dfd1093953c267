/*
   Software MMU: direct-mapped TLB plus Sv39/Sv48 page table walker,
   in the probe-then-walk shape a dynamic address translator uses,
   generalized to the RISC-V multi-level radix tree.

   Copyright (c) 2024, Richard Cornwell
*/

// Package mmu implements guest virtual to host pointer translation: a
// direct-mapped TLB backed by a page table walk on miss. Every public
// entry point either returns a host pointer or a Fault; it never
// panics and never returns a bare error, because every failure here
// is an architectural event the hart must trap on.
package mmu

import (
	"rv64vm/emu/hart"
	"rv64vm/emu/memory"
)

// Access kinds, used to pick the permission bit and the fault cause.
const (
	AccessLoad = iota
	AccessStore
	AccessExec
)

const (
	satpModeSv39 = 8
	satpModeSv48 = 9

	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
	pteU = 1 << 4
	pteG = 1 << 5
	pteA = 1 << 6
	pteD = 1 << 7

	vpnBits = 9
	ppnMask = (1 << 44) - 1
)

// Fault is an architectural memory exception: the cause and stval a
// trap frame needs, per the privileged spec's exception numbering.
type Fault struct {
	Cause uint64
	Tval  uint64
}

func (f *Fault) Error() string { return "mmu fault" }

func loadFault(tval uint64) *Fault  { return &Fault{Cause: hart.CauseLoadPageFault, Tval: tval} }
func storeFault(tval uint64) *Fault { return &Fault{Cause: hart.CauseStorePageFault, Tval: tval} }
func execFault(tval uint64) *Fault  { return &Fault{Cause: hart.CauseInsnPageFault, Tval: tval} }

func faultFor(access int, tval uint64) *Fault {
	switch access {
	case AccessStore:
		return storeFault(tval)
	case AccessExec:
		return execFault(tval)
	default:
		return loadFault(tval)
	}
}

// MMU translates on behalf of one guest physical address space; every
// hart sharing that memory shares one MMU, but each hart owns its own
// TLB (held in its hart.Context) since TLB contents are ASID/context
// specific.
type MMU struct {
	mem *memory.Memory
}

// New returns an MMU backed by guest physical memory mem.
func New(mem *memory.Memory) *MMU {
	return &MMU{mem: mem}
}

func tlbIndex(vaddr uint64) uint64 {
	return (vaddr >> memory.PageShift) & (1<<hart.TLBBits - 1)
}

func permBit(access int) uint8 {
	switch access {
	case AccessStore:
		return hart.PermWrite
	case AccessExec:
		return hart.PermExec
	default:
		return hart.PermRead
	}
}

// translate is the shared implementation behind TranslateLoad,
// TranslateStore and TranslateInsn: probe the TLB, walk on miss,
// refill, and return a host pointer to the first byte of vaddr.
func (m *MMU) translate(c *hart.Context, vaddr uint64, access int) (uintptr, *Fault) {
	tlb := &c.DTLB
	if access == AccessExec {
		tlb = &c.ITLB
	}

	vpn := vaddr >> memory.PageShift
	idx := tlbIndex(vaddr)
	e := &tlb[idx]

	if e.Generation == c.TLBGeneration && e.Tag == vpn && e.Perm&permBit(access) != 0 {
		if c.Priv == hart.PrivUser && e.Perm&hart.PermUser == 0 {
			return 0, faultFor(access, vaddr)
		}
		return e.HostBase + uintptr(vaddr&memory.PageMask), nil
	}

	paddr, perm, fault := m.walk(c, vaddr, access)
	if fault != nil {
		return 0, fault
	}

	// HostBase is the host address of the 4K physical page backing
	// vaddr's page (under a superpage, the 4K slice of it that vaddr
	// falls in); the hit path above and codegen's inline probe both add
	// vaddr&PageMask at use time.
	e.Tag = vpn
	e.HostBase = m.mem.HostPointer(paddr &^ memory.PageMask)
	e.Perm = perm
	e.Generation = c.TLBGeneration

	if c.Priv == hart.PrivUser && perm&hart.PermUser == 0 {
		return 0, faultFor(access, vaddr)
	}

	return m.mem.HostPointer(paddr), nil
}

// TranslateLoad resolves vaddr for a size-byte load.
func (m *MMU) TranslateLoad(c *hart.Context, vaddr uint64, size uint8) (uintptr, *Fault) {
	return m.translate(c, vaddr, AccessLoad)
}

// TranslateStore resolves vaddr for a size-byte store.
func (m *MMU) TranslateStore(c *hart.Context, vaddr uint64, size uint8) (uintptr, *Fault) {
	return m.translate(c, vaddr, AccessStore)
}

// TranslateInsn resolves vaddr for an instruction fetch.
func (m *MMU) TranslateInsn(c *hart.Context, vaddr uint64) (uintptr, *Fault) {
	return m.translate(c, vaddr, AccessExec)
}

// TranslateInsnPhys resolves vaddr to a guest physical address rather
// than a host pointer, for the translator's own use when compiling a
// new block: codegen's inline TLB probe works in host pointers, but
// decoding guest bytes to compile them needs a guest-physical address
// to feed to Memory. Always walks rather than consulting the ITLB,
// since this only runs once per block compilation rather than once
// per instruction dispatch.
func (m *MMU) TranslateInsnPhys(c *hart.Context, vaddr uint64) (uint64, *Fault) {
	paddr, _, fault := m.walk(c, vaddr, AccessExec)
	if fault != nil {
		return 0, fault
	}
	return paddr, nil
}

// CrossesPage reports whether a size-byte access at vaddr straddles a
// page boundary; the translator routes such accesses (other than AMO
// and vector-width FP loads, which always trap misaligned) to the
// split-access helper instead of the inline fast path.
func CrossesPage(vaddr uint64, size uint8) bool {
	return (vaddr&memory.PageMask)+uint64(size) > memory.PageSize
}

// Sfence invalidates every cached translation of c. It takes no asid
// or vaddr: since the TLB is generation-stamped rather than walked,
// every shape of SFENCE.VMA reduces to the same generation bump.
func (m *MMU) Sfence(c *hart.Context) {
	c.BumpTLBGeneration()
}

// walk performs a Sv39 or Sv48 page table walk rooted at satp,
// returning the translated physical address and the accumulated PTE
// permission bits (recast as hart.Perm* bits) on success.
func (m *MMU) walk(c *hart.Context, vaddr uint64, access int) (paddr uint64, perm uint8, fault *Fault) {
	mode := c.Satp >> 60
	if mode == 0 {
		// Bare: no translation, identity map with full permissions.
		return vaddr, hart.PermRead | hart.PermWrite | hart.PermExec | hart.PermUser, nil
	}

	var levels int
	switch mode {
	case satpModeSv39:
		levels = 3
		top := vaddr >> 38
		if top != 0 && top != 0x3ffffff {
			return 0, 0, faultFor(access, vaddr)
		}
	case satpModeSv48:
		levels = 4
		top := vaddr >> 47
		if top != 0 && top != 0x1ffff {
			return 0, 0, faultFor(access, vaddr)
		}
	default:
		return 0, 0, faultFor(access, vaddr)
	}

	tableAddr := (c.Satp & ppnMask) << memory.PageShift
	var pte uint64
	var pteAddr uint64
	pageSize := uint64(memory.PageSize)

	for level := levels - 1; level >= 0; level-- {
		shift := uint(memory.PageShift + level*vpnBits)
		vpn := (vaddr >> shift) & 0x1ff
		pteAddr = tableAddr + vpn*8

		v, err := m.mem.ReadUint64(pteAddr)
		if err != nil {
			return 0, 0, faultFor(access, vaddr)
		}
		pte = v

		if pte&pteV == 0 || (pte&pteR == 0 && pte&pteW != 0) {
			return 0, 0, faultFor(access, vaddr)
		}

		if pte&(pteR|pteX) != 0 {
			// Leaf PTE.
			if level > 0 {
				mask := uint64(1)<<(uint(level)*vpnBits) - 1
				if (pte>>10)&mask != 0 {
					return 0, 0, faultFor(access, vaddr) // misaligned superpage
				}
				pageSize = 1 << shift
			}
			if err := checkPerm(pte, access, c.Priv, c.Sstatus, vaddr); err != nil {
				return 0, 0, err
			}
			if pte&pteA == 0 || (access == AccessStore && pte&pteD == 0) {
				newPTE := pte | pteA
				if access == AccessStore {
					newPTE |= pteD
				}
				if werr := m.mem.WriteUint64(pteAddr, newPTE); werr != nil {
					return 0, 0, faultFor(access, vaddr)
				}
				pte = newPTE
			}

			ppn := (pte >> 10) & ppnMask
			if level > 0 {
				mask := uint64(1)<<(uint(level)*vpnBits) - 1
				ppn = (ppn &^ mask) | ((vaddr >> memory.PageShift) & mask)
			}
			paddr = (ppn << memory.PageShift) | (vaddr & (pageSize - 1))
			perm = ptePerm(pte)
			return paddr, perm, nil
		}

		tableAddr = ((pte >> 10) & ppnMask) << memory.PageShift
	}

	return 0, 0, faultFor(access, vaddr)
}

func ptePerm(pte uint64) uint8 {
	var p uint8
	if pte&pteR != 0 {
		p |= hart.PermRead
	}
	if pte&pteW != 0 {
		p |= hart.PermWrite
	}
	if pte&pteX != 0 {
		p |= hart.PermExec
	}
	if pte&pteU != 0 {
		p |= hart.PermUser
	}
	return p
}

func checkPerm(pte uint64, access int, priv uint8, sstatus uint64, vaddr uint64) *Fault {
	if priv == hart.PrivUser && pte&pteU == 0 {
		return faultFor(access, vaddr)
	}
	if priv == hart.PrivSupervisor && pte&pteU != 0 && sstatus&hart.SstatusSUM == 0 {
		return faultFor(access, vaddr)
	}
	switch access {
	case AccessLoad:
		if pte&pteR == 0 {
			if sstatus&hart.SstatusMXR != 0 && pte&pteX != 0 {
				return nil
			}
			return faultFor(access, vaddr)
		}
	case AccessStore:
		if pte&pteW == 0 {
			return faultFor(access, vaddr)
		}
	case AccessExec:
		if pte&pteX == 0 {
			return faultFor(access, vaddr)
		}
	}
	return nil
}
