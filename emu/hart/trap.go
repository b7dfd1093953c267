/*
   Hart: trap cause constants and trap entry.

   Copyright (c) 2024, Richard Cornwell
*/

package hart

// Exception causes, RISC-V privileged spec numbering.
const (
	CauseInsnMisaligned  uint64 = 0
	CauseInsnFault       uint64 = 1
	CauseIllegalInsn     uint64 = 2
	CauseBreakpoint      uint64 = 3
	CauseLoadMisaligned  uint64 = 4
	CauseLoadFault       uint64 = 5
	CauseStoreMisaligned uint64 = 6
	CauseStoreFault      uint64 = 7
	CauseEcallU          uint64 = 8
	CauseEcallS          uint64 = 9
	CauseInsnPageFault   uint64 = 12
	CauseLoadPageFault   uint64 = 13
	CauseStorePageFault  uint64 = 15
)

// InterruptBit marks an interrupt (as opposed to exception) scause
// value; bit 63 per the privileged spec.
const InterruptBit uint64 = 1 << 63

// EnterTrap delivers a trap to S-mode: it records cause/epc/tval, sets
// sstatus.SPIE/SPP from the pre-trap state, computes the new privilege
// and redirects PC through stvec (vectored if stvec mode bit is 1 and
// this is an interrupt). It never returns an error: a guest fault is
// expected, frequent, and always deliverable.
func (c *Context) EnterTrap(cause, tval uint64) {
	c.Scause = cause
	c.Stval = tval
	c.Sepc = c.PC

	if c.Sstatus&SstatusSIE != 0 {
		c.Sstatus |= SstatusSPIE
	} else {
		c.Sstatus &^= SstatusSPIE
	}
	if c.Priv == PrivSupervisor {
		c.Sstatus |= SstatusSPP
	} else {
		c.Sstatus &^= SstatusSPP
	}
	c.Sstatus &^= SstatusSIE
	c.Priv = PrivSupervisor

	base := c.Stvec &^ 0x3
	mode := c.Stvec & 0x3
	if mode == 1 && cause&InterruptBit != 0 {
		c.PC = base + 4*(cause&^InterruptBit)
	} else {
		c.PC = base
	}
}

// Sret pops the trap frame set up by EnterTrap, restoring privilege
// and sstatus.SIE from SPP/SPIE and resuming at sepc.
func (c *Context) Sret() {
	if c.Sstatus&SstatusSPP != 0 {
		c.Priv = PrivSupervisor
	} else {
		c.Priv = PrivUser
	}
	if c.Sstatus&SstatusSPIE != 0 {
		c.Sstatus |= SstatusSIE
	} else {
		c.Sstatus &^= SstatusSIE
	}
	c.Sstatus |= SstatusSPIE
	c.Sstatus &^= SstatusSPP
	c.PC = c.Sepc
}
