package hart

import (
	"testing"
	"time"
)

func TestRegZeroHardwired(t *testing.T) {
	t.Parallel()
	c := New(0)
	c.RegWrite(0, 0xdeadbeef)
	if got := c.RegRead(0); got != 0 {
		t.Fatalf("x0 = %#x, want 0", got)
	}
	c.RegWrite(5, 42)
	if got := c.RegRead(5); got != 42 {
		t.Fatalf("x5 = %d, want 42", got)
	}
}

func TestSatpWriteBumpsTLBGeneration(t *testing.T) {
	t.Parallel()
	c := New(0)
	gen := c.TLBGeneration
	c.WriteCSR(CSRSatp, 0x8000000000012345)
	if c.TLBGeneration == gen {
		t.Fatalf("satp write did not bump TLB generation")
	}
	if c.Satp != 0x8000000000012345 {
		t.Fatalf("satp = %#x", c.Satp)
	}
}

func TestTrapEntryAndSret(t *testing.T) {
	t.Parallel()
	c := New(0)
	c.PC = 0x1000
	c.Priv = PrivUser
	c.Stvec = 0x8000_2000
	c.Sstatus = SstatusSIE

	c.EnterTrap(CauseBreakpoint, 0x1000)

	if c.Scause != CauseBreakpoint || c.Sepc != 0x1000 || c.Stval != 0x1000 {
		t.Fatalf("trap frame wrong: cause=%d sepc=%#x stval=%#x", c.Scause, c.Sepc, c.Stval)
	}
	if c.Priv != PrivSupervisor {
		t.Fatalf("priv after trap = %d, want supervisor", c.Priv)
	}
	if c.Sstatus&SstatusSIE != 0 {
		t.Fatalf("sstatus.SIE should be cleared on trap entry")
	}
	if c.Sstatus&SstatusSPIE == 0 {
		t.Fatalf("sstatus.SPIE should carry the pre-trap SIE value")
	}
	if c.PC != 0x8000_2000 {
		t.Fatalf("pc after trap = %#x, want stvec base", c.PC)
	}

	c.Sret()
	if c.Priv != PrivUser {
		t.Fatalf("priv after sret = %d, want user", c.Priv)
	}
	if c.PC != 0x1000 {
		t.Fatalf("pc after sret = %#x, want 0x1000", c.PC)
	}
	if c.Sstatus&SstatusSIE == 0 {
		t.Fatalf("sstatus.SIE should be restored from SPIE on sret")
	}
}

func TestPendingEnabledInterruptPriority(t *testing.T) {
	t.Parallel()
	c := New(0)
	c.Sie = SSIP | STIP | SEIP
	c.Sip = STIP | SSIP

	cause, ok := c.PendingEnabledInterrupt()
	if !ok || cause != 1 {
		t.Fatalf("expected software interrupt (highest priority here), got cause=%d ok=%v", cause, ok)
	}

	c.Sip = STIP
	cause, ok = c.PendingEnabledInterrupt()
	if !ok || cause != 5 {
		t.Fatalf("expected timer interrupt, got cause=%d ok=%v", cause, ok)
	}

	c.Sip = 0
	if _, ok := c.PendingEnabledInterrupt(); ok {
		t.Fatalf("expected no pending interrupt")
	}
}

func TestWaitForInterruptWakesOnPost(t *testing.T) {
	t.Parallel()
	c := New(0)
	c.Sie = STIP

	done := make(chan struct{})
	go func() {
		c.WaitForInterrupt()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatalf("WaitForInterrupt returned before any interrupt was posted")
	default:
	}

	c.PostInterrupt(STIP)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("WaitForInterrupt did not wake after PostInterrupt")
	}
}

func TestWaitForInterruptWakesOnShutdown(t *testing.T) {
	t.Parallel()
	c := New(0)

	done := make(chan struct{})
	go func() {
		c.WaitForInterrupt()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	c.RequestShutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("WaitForInterrupt did not wake on shutdown")
	}
}
