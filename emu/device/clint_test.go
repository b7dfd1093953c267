/*
Copyright (c) 2024, Richard Cornwell
*/

package device

import (
	"testing"
	"time"

	"rv64vm/emu/hart"
)

func TestCLINTMtimeCmpWriteClearsSTIP(t *testing.T) {
	h := hart.New(0)
	h.Sie = hart.STIP
	h.PostInterrupt(hart.STIP)

	c := NewCLINT([]*hart.Context{h}, time.Hour)
	if err := c.Write(clintMTimeCmpBase, 8, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := h.PendingEnabledInterrupt(); ok {
		t.Fatal("STIP should be cleared after mtimecmp is rewritten")
	}
}

func TestCLINTMSIPWriteRaisesSSIP(t *testing.T) {
	h := hart.New(0)
	h.Sie = hart.SSIP
	c := NewCLINT([]*hart.Context{h}, time.Hour)

	if err := c.Write(clintMSIPBase, 4, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := c.Read(clintMSIPBase, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Fatalf("got %d, want 1", v)
	}
	if _, ok := h.PendingEnabledInterrupt(); !ok {
		t.Fatal("SSIP should be pending after msip write")
	}

	if err := c.Write(clintMSIPBase, 4, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := h.PendingEnabledInterrupt(); ok {
		t.Fatal("SSIP should be cleared after msip write of 0")
	}
}

func TestCLINTMtimeReadWriteRoundTrip(t *testing.T) {
	h := hart.New(0)
	c := NewCLINT([]*hart.Context{h}, time.Hour)

	if err := c.Write(clintMTimeOff, 8, 0x1234); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := c.Read(clintMTimeOff, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x1234 {
		t.Fatalf("got %#x, want 0x1234", v)
	}
}
