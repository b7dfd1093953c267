/*
Copyright (c) 2024, Richard Cornwell
*/

package device

import (
	"testing"

	"rv64vm/emu/hart"
)

func TestPLICEnabledPendingSourceRaisesSEIP(t *testing.T) {
	h := hart.New(0)
	h.Sie = hart.SEIP
	p := NewPLIC(4, []*hart.Context{h})

	// priority[2] = 1, threshold[0] = 0, enable ctx0 source 2.
	if err := p.Write(plicPriorityBase+2*4, 4, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Write(plicEnableBase, 4, 1<<2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p.setPending(2, true)

	if _, ok := h.PendingEnabledInterrupt(); !ok {
		t.Fatal("expected SEIP pending after enabled source raised")
	}
}

func TestPLICClaimMarksSourceClaimedUntilComplete(t *testing.T) {
	h := hart.New(0)
	h.Sie = hart.SEIP
	p := NewPLIC(4, []*hart.Context{h})

	_ = p.Write(plicPriorityBase+2*4, 4, 1)
	_ = p.Write(plicEnableBase, 4, 1<<2)
	p.setPending(2, true)

	claimed, err := p.Read(plicCtxBase+4, 4) // ctx 0, claim/complete register
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed != 2 {
		t.Fatalf("got claimed source %d, want 2", claimed)
	}

	if _, ok := h.PendingEnabledInterrupt(); ok {
		t.Fatal("SEIP should drop once the only pending source is claimed")
	}

	if err := p.Write(plicCtxBase+4, 4, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := h.PendingEnabledInterrupt(); !ok {
		t.Fatal("SEIP should reassert once the source is completed while still pending")
	}
}

func TestPLICThresholdBlocksLowPrioritySource(t *testing.T) {
	h := hart.New(0)
	h.Sie = hart.SEIP
	p := NewPLIC(4, []*hart.Context{h})

	_ = p.Write(plicPriorityBase+2*4, 4, 1)
	_ = p.Write(plicEnableBase, 4, 1<<2)
	_ = p.Write(plicCtxBase, 4, 1) // threshold[0] = 1, source priority 1 no longer fires
	p.setPending(2, true)

	if _, ok := h.PendingEnabledInterrupt(); ok {
		t.Fatal("source at or below threshold should not raise SEIP")
	}
}
