/*
Copyright (c) 2024, Richard Cornwell
*/

package machine

import "testing"

func TestNewBuildsOneFiberPerHart(t *testing.T) {
	m := New(1<<20, 3)

	if len(m.Harts) != 3 || len(m.Fibers) != 3 {
		t.Fatalf("got %d harts / %d fibers, want 3 / 3", len(m.Harts), len(m.Fibers))
	}
	if m.Mem.Size() != 1<<20 {
		t.Fatalf("got mem size %d, want %d", m.Mem.Size(), 1<<20)
	}
	for i, h := range m.Harts {
		if h.HartID != uint64(i) {
			t.Fatalf("hart %d has HartID %d", i, h.HartID)
		}
	}
}

func TestShutdownMarksEveryHart(t *testing.T) {
	m := New(1<<20, 2)
	m.Shutdown()
	for i, h := range m.Harts {
		if !h.IsShutdown() {
			t.Fatalf("hart %d not marked shut down", i)
		}
	}
}
