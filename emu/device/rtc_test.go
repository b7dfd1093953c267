/*
Copyright (c) 2024, Richard Cornwell
*/

package device

import "testing"

func TestRTCReadReturnsNonZeroWallClock(t *testing.T) {
	r := NewRTC()
	lo, err := r.Read(0, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hi, err := r.Read(4, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lo == 0 && hi == 0 {
		t.Fatal("expected a non-zero wall-clock reading")
	}
}

func TestRTCWriteIsNoOp(t *testing.T) {
	r := NewRTC()
	if err := r.Write(0, 4, 0xff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
