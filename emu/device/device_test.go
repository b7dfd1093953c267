/*
Copyright (c) 2024, Richard Cornwell
*/

package device

import (
	"errors"
	"testing"
)

type fakeDev struct {
	name   string
	reads  []uint64
	writes []uint64
}

func (f *fakeDev) Name() string { return f.name }

func (f *fakeDev) Read(offset uint64, size int) (uint64, error) {
	f.reads = append(f.reads, offset)
	return offset + 1, nil
}

func (f *fakeDev) Write(offset uint64, size int, value uint64) error {
	f.writes = append(f.writes, value)
	return nil
}

func TestBusRoutesToMappedDevice(t *testing.T) {
	bus := NewBus()
	dev := &fakeDev{name: "x"}
	bus.Map(0x1000, 0x100, dev)

	v, err := bus.Read(0x1008, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 9 {
		t.Fatalf("got %d, want 9 (offset 8 + 1)", v)
	}

	if err := bus.Write(0x1010, 8, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dev.writes) != 1 || dev.writes[0] != 42 {
		t.Fatalf("write not routed: %+v", dev.writes)
	}
}

func TestBusReadUnmappedAddressReturnsErrNoDevice(t *testing.T) {
	bus := NewBus()
	_, err := bus.Read(0xdead, 8)
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("got %v, want ErrNoDevice", err)
	}
}

func TestBusMapOverlapPanics(t *testing.T) {
	bus := NewBus()
	bus.Map(0x1000, 0x100, &fakeDev{name: "a"})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on overlapping mapping")
		}
	}()
	bus.Map(0x1080, 0x100, &fakeDev{name: "b"})
}

func TestBusSubscribeReceivesRaiseAndLower(t *testing.T) {
	bus := NewBus()
	var levels []bool
	bus.Subscribe(3, func(level bool) { levels = append(levels, level) })

	bus.RaiseIRQ(3)
	bus.LowerIRQ(3)

	if len(levels) != 2 || levels[0] != true || levels[1] != false {
		t.Fatalf("got %v, want [true false]", levels)
	}
}

func TestBusShutdownCallsShutdowner(t *testing.T) {
	bus := NewBus()
	dev := &shutdownDev{}
	bus.Map(0, 0x10, dev)
	bus.Shutdown()
	if !dev.down {
		t.Fatal("Shutdown was not called on mapped device")
	}
}

type shutdownDev struct {
	down bool
}

func (d *shutdownDev) Name() string                                    { return "shutdown" }
func (d *shutdownDev) Read(offset uint64, size int) (uint64, error)    { return 0, nil }
func (d *shutdownDev) Write(offset uint64, size int, value uint64) error { return nil }
func (d *shutdownDev) Shutdown()                                       { d.down = true }
