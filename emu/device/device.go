/*
rv64vm Memory-mapped device interface

	Copyright (c) 2024, Richard Cornwell

	Permission is hereby granted, free of charge, to any person obtaining a
	copy of this software and associated documentation files (the "Software"),
	to deal in the Software without restriction, including without limitation
	the rights to use, copy, modify, merge, publish, distribute, sublicense,
	and/or sell copies of the Software, and to permit persons to whom the
	Software is furnished to do so, subject to the following conditions:

	The above copyright notice and this permission notice shall be included in
	all copies or substantial portions of the Software.

	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
	RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
	IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
	CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package device defines the narrow interface every memory-mapped
// peripheral implements, plus a bus that dispatches loads/stores at
// guest physical addresses to the registered device and carries
// interrupt lines up to each hart's PLIC/CLINT inputs.
package device

import (
	"errors"
	"sort"
	"sync"
)

// NoDev marks a config line with no device address, mirroring the
// sentinel the config registry uses for global (non-per-device)
// options.
const NoDev uint16 = 0xffff

// Device is the whole surface a peripheral exposes to the guest: byte/
// half/word/double loads and stores at an offset from its base
// address, and a name for diagnostics. Devices that can interrupt are
// handed a Bus (see UART.Attach) and signal through its RaiseIRQ/
// LowerIRQ; there is no separate interrupt interface.
type Device interface {
	Name() string
	Read(offset uint64, size int) (uint64, error)
	Write(offset uint64, size int, value uint64) error
}

// Shutdowner is implemented by devices that hold a resource (an open
// file, a telnet listener) that must be released on VM shutdown.
type Shutdowner interface {
	Shutdown()
}

// Debugger is implemented by devices that accept a DEBUG config line.
type Debugger interface {
	Debug(option string) error
}

// region records where in guest physical address space a device is
// mapped.
type region struct {
	base, size uint64
	dev        Device
}

// Bus maps guest physical addresses to devices and fans interrupt
// lines out to whatever is listening (normally a PLIC). emu/mmu does
// not consult it: guest loads and stores resolve into RAM only, and
// the bus is reached by calling its Read/Write directly.
type Bus struct {
	mu      sync.RWMutex
	regions []region
	irqMu   sync.Mutex
	irqSubs map[uint32][]func(bool)
}

func NewBus() *Bus {
	return &Bus{irqSubs: map[uint32][]func(bool){}}
}

var ErrNoDevice = errors.New("device: no device mapped at address")

// Map registers dev at [base, base+size). Overlap with an existing
// region is a configuration bug, not a runtime fault, so it panics at
// setup time the way a device table panics on a duplicate device
// address.
func (b *Bus) Map(base, size uint64, dev Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.regions {
		if base < r.base+r.size && r.base < base+size {
			panic("device: overlapping mapping for " + dev.Name())
		}
	}
	b.regions = append(b.regions, region{base: base, size: size, dev: dev})
	sort.Slice(b.regions, func(i, j int) bool { return b.regions[i].base < b.regions[j].base })
}

func (b *Bus) find(addr uint64) (region, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.regions {
		if addr >= r.base && addr < r.base+r.size {
			return r, true
		}
	}
	return region{}, false
}

func (b *Bus) Read(addr uint64, size int) (uint64, error) {
	r, ok := b.find(addr)
	if !ok {
		return 0, ErrNoDevice
	}
	return r.dev.Read(addr-r.base, size)
}

func (b *Bus) Write(addr uint64, size int, value uint64) error {
	r, ok := b.find(addr)
	if !ok {
		return ErrNoDevice
	}
	return r.dev.Write(addr-r.base, size, value)
}

// Subscribe registers fn to be called whenever source's level
// changes. The PLIC uses this to learn about every device's line
// without each device needing a pointer back to the PLIC.
func (b *Bus) Subscribe(source uint32, fn func(level bool)) {
	b.irqMu.Lock()
	defer b.irqMu.Unlock()
	b.irqSubs[source] = append(b.irqSubs[source], fn)
}

// RaiseIRQ and LowerIRQ are called by a device to change its
// interrupt source's level.
func (b *Bus) RaiseIRQ(source uint32) { b.setIRQ(source, true) }
func (b *Bus) LowerIRQ(source uint32) { b.setIRQ(source, false) }

func (b *Bus) setIRQ(source uint32, level bool) {
	b.irqMu.Lock()
	subs := append([]func(bool){}, b.irqSubs[source]...)
	b.irqMu.Unlock()
	for _, fn := range subs {
		fn(level)
	}
}

// Shutdown releases every mapped device that holds a resource.
func (b *Bus) Shutdown() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.regions {
		if s, ok := r.dev.(Shutdowner); ok {
			s.Shutdown()
		}
	}
}
