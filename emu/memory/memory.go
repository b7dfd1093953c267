/*
   Guest physical memory: the flat byte array the page walker and
   devices read and write. Deliberately dumb: no ownership tracking, no
   per-byte permission bits (those live in the guest page table and the
   TLB, not here).

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a copy
   of this software and associated documentation files (the "Software"), to deal
   in the Software without restriction, including without limitation the rights
   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
   copies of the Software, and to permit persons to whom the Software is
   furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
   SOFTWARE.
*/

// Package memory implements the guest physical address space.
package memory

import (
	"errors"
	"unsafe"
)

// Memory is a guest physical address space backed by a single
// contiguous host allocation, so the MMU can hand out raw host
// pointers into it for the TLB fast path.
type Memory struct {
	bytes []byte
	base  uintptr
	size  uint64
}

// PageShift / PageSize: the unit the TLB and the page walker work in.
const (
	PageShift = 12
	PageSize  = 1 << PageShift
	PageMask  = PageSize - 1
)

// New allocates a guest physical address space of size bytes, rounded
// up to a whole number of pages.
func New(size uint64) *Memory {
	size = (size + PageMask) &^ PageMask
	b := make([]byte, size)
	base := uintptr(0)
	if len(b) > 0 {
		base = uintptr(unsafe.Pointer(&b[0]))
	}
	return &Memory{
		bytes: b,
		base:  base,
		size:  size,
	}
}

// Size returns the guest physical memory size in bytes.
func (m *Memory) Size() uint64 { return m.size }

// InRange reports whether [addr, addr+n) lies entirely within guest RAM.
func (m *Memory) InRange(addr, n uint64) bool {
	return addr < m.size && n <= m.size-addr
}

// HostPointer returns the host address backing guest physical page
// pageAddr (pageAddr must be page aligned and in range); this is what
// populates a TLBEntry.HostBase.
func (m *Memory) HostPointer(pageAddr uint64) uintptr {
	return m.base + uintptr(pageAddr)
}

// Bytes returns the raw backing slice, for a device model that needs
// direct DMA-style access; callers do their own bounds checking.
func (m *Memory) Bytes() []byte { return m.bytes }

var errOutOfRange = errors.New("guest physical address out of range")

// ReadByte/WriteByte etc are the slow-path accessors used by the page
// walker and by devices; the JIT fast path instead dereferences
// TLBEntry.HostBase directly and never calls these.
func (m *Memory) ReadByte(addr uint64) (byte, error) {
	if addr >= m.size {
		return 0, errOutOfRange
	}
	return m.bytes[addr], nil
}

func (m *Memory) WriteByte(addr uint64, v byte) error {
	if addr >= m.size {
		return errOutOfRange
	}
	m.bytes[addr] = v
	return nil
}

func (m *Memory) ReadUint64(addr uint64) (uint64, error) {
	if !m.InRange(addr, 8) {
		return 0, errOutOfRange
	}
	b := m.bytes[addr : addr+8 : addr+8]
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56, nil
}

func (m *Memory) WriteUint64(addr uint64, v uint64) error {
	if !m.InRange(addr, 8) {
		return errOutOfRange
	}
	b := m.bytes[addr : addr+8 : addr+8]
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	b[4], b[5], b[6], b[7] = byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56)
	return nil
}

func (m *Memory) ReadUint32(addr uint64) (uint32, error) {
	if !m.InRange(addr, 4) {
		return 0, errOutOfRange
	}
	b := m.bytes[addr : addr+4 : addr+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (m *Memory) WriteUint32(addr uint64, v uint32) error {
	if !m.InRange(addr, 4) {
		return errOutOfRange
	}
	b := m.bytes[addr : addr+4 : addr+4]
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	return nil
}

// ReadUint16 / WriteUint16 round out the load/store widths RV64GC needs.
func (m *Memory) ReadUint16(addr uint64) (uint16, error) {
	if !m.InRange(addr, 2) {
		return 0, errOutOfRange
	}
	b := m.bytes[addr : addr+2 : addr+2]
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (m *Memory) WriteUint16(addr uint64, v uint16) error {
	if !m.InRange(addr, 2) {
		return errOutOfRange
	}
	b := m.bytes[addr : addr+2 : addr+2]
	b[0], b[1] = byte(v), byte(v>>8)
	return nil
}
