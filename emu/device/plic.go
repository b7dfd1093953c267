/*
Copyright (c) 2024, Richard Cornwell
*/

package device

import (
	"sync"

	"rv64vm/emu/hart"
)

// PLIC is a minimal platform-level interrupt controller: one pending
// bit and one priority per source, one enable mask and claim register
// per hart context, posting SEIP on whichever harts have a pending
// source enabled above their threshold. Grounded on a channel
// subsystem's priority-ordered pending-interrupt scan (IRQ raise/
// lower bookkeeping), generalized from one channel queue to a fixed
// source/context table sized for this VM's device set.
type PLIC struct {
	mu        sync.Mutex
	priority  []uint32
	pending   []bool
	enable    [][]bool // enable[ctx][source]
	threshold []uint32
	claimed   []bool
	harts     []*hart.Context
}

// NewPLIC builds a PLIC with numSources interrupt lines feeding the
// given harts, one context per hart.
func NewPLIC(numSources int, harts []*hart.Context) *PLIC {
	p := &PLIC{
		priority:  make([]uint32, numSources),
		pending:   make([]bool, numSources),
		claimed:   make([]bool, numSources),
		threshold: make([]uint32, len(harts)),
		harts:     harts,
	}
	p.enable = make([][]bool, len(harts))
	for i := range p.enable {
		p.enable[i] = make([]bool, numSources)
	}
	return p
}

func (p *PLIC) Name() string { return "plic" }

// Listen subscribes the PLIC to a Bus so any device raising source's
// IRQ line is reflected into the pending table.
func (p *PLIC) Listen(bus *Bus, source uint32) {
	bus.Subscribe(source, func(level bool) { p.setPending(source, level) })
}

func (p *PLIC) setPending(source uint32, level bool) {
	p.mu.Lock()
	p.pending[source] = level
	p.recomputeLocked()
	p.mu.Unlock()
}

// recomputeLocked re-derives each hart's SEIP from whether any
// enabled, unclaimed, above-threshold source is pending. Caller must
// hold p.mu. Simpler than real PLIC hardware (no priority ordering
// among simultaneously pending sources beyond claimLocked picking the
// lowest numbered one) but sufficient for a single external-interrupt
// line per hart.
func (p *PLIC) recomputeLocked() {
	for ctx, h := range p.harts {
		fire := false
		for src := range p.pending {
			if p.pending[src] && !p.claimed[src] && p.enable[ctx][src] && p.priority[src] > p.threshold[ctx] {
				fire = true
				break
			}
		}
		if fire {
			h.PostInterrupt(hart.SEIP)
		} else {
			h.ClearInterrupt(hart.SEIP)
		}
	}
}

const (
	plicPriorityBase = 0x000000
	plicPendingBase  = 0x001000
	plicEnableBase   = 0x002000
	plicEnableStride = 0x80
	plicCtxBase      = 0x200000
	plicCtxStride    = 0x1000
)

func (p *PLIC) Read(offset uint64, size int) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case offset >= plicPriorityBase && offset < plicPendingBase:
		src := offset / 4
		if int(src) < len(p.priority) {
			return uint64(p.priority[src]), nil
		}
	case offset >= plicEnableBase && offset < plicCtxBase:
		ctx := (offset - plicEnableBase) / plicEnableStride
		word := (offset - plicEnableBase) % plicEnableStride / 4
		if int(ctx) < len(p.enable) {
			return p.enableWord(int(ctx), int(word)), nil
		}
	case offset >= plicCtxBase:
		ctx := (offset - plicCtxBase) / plicCtxStride
		reg := (offset - plicCtxBase) % plicCtxStride
		if int(ctx) >= len(p.harts) {
			return 0, nil
		}
		if reg == 0 {
			return uint64(p.threshold[ctx]), nil
		}
		if reg == 4 {
			src := p.claimLocked(int(ctx))
			p.recomputeLocked()
			return uint64(src), nil
		}
	}
	return 0, nil
}

func (p *PLIC) Write(offset uint64, size int, value uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case offset >= plicPriorityBase && offset < plicPendingBase:
		src := offset / 4
		if int(src) < len(p.priority) {
			p.priority[src] = uint32(value)
		}
	case offset >= plicEnableBase && offset < plicCtxBase:
		ctx := (offset - plicEnableBase) / plicEnableStride
		word := (offset - plicEnableBase) % plicEnableStride / 4
		if int(ctx) < len(p.enable) {
			p.setEnableWord(int(ctx), int(word), uint32(value))
		}
	case offset >= plicCtxBase:
		ctx := (offset - plicCtxBase) / plicCtxStride
		reg := (offset - plicCtxBase) % plicCtxStride
		if int(ctx) >= len(p.harts) {
			return nil
		}
		if reg == 0 {
			p.threshold[ctx] = uint32(value)
		}
		if reg == 4 {
			src := int(value)
			if src >= 0 && src < len(p.claimed) {
				p.claimed[src] = false
			}
		}
	}
	p.recomputeLocked()
	return nil
}

func (p *PLIC) enableWord(ctx, word int) uint64 {
	var v uint64
	for bit := 0; bit < 32; bit++ {
		src := word*32 + bit
		if src < len(p.enable[ctx]) && p.enable[ctx][src] {
			v |= 1 << uint(bit)
		}
	}
	return v
}

func (p *PLIC) setEnableWord(ctx, word int, bits uint32) {
	for bit := 0; bit < 32; bit++ {
		src := word*32 + bit
		if src < len(p.enable[ctx]) {
			p.enable[ctx][src] = bits&(1<<uint(bit)) != 0
		}
	}
}

// claimLocked returns the lowest numbered pending, enabled, unclaimed
// source for ctx and marks it claimed. Caller holds p.mu.
func (p *PLIC) claimLocked(ctx int) uint32 {
	for src := range p.pending {
		if p.pending[src] && !p.claimed[src] && p.enable[ctx][src] && p.priority[src] > p.threshold[ctx] {
			p.claimed[src] = true
			return uint32(src)
		}
	}
	return 0
}
