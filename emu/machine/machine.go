/*
 * rv64vm - Machine: the boot-time wiring of harts, memory, the MMU,
 * the shared block cache/translator and the device bus into one
 * runnable VM instance.
 *
 * Copyright 2024, Richard Cornwell
 */

// Package machine assembles the pieces emu/hart, emu/mmu,
// emu/blockcache, emu/translate, emu/fiber and emu/device build in
// isolation into one bootable instance: a top-level constructor that
// wires one CPU's worth of state together, generalized here from one
// CPU to N harts sharing memory and a device bus.
package machine

import (
	"rv64vm/emu/blockcache"
	"rv64vm/emu/device"
	"rv64vm/emu/fiber"
	"rv64vm/emu/hart"
	"rv64vm/emu/memory"
	"rv64vm/emu/mmu"
	"rv64vm/emu/softfp"
	"rv64vm/emu/translate"
)

// Machine owns every hart's fiber plus the shared memory, MMU, block
// cache and device bus they run against.
type Machine struct {
	Mem    *memory.Memory
	MMU    *mmu.MMU
	Cache  *blockcache.Cache
	Trans  *translate.Translator
	Bus    *device.Bus
	Harts  []*hart.Context
	Fibers []*fiber.Fiber
}

// New builds a machine with numHarts harts sharing memSize bytes of
// guest physical RAM.
func New(memSize uint64, numHarts int) *Machine {
	mem := memory.New(memSize)
	m := &Machine{
		Mem:   mem,
		MMU:   mmu.New(mem),
		Cache: blockcache.New(),
		Bus:   device.NewBus(),
	}
	m.Trans = translate.New(mem, m.Cache)

	for i := 0; i < numHarts; i++ {
		ctx := hart.New(uint64(i))
		m.Harts = append(m.Harts, ctx)
		m.Fibers = append(m.Fibers, fiber.New(ctx, mem, m.MMU, m.Cache, m.Trans, softfp.ReferenceKernel{}))
	}
	return m
}

// Run starts every hart's fiber in its own goroutine and returns
// immediately; callers wait on whatever shutdown signal they prefer
// and then call Shutdown.
func (m *Machine) Run() {
	for _, f := range m.Fibers {
		go f.Run()
	}
}

// Shutdown requests every hart stop and releases every device holding
// a resource (an open file, a listening socket).
func (m *Machine) Shutdown() {
	for _, h := range m.Harts {
		h.RequestShutdown()
	}
	m.Bus.Shutdown()
}
