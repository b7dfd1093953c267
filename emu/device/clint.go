/*
Copyright (c) 2024, Richard Cornwell
*/

package device

import (
	"sync"
	"sync/atomic"
	"time"

	"rv64vm/emu/hart"
)

// CLINT is the core-local interrupt controller: one mtimecmp register
// per hart compared against a single shared mtime, plus one msip
// register per hart for inter-hart software interrupts. Grounded on
// the periodic event-driven timer in emu/event.Scheduler (a recurring
// callback), generalized from a single-shot interval timer to the
// free-running mtime register RV64's sstc-less CLINT requires.
type CLINT struct {
	mu        sync.Mutex
	mtime     atomic.Uint64
	mtimecmp  []uint64
	msip      []uint32
	harts     []*hart.Context
	stop      chan struct{}
	tickEvery time.Duration
}

const (
	clintMSIPBase     = 0x0000
	clintMTimeCmpBase = 0x4000
	clintMTimeOff     = 0xbff8
)

// NewCLINT builds a CLINT driving the given harts, with mtime
// advancing once per tick.
func NewCLINT(harts []*hart.Context, tick time.Duration) *CLINT {
	c := &CLINT{
		mtimecmp:  make([]uint64, len(harts)),
		msip:      make([]uint32, len(harts)),
		harts:     harts,
		stop:      make(chan struct{}),
		tickEvery: tick,
	}
	for i := range c.mtimecmp {
		c.mtimecmp[i] = ^uint64(0)
	}
	return c
}

func (c *CLINT) Name() string { return "clint" }

// Run advances mtime on tickEvery until Shutdown is called, posting
// or clearing STIP per hart as mtime crosses mtimecmp. Intended to run
// in its own goroutine, the way a free-running hardware timer thread
// would.
func (c *CLINT) Run() {
	ticker := time.NewTicker(c.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := c.mtime.Add(1)
			c.mu.Lock()
			for i, cmp := range c.mtimecmp {
				if now >= cmp {
					c.harts[i].PostInterrupt(hart.STIP)
				} else {
					c.harts[i].ClearInterrupt(hart.STIP)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *CLINT) Shutdown() { close(c.stop) }

func (c *CLINT) Read(offset uint64, size int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case offset == clintMTimeOff:
		return c.mtime.Load(), nil
	case offset >= clintMTimeCmpBase && offset < clintMTimeCmpBase+8*uint64(len(c.mtimecmp)):
		i := (offset - clintMTimeCmpBase) / 8
		return c.mtimecmp[i], nil
	case offset < clintMSIPBase+4*uint64(len(c.msip)):
		i := offset / 4
		return uint64(c.msip[i]), nil
	}
	return 0, nil
}

func (c *CLINT) Write(offset uint64, size int, value uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case offset == clintMTimeOff:
		c.mtime.Store(value)
	case offset >= clintMTimeCmpBase && offset < clintMTimeCmpBase+8*uint64(len(c.mtimecmp)):
		i := (offset - clintMTimeCmpBase) / 8
		c.mtimecmp[i] = value
		c.harts[i].ClearInterrupt(hart.STIP)
	case offset < clintMSIPBase+4*uint64(len(c.msip)):
		i := offset / 4
		c.msip[i] = uint32(value) & 1
		if c.msip[i] != 0 {
			c.harts[i].PostInterrupt(hart.SSIP)
		} else {
			c.harts[i].ClearInterrupt(hart.SSIP)
		}
	}
	return nil
}
