//go:build unix

/*
   Code cache: host pages holding translated blocks' machine code.

   Copyright (c) 2024, Richard Cornwell
*/

package translate

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// codeBuf is a single mmap'd region of executable memory, bump
// allocated: blocks are never freed individually, only discarded en
// masse when Translator.Flush empties the block cache and unmaps every
// arena.
type codeBuf struct {
	mu     sync.Mutex
	region []byte
	used   int
	writeable bool
}

// codeBufSize is the size of one mmap'd arena; the translator allocates
// a new arena once the current one cannot fit a block.
const codeBufSize = 16 << 20

func newCodeBuf() (*codeBuf, error) {
	region, err := unix.Mmap(-1, 0, codeBufSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("translate: mmap code cache: %w", err)
	}
	return &codeBuf{region: region, writeable: true}, nil
}

// reserve returns a writable slice of n bytes within the arena, or
// false if the arena is full. The caller must have made the arena
// writable (via makeWriteable) first; W^X discipline forbids a page
// being writable and executable at once.
func (b *codeBuf) reserve(n int) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.writeable {
		return nil, false
	}
	// Keep blocks 16-byte aligned so a landing pad never splits a
	// multi-byte instruction's opcode bytes across cache lines for no
	// reason; not required for correctness on x86, just tidy.
	aligned := (b.used + 15) &^ 15
	if aligned+n > len(b.region) {
		return nil, false
	}
	slice := b.region[aligned : aligned+n : aligned+n]
	b.used = aligned + n
	return slice, true
}

// makeExecutable flips the arena from RW to RX. Called once per block
// emission in this implementation (simpler than batching, at the cost
// of one mprotect syscall per block); a production build would flip
// in batches between translation bursts instead.
func (b *codeBuf) makeExecutable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.writeable {
		return nil
	}
	if err := unix.Mprotect(b.region, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("translate: mprotect RX: %w", err)
	}
	b.writeable = false
	return nil
}

// makeWriteable flips the arena back to RW so the translator can
// append another block.
func (b *codeBuf) makeWriteable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeable {
		return nil
	}
	if err := unix.Mprotect(b.region, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("translate: mprotect RW: %w", err)
	}
	b.writeable = true
	return nil
}

func (b *codeBuf) close() error {
	return unix.Munmap(b.region)
}
