package blockcache

import (
	"sync"
	"testing"
)

func TestInsertAndLookup(t *testing.T) {
	c := New()
	b := &Block{Key: Key{ASID: 1, PC: 0x1000}, Code: []byte{0x90}}
	c.Insert(b)

	got, ok := c.Lookup(Key{ASID: 1, PC: 0x1000})
	if !ok {
		t.Fatalf("expected hit")
	}
	if got != b {
		t.Fatalf("lookup returned a different block")
	}
}

func TestLookupMiss(t *testing.T) {
	c := New()
	if _, ok := c.Lookup(Key{ASID: 0, PC: 0x4000}); ok {
		t.Fatalf("expected miss on empty cache")
	}
}

func TestDistinctASIDsDoNotAlias(t *testing.T) {
	c := New()
	b1 := &Block{Key: Key{ASID: 1, PC: 0x1000}}
	b2 := &Block{Key: Key{ASID: 2, PC: 0x1000}}
	c.Insert(b1)
	c.Insert(b2)

	got1, _ := c.Lookup(Key{ASID: 1, PC: 0x1000})
	got2, _ := c.Lookup(Key{ASID: 2, PC: 0x1000})
	if got1 != b1 || got2 != b2 {
		t.Fatalf("asid aliasing: got1=%v got2=%v", got1, got2)
	}
}

func TestFlushInvalidatesEverything(t *testing.T) {
	c := New()
	b := &Block{Key: Key{ASID: 0, PC: 0x2000}}
	c.Insert(b)
	if _, ok := c.Lookup(b.Key); !ok {
		t.Fatalf("expected hit before flush")
	}

	c.Flush()
	if _, ok := c.Lookup(b.Key); ok {
		t.Fatalf("expected miss after flush")
	}
	if n := c.Len(); n != 0 {
		t.Fatalf("Len after flush = %d, want 0", n)
	}
}

func TestReinsertAfterFlush(t *testing.T) {
	c := New()
	b := &Block{Key: Key{ASID: 0, PC: 0x3000}}
	c.Insert(b)
	c.Flush()

	b2 := &Block{Key: Key{ASID: 0, PC: 0x3000}}
	c.Insert(b2)
	got, ok := c.Lookup(b.Key)
	if !ok || got != b2 {
		t.Fatalf("expected fresh block after reinsert, got %v ok=%v", got, ok)
	}
}

func TestConcurrentInsertLookup(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := Key{ASID: uint64(i % 4), PC: uint64(i) * 4}
			c.Insert(&Block{Key: k})
			c.Lookup(k)
		}(i)
	}
	wg.Wait()
	if c.Len() != 64 {
		t.Fatalf("Len = %d, want 64", c.Len())
	}
}
