/*
 * rv64vm - Per-component debug trace flags
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package debug holds the process-wide set of enabled trace
// categories and a thin Logf wrapper that checks a category before
// formatting, the same "mask & level" shape trace macros in a comparable C VM use
// cpu/channel/tape debug calls use, generalized from three hard-coded
// subsystems to a registry any package can extend.
package debug

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Category is one independently toggleable trace domain.
type Category uint32

const (
	Core Category = 1 << iota
	MMU
	Trans
	Trap
	Chain
)

var names = map[string]Category{
	"CORE":  Core,
	"MMU":   MMU,
	"TRANS": Trans,
	"TRAP":  Trap,
	"CHAIN": Chain,
}

var (
	mu      sync.RWMutex
	enabled Category
)

// Lookup resolves a config-file category name (case-insensitive) to
// its Category bit.
func Lookup(name string) (Category, bool) {
	c, ok := names[strings.ToUpper(name)]
	return c, ok
}

// Enable and Disable flip one category's bit in the process-wide mask.
func Enable(c Category)  { mu.Lock(); enabled |= c; mu.Unlock() }
func Disable(c Category) { mu.Lock(); enabled &^= c; mu.Unlock() }

func isEnabled(c Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled&c != 0
}

// Logf emits a debug-level slog record tagged with category if that
// category's trace bit is set, otherwise it costs one read-locked mask
// test and nothing more.
func Logf(category Category, format string, args ...any) {
	if !isEnabled(category) {
		return
	}
	slog.Debug(fmt.Sprintf(format, args...), "category", uint32(category))
}
