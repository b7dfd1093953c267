/*
 * rv64vm - Machine configuration: MEM, HARTS, ISA, BOOTROM, DTB and
 * per-device lines (UART0, VIRTIO0, RTC, CLINT, PLIC).
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

// Package vmconfig registers the machine-level config-file options
// (MEM, HARTS, ISA, BOOTROM, DTB) and the per-device lines (UART0,
// VIRTIO0, RTC, CLINT, PLIC), the same init-time registration pattern
// per-device config packages elsewhere in this tree use, collecting results
// into a single Config struct the boot path reads after
// configparser.LoadConfigFile returns.
package vmconfig

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	config "rv64vm/config/configparser"
)

// UART is one console device line: UARTn <addr> PORT=<n>.
type UART struct {
	Port int
}

// VirtIO is one virtio-blk device line: VIRTIOn <addr> FILE="path".
type VirtIO struct {
	File string
}

// Config is the fully parsed machine description, populated by the
// registered callbacks below as LoadConfigFile walks the file.
type Config struct {
	MemSize uint64
	Harts   int
	ISA     string
	BootROM string
	DTB     string

	UART    []UART
	VirtIO  []VirtIO
	RTC     bool
	CLINT   bool
	PLIC    bool
	Sources int // PLIC interrupt source count
}

var (
	mu  sync.Mutex
	cfg = Config{Harts: 1, ISA: "rv64gc", Sources: 32}
)

// Load parses a config file and returns the accumulated machine
// description. Not safe to call concurrently with itself.
func Load(path string) (Config, error) {
	mu.Lock()
	cfg = Config{Harts: 1, ISA: "rv64gc", Sources: 32}
	mu.Unlock()

	if err := config.LoadConfigFile(path); err != nil {
		return Config{}, err
	}
	mu.Lock()
	defer mu.Unlock()
	return cfg, nil
}

func parseSize(s string) (uint64, error) {
	s = strings.ToUpper(s)
	mult := uint64(1)
	switch {
	case strings.HasSuffix(s, "G"):
		mult = 1 << 30
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		mult = 1 << 20
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "K"):
		mult = 1 << 10
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mult, nil
}

func optValue(opts []config.Option, name string) (string, bool) {
	for _, o := range opts {
		if strings.EqualFold(o.Name, name) {
			return o.EqualOpt, true
		}
	}
	return "", false
}

func init() {
	config.RegisterOption("MEM", func(_ uint16, value string, _ []config.Option) error {
		n, err := parseSize(value)
		if err != nil {
			return errors.New("MEM: invalid size " + value)
		}
		mu.Lock()
		cfg.MemSize = n
		mu.Unlock()
		return nil
	})

	config.RegisterOption("HARTS", func(_ uint16, value string, _ []config.Option) error {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return errors.New("HARTS: invalid count " + value)
		}
		mu.Lock()
		cfg.Harts = n
		mu.Unlock()
		return nil
	})

	config.RegisterOption("ISA", func(_ uint16, value string, _ []config.Option) error {
		mu.Lock()
		cfg.ISA = value
		mu.Unlock()
		return nil
	})

	config.RegisterOptions("BOOTROM", func(_ uint16, _ string, opts []config.Option) error {
		file, ok := optValue(opts, "FILE")
		if !ok {
			return errors.New("BOOTROM: missing FILE= option")
		}
		mu.Lock()
		cfg.BootROM = file
		mu.Unlock()
		return nil
	})

	config.RegisterOptions("DTB", func(_ uint16, _ string, opts []config.Option) error {
		file, ok := optValue(opts, "FILE")
		if !ok {
			return errors.New("DTB: missing FILE= option")
		}
		mu.Lock()
		cfg.DTB = file
		mu.Unlock()
		return nil
	})

	for i := 0; i < 4; i++ {
		name := "UART" + strconv.Itoa(i)
		config.RegisterOptions(name, func(_ uint16, _ string, opts []config.Option) error {
			port := 0
			if v, ok := optValue(opts, "PORT"); ok {
				p, err := strconv.Atoi(v)
				if err != nil {
					return errors.New(name + ": invalid PORT=" + v)
				}
				port = p
			}
			mu.Lock()
			cfg.UART = append(cfg.UART, UART{Port: port})
			mu.Unlock()
			return nil
		})
	}

	for i := 0; i < 4; i++ {
		name := "VIRTIO" + strconv.Itoa(i)
		config.RegisterOptions(name, func(_ uint16, _ string, opts []config.Option) error {
			file, _ := optValue(opts, "FILE")
			mu.Lock()
			cfg.VirtIO = append(cfg.VirtIO, VirtIO{File: file})
			mu.Unlock()
			return nil
		})
	}

	config.RegisterOptions("RTC", func(_ uint16, _ string, _ []config.Option) error {
		mu.Lock()
		cfg.RTC = true
		mu.Unlock()
		return nil
	})

	config.RegisterOptions("CLINT", func(_ uint16, _ string, _ []config.Option) error {
		mu.Lock()
		cfg.CLINT = true
		mu.Unlock()
		return nil
	})

	config.RegisterOptions("PLIC", func(_ uint16, _ string, opts []config.Option) error {
		mu.Lock()
		cfg.PLIC = true
		if v, ok := optValue(opts, "SOURCES"); ok {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				cfg.Sources = n
			}
		}
		mu.Unlock()
		return nil
	})
}
