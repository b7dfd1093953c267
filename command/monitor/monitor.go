/*
 * rv64vm - Interactive debug monitor.
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

// Package monitor is a liner-driven command loop for inspecting and
// single-stepping a running machine: examine/deposit memory, dump
// registers and CSRs, disassemble, and step or continue one hart.
// Grounded on a liner-backed console reader plus a dispatch-by-first-
// word command table, collapsed from a channel/device command set
// (which this VM has no equivalent of) down to the subset a DBT hart
// debugger needs.
package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"rv64vm/emu/decode"
	disassembler "rv64vm/emu/disassemble"
	"rv64vm/emu/hart"
	"rv64vm/emu/machine"
)

var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

var commands = []string{
	"regs", "mem", "deposit", "dis", "step", "continue", "break", "quit", "help",
}

// Run starts the interactive prompt against m, debugging hart index
// hartIdx. It returns when the user quits.
func Run(m *machine.Machine, hartIdx int) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(partial string) []string {
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c, partial) {
				out = append(out, c)
			}
		}
		return out
	})

	breakpoints := map[uint64]bool{}
	ctx := m.Harts[hartIdx]
	fb := m.Fibers[hartIdx]

	for {
		cmd, err := line.Prompt("rv64vm> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			fmt.Println("error reading line: " + err.Error())
			return
		}
		line.AppendHistory(cmd)

		quit, err := dispatch(strings.TrimSpace(cmd), m, ctx, fb, breakpoints)
		if err != nil {
			fmt.Println("error: " + err.Error())
		}
		if quit {
			return
		}
	}
}

func dispatch(cmd string, m *machine.Machine, ctx *hart.Context, fb interface{ Step() }, breakpoints map[uint64]bool) (bool, error) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "quit", "exit":
		return true, nil

	case "help":
		fmt.Println("regs | mem <addr> <count> | deposit <addr> <value> | dis <addr> <count> | step [n] | continue | break <addr> | quit")
		return false, nil

	case "regs":
		printRegs(ctx)
		return false, nil

	case "mem":
		if len(fields) < 3 {
			return false, errors.New("usage: mem <addr> <count>")
		}
		addr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return false, err
		}
		count, err := strconv.ParseUint(fields[2], 0, 64)
		if err != nil {
			return false, err
		}
		return false, dumpMem(m, addr, int(count))

	case "deposit":
		if len(fields) < 3 {
			return false, errors.New("usage: deposit <addr> <value>")
		}
		addr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return false, err
		}
		value, err := strconv.ParseUint(fields[2], 0, 64)
		if err != nil {
			return false, err
		}
		return false, depositMem(m, addr, value)

	case "dis":
		if len(fields) < 3 {
			return false, errors.New("usage: dis <addr> <count>")
		}
		addr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return false, err
		}
		count, err := strconv.ParseUint(fields[2], 0, 64)
		if err != nil {
			return false, err
		}
		return false, disassembleRange(m, addr, int(count))

	case "step":
		n := 1
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return false, err
			}
			n = v
		}
		for i := 0; i < n; i++ {
			fb.Step()
		}
		printRegs(ctx)
		return false, nil

	case "continue":
		for !ctx.IsShutdown() {
			fb.Step()
			if breakpoints[ctx.PC] {
				fmt.Printf("breakpoint hit at 0x%016x\n", ctx.PC)
				break
			}
		}
		return false, nil

	case "break":
		if len(fields) < 2 {
			return false, errors.New("usage: break <addr>")
		}
		addr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return false, err
		}
		breakpoints[addr] = true
		return false, nil
	}

	return false, errors.New("unknown command: " + fields[0])
}

func printRegs(ctx *hart.Context) {
	for i := 0; i < 32; i += 4 {
		fmt.Printf("x%-2d/%-4s=%016x  x%-2d/%-4s=%016x  x%-2d/%-4s=%016x  x%-2d/%-4s=%016x\n",
			i, regNames[i], ctx.RegRead(uint8(i)),
			i+1, regNames[i+1], ctx.RegRead(uint8(i+1)),
			i+2, regNames[i+2], ctx.RegRead(uint8(i+2)),
			i+3, regNames[i+3], ctx.RegRead(uint8(i+3)))
	}
	fmt.Printf("pc =%016x  priv=%d  satp=%016x\n", ctx.PC, ctx.Priv, ctx.Satp)
}

func dumpMem(m *machine.Machine, addr uint64, count int) error {
	for i := 0; i < count; i++ {
		b, err := m.Mem.ReadByte(addr + uint64(i))
		if err != nil {
			return err
		}
		fmt.Printf("%016x: %02x\n", addr+uint64(i), b)
	}
	return nil
}

func depositMem(m *machine.Machine, addr, value uint64) error {
	return m.Mem.WriteByte(addr, byte(value))
}

func disassembleRange(m *machine.Machine, addr uint64, count int) error {
	for i := 0; i < count; i++ {
		word, err := m.Mem.ReadUint32(addr)
		if err != nil {
			return err
		}
		in := decode.Decode(word)
		fmt.Printf("%016x: %s\n", addr, disassembler.Format(addr, in))
		addr += uint64(in.Length)
	}
	return nil
}
