/*
 * rv64vm - Main process.
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

package main

import (
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"rv64vm/command/monitor"
	vmconfig "rv64vm/config/vmconfig"
	"rv64vm/emu/device"
	"rv64vm/emu/machine"
	"rv64vm/telnet"
	logger "rv64vm/util/logger"

	_ "rv64vm/config/debugconfig"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "rv64vm.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optMonitor := getopt.BoolLong("monitor", 'm', "Start in the interactive debug monitor")
	optDebug := getopt.BoolLong("debug", 'd', "Echo log records to stderr")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	log := slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, optDebug))
	slog.SetDefault(log)

	log.Info("rv64vm started")

	if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
		log.Error("configuration file not found", "path", *optConfig)
		os.Exit(1)
	}

	cfg, err := vmconfig.Load(*optConfig)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
	if cfg.MemSize == 0 {
		cfg.MemSize = 256 << 20
	}

	m := machine.New(cfg.MemSize, cfg.Harts)

	var clint *device.CLINT
	if cfg.CLINT {
		clint = device.NewCLINT(m.Harts, time.Millisecond)
		m.Bus.Map(0x02000000, 0x10000, clint)
		go clint.Run()
	}

	var plic *device.PLIC
	if cfg.PLIC {
		plic = device.NewPLIC(cfg.Sources, m.Harts)
		m.Bus.Map(0x0c000000, 0x04000000, plic)
	}

	if cfg.RTC {
		m.Bus.Map(0x00101000, 0x1000, device.NewRTC())
	}

	var listeners []*telnet.Listener
	for i, u := range cfg.UART {
		irqSource := uint32(10 + i)
		uartDev := device.NewUART(os.Stdout, os.Stdin, irqSource)
		base := uint64(0x10000000 + i*0x1000)
		m.Bus.Map(base, 0x100, uartDev)
		uartDev.Attach(m.Bus)
		if plic != nil {
			plic.Listen(m.Bus, irqSource)
		}
		if u.Port != 0 {
			ln, err := telnet.Listen(u.Port)
			if err != nil {
				log.Error("uart listen failed", "port", u.Port, "error", err.Error())
				continue
			}
			listeners = append(listeners, ln)
			go ln.Serve(func(conn net.Conn) *device.UART {
				nested := device.NewUART(conn, conn, irqSource)
				nested.Attach(m.Bus)
				return nested
			})
		}
	}

	log.Info("booting", "harts", cfg.Harts, "mem", cfg.MemSize, "isa", cfg.ISA)
	m.Run()

	if *optMonitor {
		monitor.Run(m, 0)
		m.Shutdown()
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	m.Shutdown()
	for _, ln := range listeners {
		ln.Close()
	}
	log.Info("stopped")
}
