/*
 * rv64vm - TCP console backend for a UART device.
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

// Package telnet accepts inbound TCP connections on a configured
// UART's port and gives each accepted connection a UART of its own
// that uses the connection as its byte stream.
package telnet

import (
	"log/slog"
	"net"
	"strconv"

	"rv64vm/emu/device"
)

// Listener accepts connections on one TCP port until it is closed.
type Listener struct {
	ln net.Listener
}

// Listen opens a TCP listener on port and returns it; callers call
// Serve to start accepting.
func Listen(port int) (*Listener, error) {
	ln, err := net.Listen("tcp", portAddr(port))
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

func portAddr(port int) string {
	if port == 0 {
		port = 6300
	}
	return net.JoinHostPort("", strconv.Itoa(port))
}

// Serve accepts connections until Accept fails (as it does after
// Close), passing each one to attach, which builds the UART that uses
// the connection as its backing stream.
func (l *Listener) Serve(attach func(conn net.Conn) *device.UART) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		slog.Info("telnet: console connected", "remote", conn.RemoteAddr().String())
		attach(conn)
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }
