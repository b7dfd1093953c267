/*
 * rv64vm - Debug trace category configuration lines.
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

// Package debugconfig registers one config-file switch per trace
// category (DEBUGCORE, DEBUGMMU, DEBUGTRANS, DEBUGTRAP, DEBUGCHAIN),
// mirroring the per-subsystem debug registrations of an earlier design but as
// plain on/off switches rather than per-device option lists, since
// these categories are process-wide rather than per-device.
package debugconfig

import (
	config "rv64vm/config/configparser"
	"rv64vm/util/debug"
)

func init() {
	for name, cat := range map[string]debug.Category{
		"DEBUGCORE":  debug.Core,
		"DEBUGMMU":   debug.MMU,
		"DEBUGTRANS": debug.Trans,
		"DEBUGTRAP":  debug.Trap,
		"DEBUGCHAIN": debug.Chain,
	} {
		cat := cat
		config.RegisterSwitch(name, func(_ uint16, _ string, _ []config.Option) error {
			debug.Enable(cat)
			return nil
		})
	}
}
