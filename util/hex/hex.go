/*
 * rv64vm - Convert binary values to hex strings.
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

package hex

import "strings"

var hexMap = "0123456789abcdef"

// FormatAddr64 writes a guest virtual or physical address as 16 hex
// digits, the full width of an RV64 address.
func FormatAddr64(str *strings.Builder, addr uint64) {
	for shift := 60; shift >= 0; shift -= 4 {
		str.WriteByte(hexMap[(addr>>uint(shift))&0xf])
	}
}

// FormatWord32 writes a 32-bit value (an instruction word, a CSR, a
// register half) as 8 hex digits.
func FormatWord32(str *strings.Builder, word uint32) {
	for shift := 28; shift >= 0; shift -= 4 {
		str.WriteByte(hexMap[(word>>uint(shift))&0xf])
	}
}

// FormatReg writes a 64-bit register value as 16 hex digits.
func FormatReg(str *strings.Builder, v uint64) {
	for shift := 60; shift >= 0; shift -= 4 {
		str.WriteByte(hexMap[(v>>uint(shift))&0xf])
	}
}

func FormatBytes(str *strings.Builder, space bool, data []uint8) {
	for _, by := range data {
		str.WriteByte(hexMap[(by>>4)&0xf])
		str.WriteByte(hexMap[by&0xf])
		if space {
			str.WriteByte(' ')
		}
	}
}

func FormatByte(str *strings.Builder, data byte) {
	str.WriteByte(hexMap[(data>>4)&0xf])
	str.WriteByte(hexMap[data&0xf])
}

func FormatDigit(str *strings.Builder, data byte) {
	str.WriteByte(hexMap[data&0xf])
}

func FormatDecimal(str *strings.Builder, num uint64) {
	if num == 0 {
		str.WriteByte('0')
		return
	}
	var digits []byte
	for num > 0 {
		digits = append(digits, byte('0'+num%10))
		num /= 10
	}
	for i := len(digits) - 1; i >= 0; i-- {
		str.WriteByte(digits[i])
	}
}
