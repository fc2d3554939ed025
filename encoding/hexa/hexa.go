/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package hexa implements encoding.Coder over encoding/hex, lowercase,
// no delimiters. Used to turn a sha256 digest into the string stored in
// the credential store.
package hexa

import (
	"encoding/hex"

	libenc "github.com/sabouaram/securetalk/encoding"
)

type crt struct{}

// New returns a hex Coder.
func New() libenc.Coder {
	return &crt{}
}

func (o *crt) Encode(p []byte) []byte {
	if len(p) < 1 {
		return make([]byte, 0)
	}
	d := make([]byte, hex.EncodedLen(len(p)))
	hex.Encode(d, p)
	return d
}

func (o *crt) Reset() {}
