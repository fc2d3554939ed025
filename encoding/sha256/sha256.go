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

// Package sha256 implements encoding.Coder over crypto/sha256, producing
// the raw 32-byte digest. Used by auth.hashPassword; pair with
// encoding/hexa to get the stored hex string.
package sha256

import (
	"crypto/sha256"
	"hash"

	libenc "github.com/sabouaram/securetalk/encoding"
)

type crt struct {
	hsh hash.Hash
}

// New returns a fresh SHA-256 Coder.
func New() libenc.Coder {
	return &crt{hsh: sha256.New()}
}

func (o *crt) Encode(p []byte) []byte {
	if o.hsh == nil {
		return make([]byte, 0)
	}
	if len(p) > 0 {
		if _, err := o.hsh.Write(p); err != nil {
			return make([]byte, 0)
		}
	}
	return o.hsh.Sum(nil)
}

func (o *crt) Reset() {
	if o.hsh != nil {
		o.hsh.Reset()
	}
}
