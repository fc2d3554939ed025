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

// Package clientid implements spec.md §3's ClientID: a stable client
// identity independent of the OS socket handle. A ClientID is minted
// exactly once per accepted connection, at accept time, and never reused.
//
// Design note (spec.md §9 "Client identity vs file descriptor"): the
// original C++ source mixes the fd into ClientID equality/hashing, which
// is unsafe once the kernel recycles the fd after close. This type
// deliberately carries no fd; the fd lives on connstate.State instead.
package clientid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"
)

// ID is the (acceptTime, randomValue) pair that uniquely identifies a
// connection for its lifetime. Comparable, so it is safe to use as a map
// key (registry.go relies on this).
type ID struct {
	AcceptTime int64  // monotonic nanoseconds at accept time
	Random     uint64 // 64-bit value drawn uniformly at accept time
}

// nextMonotonic guarantees strictly increasing AcceptTime values even if
// two connections are accepted within the same clock tick, which matters
// for the uniqueness property spec.md §8 asks to be tested
// ("unique across the process lifetime with overwhelming probability").
var lastNano int64

func nextMonotonic() int64 {
	now := time.Now().UnixNano()
	for {
		prev := atomic.LoadInt64(&lastNano)
		next := now
		if next <= prev {
			next = prev + 1
		}
		if atomic.CompareAndSwapInt64(&lastNano, prev, next) {
			return next
		}
	}
}

func randomUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is unrecoverable; fall back to a weaker but
		// still unique-within-process source rather than panic mid-accept.
		return uint64(nextMonotonic())
	}
	return binary.BigEndian.Uint64(b[:])
}

// New mints a fresh ClientID. Called exactly once, on the reactor thread,
// per accepted connection (spec.md §4.3 "Listener readable").
func New() ID {
	return ID{
		AcceptTime: nextMonotonic(),
		Random:     randomUint64(),
	}
}

func (c ID) String() string {
	return fmt.Sprintf("%d.%016x", c.AcceptTime, c.Random)
}
