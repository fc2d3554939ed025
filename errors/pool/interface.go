/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package pool is config.Load's validation-error accumulator (SPEC_FULL.md
// §10.3): collect every configuration problem found in one validation pass
// instead of returning on the first one, so a misconfigured deployment sees
// every problem at once. Built on the same sequential-index-plus-atomic-map
// shape as the teacher's error pool, narrowed to Add/Error/Slice/Len
// (config.Load calls Add and Error) — Get/Set/Del/MaxId/Last/Clear had no
// caller in this repository and were dropped rather than kept as unused API.
package pool

import (
	"sync/atomic"

	libatm "github.com/sabouaram/securetalk/atomic"
)

// Pool accumulates validation errors with automatic sequential indexing.
type Pool interface {
	// Add appends one or more errors to the pool with automatic sequential
	// indexing. Nil errors are ignored and do not consume an index.
	Add(e ...error)

	// Error returns a combined error containing every error in the pool,
	// or nil if the pool is empty.
	Error() error

	// Slice returns every error currently in the pool. Order is not
	// guaranteed.
	Slice() []error

	// Len returns the count of errors currently in the pool.
	Len() uint64
}

// New creates an empty, ready-to-use validation error pool.
func New() Pool {
	return &mod{
		s: new(atomic.Uint64),
		l: libatm.NewMapTyped[uint64, error](),
	}
}
