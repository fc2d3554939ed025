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

// Package apperr defines this repository's own error-code range on top of
// the teacher's github.com/sabouaram/securetalk/errors package, following
// the MinPkgXxx convention in errors/modules.go (each package there reserves
// a block of CodeError values; the securetalk core reserves 9000-9099).
package apperr

import (
	liberr "github.com/sabouaram/securetalk/errors"
)

const (
	minPkgCore uint16 = 9000

	CodeListenFailed     = minPkgCore + 1 // server-fatal: listen socket could not be created/bound
	CodeMultiplexerInit  = minPkgCore + 2 // server-fatal: epoll instance could not be created
	CodeFrameMalformed   = minPkgCore + 3 // per-connection-fatal: oversized/invalid frame header
	CodeConnectionClosed = minPkgCore + 4 // outbound-to-vanished-client (informational, never surfaced as fatal)
	CodeHandlerExists    = minPkgCore + 5 // registry.Insert called with a ClientID that is already registered
	CodeAuthStore        = minPkgCore + 6 // credential store I/O failure
	CodeConfigInvalid    = minPkgCore + 7 // bootstrap configuration failure
)

// New wraps errors.New with the given apperr code.
func New(code uint16, message string, parent ...error) liberr.Error {
	return liberr.New(code, message, parent...)
}
