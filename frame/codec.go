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

// Package frame implements spec.md §4.1's frame codec: pure functions
// translating between a byte stream and typed frames. No I/O, no state
// beyond the caller's buffer.
//
// Wire layout (spec.md §6):
//
//	offset 0, size 2: message type, big-endian uint16
//	offset 2, size 4: body length N, big-endian uint32
//	offset 6, size N: body, opaque bytes
package frame

import (
	"encoding/binary"

	"github.com/sabouaram/securetalk/apperr"
	liberr "github.com/sabouaram/securetalk/errors"
	"github.com/sabouaram/securetalk/msgtype"
)

// HeaderSize is the fixed 2+4 byte header length.
const HeaderSize = 6

// DefaultMaxBodyLen is the design default maximum body length (16 MiB)
// beyond which a declared body length is treated as Malformed.
const DefaultMaxBodyLen = 16 * 1024 * 1024

// Frame is one complete decoded message: a type tag and an opaque body.
type Frame struct {
	Type msgtype.MsgType
	Body []byte
}

// Status is the outcome of a single Decode call.
type Status int

const (
	// Ready means a complete frame was extracted from the buffer head.
	Ready Status = iota
	// Incomplete means not enough bytes are buffered yet; the buffer is
	// left untouched and the caller should wait for more reads.
	Incomplete
	// Malformed means the declared body length exceeds maxBodyLen; the
	// connection that produced this buffer must be closed (spec.md §7).
	Malformed
)

// Decode attempts to extract one complete frame from the head of buf.
//
//   - Ready: header and body are both present and are removed from buf's
//     head (a new slice, keeping buf's own backing array untouched beyond
//     that head is the caller's responsibility via the returned remainder).
//   - Incomplete: fewer than HeaderSize bytes buffered, or header present
//     but body not fully buffered yet; buf is returned unchanged.
//   - Malformed: the header's declared length exceeds maxBodyLen.
//
// Decode never blocks and never allocates beyond the returned frame body.
// Calling Decode repeatedly on the remainder extracts successive frames,
// which is what the reactor's read loop does (spec.md §4.3).
func Decode(buf []byte, maxBodyLen uint32) (fr Frame, remainder []byte, status Status) {
	if len(buf) < HeaderSize {
		return Frame{}, buf, Incomplete
	}

	typ := binary.BigEndian.Uint16(buf[0:2])
	bodyLen := binary.BigEndian.Uint32(buf[2:6])

	if bodyLen > maxBodyLen {
		return Frame{}, buf, Malformed
	}

	total := HeaderSize + int(bodyLen)
	if len(buf) < total {
		return Frame{}, buf, Incomplete
	}

	body := make([]byte, bodyLen)
	copy(body, buf[HeaderSize:total])

	return Frame{Type: msgtype.MsgType(typ), Body: body}, buf[total:], Ready
}

// Encode serializes (typ, body) into a wire-ready byte slice: 2-byte
// type, 4-byte length, then body verbatim. No escaping, no trailer.
// A nil or empty body is legal and produces a 6-byte frame (spec.md §9's
// open question on zero-length bodies: encode permits them).
func Encode(typ msgtype.MsgType, body []byte) []byte {
	out := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(typ))
	binary.BigEndian.PutUint32(out[2:6], uint32(len(body)))
	copy(out[HeaderSize:], body)
	return out
}

// ErrMalformed is returned by callers that want an error value (rather
// than the Status enum) when Decode reports Malformed, e.g. to log via
// the teacher's errors.Error before closing the connection.
func ErrMalformed(bodyLen uint32, maxBodyLen uint32) liberr.Error {
	return apperr.New(apperr.CodeFrameMalformed, "frame body length exceeds maximum")
}
