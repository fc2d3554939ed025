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

// Package connstate implements spec.md §3's ConnectionState: the
// per-client record owned exclusively by the connection registry and
// mutated only by the reactor thread. Workers never touch a State
// directly (spec.md §4.2, §5).
package connstate

import (
	"net"
	"time"

	"github.com/sabouaram/securetalk/clientid"
)

// State is one live connection's record: socket handle, peer address,
// inbound/outbound byte buffers, last-activity timestamp and the
// ClientID minted for it at accept time.
//
// Fd is the raw file descriptor registered with the reactor's readiness
// multiplexer. Per spec.md §9's "raw ownership" design note, the
// multiplexer only ever sees Fd (a plain int, not a pointer) as its
// event-data key; the registry is what resolves Fd/ClientID back to this
// owned struct, under the reactor's own single-threaded discipline.
type State struct {
	ID       clientid.ID
	Fd       int
	PeerAddr net.Addr

	Inbound  []byte
	Outbound []byte

	LastActive time.Time

	// WantWrite records whether this connection's fd currently has
	// writable-interest registered with the multiplexer (spec.md §4.3:
	// "When the buffer becomes empty, deregister writable-interest").
	WantWrite bool
}

// New creates a fresh State for a just-accepted connection. Called on the
// reactor thread only.
func New(id clientid.ID, fd int, peer net.Addr) *State {
	return &State{
		ID:         id,
		Fd:         fd,
		PeerAddr:   peer,
		LastActive: time.Now(),
	}
}

// Touch updates the last-activity timestamp. Reactor-thread only.
func (s *State) Touch() {
	s.LastActive = time.Now()
}

// AppendInbound appends freshly-read bytes to the inbound buffer's tail.
func (s *State) AppendInbound(p []byte) {
	s.Inbound = append(s.Inbound, p...)
}

// ConsumeInbound drops the frame codec's remainder back in as the new
// inbound buffer, after Decode has removed a complete frame from the head.
func (s *State) ConsumeInbound(remainder []byte) {
	s.Inbound = remainder
}

// EnqueueOutbound appends an encoded frame to the outbound buffer's tail
// (spec.md §3: "bytes are only appended at the tail").
func (s *State) EnqueueOutbound(p []byte) {
	s.Outbound = append(s.Outbound, p...)
}

// ConsumeOutbound removes n bytes from the outbound buffer's head after
// a successful write (spec.md §3: "only consumed at the head").
func (s *State) ConsumeOutbound(n int) {
	s.Outbound = s.Outbound[n:]
}
