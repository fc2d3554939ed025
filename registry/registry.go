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

// Package registry implements spec.md §4.2's connection registry: the
// bidirectional ClientID<->*connstate.State mapping. It is deliberately
// NOT thread-safe — only the reactor thread is ever allowed to touch it
// (spec.md §4.2, §5 "Connection registry, ConnectionStates... reactor-
// exclusive. Workers must never touch them").
package registry

import (
	"github.com/sabouaram/securetalk/apperr"
	"github.com/sabouaram/securetalk/clientid"
	"github.com/sabouaram/securetalk/connstate"
	liberr "github.com/sabouaram/securetalk/errors"
)

// Registry holds the live-connection set. Zero value is not usable; use New.
type Registry struct {
	byID map[clientid.ID]*connstate.State
	byFd map[int]clientid.ID
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byID: make(map[clientid.ID]*connstate.State),
		byFd: make(map[int]clientid.ID),
	}
}

// Insert adds a freshly accepted connection. It is a programmer error for
// the same ClientID to be inserted twice (spec.md §4.2: "fails if the
// ClientID already exists (must be impossible by construction)"), since
// ClientID is minted fresh per accept; Insert returns an error rather
// than panicking so a caller can log and close defensively instead.
func (r *Registry) Insert(st *connstate.State) liberr.Error {
	if _, exists := r.byID[st.ID]; exists {
		return apperr.New(apperr.CodeHandlerExists, "clientID already registered: "+st.ID.String())
	}
	r.byID[st.ID] = st
	r.byFd[st.Fd] = st.ID
	return nil
}

// LookupByID returns the connection state for id, or (nil, false) if the
// connection has since closed. Used to deliver outbound frames (spec.md
// §4.3 "Outbound queue drain").
func (r *Registry) LookupByID(id clientid.ID) (*connstate.State, bool) {
	st, ok := r.byID[id]
	return st, ok
}

// LookupByFd returns the connection state registered for a given fd, used
// by the reactor when the multiplexer reports a readiness event keyed by
// fd rather than ClientID.
func (r *Registry) LookupByFd(fd int) (*connstate.State, bool) {
	id, ok := r.byFd[fd]
	if !ok {
		return nil, false
	}
	return r.LookupByID(id)
}

// RemoveByState evicts both directions of the mapping for st. Used on
// close (spec.md §4.5); idempotent — removing an already-absent state is
// a no-op.
func (r *Registry) RemoveByState(st *connstate.State) {
	if st == nil {
		return
	}
	delete(r.byID, st.ID)
	delete(r.byFd, st.Fd)
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.byID)
}

// Iter calls fn for every live connection, in unspecified order. Stops
// early if fn returns false. Reactor-only traversal (spec.md §4.2).
func (r *Registry) Iter(fn func(*connstate.State) bool) {
	for _, st := range r.byID {
		if !fn(st) {
			return
		}
	}
}

// Invariant reports whether the two maps are mutually inverse — used by
// tests (spec.md §8: "After any sequence of accept/close operations, the
// two registry maps remain mutually inverse").
func (r *Registry) Invariant() bool {
	if len(r.byID) != len(r.byFd) {
		return false
	}
	for fd, id := range r.byFd {
		st, ok := r.byID[id]
		if !ok || st.Fd != fd {
			return false
		}
	}
	return true
}
