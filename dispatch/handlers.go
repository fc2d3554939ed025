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

// Package dispatch implements spec.md §4.4's handler dispatcher and
// worker pool: a fixed set of worker goroutines that pop InboundFrames,
// look up the handler registered for the frame's MsgType, invoke it off
// the I/O thread, and push any non-empty reply onto the outbound queue.
package dispatch

import (
	"sync"

	libatm "github.com/sabouaram/securetalk/atomic"

	"github.com/sabouaram/securetalk/clientid"
	"github.com/sabouaram/securetalk/msgtype"
)

// Handler is spec.md §6's handler interface: a function of
// (ClientID, body) -> (ClientID, MsgType, body). The returned ClientID
// need not equal the inbound one (broadcasts); the returned body may be
// empty, in which case no reply is sent (spec.md §4.4 step 5).
type Handler func(from clientid.ID, body []byte) (to clientid.ID, typ msgtype.MsgType, body2 []byte)

// Registry is the handler lookup table. Populated before the reactor's
// Start(), read-only (and lock-free on the read path) thereafter — see
// spec.md §5 "Handler registry: populated before start(), read-only
// thereafter. No lock needed in the steady state; a mutation after start
// is a programmer error."
//
// It is built directly on the teacher's generic atomic.MapTyped, a
// sync.Map-backed concurrent map, rather than a plain map+mutex: this
// gives Register/Unregister safe concurrent access for free, which in
// turn is what lets Registry honor spec.md §9's suggested redesign ("a
// copy-on-write table to admit late registration") without extra
// plumbing — Register after Start is still accepted, just logged as a
// misuse by the caller's logger, instead of racing a bare map.
type Registry struct {
	mu      sync.Mutex
	started bool
	table   libatm.MapTyped[msgtype.MsgType, Handler]
	onLate  func(msgtype.MsgType)
}

// NewRegistry returns an empty handler Registry. onLateRegister, if
// non-nil, is invoked whenever Register/Unregister is called after
// MarkStarted — spec.md documents this as "undefined" in the original
// source; this implementation defines it as allowed-but-logged.
func NewRegistry(onLateRegister func(msgtype.MsgType)) *Registry {
	return &Registry{
		table:  libatm.NewMapTyped[msgtype.MsgType, Handler](),
		onLate: onLateRegister,
	}
}

// Register installs handler for typ, replacing any previous registration.
func (r *Registry) Register(typ msgtype.MsgType, h Handler) {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()

	if started && r.onLate != nil {
		r.onLate(typ)
	}
	r.table.Store(typ, h)
}

// Unregister removes the handler for typ, if any.
func (r *Registry) Unregister(typ msgtype.MsgType) {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()

	if started && r.onLate != nil {
		r.onLate(typ)
	}
	r.table.Delete(typ)
}

// Lookup returns the handler for typ, or (nil, false) if none registered
// (spec.md §4.4 step 3: "If none, drop the frame").
func (r *Registry) Lookup(typ msgtype.MsgType) (Handler, bool) {
	h, ok := r.table.Load(typ)
	if !ok || h == nil {
		return nil, false
	}
	return h, true
}

// MarkStarted freezes the registry against the "must register before
// start" contract (spec.md §6); further mutation is still accepted but
// flagged via onLateRegister.
func (r *Registry) MarkStarted() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
}
