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

// Package queue implements the two bounded FIFOs spec.md §5 places between
// the reactor and the worker pool: an inbound queue (reactor pushes,
// workers pop, condition-signaled) and an outbound queue (workers push,
// reactor pops). Both are internally a mutex + slice + sync.Cond rather
// than a buffered channel, so that Close can wake every blocked popper
// deterministically and PopAll can drain the whole backlog in one pass
// (spec.md §4.3's "Outbound queue drain" requires exactly that).
package queue

import (
	"sync"

	"github.com/sabouaram/securetalk/clientid"
	"github.com/sabouaram/securetalk/msgtype"
)

// Frame is the unit exchanged between the reactor and the worker pool:
// spec.md §3's InboundFrame/OutboundFrame share this shape.
type Frame struct {
	Client clientid.ID
	Type   msgtype.MsgType
	Body   []byte
}

// Queue is a FIFO of Frame, capacity-bounded, safe for many producers and
// many consumers.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Frame
	cap    int
	closed bool
}

// New returns a Queue that blocks Push once it holds capacity items.
// capacity <= 0 means unbounded.
func New(capacity int) *Queue {
	q := &Queue{cap: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a frame at the tail and signals one waiting Pop. It
// blocks while the queue is at capacity and open; it is a no-op once
// Close has been called (mirrors spec.md §5's shutdown rule: "No new
// frames are accepted once shutdown begins").
func (q *Queue) Push(f Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.cap > 0 && len(q.items) >= q.cap && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return
	}
	q.items = append(q.items, f)
	q.cond.Signal()
}

// TryPush enqueues f without ever blocking the caller: it reports false
// (and drops f) if the queue is already at capacity or closed. The
// reactor goroutine uses this instead of Push (spec.md §5: "Neither ever
// blocks on the other") — the reactor must keep servicing socket
// readiness and the outbound queue even if the worker pool is lagging.
func (q *Queue) TryPush(f Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || (q.cap > 0 && len(q.items) >= q.cap) {
		return false
	}
	q.items = append(q.items, f)
	q.cond.Signal()
	return true
}

// Pop blocks until a frame is available or the queue is closed. ok is
// false only when the queue is closed and drained.
func (q *Queue) Pop() (f Frame, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Frame{}, false
	}
	f, q.items = q.items[0], q.items[1:]
	q.cond.Signal() // wake a blocked Push, capacity freed up
	return f, true
}

// PopAll drains every currently queued frame without blocking. Used by
// the reactor's "Outbound queue drain" step (spec.md §4.3), which must
// not block the I/O loop waiting for more replies.
func (q *Queue) PopAll() []Frame {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	q.cond.Broadcast() // wake any blocked Push
	return out
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes every blocked Push/Pop. Per
// spec.md §5's shutdown sequence, the reactor "clears both queues" after
// Close; callers should follow Close with a drain of PopAll/Pop to avoid
// leaking the backlog.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Clear empties the queue without closing it.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.cond.Broadcast()
}
