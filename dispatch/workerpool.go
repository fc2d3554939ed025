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

package dispatch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sabouaram/securetalk/logging"
	"github.com/sabouaram/securetalk/metrics"
	"github.com/sabouaram/securetalk/queue"
)

// Pool is spec.md §4.4/§5's fixed worker pool: Size long-lived goroutines,
// each blocking on the inbound queue's Pop, looking up a handler, invoking
// it, and pushing any reply onto the outbound queue.
//
// Each worker additionally acquires a weighted semaphore ticket before
// invoking a handler (golang.org/x/sync/semaphore, already part of the
// teacher's go.mod). The semaphore's weight equals Size and a worker holds
// at most one ticket, so Acquire never waits: concurrent handler
// invocations are bounded by the worker count itself, and the tickets
// held are what the WorkersBusy gauge reports.
type Pool struct {
	size     int
	handlers *Registry
	inbound  *queue.Queue
	outbound *queue.Queue
	sem      *semaphore.Weighted
	log      logging.Logger
	mtr      *metrics.Collectors

	wg   sync.WaitGroup
	once sync.Once
}

// NewPool builds a worker pool of the given size. server.New passes
// runtime.GOMAXPROCS(0) when the config value is <= 0 (spec.md §4.4:
// "defaulting to the hardware parallelism hint"); NewPool itself uses 1
// for a size <= 0. mtr may be nil.
func NewPool(size int, handlers *Registry, inbound, outbound *queue.Queue, log logging.Logger, mtr *metrics.Collectors) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size:     size,
		handlers: handlers,
		inbound:  inbound,
		outbound: outbound,
		sem:      semaphore.NewWeighted(int64(size)),
		log:      log,
		mtr:      mtr,
	}
}

// Start launches the fixed set of worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Stop signals shutdown by closing the inbound queue (spec.md §5: "wake
// all workers via the condition; each worker exits when it observes stop
// with an empty inbound queue") and waits for every worker to exit.
// Handlers already running are allowed to complete; their replies are
// pushed onto the outbound queue, which server.Stop has already cleared
// and which the stopped reactor no longer drains, so they are never
// delivered (spec.md §5 "Handlers already running are allowed to
// complete; their replies are dropped").
func (p *Pool) Stop() {
	p.once.Do(p.inbound.Close)
	p.wg.Wait()
}

func (p *Pool) run(workerID int) {
	defer p.wg.Done()

	for {
		frame, ok := p.inbound.Pop()
		if !ok {
			return // queue closed and drained: shutdown
		}
		p.dispatch(workerID, frame)
	}
}

func (p *Pool) dispatch(workerID int, in queue.Frame) {
	h, found := p.handlers.Lookup(in.Type)
	if !found {
		// Dispatch miss (spec.md §7): drop with a warning, connection stays open.
		p.log.Warn("dispatch miss: no handler registered for message type", logging.Fields{
			"worker":  workerID,
			"msgtype": in.Type.String(),
			"client":  in.Client.String(),
		})
		if p.mtr != nil {
			p.mtr.DispatchMiss.Inc()
		}
		return
	}

	if err := p.sem.Acquire(context.Background(), 1); err != nil {
		return // only fails if context is canceled, which Background never is
	}
	if p.mtr != nil {
		p.mtr.WorkersBusy.Inc()
	}
	defer p.sem.Release(1)
	defer func() {
		if p.mtr != nil {
			p.mtr.WorkersBusy.Dec()
		}
	}()

	out := p.invoke(workerID, h, in)
	if out == nil {
		return
	}
	p.outbound.Push(*out)
}

// invoke runs the handler and recovers from a panic so one bad handler
// can never bring down the pool (spec.md §7: "A handler that throws or
// panics must be contained by the worker").
func (p *Pool) invoke(workerID int, h Handler, in queue.Frame) (out *queue.Frame) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("handler panicked", logging.Fields{
				"worker":  workerID,
				"msgtype": in.Type.String(),
				"client":  in.Client.String(),
			}, fmt.Errorf("%v", r))
			out = nil
		}
	}()

	to, typ, body := h(in.Client, in.Body)
	if len(body) == 0 {
		return nil // empty reply: no reply (spec.md §4.4 step 5)
	}
	return &queue.Frame{Client: to, Type: typ, Body: body}
}
