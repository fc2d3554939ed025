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
	"sync"
	"time"
)

// defaultDuration is substituted whenever New is given a duration too
// small to be a deliberate interval (zero, negative, or sub-millisecond).
const defaultDuration = 30 * time.Second

const minDuration = time.Millisecond

// Ticker runs fn on a fixed interval until Stop, on its own goroutine.
// It exists to give the server's periodic housekeeping (today: the
// heartbeat broadcast, see server.Server) a named, restartable component
// instead of an ad-hoc time.Ticker wired into Start/Stop by hand.
type Ticker struct {
	d  time.Duration
	fn func(ctx context.Context, tck *time.Ticker) error

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	started time.Time
	done    chan struct{}
}

// New builds a Ticker that calls fn every d once started. A nil fn is
// tolerated (Start simply runs a no-op loop); a degenerate d falls back
// to defaultDuration. New never returns nil.
func New(d time.Duration, fn func(ctx context.Context, tck *time.Ticker) error) *Ticker {
	if d < minDuration {
		d = defaultDuration
	}
	return &Ticker{d: d, fn: fn}
}

// Start launches the ticking goroutine. Calling Start while already
// running is a no-op.
func (t *Ticker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.started = time.Now()
	t.running = true
	t.done = make(chan struct{})

	go t.loop(runCtx, t.done)
	return nil
}

func (t *Ticker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	tck := time.NewTicker(t.d)
	defer tck.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tck.C:
			if t.fn != nil {
				_ = t.fn(ctx, tck)
			}
		}
	}
}

// Stop halts the ticking goroutine and waits for it to exit. Calling Stop
// when not running is a no-op.
func (t *Ticker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	cancel := t.cancel
	done := t.done
	t.running = false
	t.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Restart stops then starts the ticker, resetting Uptime.
func (t *Ticker) Restart(ctx context.Context) error {
	if err := t.Stop(ctx); err != nil {
		return err
	}
	return t.Start(ctx)
}

// IsRunning reports whether the ticker is currently active.
func (t *Ticker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Uptime reports how long the ticker has been running since its last
// Start/Restart, or zero if it is not running.
func (t *Ticker) Uptime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	return time.Since(t.started)
}
