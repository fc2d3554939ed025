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

// Package server is spec.md §5's bootstrap surface: it owns the registry,
// the two queues, the handler registry, the worker pool and the reactor,
// and brings them up/down in the order spec.md §5 names ("handler
// registry populated before start... reactor accepts connections only
// after the worker pool is running").
package server

import (
	"context"
	"runtime"
	"time"

	"github.com/sabouaram/securetalk/apperr"
	"github.com/sabouaram/securetalk/dispatch"
	liberr "github.com/sabouaram/securetalk/errors"
	"github.com/sabouaram/securetalk/logging"
	"github.com/sabouaram/securetalk/metrics"
	"github.com/sabouaram/securetalk/msgtype"
	"github.com/sabouaram/securetalk/queue"
	"github.com/sabouaram/securetalk/reactor"
	"github.com/sabouaram/securetalk/registry"
)

// Config is the subset of bootstrap settings server.Server needs; callers
// typically build this from a loaded config.Server.
type Config struct {
	Port              uint32
	MaxWorkerThreads  int
	MaxFrameBodyBytes uint32
	InboundQueueSize  int
	OutboundQueueSize int

	// HeartbeatInterval, if positive, starts a dispatch.Ticker alongside
	// the reactor that broadcasts a heartbeat frame to every connected
	// client on this interval (SPEC_FULL.md §12). Zero disables it.
	HeartbeatInterval time.Duration
}

// Server wires the registry, queues, dispatcher and reactor together and
// owns their lifecycle. Handlers must be registered (via Handlers) before
// Start.
type Server struct {
	cfg Config
	log logging.Logger
	mtr *metrics.Collectors

	reg      *registry.Registry
	inbound  *queue.Queue
	outbound *queue.Queue
	handlers *dispatch.Registry
	pool     *dispatch.Pool
	rx       *reactor.Reactor
	beat     *dispatch.Ticker

	runErr chan error
}

// New builds every component but does not yet accept connections — call
// Handlers() to populate the dispatch table, then Start().
func New(cfg Config, log logging.Logger, mtr *metrics.Collectors) *Server {
	size := cfg.MaxWorkerThreads
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		mtr:      mtr,
		reg:      registry.New(),
		inbound:  queue.New(cfg.InboundQueueSize),
		outbound: queue.New(cfg.OutboundQueueSize),
		runErr:   make(chan error, 1),
	}
	s.handlers = dispatch.NewRegistry(func(t msgtype.MsgType) {
		s.log.Warn("handler registered after start", logging.Fields{"msgtype": t.String()})
	})
	s.pool = dispatch.NewPool(size, s.handlers, s.inbound, s.outbound, log, mtr)
	return s
}

// Handlers returns the dispatch registry so callers can populate it
// (typically via handlers.Register) before calling Start.
func (s *Server) Handlers() *dispatch.Registry {
	return s.handlers
}

// Registry exposes the live connection registry, e.g. for adminhttp's
// /healthz connection count.
func (s *Server) Registry() *registry.Registry {
	return s.reg
}

// Start brings the worker pool up, then the reactor's listening socket,
// then spawns the reactor's event loop goroutine (spec.md §5's ordering).
// Start errors are synchronous (listen/epoll setup failures); a runtime
// failure of Run after Start returns is delivered on Err().
func (s *Server) Start() liberr.Error {
	s.handlers.MarkStarted()
	s.pool.Start()

	rx, err := reactor.New(s.cfg.Port, s.cfg.MaxFrameBodyBytes, s.reg, s.inbound, s.outbound, s.log, s.mtr)
	if err != nil {
		s.pool.Stop()
		return apperr.New(apperr.CodeListenFailed, "start reactor", err)
	}
	s.rx = rx

	go func() {
		if runErr := s.rx.Run(); runErr != nil {
			s.runErr <- runErr
		}
	}()

	if s.cfg.HeartbeatInterval > 0 {
		s.beat = dispatch.New(s.cfg.HeartbeatInterval, func(ctx context.Context, tck *time.Ticker) error {
			s.rx.RequestHeartbeat()
			return nil
		})
		if err := s.beat.Start(context.Background()); err != nil {
			return apperr.New(apperr.CodeListenFailed, "start heartbeat ticker", err)
		}
	}

	return nil
}

// Port returns the TCP port the reactor is bound to, useful when Config.Port
// was 0 and the kernel picked an ephemeral one.
func (s *Server) Port() (int, error) {
	return s.rx.Port()
}

// Err returns a channel that receives at most one error if the reactor's
// event loop exits abnormally.
func (s *Server) Err() <-chan error {
	return s.runErr
}

// Stop performs spec.md §5's shutdown sequence: stop the reactor's event
// loop, wait for its goroutine to actually exit, tear its connections and
// queues down, then join the worker pool. Teardown touches the registry
// and the reactor's fds — state reserved to the reactor goroutine — so it
// must never run concurrently with a still-live Run (see reactor.Wait).
func (s *Server) Stop() {
	if s.beat != nil {
		s.beat.Stop(context.Background())
	}
	s.rx.Close()
	s.rx.Wait()
	s.rx.Teardown()
	s.pool.Stop()
}
