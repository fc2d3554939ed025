//go:build linux

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

// Package reactor implements spec.md §4.3's I/O reactor: a single
// goroutine event loop using epoll as the readiness multiplexer, exactly
// the "reactor primitive that reports readable/writable events per
// registered file descriptor" the spec assumes. Built directly on
// golang.org/x/sys/unix rather than net.Listener/net.Conn so that this
// package — not the Go runtime's own netpoller — owns accept, read,
// write and close, matching spec.md §9's ownership and readiness-event
// design notes.
package reactor

import (
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/securetalk/apperr"
	"github.com/sabouaram/securetalk/clientid"
	"github.com/sabouaram/securetalk/connstate"
	liberr "github.com/sabouaram/securetalk/errors"
	"github.com/sabouaram/securetalk/frame"
	"github.com/sabouaram/securetalk/logging"
	"github.com/sabouaram/securetalk/metrics"
	"github.com/sabouaram/securetalk/msgtype"
	"github.com/sabouaram/securetalk/queue"
	"github.com/sabouaram/securetalk/registry"
)

// maxEventsPerIter bounds both how many epoll events and how many
// outbound-queue frames are drained per loop iteration (spec.md §4.3
// "Starvation policy"): neither source may monopolize the loop.
const maxEventsPerIter = 256

const readScratchSize = 64 * 1024

// Reactor is the single-threaded event loop. Create with New, drive with
// Run on a dedicated goroutine, stop with Close.
type Reactor struct {
	epfd      int
	listenFd  int
	reg       *registry.Registry
	inbound   *queue.Queue
	outbound  *queue.Queue
	log       logging.Logger
	mtr       *metrics.Collectors
	maxBody   uint32
	scratch   []byte
	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
	heartbeat chan struct{}
}

// New creates the listening socket and epoll instance, but does not yet
// accept connections — that happens inside Run. Failure here is
// spec.md §7's "Server-fatal" case and is returned, not panicked. mtr may
// be nil, in which case no metrics are recorded.
func New(port uint32, maxBodyLen uint32, reg *registry.Registry, inbound, outbound *queue.Queue, log logging.Logger, mtr *metrics.Collectors) (*Reactor, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, asError(apperr.CodeListenFailed, "create listen socket", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, asError(apperr.CodeListenFailed, "set SO_REUSEADDR", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		// Not fatal on every kernel; log-worthy only, caller's Reactor.log
		// is not yet constructed at this point so it is silently ignored,
		// matching the original source which also treats SO_REUSEPORT as
		// best-effort on some platforms.
		_ = err
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: int(port)}); err != nil {
		unix.Close(fd)
		return nil, asError(apperr.CodeListenFailed, "bind", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, asError(apperr.CodeListenFailed, "listen", err)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(fd)
		return nil, asError(apperr.CodeMultiplexerInit, "epoll_create1", err)
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}); err != nil {
		unix.Close(epfd)
		unix.Close(fd)
		return nil, asError(apperr.CodeMultiplexerInit, "epoll_ctl add listener", err)
	}

	if maxBodyLen == 0 {
		maxBodyLen = frame.DefaultMaxBodyLen
	}

	return &Reactor{
		epfd:     epfd,
		listenFd: fd,
		reg:      reg,
		inbound:  inbound,
		outbound: outbound,
		log:      log,
		mtr:      mtr,
		maxBody:  maxBodyLen,
		scratch:  make([]byte, readScratchSize),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		heartbeat: make(chan struct{}, 1),
	}, nil
}

func asError(code uint16, what string, err error) liberr.Error {
	return apperr.New(code, what, err)
}

// Port returns the TCP port the listener is bound to — useful when New
// was called with port 0 to let the kernel pick an ephemeral port (tests
// do this to avoid colliding on a fixed port).
func (r *Reactor) Port() (int, error) {
	sa, err := unix.Getsockname(r.listenFd)
	if err != nil {
		return 0, err
	}
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return v.Port, nil
	case *unix.SockaddrInet6:
		return v.Port, nil
	default:
		return 0, nil
	}
}

// Run drives the event loop until Close is called. It returns nil on a
// clean shutdown.
func (r *Reactor) Run() error {
	defer close(r.doneCh)

	events := make([]unix.EpollEvent, maxEventsPerIter)

	for {
		select {
		case <-r.stopCh:
			return nil
		case <-r.heartbeat:
			r.broadcastHeartbeat()
		default:
		}

		n, err := unix.EpollWait(r.epfd, events, 100 /* ms, so we re-check stopCh periodically */)
		if err != nil {
			if err == unix.EINTR {
				continue // transient (spec.md §7)
			}
			return asError(apperr.CodeMultiplexerInit, "epoll_wait", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			switch {
			case fd == r.listenFd:
				r.acceptAll()
			default:
				if events[i].Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
					r.closeByFd(fd)
					continue
				}
				if events[i].Events&unix.EPOLLIN != 0 {
					r.readable(fd)
				}
				if events[i].Events&unix.EPOLLOUT != 0 {
					r.writable(fd)
				}
			}
		}

		r.drainOutbound()
	}
}

// Close signals Run to return on its next loop iteration; it does not
// wait for Run and does not close any connection. The rest of the
// reactor's share of shutdown (spec.md §5: "The reactor then closes every
// live connection... clears both queues... joins all workers") is Wait
// followed by Teardown; the worker join itself is server.go's job.
func (r *Reactor) Close() {
	r.closeOnce.Do(func() {
		close(r.stopCh)
	})
}

// RequestHeartbeat asks the reactor to broadcast a heartbeat frame to
// every connected client on its next loop iteration. Safe to call from
// any goroutine (a dispatch.Ticker, typically) — the broadcast itself
// only ever runs on the reactor goroutine, since it walks the
// registry's reactor-exclusive map (spec.md §4.2/§5). Non-blocking: a
// pending request already queued is reused rather than doubled up.
func (r *Reactor) RequestHeartbeat() {
	select {
	case r.heartbeat <- struct{}{}:
	default:
	}
}

// Wait blocks until Run has returned. Teardown mutates the registry map
// and closes the epoll/listener fds — state spec.md §4.2/§5 declares
// reactor-exclusive — so callers must Wait after Close and before
// Teardown, or risk Teardown racing the still-running Run goroutine over
// that same state.
func (r *Reactor) Wait() {
	<-r.doneCh
}

// Teardown performs the post-Run cleanup: close every live connection,
// clear the queues, close the listener and epoll fd. Call after Run has
// returned (see Wait).
func (r *Reactor) Teardown() {
	r.reg.Iter(func(st *connstate.State) bool {
		r.closeState(st)
		return true
	})
	r.inbound.Clear()
	r.outbound.Clear()
	unix.Close(r.listenFd)
	unix.Close(r.epfd)
}

// --- Listener readable (spec.md §4.3) ---

func (r *Reactor) acceptAll() {
	for {
		nfd, sa, err := unix.Accept4(r.listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EINTR {
				continue
			}
			r.log.Warn("accept failed", logging.Fields{"error": err.Error()})
			return
		}

		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, nfd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(nfd)}); err != nil {
			r.log.Warn("epoll_ctl add client failed", logging.Fields{"error": err.Error()})
			unix.Close(nfd)
			continue
		}

		id := clientid.New()
		st := connstate.New(id, nfd, sockaddrToNetAddr(sa))
		if ierr := r.reg.Insert(st); ierr != nil {
			// Impossible by construction (spec.md §4.2) — freshly minted
			// ClientID can never already be registered. Defensive only.
			r.log.Error("registry insert failed for freshly accepted connection", nil, ierr)
			unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, nfd, nil)
			unix.Close(nfd)
			continue
		}

		if r.mtr != nil {
			r.mtr.ConnectionsOpen.Inc()
		}
		r.log.Debug("accepted connection", logging.Fields{"client": id.String(), "fd": nfd})
	}
}

func sockaddrToNetAddr(sa unix.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	default:
		return nil
	}
}

// --- Client readable (spec.md §4.3) ---

func (r *Reactor) readable(fd int) {
	st, ok := r.reg.LookupByFd(fd)
	if !ok {
		return // already closed
	}

	for {
		n, err := unix.Read(fd, r.scratch)
		if n > 0 {
			st.AppendInbound(r.scratch[:n])
			st.Touch()
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			if err == unix.EINTR {
				continue
			}
			// Per-connection fatal (spec.md §7).
			r.closeState(st)
			return
		}
		if n == 0 {
			// EOF.
			r.closeState(st)
			return
		}
		if n < len(r.scratch) {
			break // short read: socket drained for now
		}
	}

	r.decodeLoop(st)
}

func (r *Reactor) decodeLoop(st *connstate.State) {
	for {
		fr, remainder, status := frame.Decode(st.Inbound, r.maxBody)
		switch status {
		case frame.Ready:
			st.ConsumeInbound(remainder)
			if r.inbound.TryPush(queue.Frame{Client: st.ID, Type: fr.Type, Body: fr.Body}) {
				if r.mtr != nil {
					r.mtr.FramesIn.Inc()
				}
			} else {
				// Non-blocking by construction (spec.md §5: "Neither ever
				// blocks on the other") — a saturated inbound queue means
				// the worker pool is lagging, not a reason to stall every
				// other connection's readiness handling.
				r.log.Warn("inbound queue full, dropping frame", logging.Fields{"client": st.ID.String()})
				if r.mtr != nil {
					r.mtr.InboundDropped.Inc()
				}
			}
		case frame.Incomplete:
			return
		case frame.Malformed:
			r.log.Warn("malformed frame, closing connection", logging.Fields{"client": st.ID.String()})
			if r.mtr != nil {
				r.mtr.DecodeErrors.Inc()
			}
			r.closeState(st)
			return
		}
	}
}

// --- Client writable (spec.md §4.3) ---

func (r *Reactor) writable(fd int) {
	st, ok := r.reg.LookupByFd(fd)
	if !ok {
		return
	}
	r.flush(st)
}

func (r *Reactor) flush(st *connstate.State) {
	for len(st.Outbound) > 0 {
		n, err := unix.Write(st.Fd, st.Outbound)
		if n > 0 {
			st.ConsumeOutbound(n)
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			if err == unix.EINTR {
				continue
			}
			r.closeState(st)
			return
		}
		if n == 0 {
			break
		}
	}

	wantWrite := len(st.Outbound) > 0
	if wantWrite != st.WantWrite {
		r.setInterest(st, wantWrite)
	}
}

// setInterest assigns the epoll interest mask for a connection's fd as a
// whole value, never ORing against stale bits (spec.md §9's readiness-
// event design note calls out exactly this bug in the original source).
func (r *Reactor) setInterest(st *connstate.State, wantWrite bool) {
	events := uint32(unix.EPOLLIN)
	if wantWrite {
		events |= unix.EPOLLOUT
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, st.Fd, &unix.EpollEvent{Events: events, Fd: int32(st.Fd)}); err != nil {
		r.log.Warn("epoll_ctl mod failed", logging.Fields{"client": st.ID.String(), "error": err.Error()})
		return
	}
	st.WantWrite = wantWrite
}

// --- Outbound queue drain (spec.md §4.3) ---

func (r *Reactor) drainOutbound() {
	frames := r.outbound.PopAll()
	if len(frames) == 0 {
		return
	}
	if len(frames) > maxEventsPerIter {
		// Starvation policy: service the rest next iteration rather than
		// let an outbound burst starve socket readiness handling.
		rest := frames[maxEventsPerIter:]
		frames = frames[:maxEventsPerIter]
		go func(rest []queue.Frame) {
			for _, f := range rest {
				r.outbound.Push(f)
			}
		}(rest)
	}

	for _, f := range frames {
		st, ok := r.reg.LookupByID(f.Client)
		if !ok {
			continue // vanished client (spec.md §7): silent drop
		}
		st.EnqueueOutbound(frame.Encode(f.Type, f.Body))
		r.flush(st)
		if r.mtr != nil {
			r.mtr.FramesOut.Inc()
		}
	}
}

// broadcastHeartbeat walks every live connection and enqueues a heartbeat
// frame, matching SPEC_FULL.md §12's periodic server-initiated broadcast.
// Runs only on the reactor goroutine (called from Run's select above),
// so iterating r.reg here never races the accept/read/write handlers.
func (r *Reactor) broadcastHeartbeat() {
	body := []byte("ping")
	r.reg.Iter(func(st *connstate.State) bool {
		st.EnqueueOutbound(frame.Encode(msgtype.Heartbeat, body))
		r.flush(st)
		if r.mtr != nil {
			r.mtr.FramesOut.Inc()
		}
		return true
	})
}

// --- Close (spec.md §4.5) ---

func (r *Reactor) closeByFd(fd int) {
	if st, ok := r.reg.LookupByFd(fd); ok {
		r.closeState(st)
	}
}

func (r *Reactor) closeState(st *connstate.State) {
	r.reg.RemoveByState(st)
	unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, st.Fd, nil)
	unix.Close(st.Fd)
	if r.mtr != nil {
		r.mtr.ConnectionsOpen.Dec()
	}
}

// IdleSince reports how long a connection has been idle. Exposed for a
// future idle-reaping policy (spec.md §9 Open Question); nothing in this
// package evicts connections on a timer today.
func (r *Reactor) IdleSince(id clientid.ID) (time.Duration, bool) {
	st, ok := r.reg.LookupByID(id)
	if !ok {
		return 0, false
	}
	return time.Since(st.LastActive), true
}
