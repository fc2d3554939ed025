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

// Package metrics wires the server's runtime counters into
// github.com/prometheus/client_golang, the instrumentation library the
// rest of this repository's corpus reaches for (see SPEC_FULL.md §11).
// There is no teacher implementation to adapt here — the teacher's own
// prometheus package ships test files but no production types — so these
// collectors are built directly against the ecosystem library, registered
// on a dedicated registry rather than the global default so adminhttp can
// serve exactly this set and nothing pulled in by an import elsewhere.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles every gauge/counter a reactor, dispatch pool, or auth
// store needs to update. Construct once at bootstrap and share the pointer.
type Collectors struct {
	Registry *prometheus.Registry

	ConnectionsOpen prometheus.Gauge
	FramesIn        prometheus.Counter
	FramesOut       prometheus.Counter
	DispatchMiss    prometheus.Counter
	DecodeErrors    prometheus.Counter
	WorkersBusy     prometheus.Gauge
	InboundDropped  prometheus.Counter
}

// New creates a fresh registry and registers every collector on it.
func New() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		Registry: reg,
		ConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "securetalk",
			Name:      "connections_open",
			Help:      "Number of live client connections held by the registry.",
		}),
		FramesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "securetalk",
			Name:      "frames_in_total",
			Help:      "Total frames successfully decoded off client sockets.",
		}),
		FramesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "securetalk",
			Name:      "frames_out_total",
			Help:      "Total frames encoded and flushed to client sockets.",
		}),
		DispatchMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "securetalk",
			Name:      "dispatch_miss_total",
			Help:      "Total inbound frames dropped for lack of a registered handler.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "securetalk",
			Name:      "decode_errors_total",
			Help:      "Total connections closed due to a malformed frame header.",
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "securetalk",
			Name:      "workers_busy",
			Help:      "Number of worker-pool semaphore tickets currently held.",
		}),
		InboundDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "securetalk",
			Name:      "inbound_dropped_total",
			Help:      "Total inbound frames dropped because the inbound queue was full.",
		}),
	}

	reg.MustRegister(
		c.ConnectionsOpen,
		c.FramesIn,
		c.FramesOut,
		c.DispatchMiss,
		c.DecodeErrors,
		c.WorkersBusy,
		c.InboundDropped,
	)

	return c
}
