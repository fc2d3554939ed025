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

package reactor_test

import (
	"fmt"
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sabouaram/securetalk/clientid"
	"github.com/sabouaram/securetalk/dispatch"
	"github.com/sabouaram/securetalk/frame"
	"github.com/sabouaram/securetalk/logging"
	"github.com/sabouaram/securetalk/msgtype"
	"github.com/sabouaram/securetalk/queue"
	"github.com/sabouaram/securetalk/reactor"
	"github.com/sabouaram/securetalk/registry"
)

type testServer struct {
	r    *reactor.Reactor
	pool *dispatch.Pool
	port int
}

func startServer(reg func(*dispatch.Registry)) *testServer {
	log := logging.New(io.Discard, logrus.WarnLevel)
	reg0 := registry.New()
	inbound := queue.New(256)
	outbound := queue.New(256)

	re, err := reactor.New(0, frame.DefaultMaxBodyLen, reg0, inbound, outbound, log, nil)
	Expect(err).NotTo(HaveOccurred())

	handlers := dispatch.NewRegistry(nil)
	if reg != nil {
		reg(handlers)
	}
	pool := dispatch.NewPool(4, handlers, inbound, outbound, log, nil)
	pool.Start()

	go re.Run()

	port, err := re.Port()
	Expect(err).NotTo(HaveOccurred())

	return &testServer{r: re, pool: pool, port: port}
}

func (ts *testServer) stop() {
	ts.r.Close()
	ts.r.Wait()
	ts.r.Teardown()
	ts.pool.Stop()
}

func (ts *testServer) dial() net.Conn {
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", ts.port))
	Expect(err).NotTo(HaveOccurred())
	return conn
}

var _ = Describe("Reactor end-to-end", func() {
	var ts *testServer

	AfterEach(func() {
		if ts != nil {
			ts.stop()
			ts = nil
		}
	})

	It("echoes a frame split across writes, header included (spec.md §8 scenario 1)", func() {
		ts = startServer(func(h *dispatch.Registry) {
			h.Register(0x0007, func(from clientid.ID, body []byte) (clientid.ID, msgtype.MsgType, []byte) {
				return from, 0x0007, body
			})
		})

		conn := ts.dial()
		defer conn.Close()

		full := frame.Encode(0x0007, []byte("ping"))
		_, err := conn.Write(full[:3])
		Expect(err).NotTo(HaveOccurred())
		time.Sleep(20 * time.Millisecond)
		_, err = conn.Write(full[3:])
		Expect(err).NotTo(HaveOccurred())

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 64)
		n, err := readFull(conn, buf, frame.HeaderSize+4)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(frame.HeaderSize + 4))
		Expect(buf[frame.HeaderSize:n]).To(Equal([]byte("ping")))
	})

	It("tolerates an unknown message type and keeps servicing the connection (scenario 2)", func() {
		ts = startServer(func(h *dispatch.Registry) {
			h.Register(0x0007, func(from clientid.ID, body []byte) (clientid.ID, msgtype.MsgType, []byte) {
				return from, 0x0007, body
			})
		})

		conn := ts.dial()
		defer conn.Close()

		_, err := conn.Write(frame.Encode(0xFFFF, nil))
		Expect(err).NotTo(HaveOccurred())

		_, err = conn.Write(frame.Encode(0x0007, []byte("ok")))
		Expect(err).NotTo(HaveOccurred())

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 64)
		n, err := readFull(conn, buf, frame.HeaderSize+2)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf[frame.HeaderSize:n]).To(Equal([]byte("ok")))
	})

	It("closes the connection on an oversized frame header (scenario 3)", func() {
		ts = startServer(nil)
		conn := ts.dial()
		defer conn.Close()

		bad := make([]byte, frame.HeaderSize)
		bad[0], bad[1] = 0x00, 0x01
		bad[2], bad[3], bad[4], bad[5] = 0xFF, 0xFF, 0xFF, 0xFF
		_, err := conn.Write(bad)
		Expect(err).NotTo(HaveOccurred())

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 16)
		n, _ := conn.Read(buf)
		Expect(n).To(Equal(0)) // EOF: connection closed by server
	})

	It("drops a reply silently when the client disconnects before it is ready (scenario 4)", func() {
		replyReady := make(chan struct{})
		ts = startServer(func(h *dispatch.Registry) {
			h.Register(0x0010, func(from clientid.ID, body []byte) (clientid.ID, msgtype.MsgType, []byte) {
				time.Sleep(200 * time.Millisecond)
				close(replyReady)
				return from, 0x0010, []byte("late")
			})
		})

		conn := ts.dial()
		_, err := conn.Write(frame.Encode(0x0010, nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(conn.Close()).To(Succeed())

		Eventually(replyReady, time.Second).Should(BeClosed())
		// No crash, no panic: the outbound frame silently misses the
		// vanished ClientID in the registry lookup (spec.md §4.3).
	})
})

func readFull(conn net.Conn, buf []byte, want int) (int, error) {
	total := 0
	for total < want {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
