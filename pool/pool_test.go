/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

package pool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	libconn "github.com/sabouaram/cqlcore/conn"
	libfrm "github.com/sabouaram/cqlcore/frame"
	libpool "github.com/sabouaram/cqlcore/pool"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeConn struct {
	mu       sync.Mutex
	endpoint string
	state    libconn.State
	inFlight int32
}

func newFakeConn(endpoint string) *fakeConn {
	return &fakeConn{endpoint: endpoint, state: libconn.StateReady}
}

func (f *fakeConn) Send(ctx context.Context, opcode libfrm.Opcode, flags uint8, body []byte) (<-chan libconn.Response, error) {
	atomic.AddInt32(&f.inFlight, 1)
	ch := make(chan libconn.Response, 1)
	ch <- libconn.Response{Frame: libfrm.Frame{Header: libfrm.Header{Opcode: libfrm.OpResult}}}
	atomic.AddInt32(&f.inFlight, -1)
	return ch, nil
}

func (f *fakeConn) State() libconn.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeConn) Endpoint() string { return f.endpoint }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.state = libconn.StateClosed
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) InFlight() int { return int(atomic.LoadInt32(&f.inFlight)) }

func (f *fakeConn) setInFlight(n int32) { atomic.StoreInt32(&f.inFlight, n) }

var _ = Describe("Pool", func() {
	var dialed int32

	dialerFor := func(conns map[string]*fakeConn) libpool.Dialer {
		return func(ctx context.Context, endpoint string) (libconn.Connection, error) {
			atomic.AddInt32(&dialed, 1)
			c := newFakeConn(endpoint)
			conns[endpoint] = c
			return c, nil
		}
	}

	BeforeEach(func() { dialed = 0 })

	It("opens core_size connections on New", func() {
		conns := map[string]*fakeConn{}
		p, err := libpool.New(context.Background(), "h1", libpool.Config{
			CoreSize: 2, MaxSize: 4, PerConnLimit: 10, Dial: dialerFor(conns),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(p.Size()).To(Equal(2))
	})

	It("acquires the least-loaded ready connection", func() {
		var dialedConns []*fakeConn
		dial := func(ctx context.Context, endpoint string) (libconn.Connection, error) {
			c := newFakeConn(endpoint)
			dialedConns = append(dialedConns, c)
			return c, nil
		}
		p, err := libpool.New(context.Background(), "h1", libpool.Config{
			CoreSize: 2, MaxSize: 2, PerConnLimit: 10, Dial: dial,
		})
		Expect(err).ToNot(HaveOccurred())
		dialedConns[0].setInFlight(5)

		c, err := p.Acquire(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(c).To(BeIdenticalTo(dialedConns[1]))
	})

	It("returns ErrClosed once closed", func() {
		conns := map[string]*fakeConn{}
		p, err := libpool.New(context.Background(), "h1", libpool.Config{
			CoreSize: 1, MaxSize: 1, PerConnLimit: 10, Dial: dialerFor(conns),
		})
		Expect(err).ToNot(HaveOccurred())

		p.Close()
		_, err = p.Acquire(context.Background())
		Expect(err).To(Equal(libpool.ErrClosed))
	})

	It("prunes closed connections from Size", func() {
		conns := map[string]*fakeConn{}
		p, err := libpool.New(context.Background(), "h1", libpool.Config{
			CoreSize: 2, MaxSize: 2, PerConnLimit: 10, Dial: dialerFor(conns),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(p.Size()).To(Equal(2))

		for _, c := range conns {
			_ = c.Close()
			break
		}
		Eventually(p.Size).Should(Equal(1))
	})

	It("grows asynchronously when saturated below max_size", func() {
		conns := map[string]*fakeConn{}
		p, err := libpool.New(context.Background(), "h1", libpool.Config{
			CoreSize: 1, MaxSize: 2, PerConnLimit: 1, ConnectTimeout: time.Second, Dial: dialerFor(conns),
		})
		Expect(err).ToNot(HaveOccurred())

		for _, c := range conns {
			c.setInFlight(5)
		}

		_, err = p.Acquire(context.Background())
		Expect(err).ToNot(HaveOccurred())

		Eventually(p.Size, time.Second).Should(Equal(2))
	})
})
