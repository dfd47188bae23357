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

package conn

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	libfrm "github.com/sabouaram/cqlcore/frame"
	loglib "github.com/sabouaram/cqlcore/logger"
	libstr "github.com/sabouaram/cqlcore/stream"
)

type writeRequest struct {
	wire []byte
	done chan error
}

type conn struct {
	sock net.Conn
	cfg  Config
	log  loglib.Logger

	endpoint string
	ids      *libstr.Allocator

	state   State
	stateMu sync.RWMutex

	waitersMu sync.Mutex
	waiters   map[int16]chan Response

	writeCh chan writeRequest
	closeCh chan struct{}
	closeOn sync.Once

	lastActivityMu sync.Mutex
	lastActivity   time.Time

	missedHeartbeats int
}

func newConn(sock net.Conn, cfg Config) *conn {
	log := cfg.Logger
	if log == nil {
		log = loglib.New()
	}

	c := &conn{
		sock:     sock,
		cfg:      cfg,
		log:      log,
		endpoint: sock.RemoteAddr().String(),
		ids:      libstr.New(cfg.Version.StreamIDSpace()),
		waiters:  make(map[int16]chan Response),
		writeCh:  make(chan writeRequest, 64),
		closeCh:  make(chan struct{}),
	}
	c.touch()
	return c
}

func (c *conn) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

func (c *conn) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *conn) Endpoint() string { return c.endpoint }

func (c *conn) InFlight() int { return c.ids.InUse() }

func (c *conn) touch() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *conn) idleSince() time.Duration {
	c.lastActivityMu.Lock()
	defer c.lastActivityMu.Unlock()
	return time.Since(c.lastActivity)
}

// Send reserves a stream id, queues the encoded request for the writer
// task, and registers a waiter fulfilled by the reader task.
func (c *conn) Send(ctx context.Context, opcode libfrm.Opcode, flags uint8, body []byte) (<-chan Response, error) {
	if c.State() == StateClosed || c.State() == StateDraining {
		return nil, ClosedError()
	}

	id, err := c.ids.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	wire, err := libfrm.Encode(c.cfg.Version, id, opcode, flags, body, c.cfg.Compression)
	if err != nil {
		c.ids.Release(id)
		return nil, err
	}

	result := make(chan Response, 1)

	c.waitersMu.Lock()
	c.waiters[id] = result
	c.waitersMu.Unlock()

	done := make(chan error, 1)
	select {
	case c.writeCh <- writeRequest{wire: wire, done: done}:
	case <-c.closeCh:
		c.failWaiter(id, ClosedError())
		return result, nil
	case <-ctx.Done():
		c.failWaiter(id, ctx.Err())
		return result, nil
	}

	go func() {
		select {
		case err := <-done:
			if err != nil {
				c.failWaiter(id, TransportError(err))
			}
		case <-c.closeCh:
		}
	}()

	return result, nil
}

func (c *conn) failWaiter(id int16, err error) {
	c.waitersMu.Lock()
	w, ok := c.waiters[id]
	delete(c.waiters, id)
	c.waitersMu.Unlock()

	if ok {
		w <- Response{Err: err}
		c.ids.Release(id)
	}
}

// writerLoop is the Connection's single writer task: it drains writeCh
// in order, so frames appear on the wire in submission order (spec.md
// §5 ordering guarantee).
func (c *conn) writerLoop() {
	for {
		select {
		case req := <-c.writeCh:
			_, err := c.sock.Write(req.wire)
			if err == nil {
				c.touch()
			}
			req.done <- err
			if err != nil {
				c.fail(TransportError(err))
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// readerLoop is the Connection's single reader task: it feeds bytes
// into the frame Decoder and dispatches complete frames to waiters by
// stream id, or to the Events callback for stream id -1.
func (c *conn) readerLoop() {
	dec := libfrm.NewDecoder(c.cfg.MaxBodyLength)
	buf := make([]byte, 64*1024)

	for {
		n, err := c.sock.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			c.touch()

			for {
				f, ok, derr := dec.Next()
				if derr != nil {
					c.fail(derr)
					return
				}
				if !ok {
					break
				}
				c.dispatch(f)
			}
		}
		if err != nil {
			if err != io.EOF {
				c.fail(TransportError(err))
			} else {
				c.fail(ClosedError())
			}
			return
		}
	}
}

func (c *conn) dispatch(f libfrm.Frame) {
	if f.Header.StreamID == -1 {
		if c.cfg.Events != nil {
			c.cfg.Events(f)
		}
		return
	}

	c.waitersMu.Lock()
	w, ok := c.waiters[f.Header.StreamID]
	delete(c.waiters, f.Header.StreamID)
	c.waitersMu.Unlock()

	if ok {
		w <- Response{Frame: f}
		c.ids.Release(f.Header.StreamID)
	}
}

// heartbeatLoop sends OPTIONS whenever the Connection has been idle for
// cfg.IdleTimeout; two consecutive unanswered heartbeats close it
// (spec.md §4.2).
func (c *conn) heartbeatLoop() {
	idle := c.cfg.IdleTimeout
	if idle <= 0 {
		idle = 30 * time.Second
	}

	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.State() != StateReady {
				continue
			}
			if c.idleSince() < idle {
				c.missedHeartbeats = 0
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), idle)
			respCh, err := c.Send(ctx, libfrm.OpOptions, 0, nil)
			if err != nil {
				cancel()
				continue
			}

			select {
			case resp := <-respCh:
				cancel()
				if resp.Err != nil {
					c.missedHeartbeats++
				} else {
					c.missedHeartbeats = 0
				}
			case <-ctx.Done():
				cancel()
				c.missedHeartbeats++
			}

			if c.missedHeartbeats >= 2 {
				c.fail(TimeoutError())
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// fail transitions the Connection through draining to closed, failing
// every pending waiter with err exactly once (spec.md §3 invariant).
func (c *conn) fail(err error) {
	c.setState(StateDraining)

	c.waitersMu.Lock()
	pending := c.waiters
	c.waiters = make(map[int16]chan Response)
	c.waitersMu.Unlock()

	for id, w := range pending {
		w <- Response{Err: err}
		c.ids.Release(id)
	}

	c.closeOn.Do(func() {
		close(c.closeCh)
		_ = c.sock.Close()
	})

	c.setState(StateClosed)

	if c.log != nil {
		c.log.Warn("connection closed", loglib.Fields{"endpoint": c.endpoint, "error": err})
	}
}

func (c *conn) Close() error {
	c.fail(ClosedError())
	return nil
}
