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

package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libconn "github.com/sabouaram/cqlcore/conn"
	libfrm "github.com/sabouaram/cqlcore/frame"
	libhost "github.com/sabouaram/cqlcore/host"
	libpol "github.com/sabouaram/cqlcore/policy"
	libprep "github.com/sabouaram/cqlcore/prepared"
	"github.com/sabouaram/cqlcore/session"
)

const simpleType = 0x000D

func rowsBody(col string, vals ...string) []byte {
	w := libfrm.NewWriter()
	w.WriteUint32(2) // kind: Rows
	w.WriteUint32(1) // flags: Global_tables_spec
	w.WriteUint32(1) // one column
	w.WriteString("ks")
	w.WriteString("tbl")
	w.WriteString(col)
	w.WriteUint16(simpleType)
	w.WriteUint32(uint32(len(vals)))
	for _, v := range vals {
		_ = w.WriteBytes(libfrm.ProtocolV4, libfrm.SetValue([]byte(v)))
	}
	return w.Bytes()
}

func preparedBody(id []byte) []byte {
	w := libfrm.NewWriter()
	w.WriteUint32(4) // kind: Prepared
	w.WriteShortBytes(id)
	return w.Bytes()
}

func errorBody(code uint32, extra func(w *libfrm.Writer)) []byte {
	w := libfrm.NewWriter()
	w.WriteUint32(code)
	w.WriteString("boom")
	if extra != nil {
		extra(w)
	}
	return w.Bytes()
}

// scriptedConn answers QUERY/PREPARE/EXECUTE by delegating to a
// caller-supplied handler, tracking a per-opcode call count so tests
// can script "fails once, then succeeds" sequences.
type scriptedConn struct {
	mu       sync.Mutex
	endpoint string
	state    libconn.State
	calls    map[libfrm.Opcode]int

	handle func(calls int, opcode libfrm.Opcode, body []byte) libfrm.Frame
}

func newScriptedConn(endpoint string, handle func(calls int, opcode libfrm.Opcode, body []byte) libfrm.Frame) *scriptedConn {
	return &scriptedConn{endpoint: endpoint, state: libconn.StateReady, calls: map[libfrm.Opcode]int{}, handle: handle}
}

func (f *scriptedConn) Send(ctx context.Context, opcode libfrm.Opcode, flags uint8, body []byte) (<-chan libconn.Response, error) {
	f.mu.Lock()
	f.calls[opcode]++
	n := f.calls[opcode]
	f.mu.Unlock()

	fr := f.handle(n, opcode, body)
	ch := make(chan libconn.Response, 1)
	ch <- libconn.Response{Frame: fr}
	return ch, nil
}

func (f *scriptedConn) State() libconn.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *scriptedConn) Endpoint() string { return f.endpoint }

func (f *scriptedConn) Close() error {
	f.mu.Lock()
	f.state = libconn.StateClosed
	f.mu.Unlock()
	return nil
}

func (f *scriptedConn) InFlight() int { return 0 }

var _ libconn.Connection = (*scriptedConn)(nil)

func resultFrame(body []byte) libfrm.Frame {
	return libfrm.Frame{Header: libfrm.Header{Opcode: libfrm.OpResult}, Body: body}
}

func errorFrame(body []byte) libfrm.Frame {
	return libfrm.Frame{Header: libfrm.Header{Opcode: libfrm.OpError}, Body: body}
}

func baseConfig(hosts *libhost.Registry, dial session.HostDialer) session.Config {
	return session.Config{
		Hosts:                  hosts,
		Cache:                  libprep.New(),
		LoadBalancing:          &libpol.RoundRobin{},
		Retry:                  libpol.DefaultRetry{},
		Speculative:            libpol.Disabled{},
		Dial:                   dial,
		PoolCoreSize:           1,
		PoolMaxSize:            1,
		PoolPerConnLimit:       10,
		ConnectTimeout:         time.Second,
		RequestTimeout:         time.Second,
		SchemaAgreementTimeout: 200 * time.Millisecond,
	}
}

var _ = Describe("Session", func() {
	It("executes a query against the only up host and decodes its rows", func() {
		hosts := libhost.New(libhost.Config{})
		defer hosts.Close()
		hosts.AddOrBringUp("h1:9042", libhost.Meta{})

		conn := newScriptedConn("h1:9042", func(n int, opcode libfrm.Opcode, body []byte) libfrm.Frame {
			return resultFrame(rowsBody("id", "42"))
		})
		dial := func(ctx context.Context, endpoint string) (libconn.Connection, error) { return conn, nil }

		s := session.New(baseConfig(hosts, dial))
		defer s.Close()

		res, err := s.Execute(context.Background(), session.Statement{Query: "SELECT id FROM t", Consistency: libfrm.ConsistencyOne})
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Rows).To(HaveLen(1))
		Expect(res.Rows[0].Text("id")).To(Equal("42"))
	})

	It("rejects a top-level SERIAL consistency as an invalid request", func() {
		hosts := libhost.New(libhost.Config{})
		defer hosts.Close()
		hosts.AddOrBringUp("h1:9042", libhost.Meta{})

		dial := func(ctx context.Context, endpoint string) (libconn.Connection, error) {
			return newScriptedConn("h1:9042", func(int, libfrm.Opcode, []byte) libfrm.Frame { return resultFrame(nil) }), nil
		}

		s := session.New(baseConfig(hosts, dial))
		defer s.Close()

		_, err := s.Execute(context.Background(), session.Statement{Query: "SELECT 1", Consistency: libfrm.ConsistencySerial})
		Expect(err).To(HaveOccurred())
	})

	It("fails NoHostAvailable with an empty registry", func() {
		hosts := libhost.New(libhost.Config{})
		defer hosts.Close()

		dial := func(ctx context.Context, endpoint string) (libconn.Connection, error) {
			return nil, nil
		}

		s := session.New(baseConfig(hosts, dial))
		defer s.Close()

		_, err := s.Execute(context.Background(), session.Statement{Query: "SELECT 1"})
		Expect(err).To(HaveOccurred())
		Expect(err).To(BeAssignableToTypeOf(&session.NoHostAvailableError{}))
	})

	It("retries on the next host after an Unavailable error", func() {
		hosts := libhost.New(libhost.Config{})
		defer hosts.Close()
		hosts.AddOrBringUp("bad:9042", libhost.Meta{})
		hosts.AddOrBringUp("good:9042", libhost.Meta{})

		unavailable := errorBody(0x1000, func(w *libfrm.Writer) {
			w.WriteUint16(uint16(libfrm.ConsistencyOne))
			w.WriteInt32(3)
			w.WriteInt32(1)
		})

		dial := func(ctx context.Context, endpoint string) (libconn.Connection, error) {
			if endpoint == "bad:9042" {
				return newScriptedConn(endpoint, func(int, libfrm.Opcode, []byte) libfrm.Frame { return errorFrame(unavailable) }), nil
			}
			return newScriptedConn(endpoint, func(int, libfrm.Opcode, []byte) libfrm.Frame { return resultFrame(rowsBody("id", "7")) }), nil
		}

		s := session.New(baseConfig(hosts, dial))
		defer s.Close()

		res, err := s.Execute(context.Background(), session.Statement{Query: "SELECT id FROM t", Idempotent: true})
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Rows[0].Text("id")).To(Equal("7"))
	})

	It("auto-reprepares once on an Unprepared error and retries the execute", func() {
		hosts := libhost.New(libhost.Config{})
		defer hosts.Close()
		hosts.AddOrBringUp("h1:9042", libhost.Meta{})

		preparedID := []byte{0x01, 0x02}
		unprepared := errorBody(0x2500, func(w *libfrm.Writer) {
			w.WriteShortBytes(preparedID)
		})

		var executeCalls int32
		conn := newScriptedConn("h1:9042", func(n int, opcode libfrm.Opcode, body []byte) libfrm.Frame {
			switch opcode {
			case libfrm.OpPrepare:
				return resultFrame(preparedBody(preparedID))
			case libfrm.OpExecute:
				if atomic.AddInt32(&executeCalls, 1) == 1 {
					return errorFrame(unprepared)
				}
				return resultFrame(rowsBody("id", "9"))
			default:
				return resultFrame(nil)
			}
		})
		dial := func(ctx context.Context, endpoint string) (libconn.Connection, error) { return conn, nil }

		s := session.New(baseConfig(hosts, dial))
		defer s.Close()

		res, err := s.Execute(context.Background(), session.Statement{Query: "SELECT id FROM t", PrepareFirst: true})
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Rows[0].Text("id")).To(Equal("9"))
		Expect(atomic.LoadInt32(&executeCalls)).To(Equal(int32(2)))
	})

	It("AwaitSchemaAgreement returns once every up host reports the same version", func() {
		hosts := libhost.New(libhost.Config{})
		defer hosts.Close()
		hosts.AddOrBringUp("h1:9042", libhost.Meta{})

		conn := newScriptedConn("h1:9042", func(n int, opcode libfrm.Opcode, body []byte) libfrm.Frame {
			return resultFrame(rowsBody("schema_version", "v1"))
		})
		dial := func(ctx context.Context, endpoint string) (libconn.Connection, error) { return conn, nil }

		s := session.New(baseConfig(hosts, dial))
		defer s.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		Expect(s.AwaitSchemaAgreement(ctx)).ToNot(HaveOccurred())
	})

	It("routes to a host that only comes up after the Session was built", func() {
		hosts := libhost.New(libhost.Config{})
		defer hosts.Close()

		dial := func(ctx context.Context, endpoint string) (libconn.Connection, error) {
			return newScriptedConn(endpoint, func(int, libfrm.Opcode, []byte) libfrm.Frame {
				return resultFrame(rowsBody("id", "1"))
			}), nil
		}

		s := session.New(baseConfig(hosts, dial))
		defer s.Close()

		// No host is up yet: the query plan is empty.
		_, err := s.Execute(context.Background(), session.Statement{Query: "SELECT id FROM t"})
		Expect(err).To(HaveOccurred())
		Expect(err).To(BeAssignableToTypeOf(&session.NoHostAvailableError{}))

		// Bringing a host up fires an Up event; the pool manager reacts
		// by opening a Pool for it without the Session polling anything.
		hosts.AddOrBringUp("late:9042", libhost.Meta{})

		Eventually(func() error {
			_, err := s.Execute(context.Background(), session.Statement{Query: "SELECT id FROM t"})
			return err
		}, time.Second, 10*time.Millisecond).ShouldNot(HaveOccurred())
	})
})
