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

package control_test

import (
	"context"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/cqlcore/control"
	libconn "github.com/sabouaram/cqlcore/conn"
	libfrm "github.com/sabouaram/cqlcore/frame"
	libhost "github.com/sabouaram/cqlcore/host"
	libtok "github.com/sabouaram/cqlcore/token"
)

const simpleType = 0x000D

func listTextCell(elems ...string) []byte {
	w := libfrm.NewWriter()
	w.WriteUint32(uint32(len(elems)))
	for _, e := range elems {
		_ = w.WriteBytes(libfrm.ProtocolV4, libfrm.SetValue([]byte(e)))
	}
	return w.Bytes()
}

func mapTextCell(m map[string]string) []byte {
	w := libfrm.NewWriter()
	w.WriteUint32(uint32(len(m)))
	for k, v := range m {
		_ = w.WriteBytes(libfrm.ProtocolV4, libfrm.SetValue([]byte(k)))
		_ = w.WriteBytes(libfrm.ProtocolV4, libfrm.SetValue([]byte(v)))
	}
	return w.Bytes()
}

type col struct {
	name string
	list bool
	mp   bool
}

// buildRows encodes a minimal RESULT/Rows body: one global keyspace/table
// spec, the named columns, then the given rows of raw cell bytes.
func buildRows(cols []col, rows [][][]byte) []byte {
	w := libfrm.NewWriter()
	w.WriteUint32(2) // kind: Rows
	w.WriteUint32(1) // flags: Global_tables_spec
	w.WriteUint32(uint32(len(cols)))
	w.WriteString("ks")
	w.WriteString("tbl")
	for _, c := range cols {
		w.WriteString(c.name)
		switch {
		case c.list:
			w.WriteUint16(0x0022)
			w.WriteUint16(simpleType)
		case c.mp:
			w.WriteUint16(0x0021)
			w.WriteUint16(simpleType)
			w.WriteUint16(simpleType)
		default:
			w.WriteUint16(simpleType)
		}
	}
	w.WriteUint32(uint32(len(rows)))
	for _, r := range rows {
		for _, cell := range r {
			if cell == nil {
				w.WriteInt32(-1)
			} else {
				_ = w.WriteBytes(libfrm.ProtocolV4, libfrm.SetValue(cell))
			}
		}
	}
	return w.Bytes()
}

// fakeConn answers system.local/system.peers/system_schema.keyspaces
// queries with canned rows and accepts REGISTER unconditionally.
type fakeConn struct {
	mu       sync.Mutex
	endpoint string
	state    libconn.State

	local []byte
	peers []byte
	ks    []byte
}

func newFakeConn(endpoint string) *fakeConn {
	return &fakeConn{endpoint: endpoint, state: libconn.StateReady}
}

func (f *fakeConn) Send(ctx context.Context, opcode libfrm.Opcode, flags uint8, body []byte) (<-chan libconn.Response, error) {
	ch := make(chan libconn.Response, 1)

	f.mu.Lock()
	local, peers, ks := f.local, f.peers, f.ks
	f.mu.Unlock()

	switch opcode {
	case libfrm.OpQuery:
		r := libfrm.NewReader(body)
		cql, _ := r.ReadLongString()
		var respBody []byte
		switch {
		case strings.Contains(cql, "system.local"):
			respBody = local
		case strings.Contains(cql, "system.peers"):
			respBody = peers
		case strings.Contains(cql, "system_schema.keyspaces"):
			respBody = ks
		}
		ch <- libconn.Response{Frame: libfrm.Frame{Header: libfrm.Header{Opcode: libfrm.OpResult}, Body: respBody}}
	case libfrm.OpRegister:
		ch <- libconn.Response{Frame: libfrm.Frame{Header: libfrm.Header{Opcode: libfrm.OpReady}}}
	default:
		ch <- libconn.Response{}
	}
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

func (f *fakeConn) InFlight() int { return 0 }

var _ libconn.Connection = (*fakeConn)(nil)

func localResultBody() []byte {
	return buildRows(
		[]col{{name: "partitioner"}, {name: "tokens", list: true}, {name: "data_center"}, {name: "rack"}},
		[][][]byte{{
			[]byte("org.apache.cassandra.dht.Murmur3Partitioner"),
			listTextCell("100"),
			[]byte("dc1"),
			[]byte("rack1"),
		}},
	)
}

func peersResultBody() []byte {
	return buildRows(
		[]col{{name: "peer"}, {name: "tokens", list: true}, {name: "data_center"}, {name: "rack"}, {name: "release_version"}},
		[][][]byte{{
			[]byte{10, 0, 0, 2},
			listTextCell("200"),
			[]byte("dc1"),
			[]byte("rack2"),
			[]byte("4.0.0"),
		}},
	)
}

func keyspacesResultBody() []byte {
	return buildRows(
		[]col{{name: "keyspace_name"}, {name: "replication", mp: true}},
		[][][]byte{{
			[]byte("app"),
			mapTextCell(map[string]string{"class": "org.apache.cassandra.locator.SimpleStrategy", "replication_factor": "2"}),
		}},
	)
}

type constReconnection struct{ delay time.Duration }

func (c constReconnection) NextDelay(int) time.Duration { return c.delay }

var _ = Describe("Control", func() {
	var (
		hosts *libhost.Registry
		toks  *libtok.Map
	)

	BeforeEach(func() {
		hosts = libhost.New(libhost.Config{})
		toks = libtok.New()
	})

	AfterEach(func() {
		hosts.Close()
	})

	It("bootstraps the Host Registry and Token Map from system.local/system.peers/system_schema.keyspaces", func() {
		hosts.AddOrBringUp("10.0.0.1:9042", libhost.Meta{})

		fc := newFakeConn("10.0.0.1:9042")
		fc.local = localResultBody()
		fc.peers = peersResultBody()
		fc.ks = keyspacesResultBody()

		dial := func(ctx context.Context, endpoint string, events func(libfrm.Frame)) (libconn.Connection, error) {
			return fc, nil
		}

		c := control.New(control.Config{
			Hosts:        hosts,
			Tokens:       toks,
			Dial:         dial,
			Reconnection: constReconnection{delay: time.Millisecond},
		})
		defer c.Close()

		Expect(c.Bootstrap(context.Background())).To(Succeed())

		peer, ok := hosts.TryGet("10.0.0.2:9042")
		Expect(ok).To(BeTrue())
		Expect(peer.Meta.Datacenter).To(Equal("dc1"))
		Expect(peer.Meta.Rack).To(Equal("rack2"))

		replicas := toks.Replicas("app", toks.Hash([]byte("x")))
		Expect(replicas).NotTo(BeEmpty())
	})

	It("fails Bootstrap with no host available", func() {
		fc := newFakeConn("10.0.0.1:9042")
		dial := func(ctx context.Context, endpoint string, events func(libfrm.Frame)) (libconn.Connection, error) {
			return fc, nil
		}
		c := control.New(control.Config{Hosts: hosts, Tokens: toks, Dial: dial})
		defer c.Close()

		Expect(c.Bootstrap(context.Background())).To(HaveOccurred())
	})

	It("fails over to another host once the owned connection closes", func() {
		hosts.AddOrBringUp("10.0.0.1:9042", libhost.Meta{})
		hosts.AddOrBringUp("10.0.0.2:9042", libhost.Meta{})

		first := newFakeConn("10.0.0.1:9042")
		first.local = localResultBody()
		first.peers = peersResultBody()
		first.ks = keyspacesResultBody()

		second := newFakeConn("10.0.0.2:9042")
		second.local = localResultBody()
		second.peers = peersResultBody()
		second.ks = keyspacesResultBody()

		var mu sync.Mutex
		var dialedEndpoints []string
		dialed := map[string]*fakeConn{"10.0.0.1:9042": first, "10.0.0.2:9042": second}

		dial := func(ctx context.Context, endpoint string, events func(libfrm.Frame)) (libconn.Connection, error) {
			mu.Lock()
			defer mu.Unlock()
			dialedEndpoints = append(dialedEndpoints, endpoint)
			return dialed[endpoint], nil
		}

		c := control.New(control.Config{
			Hosts:        hosts,
			Tokens:       toks,
			Dial:         dial,
			Reconnection: constReconnection{delay: 10 * time.Millisecond},
		})
		defer c.Close()

		Expect(c.Bootstrap(context.Background())).To(Succeed())

		Expect(first.Close()).To(Succeed())

		Eventually(func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), dialedEndpoints...)
		}, time.Second).Should(ContainElement("10.0.0.2:9042"))
	})
})
