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

package control

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	libconn "github.com/sabouaram/cqlcore/conn"
	libfrm "github.com/sabouaram/cqlcore/frame"
	libhost "github.com/sabouaram/cqlcore/host"
	loglib "github.com/sabouaram/cqlcore/logger"
	libtok "github.com/sabouaram/cqlcore/token"
)

const defaultSchemaDebounce = time.Second

// defaultNativePort is the native protocol port assumed for peers
// discovered via system.peers, which reports only a bare address;
// Config.Dial's own endpoints are expected to already carry a port.
const defaultNativePort = 9042

// control is the Control Connection (spec.md §4.5): one owned
// Connection used to bootstrap and then stay subscribed to cluster
// events.
type control struct {
	cfg Config
	log loglib.Logger

	mu       sync.Mutex
	conn     libconn.Connection
	endpoint string
	closed   bool
	attempt  int

	schemaMu    sync.Mutex
	schemaTimer *time.Timer
}

// New returns a Control Connection bound to hosts and tokens, neither
// of which are mutated until Bootstrap is called.
func New(cfg Config) Control {
	log := cfg.Logger
	if log == nil {
		log = loglib.New()
	}
	if cfg.SchemaDebounce <= 0 {
		cfg.SchemaDebounce = defaultSchemaDebounce
	}
	return &control{cfg: cfg, log: log}
}

func (c *control) Bootstrap(ctx context.Context) error {
	if err := c.connectAndLoad(ctx, ""); err != nil {
		return BootstrapFailedError(err)
	}
	return nil
}

func (c *control) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.schemaMu.Lock()
	if c.schemaTimer != nil {
		c.schemaTimer.Stop()
	}
	c.schemaMu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// pickCandidate picks the next control-connection host: an up host not
// already excluded, preferring the lowest endpoint string so repeated
// bootstraps/failovers are deterministic in tests (spec.md §4.5,
// "preferring the first seed").
func (c *control) pickCandidate(exclude string) (string, bool) {
	hosts := c.cfg.Hosts.Snapshot()
	var best string
	found := false
	for _, h := range hosts {
		if !h.Up() || h.Endpoint == exclude {
			continue
		}
		if !found || h.Endpoint < best {
			best = h.Endpoint
			found = true
		}
	}
	return best, found
}

func (c *control) connectAndLoad(ctx context.Context, exclude string) error {
	endpoint, ok := c.pickCandidate(exclude)
	if !ok && exclude != "" {
		// No other up host besides the one that just failed: fall back
		// to retrying it rather than giving up (spec.md §4.5, Failover).
		endpoint, ok = c.pickCandidate("")
	}
	if !ok {
		return NoHostAvailableError()
	}

	conn, err := c.cfg.Dial(ctx, endpoint, c.onEvent)
	if err != nil {
		return err
	}

	if err := c.loadSystemTables(ctx, conn); err != nil {
		_ = conn.Close()
		return err
	}

	if err := c.register(ctx, conn); err != nil {
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.endpoint = endpoint
	c.attempt = 0
	c.mu.Unlock()

	go c.watch(conn)
	return nil
}

// watch notices the owned Connection closing and runs the failover loop
// (spec.md §4.5, "Failover").
func (c *control) watch(conn libconn.Connection) {
	for {
		time.Sleep(200 * time.Millisecond)
		if conn.State() == libconn.StateClosed {
			break
		}
		c.mu.Lock()
		closed := c.closed
		current := c.conn
		c.mu.Unlock()
		if closed || current != conn {
			return
		}
	}

	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	failedEndpoint := c.endpoint
	c.conn = nil
	c.mu.Unlock()

	c.failover(failedEndpoint)
}

func (c *control) failover(failedEndpoint string) {
	c.mu.Lock()
	attempt := c.attempt
	c.attempt++
	c.mu.Unlock()

	var delay time.Duration
	if c.cfg.Reconnection != nil {
		delay = c.cfg.Reconnection.NextDelay(attempt)
	}
	time.Sleep(delay)

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	if err := c.connectAndLoad(context.Background(), failedEndpoint); err != nil {
		c.log.Warn("control: failover reconnect failed", loglib.Fields{"previous": failedEndpoint, "error": err})
		go c.failover(failedEndpoint)
	}
}

func query(conn libconn.Connection, ctx context.Context, cql string) ([]row, error) {
	w := libfrm.NewWriter()
	w.WriteLongString(cql)
	w.WriteUint16(uint16(libfrm.ConsistencyOne))
	w.WriteByte(0)

	ch, err := conn.Send(ctx, libfrm.OpQuery, 0, w.Bytes())
	if err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Err != nil {
			return nil, resp.Err
		}
		return decodeRows(libfrm.ProtocolV4, resp.Frame.Body)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *control) loadSystemTables(ctx context.Context, conn libconn.Connection) error {
	localRows, err := query(conn, ctx, "SELECT partitioner, tokens, data_center, rack FROM system.local")
	if err != nil {
		return err
	}

	var partitionerName string
	if len(localRows) > 0 {
		partitionerName = text(localRows[0], "partitioner")
	}
	part := libtok.ByName(partitionerName)

	var entries []libtok.RingEntry
	if len(localRows) > 0 {
		dc := text(localRows[0], "data_center")
		rack := text(localRows[0], "rack")
		for _, tok := range textList(libfrm.ProtocolV4, localRows[0]["tokens"]) {
			if t, err := part.ParseToken(tok); err == nil {
				entries = append(entries, libtok.RingEntry{Token: t, Host: c.endpointOrSelf(conn), DC: dc, Rack: rack})
			}
		}
	}

	peerRows, err := query(conn, ctx, "SELECT peer, tokens, data_center, rack, release_version FROM system.peers")
	if err != nil {
		return err
	}
	for _, pr := range peerRows {
		endpoint := inetToEndpoint(pr["peer"])
		dc := text(pr, "data_center")
		rack := text(pr, "rack")
		release := text(pr, "release_version")
		for _, tok := range textList(libfrm.ProtocolV4, pr["tokens"]) {
			if t, err := part.ParseToken(tok); err == nil {
				entries = append(entries, libtok.RingEntry{Token: t, Host: endpoint, DC: dc, Rack: rack})
			}
		}
		c.cfg.Hosts.AddOrBringUp(endpoint, libhost.Meta{Datacenter: dc, Rack: rack, ReleaseVersion: release})
	}

	ring := libtok.NewRing(entries)

	ksRows, err := query(conn, ctx, "SELECT keyspace_name, replication FROM system_schema.keyspaces")
	if err != nil {
		// Older clusters expose this under system.schema_keyspaces with
		// a flattened strategy_class/strategy_options shape; unsupported
		// here, so an unresolvable query simply yields no keyspaces
		// rather than failing bootstrap outright.
		ksRows = nil
	}

	strategies := make(map[string]libtok.Strategy, len(ksRows))
	for _, kr := range ksRows {
		ks := text(kr, "keyspace_name")
		repl := textMap(libfrm.ProtocolV4, kr["replication"])
		if strat := buildStrategy(repl); strat != nil {
			strategies[ks] = strat
		}
	}

	c.cfg.Tokens.Rebuild(part, ring, strategies)
	return nil
}

func (c *control) endpointOrSelf(conn libconn.Connection) string {
	return conn.Endpoint()
}

func buildStrategy(repl map[string]string) libtok.Strategy {
	if repl == nil {
		return nil
	}
	class := repl["class"]
	switch {
	case strings.HasSuffix(class, "SimpleStrategy"):
		rf, _ := strconv.Atoi(repl["replication_factor"])
		return libtok.SimpleStrategy{RF: rf}
	case strings.HasSuffix(class, "NetworkTopologyStrategy"):
		rf := make(map[string]int)
		for dc, v := range repl {
			if dc == "class" {
				continue
			}
			if n, err := strconv.Atoi(v); err == nil {
				rf[dc] = n
			}
		}
		return libtok.NetworkTopologyStrategy{RF: rf}
	default:
		return nil
	}
}

func (c *control) register(ctx context.Context, conn libconn.Connection) error {
	w := libfrm.NewWriter()
	w.WriteStringList([]string{"TOPOLOGY_CHANGE", "STATUS_CHANGE", "SCHEMA_CHANGE"})

	ch, err := conn.Send(ctx, libfrm.OpRegister, 0, w.Bytes())
	if err != nil {
		return err
	}
	select {
	case resp := <-ch:
		return resp.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onEvent handles a stream id -1 pushed frame (spec.md §4.5, "Events").
func (c *control) onEvent(fr libfrm.Frame) {
	if fr.Header.Opcode != libfrm.OpEvent {
		return
	}
	r := libfrm.NewReader(fr.Body)
	kind, err := r.ReadString()
	if err != nil {
		return
	}

	switch kind {
	case "TOPOLOGY_CHANGE":
		changeType, err := r.ReadString()
		if err != nil {
			return
		}
		endpoint, err := readInet(r)
		if err != nil {
			return
		}
		switch changeType {
		case "NEW_NODE":
			c.cfg.Hosts.AddOrBringUp(endpoint, libhost.Meta{})
		case "REMOVED_NODE":
			c.cfg.Hosts.Remove(endpoint)
		}

	case "STATUS_CHANGE":
		status, err := r.ReadString()
		if err != nil {
			return
		}
		endpoint, err := readInet(r)
		if err != nil {
			return
		}
		switch status {
		case "UP":
			c.cfg.Hosts.AddOrBringUp(endpoint, libhost.Meta{})
		case "DOWN":
			c.cfg.Hosts.SetDown(endpoint)
		}

	case "SCHEMA_CHANGE":
		c.scheduleSchemaRefresh()
	}
}

// scheduleSchemaRefresh coalesces a burst of SCHEMA_CHANGE events into
// one refresh after SchemaDebounce (spec.md §4.5).
func (c *control) scheduleSchemaRefresh() {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()

	if c.schemaTimer != nil {
		c.schemaTimer.Stop()
	}
	c.schemaTimer = time.AfterFunc(c.cfg.SchemaDebounce, func() {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.loadSystemTables(ctx, conn); err != nil {
			c.log.Warn("control: schema refresh failed", loglib.Fields{"error": err})
		}
	})
}

// readInet reads a native-protocol [inet]: [u8 length][address bytes][u32 port].
func readInet(r *libfrm.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	addr, err := r.ReadRawBytes(int(n))
	if err != nil {
		return "", err
	}
	port, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(net.IP(addr).String(), strconv.Itoa(int(port))), nil
}

// inetToEndpoint decodes a system.peers-style raw [inet] cell (no
// leading length byte or port: a 4- or 16-byte address) into a dialable
// host:port endpoint, assuming the default native port.
func inetToEndpoint(cell []byte) string {
	if cell == nil {
		return ""
	}
	return net.JoinHostPort(net.IP(cell).String(), strconv.Itoa(defaultNativePort))
}
