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

// Package session implements the Session / Request Executor (spec.md
// §4.9): the public entry point that drives a request through a query
// plan, applying the Retry and Speculative-Execution policies and
// preparing statements on demand.
package session

import (
	"context"
	"time"

	libconn "github.com/sabouaram/cqlcore/conn"
	libfrm "github.com/sabouaram/cqlcore/frame"
	libhost "github.com/sabouaram/cqlcore/host"
	loglib "github.com/sabouaram/cqlcore/logger"
	libpol "github.com/sabouaram/cqlcore/policy"
	libprep "github.com/sabouaram/cqlcore/prepared"
	libtok "github.com/sabouaram/cqlcore/token"
)

// Statement is one request to execute: a bare QUERY, or, when
// PrepareFirst is set, an EXECUTE of the prepared id the Prepared
// Statement Cache holds (or obtains) for Query.
type Statement struct {
	Query        string
	Keyspace     string
	Consistency  libfrm.Consistency
	Values       []libfrm.Bound
	RoutingKey   []byte
	Idempotent   bool
	PageSize     int32
	PagingState  []byte
	// PrepareFirst routes this Statement through the Prepared Statement
	// Cache, preparing Query on demand (spec.md §3, "Prepared Statement
	// Cache").
	PrepareFirst bool
}

// Result is the decoded RESULT body handed back to the caller. Row
// values are exposed as their raw [bytes] cells, not decoded into
// native Go types: a generic row-value codec is out of scope (spec.md
// §7, "row-value codec details beyond what the protocol requires").
type Result struct {
	Kind        uint32
	Columns     []string
	Rows        []Row
	Keyspace    string
	PreparedID  []byte
	PagingState []byte
}

// Row is one decoded result row: column name to raw cell bytes, absent
// when the server returned Null or Unset.
type Row map[string][]byte

func (r Row) Text(col string) string {
	if b, ok := r[col]; ok {
		return string(b)
	}
	return ""
}

// HostDialer opens a Connection to endpoint for request traffic (no
// push-event callback; only the Control Connection registers one).
type HostDialer func(ctx context.Context, endpoint string) (libconn.Connection, error)

// Config wires a Session to the shared components it coordinates.
type Config struct {
	Hosts  *libhost.Registry
	Tokens *libtok.Map
	Cache  *libprep.Cache

	LoadBalancing libpol.LoadBalancing
	Retry         libpol.Retry
	Speculative   libpol.Speculative

	Dial HostDialer

	PoolCoreSize       int
	PoolMaxSize        int
	PoolPerConnLimit   int
	ConnectTimeout     time.Duration
	RequestTimeout     time.Duration
	SchemaAgreementTimeout time.Duration

	Logger loglib.Logger
}

// Session is the public entry point: resolves a query plan, acquires a
// pooled Connection per candidate host, and applies the Retry Policy to
// every failure when speculative execution is disabled (spec.md §4.9).
type Session interface {
	// Execute drives stmt through the state machine described by
	// spec.md §4.9 and returns the first successful Result.
	Execute(ctx context.Context, stmt Statement) (*Result, error)

	// AwaitSchemaAgreement queries system.local on every up Host for
	// its schema_version until the answers agree or
	// SchemaAgreementTimeout elapses (spec.md §4.9).
	AwaitSchemaAgreement(ctx context.Context) error

	// Close tears down every per-host Pool owned by this Session.
	Close()
}
