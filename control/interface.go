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

// Package control implements the Control Connection (spec.md §4.5): a
// single owned Connection used to bootstrap the Host Registry and Token
// Map from system.local/system.peers, then stay subscribed to
// TOPOLOGY_CHANGE/STATUS_CHANGE/SCHEMA_CHANGE push events.
package control

import (
	"context"
	"time"

	libconn "github.com/sabouaram/cqlcore/conn"
	libfrm "github.com/sabouaram/cqlcore/frame"
	libhost "github.com/sabouaram/cqlcore/host"
	loglib "github.com/sabouaram/cqlcore/logger"
	libtok "github.com/sabouaram/cqlcore/token"
)

// ReconnectionPolicy is the control loop's failover delay schedule,
// defined here (the consumer) rather than imported from policy, for the
// same reason host.ReconnectionPolicy is: avoiding an import cycle.
type ReconnectionPolicy interface {
	NextDelay(attempt int) time.Duration
}

// Dialer opens a Connection to endpoint with the given push-event
// callback wired in (stream id -1 frames, spec.md §4.2).
type Dialer func(ctx context.Context, endpoint string, events func(fr libfrm.Frame)) (libconn.Connection, error)

// Config configures a Control Connection.
type Config struct {
	Hosts        *libhost.Registry
	Tokens       *libtok.Map
	Dial         Dialer
	Reconnection ReconnectionPolicy
	// SchemaDebounce coalesces bursts of SCHEMA_CHANGE events before
	// triggering a refresh (spec.md §4.5, "default 1s").
	SchemaDebounce time.Duration
	Logger         loglib.Logger
}

// Control owns the single Control Connection and keeps the Host
// Registry and Token Map current.
type Control interface {
	// Bootstrap performs the initial system.local/system.peers load,
	// populates the Host Registry, and publishes the first Token Map
	// snapshot.
	Bootstrap(ctx context.Context) error

	// Close tears down the owned Connection and stops the control
	// loop; the Host Registry and Token Map retain their last snapshot.
	Close()
}
