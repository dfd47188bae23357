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

// Package conn implements the Connection (spec.md §4.2): one TCP socket,
// a single writer task serializing requests onto the wire, a single
// reader task dispatching decoded frames to stream-id-keyed waiters, and
// a heartbeat loop.
package conn

import (
	"context"
	"time"

	libfrm "github.com/sabouaram/cqlcore/frame"
	loglib "github.com/sabouaram/cqlcore/logger"
)

// State is the Connection lifecycle (spec.md §3): handshake -> ready ->
// draining -> closed.
type State uint8

const (
	StateHandshake State = iota
	StateReady
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Authenticator completes the AUTHENTICATE/AUTH_RESPONSE/AUTH_SUCCESS
// handshake named in spec.md §4.2 but left untyped by the data model.
type Authenticator interface {
	// InitialResponse returns the first AUTH_RESPONSE body for the
	// server-named authenticator class.
	InitialResponse(authenticatorClass string) ([]byte, error)
	// EvaluateChallenge answers an AUTH_CHALLENGE body with the next
	// AUTH_RESPONSE body.
	EvaluateChallenge(challenge []byte) ([]byte, error)
}

// PasswordAuthenticator implements the SASL PLAIN exchange used by the
// stock password authenticator class.
type PasswordAuthenticator struct {
	Username string
	Password string
}

func (p PasswordAuthenticator) InitialResponse(string) ([]byte, error) {
	return []byte("\x00" + p.Username + "\x00" + p.Password), nil
}

func (p PasswordAuthenticator) EvaluateChallenge(challenge []byte) ([]byte, error) {
	return nil, AuthenticationError(nil)
}

// Config configures a single Connection.
type Config struct {
	Version        libfrm.ProtocolVersion
	Compression    bool
	Keyspace       string
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration // default 30s, spec.md §4.2
	MaxBodyLength  uint64
	Authenticator  Authenticator
	Logger         loglib.Logger
	// Events, when non-nil, receives server-pushed (stream id -1)
	// frames; only the Control Connection registers one.
	Events func(libfrm.Frame)
}

// Response is a decoded response frame handed back to whoever Send'd
// the matching request.
type Response struct {
	Frame libfrm.Frame
	Err   error
}

// Connection is the per-socket multiplexer described by spec.md §4.2.
type Connection interface {
	// Send reserves a stream id, writes the request, and returns a
	// channel fulfilled exactly once with the matching response or a
	// transport/timeout error.
	Send(ctx context.Context, opcode libfrm.Opcode, flags uint8, body []byte) (<-chan Response, error)

	// State returns the Connection's current lifecycle state.
	State() State

	// Endpoint returns the remote address this Connection was opened
	// against.
	Endpoint() string

	// Close transitions the Connection to draining then closed,
	// failing every pending waiter with a transport error exactly once.
	Close() error

	// InFlight returns the number of stream ids currently allocated,
	// used by the Pool to pick the least-loaded Connection (spec.md §4.8).
	InFlight() int
}
