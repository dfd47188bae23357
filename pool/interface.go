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

// Package pool implements the Host Connection Pool (spec.md §4.8): a
// per-host set of Connections sized between a core and a max bound,
// acquisition by least in-flight, async growth under saturation.
package pool

import (
	"context"
	"errors"
	"time"

	libconn "github.com/sabouaram/cqlcore/conn"
	loglib "github.com/sabouaram/cqlcore/logger"
)

// ErrBusy is returned by Acquire when the pool holds no Ready
// Connection to hand out.
var ErrBusy = errors.New("pool: busy")

// ErrClosed is returned by Acquire once the Pool has been torn down; a
// closed Pool hands out nothing (spec.md §4.8).
var ErrClosed = errors.New("pool: closed")

// Dialer opens one Connection to the Pool's endpoint.
type Dialer func(ctx context.Context, endpoint string) (libconn.Connection, error)

// Config configures a Pool.
type Config struct {
	CoreSize int
	MaxSize  int
	// PerConnLimit is the in-flight ceiling a Connection must be under
	// before it is considered for new requests instead of triggering
	// async growth (derived from the stream-id space, spec.md §4.8).
	PerConnLimit int
	ConnectTimeout time.Duration
	Dial           Dialer
	Logger         loglib.Logger
}

// Pool is the per-host Connection pool (spec.md §4.8).
type Pool interface {
	// Acquire returns the Ready Connection with the fewest in-flight
	// requests. If every Connection is at PerConnLimit, it starts an
	// async grow when below MaxSize and still returns the least-loaded
	// Connection. It returns ErrBusy only when no Connection is Ready.
	Acquire(ctx context.Context) (libconn.Connection, error)

	// Size returns the current number of live Connections.
	Size() int

	// Close tears down every Connection in the pool; subsequent
	// Acquire calls fail with ErrClosed.
	Close()
}
