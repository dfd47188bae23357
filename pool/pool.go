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

package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	libconn "github.com/sabouaram/cqlcore/conn"
	loglib "github.com/sabouaram/cqlcore/logger"
)

const (
	defaultCoreSize     = 1
	defaultMaxSize      = 2
	defaultPerConnLimit = 100
)

type pool struct {
	cfg      Config
	endpoint string
	log      loglib.Logger

	// growSem bounds concurrent async-grow dials to one in flight at a
	// time, so a burst of saturated Acquire calls does not pile up
	// parallel dials past MaxSize.
	growSem *semaphore.Weighted

	mu     sync.RWMutex
	conns  []libconn.Connection
	closed bool
}

// New opens core_size Connections to endpoint and returns a Pool ready
// to grow up to max_size on demand (spec.md §4.8).
func New(ctx context.Context, endpoint string, cfg Config) (Pool, error) {
	if cfg.CoreSize <= 0 {
		cfg.CoreSize = defaultCoreSize
	}
	if cfg.MaxSize < cfg.CoreSize {
		cfg.MaxSize = defaultMaxSize
		if cfg.MaxSize < cfg.CoreSize {
			cfg.MaxSize = cfg.CoreSize
		}
	}
	if cfg.PerConnLimit <= 0 {
		cfg.PerConnLimit = defaultPerConnLimit
	}
	log := cfg.Logger
	if log == nil {
		log = loglib.New()
	}

	p := &pool{
		cfg:      cfg,
		endpoint: endpoint,
		log:      log,
		growSem:  semaphore.NewWeighted(1),
	}

	var lastErr error
	for i := 0; i < cfg.CoreSize; i++ {
		c, err := cfg.Dial(ctx, endpoint)
		if err != nil {
			lastErr = err
			log.Warn("pool: core connection dial failed", loglib.Fields{"endpoint": endpoint, "error": err})
			continue
		}
		p.conns = append(p.conns, c)
	}

	if len(p.conns) == 0 {
		return nil, lastErr
	}
	return p, nil
}

func (p *pool) Acquire(ctx context.Context) (libconn.Connection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.pruneClosedLocked()
	best, bestInFlight := leastLoaded(p.conns)
	n := len(p.conns)
	p.mu.Unlock()

	if best != nil && bestInFlight < p.cfg.PerConnLimit {
		return best, nil
	}

	if n < p.cfg.MaxSize {
		p.maybeGrow()
	}

	if best != nil {
		// Every Connection is saturated but below max_size (growth is
		// already under way) or at max_size: queue briefly on the
		// least-loaded one rather than fail outright.
		return best, nil
	}
	return nil, ErrBusy
}

func (p *pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneClosedLocked()
	return len(p.conns)
}

func (p *pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	conns := p.conns
	p.conns = nil
	p.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

func (p *pool) maybeGrow() {
	if !p.growSem.TryAcquire(1) {
		return
	}
	go func() {
		defer p.growSem.Release(1)

		timeout := p.cfg.ConnectTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		c, err := p.cfg.Dial(ctx, p.endpoint)
		if err != nil {
			p.log.Warn("pool: async grow dial failed", loglib.Fields{"endpoint": p.endpoint, "error": err})
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			_ = c.Close()
			return
		}
		if len(p.conns) >= p.cfg.MaxSize {
			_ = c.Close()
			return
		}
		p.conns = append(p.conns, c)
	}()
}

// pruneClosedLocked drops Connections that have transitioned to Closed
// (caller must hold p.mu).
func (p *pool) pruneClosedLocked() {
	live := p.conns[:0]
	for _, c := range p.conns {
		if c.State() != libconn.StateClosed {
			live = append(live, c)
		}
	}
	p.conns = live
}

func leastLoaded(conns []libconn.Connection) (libconn.Connection, int) {
	var best libconn.Connection
	bestInFlight := -1
	for _, c := range conns {
		if c.State() != libconn.StateReady {
			continue
		}
		n := c.InFlight()
		if best == nil || n < bestInFlight {
			best = c
			bestInFlight = n
		}
	}
	return best, bestInFlight
}
