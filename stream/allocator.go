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

// Package stream allocates per-Connection stream ids from the bounded
// pool described in spec.md §3 ("Stream id"): 128 wide for protocol v2,
// 32768 wide for v3+, with -1 reserved for server-initiated events.
package stream

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bitset"

	liberr "github.com/sabouaram/cqlcore/errors"
)

const (
	ErrExhausted liberr.CodeError = liberr.MinPkgStream + iota
)

func init() {
	liberr.RegisterIdFctMessage(ErrExhausted, func(code liberr.CodeError) string {
		if code == ErrExhausted {
			return "stream id pool exhausted and context ended before one freed"
		}
		return ""
	})
}

// Allocator hands out unique stream ids in [0, size) and lets callers
// await one becoming free when the pool is momentarily exhausted
// (spec.md §4.2, "if none available, awaits one"). -1 is never handed
// out: it is reserved for server push events.
type Allocator struct {
	mu       sync.Mutex
	inUse    *bitset.BitSet
	size     uint
	waiters  []chan struct{}
}

// New returns an Allocator over the stream-id space implied by the
// negotiated protocol version (128 for v2, 32768 for v3+).
func New(space int) *Allocator {
	return &Allocator{
		inUse: bitset.New(uint(space)),
		size:  uint(space),
	}
}

// Acquire reserves a free stream id, blocking until one is available or
// ctx is done. It never returns -1.
func (a *Allocator) Acquire(ctx context.Context) (int16, error) {
	for {
		a.mu.Lock()
		if id, ok := a.findFree(); ok {
			a.inUse.Set(id)
			a.mu.Unlock()
			return int16(id), nil
		}

		w := make(chan struct{})
		a.waiters = append(a.waiters, w)
		a.mu.Unlock()

		select {
		case <-w:
			continue
		case <-ctx.Done():
			return 0, liberr.New(uint16(ErrExhausted), "", ctx.Err())
		}
	}
}

// TryAcquire reserves a free stream id without blocking; ok is false if
// the pool is currently exhausted.
func (a *Allocator) TryAcquire() (id int16, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, found := a.findFree()
	if !found {
		return 0, false
	}
	a.inUse.Set(u)
	return int16(u), true
}

func (a *Allocator) findFree() (uint, bool) {
	i, ok := a.inUse.NextClear(0)
	if !ok || i >= a.size {
		return 0, false
	}
	return i, true
}

// Release frees a previously acquired stream id and wakes one waiter,
// if any. Releasing an id that was never acquired is a no-op — the
// Connection's "closed" transition releases every id exactly once
// (spec.md §3 stream-id-uniqueness invariant) and must tolerate a
// response that arrives after the id was already force-released.
func (a *Allocator) Release(id int16) {
	if id < 0 {
		return
	}

	a.mu.Lock()
	a.inUse.Clear(uint(id))

	var w chan struct{}
	if len(a.waiters) > 0 {
		w, a.waiters = a.waiters[0], a.waiters[1:]
	}
	a.mu.Unlock()

	if w != nil {
		close(w)
	}
}

// InUse reports how many stream ids are currently allocated.
func (a *Allocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.inUse.Count())
}

// ReleaseAll clears every allocated id and wakes all waiters, used when
// a Connection transitions to "closed" (spec.md §3 invariant: "after
// closed, all pending waiters are resolved... exactly once").
func (a *Allocator) ReleaseAll() {
	a.mu.Lock()
	a.inUse.ClearAll()
	waiters := a.waiters
	a.waiters = nil
	a.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}
