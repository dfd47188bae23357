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

package token

import (
	libatm "github.com/sabouaram/cqlcore/atomic"
)

// snapshot is one immutable Token Map generation (spec.md §3, "rebuilt
// atomically whenever the keyspace replication or host/token set
// changes; readers see a single snapshot per lookup").
type snapshot struct {
	partitioner Partitioner
	ring        *Ring
	strategies  map[string]Strategy
}

// Map is the Token Map: a publish point for successive immutable
// snapshots, read without locking via atomic.Value[T].
type Map struct {
	current libatm.Value[*snapshot]
}

func New() *Map {
	return &Map{current: libatm.NewValue[*snapshot]()}
}

// Rebuild atomically publishes a new snapshot built from the given
// partitioner, ring, and per-keyspace replication strategies.
func (m *Map) Rebuild(partitioner Partitioner, ring *Ring, strategies map[string]Strategy) {
	m.current.Store(&snapshot{partitioner: partitioner, ring: ring, strategies: strategies})
}

// Hash applies the current partitioner's hash to a partition key.
func (m *Map) Hash(key []byte) Token {
	s := m.current.Load()
	if s == nil || s.partitioner == nil {
		return nil
	}
	return s.partitioner.Hash(key)
}

// Replicas returns the precomputed replica list for (keyspace, token),
// or nil if the keyspace is unknown (spec.md §4.4).
func (m *Map) Replicas(keyspace string, t Token) []string {
	s := m.current.Load()
	if s == nil || s.ring == nil {
		return nil
	}
	strat, ok := s.strategies[keyspace]
	if !ok {
		return nil
	}
	return strat.Replicas(s.ring, t)
}
