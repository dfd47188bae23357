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

import "sort"

// RingEntry is one (token, host) pair on the ring, annotated with the
// host's datacenter and rack for NetworkTopologyStrategy.
type RingEntry struct {
	Token Token
	Host  string
	DC    string
	Rack  string
}

// Ring is the sorted (token, host) ring a Token Map snapshot is built
// from (spec.md §3, "Token Map").
type Ring struct {
	entries []RingEntry
}

// NewRing sorts a copy of entries ascending by Token.
func NewRing(entries []RingEntry) *Ring {
	cp := make([]RingEntry, len(entries))
	copy(cp, entries)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Token.Compare(cp[j].Token) < 0 })
	return &Ring{entries: cp}
}

func (r *Ring) Len() int { return len(r.entries) }

// ClockwiseFrom returns every ring entry once, starting at the first
// entry whose token is >= t and wrapping around the ring.
func (r *Ring) ClockwiseFrom(t Token) []RingEntry {
	n := len(r.entries)
	if n == 0 {
		return nil
	}

	idx := sort.Search(n, func(i int) bool { return r.entries[i].Token.Compare(t) >= 0 })
	if idx == n {
		idx = 0
	}

	out := make([]RingEntry, 0, n)
	out = append(out, r.entries[idx:]...)
	out = append(out, r.entries[:idx]...)
	return out
}
