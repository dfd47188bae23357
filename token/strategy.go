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

// Strategy computes the ordered replica list for a token (spec.md
// §4.4).
type Strategy interface {
	Replicas(ring *Ring, t Token) []string
}

// SimpleStrategy walks the ring clockwise and takes the next RF
// distinct hosts.
type SimpleStrategy struct {
	RF int
}

func (s SimpleStrategy) Replicas(ring *Ring, t Token) []string {
	order := ring.ClockwiseFrom(t)

	seen := make(map[string]bool, s.RF)
	out := make([]string, 0, s.RF)

	for _, e := range order {
		if seen[e.Host] {
			continue
		}
		seen[e.Host] = true
		out = append(out, e.Host)
		if len(out) == s.RF {
			break
		}
	}
	return out
}

// NetworkTopologyStrategy walks the ring clockwise, per DC, taking
// hosts from that DC until its RF is satisfied, preferring hosts in
// racks not yet used within that DC (spec.md §4.4).
type NetworkTopologyStrategy struct {
	RF map[string]int
}

func (s NetworkTopologyStrategy) Replicas(ring *Ring, t Token) []string {
	order := ring.ClockwiseFrom(t)

	need := make(map[string]int, len(s.RF))
	got := make(map[string]int, len(s.RF))
	remaining := 0
	for dc, rf := range s.RF {
		need[dc] = rf
		remaining += rf
	}

	picked := make(map[string]bool)
	racksUsed := make(map[string]map[string]bool)
	var out []string
	var skipped []RingEntry

	place := func(e RingEntry) {
		picked[e.Host] = true
		got[e.DC]++
		remaining--
		out = append(out, e.Host)
		if racksUsed[e.DC] == nil {
			racksUsed[e.DC] = make(map[string]bool)
		}
		racksUsed[e.DC][e.Rack] = true
	}

	for _, e := range order {
		if remaining == 0 {
			break
		}
		rf, wanted := need[e.DC]
		if !wanted || got[e.DC] >= rf || picked[e.Host] {
			continue
		}
		if racksUsed[e.DC] != nil && racksUsed[e.DC][e.Rack] {
			skipped = append(skipped, e)
			continue
		}
		place(e)
	}

	for _, e := range skipped {
		if remaining == 0 {
			break
		}
		rf := need[e.DC]
		if got[e.DC] >= rf || picked[e.Host] {
			continue
		}
		place(e)
	}

	return out
}
