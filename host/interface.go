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

// Package host implements the Host Registry (spec.md §4.3): the
// authoritative set of known endpoints, their up/down status, and
// reconnection scheduling on the way back up.
package host

import "time"

// Status is a Host's up/down state.
type Status uint8

const (
	StatusDown Status = iota
	StatusUp
)

func (s Status) String() string {
	if s == StatusUp {
		return "up"
	}
	return "down"
}

// Meta is the peer-discovery metadata attached to a Host when it is
// first seen or refreshed (spec.md §3, "Host").
type Meta struct {
	Datacenter     string
	Rack           string
	Tokens         []string
	ReleaseVersion string
}

// Host is a single known endpoint. Instances are immutable snapshots:
// the Registry replaces its map entry rather than mutating a Host in
// place, so a Snapshot or TryGet result never changes underneath its
// caller.
type Host struct {
	Endpoint      string
	Meta          Meta
	Status        Status
	NextReconnect time.Time
}

func (h *Host) Up() bool { return h.Status == StatusUp }

// ReconnectionPolicy is the narrow slice of the Reconnection Policy
// (spec.md §4.7) the Registry needs: a per-attempt delay schedule. The
// interface lives here, the consumer, rather than in policy, so host
// does not import policy.
type ReconnectionPolicy interface {
	NextDelay(attempt int) time.Duration
}

// EventType distinguishes the kinds of change a Subscription observes.
type EventType uint8

const (
	EventUp EventType = iota
	EventDown
	EventAdded
	EventRemoved
)

// Event is delivered to every Subscription on any Host state change.
type Event struct {
	Type EventType
	Host *Host
}
