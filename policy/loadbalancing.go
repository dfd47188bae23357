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

// Package policy implements the Load-Balancing, Reconnection, Retry and
// Speculative-Execution policies (spec.md §4.6/§4.7).
package policy

import (
	"math/rand"
	"sync/atomic"

	libhost "github.com/sabouaram/cqlcore/host"
	libtok "github.com/sabouaram/cqlcore/token"
)

// Plan is a lazy, finite query plan: each call yields the next
// candidate endpoint, or ok=false once exhausted. The Executor stops
// pulling as soon as a request succeeds (spec.md §4.6).
type Plan func() (endpoint string, ok bool)

// PlanContext carries the per-request routing hints a TokenAware policy
// needs.
type PlanContext struct {
	Keyspace   string
	RoutingKey []byte
}

// LoadBalancing yields a query plan from the current set of hosts.
type LoadBalancing interface {
	Plan(hosts []*libhost.Host, pc PlanContext) Plan
}

func upHosts(hosts []*libhost.Host) []*libhost.Host {
	out := make([]*libhost.Host, 0, len(hosts))
	for _, h := range hosts {
		if h.Up() {
			out = append(out, h)
		}
	}
	return out
}

func sliceToPlan(order []*libhost.Host) Plan {
	i := 0
	return func() (string, bool) {
		if i >= len(order) {
			return "", false
		}
		e := order[i].Endpoint
		i++
		return e, true
	}
}

// RoundRobin rotates through all up hosts, advancing its start point on
// every Plan call.
type RoundRobin struct {
	counter uint64
}

func (r *RoundRobin) Plan(hosts []*libhost.Host, _ PlanContext) Plan {
	up := upHosts(hosts)
	if len(up) == 0 {
		return sliceToPlan(nil)
	}

	start := int(atomic.AddUint64(&r.counter, 1)-1) % len(up)
	order := make([]*libhost.Host, 0, len(up))
	order = append(order, up[start:]...)
	order = append(order, up[:start]...)
	return sliceToPlan(order)
}

// DCAwareRoundRobin rotates through the local datacenter's up hosts
// first, then up to usedHostsPerRemoteDC hosts from each remote
// datacenter (spec.md §4.6).
type DCAwareRoundRobin struct {
	LocalDC              string
	UsedHostsPerRemoteDC int
	counter              uint64
}

func (d *DCAwareRoundRobin) Plan(hosts []*libhost.Host, _ PlanContext) Plan {
	up := upHosts(hosts)

	var local []*libhost.Host
	remoteByDC := make(map[string][]*libhost.Host)
	var remoteDCs []string

	for _, h := range up {
		if h.Meta.Datacenter == d.LocalDC {
			local = append(local, h)
		} else {
			if _, seen := remoteByDC[h.Meta.Datacenter]; !seen {
				remoteDCs = append(remoteDCs, h.Meta.Datacenter)
			}
			remoteByDC[h.Meta.Datacenter] = append(remoteByDC[h.Meta.Datacenter], h)
		}
	}

	var order []*libhost.Host
	if len(local) > 0 {
		start := int(atomic.AddUint64(&d.counter, 1)-1) % len(local)
		order = append(order, local[start:]...)
		order = append(order, local[:start]...)
	}

	if d.UsedHostsPerRemoteDC > 0 {
		for _, dc := range remoteDCs {
			remote := remoteByDC[dc]
			n := d.UsedHostsPerRemoteDC
			if n > len(remote) {
				n = len(remote)
			}
			order = append(order, remote[:n]...)
		}
	}

	return sliceToPlan(order)
}

// TokenAware prepends the Token Map's replica list (shuffled to spread
// reads) ahead of the wrapped policy's plan, deduplicating endpoints
// (spec.md §4.6).
type TokenAware struct {
	Child  LoadBalancing
	Tokens *libtok.Map
}

func (t TokenAware) Plan(hosts []*libhost.Host, pc PlanContext) Plan {
	var primary []string

	if t.Tokens != nil && pc.Keyspace != "" && len(pc.RoutingKey) > 0 {
		tok := t.Tokens.Hash(pc.RoutingKey)
		if tok != nil {
			primary = append(primary, t.Tokens.Replicas(pc.Keyspace, tok)...)
			rand.Shuffle(len(primary), func(i, j int) { primary[i], primary[j] = primary[j], primary[i] })
		}
	}

	seen := make(map[string]bool, len(primary))
	up := upHosts(hosts)
	filtered := make([]string, 0, len(primary))
	for _, e := range primary {
		for _, h := range up {
			if h.Endpoint == e && !seen[e] {
				seen[e] = true
				filtered = append(filtered, e)
				break
			}
		}
	}

	var childPlan Plan
	if t.Child != nil {
		childPlan = t.Child.Plan(hosts, pc)
	} else {
		childPlan = sliceToPlan(nil)
	}

	i := 0
	return func() (string, bool) {
		if i < len(filtered) {
			e := filtered[i]
			i++
			return e, true
		}
		for {
			e, ok := childPlan()
			if !ok {
				return "", false
			}
			if !seen[e] {
				seen[e] = true
				return e, true
			}
		}
	}
}
