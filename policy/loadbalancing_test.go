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

package policy_test

import (
	libhost "github.com/sabouaram/cqlcore/host"
	libpol "github.com/sabouaram/cqlcore/policy"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func drain(p libpol.Plan) []string {
	var out []string
	for {
		e, ok := p()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

var _ = Describe("RoundRobin", func() {
	It("yields every up host exactly once, rotating the start point across calls", func() {
		hosts := []*libhost.Host{
			{Endpoint: "a", Status: libhost.StatusUp},
			{Endpoint: "b", Status: libhost.StatusUp},
			{Endpoint: "c", Status: libhost.StatusUp},
		}

		rr := &libpol.RoundRobin{}
		first := drain(rr.Plan(hosts, libpol.PlanContext{}))
		second := drain(rr.Plan(hosts, libpol.PlanContext{}))

		Expect(first).To(HaveLen(3))
		Expect(second).To(HaveLen(3))
		Expect(first).ToNot(Equal(second))
	})

	It("skips down hosts", func() {
		hosts := []*libhost.Host{
			{Endpoint: "a", Status: libhost.StatusDown},
			{Endpoint: "b", Status: libhost.StatusUp},
		}
		rr := &libpol.RoundRobin{}
		Expect(drain(rr.Plan(hosts, libpol.PlanContext{}))).To(Equal([]string{"b"}))
	})
})

var _ = Describe("DCAwareRoundRobin", func() {
	It("puts local DC hosts first, then up to N remote hosts per DC", func() {
		hosts := []*libhost.Host{
			{Endpoint: "local1", Status: libhost.StatusUp, Meta: libhost.Meta{Datacenter: "dc1"}},
			{Endpoint: "local2", Status: libhost.StatusUp, Meta: libhost.Meta{Datacenter: "dc1"}},
			{Endpoint: "remote1", Status: libhost.StatusUp, Meta: libhost.Meta{Datacenter: "dc2"}},
			{Endpoint: "remote2", Status: libhost.StatusUp, Meta: libhost.Meta{Datacenter: "dc2"}},
		}

		dc := &libpol.DCAwareRoundRobin{LocalDC: "dc1", UsedHostsPerRemoteDC: 1}
		plan := drain(dc.Plan(hosts, libpol.PlanContext{}))

		Expect(plan).To(HaveLen(3))
		Expect(plan[:2]).To(ConsistOf("local1", "local2"))
		Expect(plan[2]).To(BeElementOf("remote1", "remote2"))
	})

	It("excludes remote hosts entirely when UsedHostsPerRemoteDC is zero", func() {
		hosts := []*libhost.Host{
			{Endpoint: "local1", Status: libhost.StatusUp, Meta: libhost.Meta{Datacenter: "dc1"}},
			{Endpoint: "remote1", Status: libhost.StatusUp, Meta: libhost.Meta{Datacenter: "dc2"}},
		}

		dc := &libpol.DCAwareRoundRobin{LocalDC: "dc1"}
		Expect(drain(dc.Plan(hosts, libpol.PlanContext{}))).To(Equal([]string{"local1"}))
	})
})

var _ = Describe("TokenAware", func() {
	It("falls back to the child policy's plan when there is no routing key", func() {
		hosts := []*libhost.Host{
			{Endpoint: "a", Status: libhost.StatusUp},
			{Endpoint: "b", Status: libhost.StatusUp},
		}

		ta := libpol.TokenAware{Child: &libpol.RoundRobin{}}
		plan := drain(ta.Plan(hosts, libpol.PlanContext{}))
		Expect(plan).To(HaveLen(2))
	})
})
