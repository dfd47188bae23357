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

package host_test

import (
	"context"
	"sync/atomic"
	"time"

	libhost "github.com/sabouaram/cqlcore/host"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type constantDelay time.Duration

func (d constantDelay) NextDelay(int) time.Duration { return time.Duration(d) }

var _ = Describe("Registry", func() {
	It("reports true and emits Added+Up when a host is first seen", func() {
		r := libhost.New(libhost.Config{})
		defer r.Close()

		sub := r.Subscribe()
		defer sub.Unsubscribe()

		created := r.AddOrBringUp("10.0.0.1:9042", libhost.Meta{Datacenter: "dc1"})
		Expect(created).To(BeTrue())

		Eventually(sub.C).Should(Receive(HaveField("Type", libhost.EventAdded)))
		Eventually(sub.C).Should(Receive(HaveField("Type", libhost.EventUp)))

		h, ok := r.TryGet("10.0.0.1:9042")
		Expect(ok).To(BeTrue())
		Expect(h.Up()).To(BeTrue())
		Expect(h.Meta.Datacenter).To(Equal("dc1"))
	})

	It("reports false when bringing up an already-up host", func() {
		r := libhost.New(libhost.Config{})
		defer r.Close()

		r.AddOrBringUp("10.0.0.2:9042", libhost.Meta{})
		again := r.AddOrBringUp("10.0.0.2:9042", libhost.Meta{})
		Expect(again).To(BeFalse())
	})

	It("schedules a reconnection on SetDown and brings the host back up on a successful probe", func() {
		var probes int32
		r := libhost.New(libhost.Config{
			Reconnection: constantDelay(5 * time.Millisecond),
			Probe: func(ctx context.Context, endpoint string) error {
				atomic.AddInt32(&probes, 1)
				return nil
			},
		})
		defer r.Close()

		r.AddOrBringUp("10.0.0.3:9042", libhost.Meta{})
		r.SetDown("10.0.0.3:9042")

		h, _ := r.TryGet("10.0.0.3:9042")
		Expect(h.Up()).To(BeFalse())

		Eventually(func() bool {
			h, _ := r.TryGet("10.0.0.3:9042")
			return h.Up()
		}, time.Second).Should(BeTrue())
		Expect(atomic.LoadInt32(&probes)).To(BeNumerically(">=", 1))
	})

	It("reschedules after a failed probe and eventually succeeds", func() {
		var calls int32
		r := libhost.New(libhost.Config{
			Reconnection: constantDelay(2 * time.Millisecond),
			Probe: func(ctx context.Context, endpoint string) error {
				n := atomic.AddInt32(&calls, 1)
				if n < 3 {
					return context.DeadlineExceeded
				}
				return nil
			},
		})
		defer r.Close()

		r.AddOrBringUp("10.0.0.4:9042", libhost.Meta{})
		r.SetDown("10.0.0.4:9042")

		Eventually(func() bool {
			h, _ := r.TryGet("10.0.0.4:9042")
			return h.Up()
		}, time.Second).Should(BeTrue())
		Expect(atomic.LoadInt32(&calls)).To(BeNumerically(">=", 3))
	})

	It("removes a host and stops further reconnection attempts", func() {
		var probes int32
		r := libhost.New(libhost.Config{
			Reconnection: constantDelay(5 * time.Millisecond),
			Probe: func(ctx context.Context, endpoint string) error {
				atomic.AddInt32(&probes, 1)
				return context.DeadlineExceeded
			},
		})
		defer r.Close()

		r.AddOrBringUp("10.0.0.5:9042", libhost.Meta{})
		r.SetDown("10.0.0.5:9042")
		r.Remove("10.0.0.5:9042")

		_, ok := r.TryGet("10.0.0.5:9042")
		Expect(ok).To(BeFalse())

		time.Sleep(30 * time.Millisecond)
		after := atomic.LoadInt32(&probes)
		time.Sleep(30 * time.Millisecond)
		Expect(atomic.LoadInt32(&probes)).To(Equal(after))
	})

	It("Snapshot reflects every known host", func() {
		r := libhost.New(libhost.Config{})
		defer r.Close()

		r.AddOrBringUp("10.0.0.6:9042", libhost.Meta{})
		r.AddOrBringUp("10.0.0.7:9042", libhost.Meta{})

		snap := r.Snapshot()
		Expect(snap).To(HaveLen(2))
	})
})
