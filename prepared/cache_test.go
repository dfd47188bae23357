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

package prepared_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	libprep "github.com/sabouaram/cqlcore/prepared"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cache", func() {
	It("misses on an unknown statement", func() {
		c := libprep.New()
		_, ok := c.Get("ks", "select 1")
		Expect(ok).To(BeFalse())
	})

	It("caches the id returned by GetOrPrepare", func() {
		c := libprep.New()
		id, err := c.GetOrPrepare(context.Background(), "ks", "select 1", func(ctx context.Context) ([]byte, error) {
			return []byte{0xAB}, nil
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(id).To(Equal([]byte{0xAB}))

		got, ok := c.Get("ks", "select 1")
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal([]byte{0xAB}))
	})

	It("collapses concurrent prepares of the same statement into one call", func() {
		c := libprep.New()
		var calls int32

		prepare := func(ctx context.Context) ([]byte, error) {
			atomic.AddInt32(&calls, 1)
			return []byte{0x01}, nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = c.GetOrPrepare(context.Background(), "ks", "select * from t", prepare)
			}()
		}
		wg.Wait()

		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
	})

	It("propagates a prepare failure without caching it", func() {
		c := libprep.New()
		boom := errors.New("boom")
		_, err := c.GetOrPrepare(context.Background(), "ks", "bad", func(ctx context.Context) ([]byte, error) {
			return nil, boom
		})
		Expect(err).To(Equal(boom))

		_, ok := c.Get("ks", "bad")
		Expect(ok).To(BeFalse())
	})

	It("Invalidate drops a cached entry", func() {
		c := libprep.New()
		_, _ = c.GetOrPrepare(context.Background(), "ks", "select 1", func(ctx context.Context) ([]byte, error) {
			return []byte{0x01}, nil
		})
		c.Invalidate("ks", "select 1")
		_, ok := c.Get("ks", "select 1")
		Expect(ok).To(BeFalse())
	})
})
