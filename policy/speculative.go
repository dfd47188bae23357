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

package policy

import (
	"time"

	"golang.org/x/time/rate"
)

// Speculative decides whether and when to launch a parallel attempt
// against the next host in the query plan (spec.md §4.7).
type Speculative interface {
	Enabled() bool
	Delay() time.Duration
	MaxRuns() int
	// Allow paces speculative launches cluster-wide so a slow host does
	// not trigger a stampede of parallel attempts.
	Allow() bool
}

// ConstantSpeculative launches up to MaxRuns extra attempts, Delay apart,
// throttled by a token-bucket limiter shared across the Session.
type ConstantSpeculative struct {
	delay   time.Duration
	maxRuns int
	limiter *rate.Limiter
}

// NewConstantSpeculative builds a Speculative policy; ratePerSecond
// bounds how many speculative attempts may be launched per second
// across the whole Session.
func NewConstantSpeculative(delay time.Duration, maxRuns int, ratePerSecond float64) *ConstantSpeculative {
	return &ConstantSpeculative{
		delay:   delay,
		maxRuns: maxRuns,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), maxRuns+1),
	}
}

func (c *ConstantSpeculative) Enabled() bool        { return c.maxRuns > 0 }
func (c *ConstantSpeculative) Delay() time.Duration { return c.delay }
func (c *ConstantSpeculative) MaxRuns() int         { return c.maxRuns }

func (c *ConstantSpeculative) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// Disabled never launches a speculative attempt.
type Disabled struct{}

func (Disabled) Enabled() bool        { return false }
func (Disabled) Delay() time.Duration { return 0 }
func (Disabled) MaxRuns() int         { return 0 }
func (Disabled) Allow() bool          { return false }
