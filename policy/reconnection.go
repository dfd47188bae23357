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

import "time"

// Reconnection produces a schedule of delays (spec.md §4.7) and
// satisfies host.ReconnectionPolicy.
type Reconnection interface {
	NextDelay(attempt int) time.Duration
}

// ConstantReconnection retries at a fixed delay.
type ConstantReconnection struct {
	Delay time.Duration
}

func (c ConstantReconnection) NextDelay(int) time.Duration { return c.Delay }

// ExponentialReconnection doubles the delay per attempt, starting at
// Base and never exceeding Max.
type ExponentialReconnection struct {
	Base time.Duration
	Max  time.Duration
}

func (e ExponentialReconnection) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := e.Base
	for i := 0; i < attempt; i++ {
		if d >= e.Max {
			return e.Max
		}
		d *= 2
	}
	if d > e.Max {
		d = e.Max
	}
	return d
}
