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

package frame

// Consistency is the u16 wire encoding of a request's consistency level.
type Consistency uint16

const (
	ConsistencyAny         Consistency = 0x00
	ConsistencyOne         Consistency = 0x01
	ConsistencyTwo         Consistency = 0x02
	ConsistencyThree       Consistency = 0x03
	ConsistencyQuorum      Consistency = 0x04
	ConsistencyAll         Consistency = 0x05
	ConsistencyLocalQuorum Consistency = 0x06
	ConsistencyEachQuorum  Consistency = 0x07
	ConsistencySerial      Consistency = 0x08
	ConsistencyLocalSerial Consistency = 0x09
	ConsistencyLocalOne    Consistency = 0x0A
)

// IsSerial reports whether this is one of the two serial consistencies,
// which per spec.md §9 are rejected as a top-level QUERY consistency.
func (c Consistency) IsSerial() bool {
	return c == ConsistencySerial || c == ConsistencyLocalSerial
}

// ErrorCode is the 32-bit code leading an ERROR response body.
type ErrorCode uint32

const (
	ErrServerError      ErrorCode = 0x0000
	ErrProtocolError    ErrorCode = 0x000A
	ErrBadCredentials   ErrorCode = 0x0100
	ErrUnavailable      ErrorCode = 0x1000
	ErrOverloaded       ErrorCode = 0x1001
	ErrIsBootstrapping  ErrorCode = 0x1002
	ErrTruncateError    ErrorCode = 0x1003
	ErrWriteTimeout     ErrorCode = 0x1100
	ErrReadTimeout      ErrorCode = 0x1200
	ErrReadFailure      ErrorCode = 0x1300
	ErrFunctionFailure  ErrorCode = 0x1400
	ErrWriteFailure     ErrorCode = 0x1500
	ErrSyntaxError      ErrorCode = 0x2000
	ErrUnauthorized     ErrorCode = 0x2100
	ErrInvalid          ErrorCode = 0x2200
	ErrConfigError      ErrorCode = 0x2300
	ErrAlreadyExists    ErrorCode = 0x2400
	ErrUnprepared       ErrorCode = 0x2500
)
