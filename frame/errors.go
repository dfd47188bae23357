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

import (
	liberr "github.com/sabouaram/cqlcore/errors"
)

const (
	ErrorCodeTruncatedHeader liberr.CodeError = liberr.MinPkgFrame + iota
	ErrorCodeTruncatedBody
	ErrorCodeUnknownOpcode
	ErrorCodeLengthExceeded
	ErrorCodeUnsetOnOldProtocol
	ErrorCodeInvalidConsistency
)

func init() {
	liberr.RegisterIdFctMessage(ErrorCodeTruncatedHeader, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorCodeTruncatedHeader:
		return "truncated frame header"
	case ErrorCodeTruncatedBody:
		return "truncated frame body"
	case ErrorCodeUnknownOpcode:
		return "unknown opcode in decoded frame"
	case ErrorCodeLengthExceeded:
		return "frame body length exceeds configured maximum"
	case ErrorCodeUnsetOnOldProtocol:
		return "unset value is not valid below protocol v4"
	case ErrorCodeInvalidConsistency:
		return "SERIAL/LOCAL_SERIAL is not valid as a top-level consistency level"
	default:
		return ""
	}
}

// ProtocolError wraps one of the frame-decoding failures above as the
// driver's ambient Error type.
func ProtocolError(code liberr.CodeError, parent ...error) liberr.Error {
	return liberr.New(uint16(code), getMessage(code), parent...)
}
