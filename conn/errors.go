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

package conn

import (
	liberr "github.com/sabouaram/cqlcore/errors"
)

const (
	ErrTransport liberr.CodeError = liberr.MinPkgConn + iota
	ErrClosed
	ErrTimeout
	ErrAuthentication
	ErrHandshake
)

func init() {
	liberr.RegisterIdFctMessage(ErrTransport, message)
}

func message(code liberr.CodeError) string {
	switch code {
	case ErrTransport:
		return "transport error"
	case ErrClosed:
		return "connection is closed"
	case ErrTimeout:
		return "client-side deadline elapsed"
	case ErrAuthentication:
		return "authentication failed"
	case ErrHandshake:
		return "handshake failed"
	default:
		return ""
	}
}

func TransportError(parent error) liberr.Error {
	return liberr.New(uint16(ErrTransport), message(ErrTransport), parent)
}

func ClosedError() liberr.Error {
	return liberr.New(uint16(ErrClosed), message(ErrClosed))
}

func TimeoutError() liberr.Error {
	return liberr.New(uint16(ErrTimeout), message(ErrTimeout))
}

func AuthenticationError(parent error) liberr.Error {
	return liberr.New(uint16(ErrAuthentication), message(ErrAuthentication), parent)
}

func HandshakeError(parent error) liberr.Error {
	return liberr.New(uint16(ErrHandshake), message(ErrHandshake), parent)
}
