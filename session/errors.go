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

package session

import (
	liberr "github.com/sabouaram/cqlcore/errors"
	libfrm "github.com/sabouaram/cqlcore/frame"
)

const (
	ErrNoHostAvailable liberr.CodeError = liberr.MinPkgSession + iota
	ErrInvalidRequest
	ErrServer
	ErrSchemaAgreementTimeout
)

func init() {
	liberr.RegisterIdFctMessage(ErrNoHostAvailable, message)
}

func message(code liberr.CodeError) string {
	switch code {
	case ErrNoHostAvailable:
		return "no host available in query plan"
	case ErrInvalidRequest:
		return "invalid request"
	case ErrServer:
		return "server error"
	case ErrSchemaAgreementTimeout:
		return "schema agreement timeout"
	default:
		return ""
	}
}

func schemaAgreementTimeoutError() error {
	return liberr.New(uint16(ErrSchemaAgreementTimeout), message(ErrSchemaAgreementTimeout))
}

// NoHostAvailableError carries the per-host failure a query plan ran
// into, keyed by endpoint (spec.md §7, "NoHostAvailable ... carries a
// per-host sub-cause map").
type NoHostAvailableError struct {
	Causes map[string]error
}

func (e *NoHostAvailableError) Error() string {
	return message(ErrNoHostAvailable)
}

func newNoHostAvailableError(causes map[string]error) error {
	return &NoHostAvailableError{Causes: causes}
}

func invalidRequestError(parent error) liberr.Error {
	return liberr.New(uint16(ErrInvalidRequest), message(ErrInvalidRequest), parent)
}

// ServerError wraps an ERROR response the Retry Policy decided to
// rethrow rather than retry.
type ServerError struct {
	Code    libfrm.ErrorCode
	Message string
}

func (e *ServerError) Error() string { return e.Message }
