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
	libfrm "github.com/sabouaram/cqlcore/frame"
)

// ErrorKind classifies the failure a Retry policy decides on.
type ErrorKind uint8

const (
	ErrorKindReadTimeout ErrorKind = iota
	ErrorKindWriteTimeout
	ErrorKindUnavailable
	ErrorKindConnection
	ErrorKindOverloaded
	ErrorKindBootstrapping
	ErrorKindOther
)

// WriteType distinguishes the kinds of write a WriteTimeout can report.
type WriteType uint8

const (
	WriteTypeSimple WriteType = iota
	WriteTypeBatch
	WriteTypeBatchLog
	WriteTypeUnloggedBatch
	WriteTypeCounter
	WriteTypeCAS
	WriteTypeView
)

// Decision is one of the four outcomes a Retry policy may return
// (spec.md §4.7).
type Decision uint8

const (
	DecisionRethrow Decision = iota
	DecisionIgnore
	DecisionRetrySame
	DecisionRetryNext
)

// RetryContext is everything a Retry policy needs to decide.
type RetryContext struct {
	Kind          ErrorKind
	Consistency   libfrm.Consistency
	WriteType     WriteType
	RetryCount    int
	Idempotent    bool
	Received      int32
	BlockFor      int32
	DataRetrieved bool
}

// Retry decides, given an error context, one of retry-same, retry-next,
// rethrow, or ignore (spec.md §4.7).
type Retry interface {
	Decide(ctx RetryContext) (Decision, libfrm.Consistency)
}

// DefaultRetry implements the stock decision table from spec.md §4.7.
type DefaultRetry struct{}

func (DefaultRetry) Decide(ctx RetryContext) (Decision, libfrm.Consistency) {
	switch ctx.Kind {
	case ErrorKindReadTimeout:
		if ctx.RetryCount == 0 && ctx.Received >= ctx.BlockFor && !ctx.DataRetrieved {
			return DecisionRetrySame, ctx.Consistency
		}
		return DecisionRethrow, ctx.Consistency

	case ErrorKindWriteTimeout:
		if ctx.RetryCount == 0 && ctx.WriteType == WriteTypeBatchLog {
			return DecisionRetrySame, ctx.Consistency
		}
		return DecisionRethrow, ctx.Consistency

	case ErrorKindUnavailable:
		if ctx.RetryCount == 0 {
			return DecisionRetryNext, ctx.Consistency
		}
		return DecisionRethrow, ctx.Consistency

	case ErrorKindConnection:
		if ctx.Idempotent {
			return DecisionRetryNext, ctx.Consistency
		}
		return DecisionRethrow, ctx.Consistency

	case ErrorKindOverloaded, ErrorKindBootstrapping:
		return DecisionRetryNext, ctx.Consistency

	default:
		return DecisionRethrow, ctx.Consistency
	}
}
