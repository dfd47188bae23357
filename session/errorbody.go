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
	libfrm "github.com/sabouaram/cqlcore/frame"
	libpol "github.com/sabouaram/cqlcore/policy"
)

// wireError is a decoded ERROR response body (spec.md §6, "ERROR body"),
// kept session-local since the extra fields per code are only ever
// needed to build a policy.RetryContext.
type wireError struct {
	code        libfrm.ErrorCode
	message     string
	consistency libfrm.Consistency
	received    int32
	blockFor    int32
	required    int32
	alive       int32
	dataPresent bool
	writeType   string
	unpreparedID []byte
}

func (e *wireError) Error() string { return e.message }

// decodeWireError parses an ERROR body: its leading code and message,
// then the code-specific fields real clusters append.
func decodeWireError(body []byte) (*wireError, error) {
	r := libfrm.NewReader(body)

	code, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	msg, err := r.ReadString()
	if err != nil {
		return nil, err
	}

	e := &wireError{code: libfrm.ErrorCode(code), message: msg}

	switch e.code {
	case libfrm.ErrUnavailable:
		if e.consistency, err = readConsistency(r); err != nil {
			return nil, err
		}
		if e.required, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		if e.alive, err = r.ReadInt32(); err != nil {
			return nil, err
		}

	case libfrm.ErrWriteTimeout, libfrm.ErrWriteFailure:
		if e.consistency, err = readConsistency(r); err != nil {
			return nil, err
		}
		if e.received, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		if e.blockFor, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		if e.code == libfrm.ErrWriteFailure {
			if _, err = r.ReadInt32(); err != nil { // num failures, v5-ish extension unused here
				return nil, err
			}
		}
		if e.writeType, err = r.ReadString(); err != nil {
			return nil, err
		}

	case libfrm.ErrReadTimeout, libfrm.ErrReadFailure:
		if e.consistency, err = readConsistency(r); err != nil {
			return nil, err
		}
		if e.received, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		if e.blockFor, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		e.dataPresent = b != 0

	case libfrm.ErrUnprepared:
		id, err := r.ReadShortBytes()
		if err != nil {
			return nil, err
		}
		e.unpreparedID = id
	}

	return e, nil
}

func readConsistency(r *libfrm.Reader) (libfrm.Consistency, error) {
	v, err := r.ReadUint16()
	return libfrm.Consistency(v), err
}

// retryKind classifies a wireError's code into the ErrorKind a Retry
// policy decides on (spec.md §4.7).
func (e *wireError) retryKind() libpol.ErrorKind {
	switch e.code {
	case libfrm.ErrReadTimeout, libfrm.ErrReadFailure:
		return libpol.ErrorKindReadTimeout
	case libfrm.ErrWriteTimeout, libfrm.ErrWriteFailure:
		return libpol.ErrorKindWriteTimeout
	case libfrm.ErrUnavailable:
		return libpol.ErrorKindUnavailable
	case libfrm.ErrOverloaded:
		return libpol.ErrorKindOverloaded
	case libfrm.ErrIsBootstrapping:
		return libpol.ErrorKindBootstrapping
	default:
		return libpol.ErrorKindOther
	}
}

// terminal reports whether this code is always surfaced immediately,
// never something a Retry Policy should be consulted about (spec.md
// §7: AuthenticationError, InvalidRequest/SyntaxError/Unauthorized/
// ConfigError).
func (e *wireError) terminal() bool {
	switch e.code {
	case libfrm.ErrBadCredentials, libfrm.ErrSyntaxError, libfrm.ErrUnauthorized,
		libfrm.ErrInvalid, libfrm.ErrConfigError, libfrm.ErrAlreadyExists,
		libfrm.ErrProtocolError, libfrm.ErrServerError, libfrm.ErrFunctionFailure,
		libfrm.ErrTruncateError:
		return true
	default:
		return false
	}
}

func (e *wireError) writeTypeKind() libpol.WriteType {
	switch e.writeType {
	case "SIMPLE":
		return libpol.WriteTypeSimple
	case "BATCH":
		return libpol.WriteTypeBatch
	case "BATCH_LOG":
		return libpol.WriteTypeBatchLog
	case "UNLOGGED_BATCH":
		return libpol.WriteTypeUnloggedBatch
	case "COUNTER":
		return libpol.WriteTypeCounter
	case "CAS":
		return libpol.WriteTypeCAS
	case "VIEW":
		return libpol.WriteTypeView
	default:
		return libpol.WriteTypeSimple
	}
}
