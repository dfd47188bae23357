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
)

// buildQueryBody encodes a QUERY body: long-string CQL text, then the
// <query_parameters> block shared by QUERY and EXECUTE (spec.md §6).
func buildQueryBody(version libfrm.ProtocolVersion, stmt Statement) ([]byte, error) {
	w := libfrm.NewWriter()
	w.WriteLongString(stmt.Query)
	body, err := writeQueryParams(w, version, stmt)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// buildExecuteBody encodes an EXECUTE body: the prepared id as short
// bytes, then the same <query_parameters> block as QUERY.
func buildExecuteBody(version libfrm.ProtocolVersion, id []byte, stmt Statement) ([]byte, error) {
	w := libfrm.NewWriter()
	w.WriteShortBytes(id)
	return writeQueryParams(w, version, stmt)
}

func writeQueryParams(w *libfrm.Writer, version libfrm.ProtocolVersion, stmt Statement) ([]byte, error) {
	consistency := stmt.Consistency
	if consistency == 0 {
		consistency = libfrm.ConsistencyOne
	}
	w.WriteUint16(uint16(consistency))

	var flags uint8
	if len(stmt.Values) > 0 {
		flags |= uint8(libfrm.QueryFlagValues)
	}
	if stmt.PageSize > 0 {
		flags |= uint8(libfrm.QueryFlagPageSize)
	}
	if len(stmt.PagingState) > 0 {
		flags |= uint8(libfrm.QueryFlagPagingState)
	}
	w.WriteByte(flags)

	if len(stmt.Values) > 0 {
		w.WriteUint16(uint16(len(stmt.Values)))
		for _, v := range stmt.Values {
			if v.IsUnset() && version < libfrm.ProtocolV4 {
				// Unset only exists on the v4+ wire (spec.md §9,
				// "Ambiguity to flag"): reject locally rather than
				// guessing at Null, which has different semantics
				// (overwrite-with-tombstone vs. leave-unchanged).
				return nil, invalidRequestError(libfrm.ProtocolError(libfrm.ErrorCodeUnsetOnOldProtocol))
			}
			if err := w.WriteBytes(version, v); err != nil {
				return nil, err
			}
		}
	}
	if stmt.PageSize > 0 {
		w.WriteInt32(stmt.PageSize)
	}
	if len(stmt.PagingState) > 0 {
		if err := w.WriteBytes(version, libfrm.SetValue(stmt.PagingState)); err != nil {
			return nil, err
		}
	}

	return w.Bytes(), nil
}
