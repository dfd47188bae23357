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

// RESULT body kinds (spec.md §6 names the RESULT opcode; the kind tag
// inside its body is the native protocol's own sub-discriminant).
const (
	resultVoid        = 0x0001
	resultRows        = 0x0002
	resultSetKeyspace = 0x0003
	resultPrepared     = 0x0004
	resultSchemaChange = 0x0005
)

const (
	flagGlobalTablesSpec = 0x0001
)

// Column type option ids a Rows body may carry; list, set and map
// options are followed into their element types so a column's type is
// skipped without decoding it, a generic row-value codec being out of
// this core's scope (spec.md §7, "row-value codec details beyond what
// the protocol requires"). Any other option id is skipped as a bare id:
// custom, UDT and tuple options, which carry more after the id, are not
// followed.
const (
	optionList = 0x0020
	optionSet  = 0x0022
	optionMap  = 0x0021
)

// decodeResult parses a RESULT body into a Result, stopping as soon as
// the kind-specific fields it needs have been read.
func decodeResult(version libfrm.ProtocolVersion, body []byte) (*Result, error) {
	r := libfrm.NewReader(body)

	kind, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}

	switch kind {
	case resultVoid, resultSchemaChange:
		return &Result{Kind: kind}, nil

	case resultSetKeyspace:
		ks, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, Keyspace: ks}, nil

	case resultPrepared:
		id, err := r.ReadShortBytes()
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, PreparedID: id}, nil

	case resultRows:
		cols, rows, pagingState, err := decodeRows(version, r)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, Columns: cols, Rows: rows, PagingState: pagingState}, nil

	default:
		return &Result{Kind: kind}, nil
	}
}

func decodeRows(version libfrm.ProtocolVersion, r *libfrm.Reader) ([]string, []Row, []byte, error) {
	flags, err := r.ReadUint32()
	if err != nil {
		return nil, nil, nil, err
	}
	colCount, err := r.ReadUint32()
	if err != nil {
		return nil, nil, nil, err
	}

	var pagingState []byte
	if flags&0x0002 != 0 { // Has_more_pages
		b, err := r.ReadBytes(version)
		if err != nil {
			return nil, nil, nil, err
		}
		if !b.IsNull() {
			pagingState = b.Value()
		}
	}

	if flags&flagGlobalTablesSpec != 0 {
		if _, err = r.ReadString(); err != nil {
			return nil, nil, nil, err
		}
		if _, err = r.ReadString(); err != nil {
			return nil, nil, nil, err
		}
	}

	names := make([]string, colCount)
	for i := range names {
		if flags&flagGlobalTablesSpec == 0 {
			if _, err = r.ReadString(); err != nil {
				return nil, nil, nil, err
			}
			if _, err = r.ReadString(); err != nil {
				return nil, nil, nil, err
			}
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, nil, nil, err
		}
		names[i] = name
		if err := skipOption(r); err != nil {
			return nil, nil, nil, err
		}
	}

	rowCount, err := r.ReadUint32()
	if err != nil {
		return nil, nil, nil, err
	}

	rows := make([]Row, rowCount)
	for i := range rows {
		row := make(Row, colCount)
		for _, name := range names {
			b, err := r.ReadBytes(version)
			if err != nil {
				return nil, nil, nil, err
			}
			if !b.IsNull() && !b.IsUnset() {
				row[name] = b.Value()
			}
		}
		rows[i] = row
	}
	return names, rows, pagingState, nil
}

func skipOption(r *libfrm.Reader) error {
	id, err := r.ReadUint16()
	if err != nil {
		return err
	}
	switch id {
	case optionList, optionSet:
		return skipOption(r)
	case optionMap:
		if err := skipOption(r); err != nil {
			return err
		}
		return skipOption(r)
	default:
		return nil
	}
}
