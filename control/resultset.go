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

package control

import (
	libfrm "github.com/sabouaram/cqlcore/frame"
)

// resultKindRows is RESULT's kind field for a row-bearing response
// (spec.md §6 notes the ERROR/RESULT opcodes; the kind tag inside a
// RESULT body is the native protocol's own sub-discriminant).
const resultKindRows = 0x0002

const (
	flagGlobalTablesSpec = 0x0001
)

// optionList/optionSet/optionMap are the wire ids of the only compound
// column types system.local/system.peers/system_schema.keyspaces ever
// report; a full row-value type registry is out of this core's scope
// (spec.md §7 Non-goals, "row-value codec beyond protocol needs") — this
// reads just enough of a column's type option to skip it correctly.
const (
	optionList = 0x0020
	optionSet  = 0x0022
	optionMap  = 0x0021
)

// row is one decoded RESULT row: column name to its raw [bytes] value,
// absent when the server returned Null.
type row map[string][]byte

// decodeRows parses a RESULT body of kind Rows into column-named rows,
// skipping the per-column type metadata rather than validating it.
func decodeRows(version libfrm.ProtocolVersion, body []byte) ([]row, error) {
	r := libfrm.NewReader(body)

	kind, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if kind != resultKindRows {
		return nil, nil
	}

	flags, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	colCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}

	if flags&flagGlobalTablesSpec != 0 {
		if _, err = r.ReadString(); err != nil {
			return nil, err
		}
		if _, err = r.ReadString(); err != nil {
			return nil, err
		}
	}

	names := make([]string, colCount)
	for i := range names {
		if flags&flagGlobalTablesSpec == 0 {
			if _, err = r.ReadString(); err != nil {
				return nil, err
			}
			if _, err = r.ReadString(); err != nil {
				return nil, err
			}
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		names[i] = name
		if err := skipOption(r); err != nil {
			return nil, err
		}
	}

	rowCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}

	out := make([]row, rowCount)
	for i := range out {
		rw := make(row, colCount)
		for _, name := range names {
			b, err := r.ReadBytes(version)
			if err != nil {
				return nil, err
			}
			if !b.IsNull() && !b.IsUnset() {
				rw[name] = b.Value()
			}
		}
		out[i] = rw
	}
	return out, nil
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

// textList decodes a list<text>/set<text> cell: [u32 count] followed by
// that many [bytes] elements.
func textList(version libfrm.ProtocolVersion, cell []byte) []string {
	if cell == nil {
		return nil
	}
	r := libfrm.NewReader(cell)
	n, err := r.ReadUint32()
	if err != nil {
		return nil
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		b, err := r.ReadBytes(version)
		if err != nil {
			break
		}
		if !b.IsNull() {
			out = append(out, string(b.Value()))
		}
	}
	return out
}

// textMap decodes a map<text,text> cell (system_schema.keyspaces'
// replication column): [u32 count] followed by that many [bytes][bytes]
// key/value pairs.
func textMap(version libfrm.ProtocolVersion, cell []byte) map[string]string {
	if cell == nil {
		return nil
	}
	r := libfrm.NewReader(cell)
	n, err := r.ReadUint32()
	if err != nil {
		return nil
	}
	out := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.ReadBytes(version)
		if err != nil {
			break
		}
		v, err := r.ReadBytes(version)
		if err != nil {
			break
		}
		out[string(k.Value())] = string(v.Value())
	}
	return out
}

func text(rw row, col string) string {
	if b, ok := rw[col]; ok {
		return string(b)
	}
	return ""
}
