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
	"bytes"
	"encoding/binary"
	"io"
)

// Writer accumulates a request body using the protocol's primitive
// encodings, big-endian throughout.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) WriteByte(b byte) { w.buf.WriteByte(b) }

func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteString writes a [u16 length][utf8 bytes] short string.
func (w *Writer) WriteString(s string) {
	w.WriteUint16(uint16(len(s)))
	w.buf.WriteString(s)
}

// WriteLongString writes a [u32 length][utf8 bytes] long string.
func (w *Writer) WriteLongString(s string) {
	w.WriteUint32(uint32(len(s)))
	w.buf.WriteString(s)
}

// WriteStringList writes a [u16 count] followed by that many short
// strings.
func (w *Writer) WriteStringList(ss []string) {
	w.WriteUint16(uint16(len(ss)))
	for _, s := range ss {
		w.WriteString(s)
	}
}

// WriteStringMap writes a [u16 count] followed by that many
// [string][string] pairs, used by STARTUP.
func (w *Writer) WriteStringMap(m map[string]string) {
	w.WriteUint16(uint16(len(m)))
	for k, v := range m {
		w.WriteString(k)
		w.WriteString(v)
	}
}

// Bound is a bound value in a three-valued variant: Set carries the raw
// encoded bytes, Null and Unset carry none. Unset is only legal on
// protocol v4+ (spec.md §9).
type Bound struct {
	kind  boundKind
	value []byte
}

type boundKind uint8

const (
	boundSet boundKind = iota
	boundNull
	boundUnset
)

func SetValue(b []byte) Bound { return Bound{kind: boundSet, value: b} }
func NullValue() Bound        { return Bound{kind: boundNull} }
func UnsetValue() Bound       { return Bound{kind: boundUnset} }

func (b Bound) IsNull() bool  { return b.kind == boundNull }
func (b Bound) IsUnset() bool { return b.kind == boundUnset }
func (b Bound) Value() []byte { return b.value }

// WriteBytes writes a [bytes] value: a Set carries [u32 length][body],
// Null is length -1, Unset (v4+ only) is length -2.
func (w *Writer) WriteBytes(v ProtocolVersion, b Bound) error {
	switch b.kind {
	case boundSet:
		w.WriteInt32(int32(len(b.value)))
		w.buf.Write(b.value)
		return nil
	case boundNull:
		w.WriteInt32(-1)
		return nil
	case boundUnset:
		if v < ProtocolV4 {
			return ProtocolError(ErrorCodeUnsetOnOldProtocol)
		}
		w.WriteInt32(-2)
		return nil
	default:
		return ProtocolError(ErrorCodeUnsetOnOldProtocol)
	}
}

// Reader consumes a response body using the protocol's primitive
// encodings. All Read* methods report a truncated-body ProtocolError on
// short input.
type Reader struct {
	r *bytes.Reader
}

func NewReader(body []byte) *Reader {
	return &Reader{r: bytes.NewReader(body)}
}

func (r *Reader) Remaining() int { return r.r.Len() }

func (r *Reader) take(n int) ([]byte, error) {
	if r.r.Len() < n {
		return nil, ProtocolError(ErrorCodeTruncatedBody)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, ProtocolError(ErrorCodeTruncatedBody, err)
	}
	return buf, nil
}

func (r *Reader) ReadByte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) ReadLongString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) ReadStringList() ([]string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadBytes reads a [bytes] value back into the three-valued Bound
// variant: length -1 is Null, -2 (v4+) is Unset, otherwise Set.
func (r *Reader) ReadBytes(v ProtocolVersion) (Bound, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return Bound{}, err
	}
	switch {
	case n == -1:
		return NullValue(), nil
	case n == -2:
		if v < ProtocolV4 {
			return Bound{}, ProtocolError(ErrorCodeUnsetOnOldProtocol)
		}
		return UnsetValue(), nil
	case n < 0:
		return Bound{}, ProtocolError(ErrorCodeTruncatedBody)
	default:
		b, err := r.take(int(n))
		if err != nil {
			return Bound{}, err
		}
		return SetValue(b), nil
	}
}

// ReadStringMap reads a [u16 count] followed by that many
// [string][string] pairs, used by AUTHENTICATE and SUPPORTED.
func (r *Reader) ReadStringMap() (map[string]string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := uint16(0); i < n; i++ {
		k, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// ReadShortBytes reads a [u16 length][bytes] value, used for prepared
// statement ids.
func (r *Reader) ReadShortBytes() ([]byte, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}

func (w *Writer) WriteShortBytes(b []byte) {
	w.WriteUint16(uint16(len(b)))
	w.buf.Write(b)
}

// ReadRawBytes reads exactly n bytes, used for fixed-length fields such
// as an [inet] address that are not themselves length-prefixed by a
// preceding count field read via a different method.
func (r *Reader) ReadRawBytes(n int) ([]byte, error) {
	return r.take(n)
}
