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

// Package frame implements the Frame Codec (spec.md §4.1): encoding
// requests and decoding a byte stream into (header, body) frames, with
// optional per-frame LZ4 compression.
package frame

import (
	"bytes"

	"github.com/pierrec/lz4/v4"
)

// DefaultMaxBodyLength is the configured ceiling on a frame's body
// length (spec.md §4.1, "default 256 MiB").
const DefaultMaxBodyLength = 256 * 1024 * 1024

// Frame is a fully decoded (or about-to-be-encoded) unit: a header plus
// its body, already decompressed on the read path.
type Frame struct {
	Header Header
	Body   []byte
}

// Encode serializes a request frame: header followed by body, with the
// body LZ4-compressed and FlagCompression set when compress is true.
func Encode(version ProtocolVersion, streamID int16, opcode Opcode, flags uint8, body []byte, compress bool) ([]byte, error) {
	if uint64(len(body)) > DefaultMaxBodyLength {
		return nil, ProtocolError(ErrorCodeLengthExceeded)
	}

	if compress && len(body) > 0 {
		compressed, err := lz4Compress(body)
		if err != nil {
			return nil, err
		}
		body = compressed
		flags |= uint8(FlagCompression)
	}

	h := Header{
		Version:    version,
		Response:   false,
		Flags:      flags,
		StreamID:   streamID,
		Opcode:     opcode,
		BodyLength: uint32(len(body)),
	}

	out := make([]byte, 0, h.Version.HeaderSize()+len(body))
	out = append(out, EncodeHeader(h)...)
	out = append(out, body...)
	return out, nil
}

func lz4Compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return nil, ProtocolError(ErrorCodeTruncatedBody, err)
	}
	if err := w.Close(); err != nil {
		return nil, ProtocolError(ErrorCodeTruncatedBody, err)
	}
	return buf.Bytes(), nil
}

func lz4Decompress(body []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, ProtocolError(ErrorCodeTruncatedBody, err)
	}
	return buf.Bytes(), nil
}

// decodeState is the streaming decoder's two-state machine: it either
// expects a header, or expects the remainder of a body whose length it
// already knows.
type decodeState uint8

const (
	stateExpectHeader decodeState = iota
	stateExpectBody
)

// Decoder is a reentrant streaming frame decoder: feed it bytes as they
// arrive off the socket (Feed), and it yields complete Frames (Next) as
// soon as enough bytes have accumulated. It keeps no reference to the
// version before the first header is seen; version is self-describing
// per frame.
type Decoder struct {
	maxBody uint64
	state   decodeState
	buf     bytes.Buffer
	pending Header
}

// NewDecoder returns a Decoder enforcing maxBody as the ceiling on a
// frame's body length; pass 0 to use DefaultMaxBodyLength.
func NewDecoder(maxBody uint64) *Decoder {
	if maxBody == 0 {
		maxBody = DefaultMaxBodyLength
	}
	return &Decoder{maxBody: maxBody}
}

// Feed appends newly read bytes to the decoder's internal buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf.Write(b)
}

// Next attempts to produce one complete Frame from whatever has been
// Fed so far. ok is false when more bytes are needed; err is non-nil on
// a ProtocolError (unknown opcode, oversized body).
func (d *Decoder) Next() (fr Frame, ok bool, err error) {
	for {
		switch d.state {
		case stateExpectHeader:
			if d.buf.Len() < 1 {
				return Frame{}, false, nil
			}
			raw := d.buf.Bytes()
			v := ProtocolVersion(raw[0] &^ directionResponseBit)
			need := v.HeaderSize()
			if d.buf.Len() < need {
				return Frame{}, false, nil
			}

			h, e := DecodeHeader(raw[:need])
			if e != nil {
				return Frame{}, false, e
			}
			if uint64(h.BodyLength) > d.maxBody {
				return Frame{}, false, ProtocolError(ErrorCodeLengthExceeded)
			}
			if !h.Opcode.Known() {
				return Frame{}, false, ProtocolError(ErrorCodeUnknownOpcode)
			}

			d.buf.Next(need)
			d.pending = h
			d.state = stateExpectBody

		case stateExpectBody:
			n := int(d.pending.BodyLength)
			if d.buf.Len() < n {
				return Frame{}, false, nil
			}

			body := make([]byte, n)
			copy(body, d.buf.Next(n))

			if d.pending.Flags&uint8(FlagCompression) != 0 {
				body, err = lz4Decompress(body)
				if err != nil {
					return Frame{}, false, err
				}
			}

			f := Frame{Header: d.pending, Body: body}
			d.pending = Header{}
			d.state = stateExpectHeader
			return f, true, nil
		}
	}
}
