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
	"encoding/binary"
)

// ProtocolVersion is the negotiated wire version. The driver core speaks
// v2 through v4; the direction bit (request vs response) is carried in
// the high bit of the version byte on the wire and stripped here.
type ProtocolVersion uint8

const (
	ProtocolV2 ProtocolVersion = 2
	ProtocolV3 ProtocolVersion = 3
	ProtocolV4 ProtocolVersion = 4

	directionResponseBit = 0x80
)

// StreamIDSpace returns the bounded stream-id pool size for a protocol
// version: 128 for v2 (signed 8-bit stream id), 32768 for v3+ (signed
// 16-bit stream id).
func (v ProtocolVersion) StreamIDSpace() int {
	if v <= ProtocolV2 {
		return 128
	}
	return 32768
}

// HeaderSize returns the fixed header length: 8 bytes for v2 (1-byte
// stream id), 9 bytes for v3+ (2-byte stream id).
func (v ProtocolVersion) HeaderSize() int {
	if v <= ProtocolV2 {
		return 8
	}
	return 9
}

// Header is the fixed portion of every frame, independent of protocol
// version (the wire encoding of StreamID's width differs, the struct
// does not).
type Header struct {
	Version    ProtocolVersion
	Response   bool
	Flags      uint8
	StreamID   int16
	Opcode     Opcode
	BodyLength uint32
}

// EncodeHeader writes h to a HeaderSize()-byte prefix, ready to be
// followed by the body.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, h.Version.HeaderSize())

	v := uint8(h.Version)
	if h.Response {
		v |= directionResponseBit
	}
	buf[0] = v
	buf[1] = h.Flags

	if h.Version <= ProtocolV2 {
		buf[2] = byte(int8(h.StreamID))
		buf[3] = byte(h.Opcode)
		binary.BigEndian.PutUint32(buf[4:8], h.BodyLength)
	} else {
		binary.BigEndian.PutUint16(buf[2:4], uint16(h.StreamID))
		buf[4] = byte(h.Opcode)
		binary.BigEndian.PutUint32(buf[5:9], h.BodyLength)
	}

	return buf
}

// DecodeHeader parses a header from buf. The version byte on the wire
// decides the framing, so buf must hold at least that version's
// HeaderSize() bytes.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < 1 {
		return Header{}, ProtocolError(ErrorCodeTruncatedHeader)
	}

	raw := buf[0]
	h := Header{
		Version:  ProtocolVersion(raw &^ directionResponseBit),
		Response: raw&directionResponseBit != 0,
	}

	need := h.Version.HeaderSize()
	if len(buf) < need {
		return Header{}, ProtocolError(ErrorCodeTruncatedHeader)
	}

	h.Flags = buf[1]

	if h.Version <= ProtocolV2 {
		h.StreamID = int16(int8(buf[2]))
		h.Opcode = Opcode(buf[3])
		h.BodyLength = binary.BigEndian.Uint32(buf[4:8])
	} else {
		h.StreamID = int16(binary.BigEndian.Uint16(buf[2:4]))
		h.Opcode = Opcode(buf[4])
		h.BodyLength = binary.BigEndian.Uint32(buf[5:9])
	}

	return h, nil
}
