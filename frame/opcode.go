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

// Opcode identifies the kind of a frame's body, request or response alike.
type Opcode uint8

const (
	OpError          Opcode = 0x00
	OpStartup        Opcode = 0x01
	OpReady          Opcode = 0x02
	OpAuthenticate   Opcode = 0x03
	OpOptions        Opcode = 0x05
	OpSupported      Opcode = 0x06
	OpQuery          Opcode = 0x07
	OpResult         Opcode = 0x08
	OpPrepare        Opcode = 0x09
	OpExecute        Opcode = 0x0A
	OpRegister       Opcode = 0x0B
	OpEvent          Opcode = 0x0C
	OpBatch          Opcode = 0x0D
	OpAuthChallenge  Opcode = 0x0E
	OpAuthResponse   Opcode = 0x0F
	OpAuthSuccess    Opcode = 0x10
)

func (o Opcode) Known() bool {
	switch o {
	case OpError, OpStartup, OpReady, OpAuthenticate, OpOptions, OpSupported,
		OpQuery, OpResult, OpPrepare, OpExecute, OpRegister, OpEvent, OpBatch,
		OpAuthChallenge, OpAuthResponse, OpAuthSuccess:
		return true
	default:
		return false
	}
}

func (o Opcode) String() string {
	switch o {
	case OpError:
		return "ERROR"
	case OpStartup:
		return "STARTUP"
	case OpReady:
		return "READY"
	case OpAuthenticate:
		return "AUTHENTICATE"
	case OpOptions:
		return "OPTIONS"
	case OpSupported:
		return "SUPPORTED"
	case OpQuery:
		return "QUERY"
	case OpResult:
		return "RESULT"
	case OpPrepare:
		return "PREPARE"
	case OpExecute:
		return "EXECUTE"
	case OpRegister:
		return "REGISTER"
	case OpEvent:
		return "EVENT"
	case OpBatch:
		return "BATCH"
	case OpAuthChallenge:
		return "AUTH_CHALLENGE"
	case OpAuthResponse:
		return "AUTH_RESPONSE"
	case OpAuthSuccess:
		return "AUTH_SUCCESS"
	default:
		return "UNKNOWN"
	}
}

// FrameFlag is a bit in the frame header's flags byte.
type FrameFlag uint8

const (
	FlagCompression  FrameFlag = 0x01
	FlagTracing      FrameFlag = 0x02
	FlagCustomPayload FrameFlag = 0x04
	FlagWarning      FrameFlag = 0x08
)

// QueryFlag is a bit in a QUERY/EXECUTE body's own flags byte.
type QueryFlag uint8

const (
	QueryFlagValues           QueryFlag = 0x01
	QueryFlagSkipMetadata     QueryFlag = 0x02
	QueryFlagPageSize         QueryFlag = 0x04
	QueryFlagPagingState      QueryFlag = 0x08
	QueryFlagSerialConsistency QueryFlag = 0x10
	QueryFlagDefaultTimestamp QueryFlag = 0x20
	QueryFlagNamedValues      QueryFlag = 0x40
)
