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

package conn

import (
	"context"
	"net"

	libfrm "github.com/sabouaram/cqlcore/frame"
)

// Open dials addr, performs the STARTUP/AUTHENTICATE handshake, and
// returns a Connection in StateReady. The writer, reader and heartbeat
// tasks are already running when Open returns (spec.md §4.2).
func Open(ctx context.Context, addr string, cfg Config) (Connection, error) {
	if cfg.Version == 0 {
		cfg.Version = libfrm.ProtocolV4
	}
	if cfg.MaxBodyLength == 0 {
		cfg.MaxBodyLength = libfrm.DefaultMaxBodyLength
	}

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	sock, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, TransportError(err)
	}

	c := newConn(sock, cfg)

	go c.writerLoop()
	go c.readerLoop()

	if err := c.handshake(ctx); err != nil {
		c.fail(HandshakeError(err))
		return nil, HandshakeError(err)
	}

	c.setState(StateReady)
	go c.heartbeatLoop()

	return c, nil
}

// handshake runs STARTUP, answers AUTHENTICATE if the server asks for
// one, and leaves the Connection ready to REGISTER or serve queries.
func (c *conn) handshake(ctx context.Context) error {
	c.setState(StateHandshake)

	opts := map[string]string{"CQL_VERSION": "3.0.0"}
	if c.cfg.Compression {
		opts["COMPRESSION"] = "lz4"
	}

	w := libfrm.NewWriter()
	w.WriteStringMap(opts)

	resp, err := c.roundTrip(ctx, libfrm.OpStartup, 0, w.Bytes())
	if err != nil {
		return err
	}

	switch resp.Header.Opcode {
	case libfrm.OpReady:
		return nil
	case libfrm.OpAuthenticate:
		return c.authenticate(ctx, resp.Body)
	case libfrm.OpError:
		return decodeError(resp.Body)
	default:
		return HandshakeError(nil)
	}
}

func (c *conn) authenticate(ctx context.Context, body []byte) error {
	if c.cfg.Authenticator == nil {
		return AuthenticationError(nil)
	}

	r := libfrm.NewReader(body)
	authClass, err := r.ReadString()
	if err != nil {
		return err
	}

	token, err := c.cfg.Authenticator.InitialResponse(authClass)
	if err != nil {
		return AuthenticationError(err)
	}

	for {
		w := libfrm.NewWriter()
		w.WriteBytes(c.cfg.Version, libfrm.SetValue(token))

		resp, err := c.roundTrip(ctx, libfrm.OpAuthResponse, 0, w.Bytes())
		if err != nil {
			return err
		}

		switch resp.Header.Opcode {
		case libfrm.OpAuthSuccess:
			return nil
		case libfrm.OpAuthChallenge:
			rr := libfrm.NewReader(resp.Body)
			b, err := rr.ReadBytes(c.cfg.Version)
			if err != nil {
				return err
			}
			token, err = c.cfg.Authenticator.EvaluateChallenge(b.Value())
			if err != nil {
				return AuthenticationError(err)
			}
		case libfrm.OpError:
			return decodeError(resp.Body)
		default:
			return AuthenticationError(nil)
		}
	}
}

// roundTrip is used only during the handshake, before the Connection is
// StateReady, to send a request and block for its response.
func (c *conn) roundTrip(ctx context.Context, opcode libfrm.Opcode, flags uint8, body []byte) (libfrm.Frame, error) {
	respCh, err := c.Send(ctx, opcode, flags, body)
	if err != nil {
		return libfrm.Frame{}, err
	}

	select {
	case resp := <-respCh:
		if resp.Err != nil {
			return libfrm.Frame{}, resp.Err
		}
		return resp.Frame, nil
	case <-ctx.Done():
		return libfrm.Frame{}, TimeoutError()
	}
}

func decodeError(body []byte) error {
	r := libfrm.NewReader(body)
	code, err := r.ReadUint32()
	if err != nil {
		return HandshakeError(err)
	}
	msg, err := r.ReadString()
	if err != nil {
		return HandshakeError(err)
	}
	return HandshakeError(&wireError{code: libfrm.ErrorCode(code), msg: msg})
}

type wireError struct {
	code libfrm.ErrorCode
	msg  string
}

func (e *wireError) Error() string { return e.msg }
