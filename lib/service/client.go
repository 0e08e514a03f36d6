// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/secmgr/lib/protocol"
)

// dialTimeout covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is matched to the server's read and write
// timeouts plus handler execution time.
const responseReadTimeout = 45 * time.Second

const maxResponseSize = 1024 * 1024

// Client sends requests to the service socket. Each Call opens a new
// connection.
type Client struct {
	socketPath string

	// Timeout bounds waiting for the response after the request is
	// written.
	Timeout time.Duration
}

// NewClient returns a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, Timeout: responseReadTimeout}
}

// Call sends req and decodes the reply into resp.
//
// Connection failures are *protocol.TransportError. A non-success
// result is *protocol.ResultError. A truncated or malformed reply is
// *protocol.DecodeError, in which case resp must not be used.
func (c *Client) Call(ctx context.Context, req protocol.Request, resp protocol.Response) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return &protocol.TransportError{Op: "connect " + c.socketPath, Err: err}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	writer := bufio.NewWriter(conn)
	if err := protocol.WriteRequest(writer, req); err != nil {
		return &protocol.TransportError{Op: "encode " + req.Opcode().String(), Err: err}
	}
	if err := writer.Flush(); err != nil {
		return &protocol.TransportError{Op: "send " + req.Opcode().String(), Err: err}
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	if _, ok := ctx.Deadline(); !ok {
		conn.SetReadDeadline(time.Now().Add(c.Timeout))
	}

	err = protocol.ReadResponse(bufio.NewReader(io.LimitReader(conn, maxResponseSize)), resp)
	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) {
		var netErr net.Error
		if errors.As(decodeErr.Err, &netErr) {
			return &protocol.TransportError{Op: "receive " + req.Opcode().String(), Err: err}
		}
	}
	return err
}
