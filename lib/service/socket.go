// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/secmgr/lib/protocol"
)

// Handler executes one decoded, validated request on behalf of the
// peer. A nil error answers ResultSuccess with the returned payload;
// any other error is reported as protocol.CodeOf(err).
type Handler interface {
	Handle(ctx context.Context, creds Credentials, req protocol.Request) (protocol.Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, creds Credentials, req protocol.Request) (protocol.Response, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, creds Credentials, req protocol.Request) (protocol.Response, error) {
	return f(ctx, creds, req)
}

// Dispatch validates req and runs it through handler, returning the
// result code and payload to send. It is shared by the socket server
// and in-process execution so both report identical results.
func Dispatch(ctx context.Context, handler Handler, creds Credentials, req protocol.Request) (protocol.Result, protocol.Response, error) {
	if err := req.Validate(); err != nil {
		return protocol.CodeOf(err), nil, err
	}
	response, err := handler.Handle(ctx, creds, req)
	if err != nil {
		return protocol.CodeOf(err), nil, err
	}
	if response == nil {
		response = protocol.NewResponse(req.Opcode())
	}
	return protocol.ResultSuccess, response, nil
}

// SocketServer serves the policy protocol on a Unix socket. Each
// connection handles exactly one request-response cycle.
type SocketServer struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger

	// LockPath, when set, is locked exclusively for the lifetime of
	// Serve. Serve fails if another process holds it.
	LockPath string

	// SocketMode is applied to the socket file after listening.
	// Zero leaves the umask-derived mode.
	SocketMode os.FileMode

	// ReadTimeout bounds receiving the request; WriteTimeout bounds
	// sending the response.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	activeConnections sync.WaitGroup
}

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second

	// maxRequestSize bounds a single request. The largest requests
	// are installs with many privileges and paths.
	maxRequestSize = 1024 * 1024
)

// NewSocketServer creates a server that will listen on socketPath and
// dispatch to handler.
func NewSocketServer(socketPath string, handler Handler, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SocketServer{
		socketPath:   socketPath,
		handler:      handler,
		logger:       logger,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
}

// Serve accepts connections until ctx is cancelled, then waits for
// in-flight requests to finish. Any stale socket file is removed
// before listening and the socket file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if s.LockPath != "" {
		lock, err := AcquireLock(s.LockPath)
		if err != nil {
			return fmt.Errorf("acquiring service lock: %w", err)
		}
		defer lock.Close()
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	if s.SocketMode != 0 {
		if err := os.Chmod(s.socketPath, s.SocketMode); err != nil {
			return fmt.Errorf("setting mode of %s: %w", s.socketPath, err)
		}
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		s.logger.Error("connection is not a unix socket")
		return
	}
	creds, err := PeerCredentials(unixConn)
	if err != nil {
		s.logger.Error("reading peer credentials", "error", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	req, err := protocol.ReadRequest(bufio.NewReader(io.LimitReader(conn, maxRequestSize)))
	if err != nil {
		var decodeErr *protocol.DecodeError
		if errors.As(err, &decodeErr) && errors.Is(decodeErr.Err, io.ErrUnexpectedEOF) && decodeErr.Field == "opcode" {
			// Connected and closed without sending anything.
			return
		}
		s.logger.Warn("invalid request", "uid", creds.UID, "pid", creds.PID, "error", err)
		s.writeResponse(conn, protocol.CodeOf(err), nil)
		return
	}

	result, response, err := Dispatch(ctx, s.handler, creds, req)
	if err != nil {
		s.logger.Debug("request failed",
			"opcode", req.Opcode().String(),
			"uid", creds.UID,
			"pid", creds.PID,
			"result", result.String(),
			"error", err,
		)
	}
	s.writeResponse(conn, result, response)
}

func (s *SocketServer) writeResponse(conn net.Conn, result protocol.Result, response protocol.Response) {
	conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	writer := bufio.NewWriter(conn)
	if err := protocol.WriteResponse(writer, result, response); err != nil {
		s.logger.Debug("failed to encode response", "error", err)
		return
	}
	if err := writer.Flush(); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
