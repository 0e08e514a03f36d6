// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear before test context expired", path)
		}
		runtime.Gosched()
	}
}

// startServer runs server until the test ends.
func startServer(t *testing.T, server *SocketServer, socketPath string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	var serveErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serveErr = server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
		if serveErr != nil {
			t.Errorf("Serve returned error: %v", serveErr)
		}
	})

	waitForSocket(t, socketPath)
}

func TestSocketServerRoundTrip(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "api.sock")

	var seen Credentials
	handler := HandlerFunc(func(ctx context.Context, creds Credentials, req protocol.Request) (protocol.Response, error) {
		seen = creds
		get, ok := req.(*protocol.AppGetPkgID)
		if !ok {
			t.Errorf("handler received %T", req)
			return nil, protocol.Errorf(protocol.ResultUnknown, "unexpected request")
		}
		if get.AppID != "org.example.gallery" {
			return nil, protocol.Errorf(protocol.ResultNoSuchObject, "no application %s", get.AppID)
		}
		return &protocol.PkgID{PkgID: "org.example.media"}, nil
	})
	startServer(t, NewSocketServer(socketPath, handler, testLogger()), socketPath)

	client := NewClient(socketPath)
	var response protocol.PkgID
	if err := client.Call(context.Background(), &protocol.AppGetPkgID{AppID: "org.example.gallery"}, &response); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if response.PkgID != "org.example.media" {
		t.Errorf("PkgID = %q, want org.example.media", response.PkgID)
	}
	if seen.UID != os.Geteuid() || seen.PID != os.Getpid() {
		t.Errorf("credentials = %+v, want uid %d pid %d", seen, os.Geteuid(), os.Getpid())
	}

	err := client.Call(context.Background(), &protocol.AppGetPkgID{AppID: "org.example.absent"}, &response)
	if code := protocol.CodeOf(err); code != protocol.ResultNoSuchObject {
		t.Errorf("missing application: code %v (%v), want NoSuchObject", code, err)
	}
}

func TestSocketServerValidatesBeforeDispatch(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "api.sock")

	var calls atomic.Int32
	handler := HandlerFunc(func(ctx context.Context, creds Credentials, req protocol.Request) (protocol.Response, error) {
		calls.Add(1)
		return nil, nil
	})
	startServer(t, NewSocketServer(socketPath, handler, testLogger()), socketPath)

	err := NewClient(socketPath).Call(context.Background(), &protocol.AppGetPkgID{AppID: ""}, &protocol.PkgID{})
	if code := protocol.CodeOf(err); code != protocol.ResultInputParam {
		t.Errorf("code = %v (%v), want InputParam", code, err)
	}
	if calls.Load() != 0 {
		t.Errorf("handler called %d times for an invalid request", calls.Load())
	}
}

func TestSocketServerEmptyPayload(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "api.sock")

	handler := HandlerFunc(func(ctx context.Context, creds Credentials, req protocol.Request) (protocol.Response, error) {
		return nil, nil
	})
	startServer(t, NewSocketServer(socketPath, handler, testLogger()), socketPath)

	var levels protocol.Names
	if err := NewClient(socketPath).Call(context.Background(), &protocol.PolicyLevels{}, &levels); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(levels.Names) != 0 {
		t.Errorf("Names = %q, want empty", levels.Names)
	}
}

func TestSocketServerSilentConnection(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "api.sock")
	handler := HandlerFunc(func(ctx context.Context, creds Credentials, req protocol.Request) (protocol.Response, error) {
		return nil, nil
	})
	startServer(t, NewSocketServer(socketPath, handler, testLogger()), socketPath)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	conn.(*net.UnixConn).CloseWrite()
	buffer := make([]byte, 16)
	if n, _ := conn.Read(buffer); n != 0 {
		t.Errorf("server answered an empty connection with %d bytes", n)
	}
	conn.Close()

	// The server keeps serving afterwards.
	if err := NewClient(socketPath).Call(context.Background(), &protocol.GroupsGet{}, &protocol.Names{}); err != nil {
		t.Errorf("Call after silent connection: %v", err)
	}
}

func TestClientTransportError(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "absent.sock")

	err := NewClient(socketPath).Call(context.Background(), &protocol.GroupsGet{}, &protocol.Names{})
	var transportErr *protocol.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v (%T), want *TransportError", err, err)
	}
	if protocol.CodeOf(err) != protocol.ResultUnknown {
		t.Errorf("code = %v, want Unknown", protocol.CodeOf(err))
	}
}

func TestServeHoldsLock(t *testing.T) {
	dir := testutil.SocketDir(t)
	socketPath := filepath.Join(dir, "api.sock")
	lockPath := filepath.Join(dir, "secmgr.lock")

	handler := HandlerFunc(func(ctx context.Context, creds Credentials, req protocol.Request) (protocol.Response, error) {
		return nil, nil
	})
	server := NewSocketServer(socketPath, handler, testLogger())
	server.LockPath = lockPath
	startServer(t, server, socketPath)

	if lock, free := TryLock(lockPath); free {
		lock.Close()
		t.Fatal("lock free while the server runs")
	}

	second := NewSocketServer(filepath.Join(dir, "second.sock"), handler, testLogger())
	second.LockPath = lockPath
	if err := second.Serve(context.Background()); !errors.Is(err, ErrLocked) {
		t.Errorf("second Serve = %v, want ErrLocked", err)
	}
}

func TestLockRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "secmgr.lock")

	lock, err := AcquireLock(lockPath)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := AcquireLock(lockPath); !errors.Is(err, ErrLocked) {
		t.Errorf("second AcquireLock = %v, want ErrLocked", err)
	}
	if err := lock.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	again, free := TryLock(lockPath)
	if !free {
		t.Fatal("lock still held after Close")
	}
	again.Close()
}

func TestDispatch(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, creds Credentials, req protocol.Request) (protocol.Response, error) {
		if !creds.Root() {
			return nil, protocol.Errorf(protocol.ResultAuthenticationFailed, "root required")
		}
		return nil, nil
	})

	result, _, err := Dispatch(context.Background(), handler, Credentials{UID: 5001}, &protocol.UserDelete{UID: 5002})
	if result != protocol.ResultAuthenticationFailed || err == nil {
		t.Errorf("non-root Dispatch = %v, %v", result, err)
	}

	result, response, err := Dispatch(context.Background(), handler, Credentials{UID: 0}, &protocol.UserDelete{UID: 5002})
	if result != protocol.ResultSuccess || err != nil {
		t.Fatalf("root Dispatch = %v, %v", result, err)
	}
	if _, ok := response.(*protocol.Empty); !ok {
		t.Errorf("response = %T, want *protocol.Empty", response)
	}
}
