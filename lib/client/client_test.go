// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/service"
	"github.com/bureau-foundation/secmgr/lib/testutil"
)

const testTimeout = 10 * time.Second

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

// startService serves handler on a socket in a fresh directory and
// returns the socket and lock paths. The server holds the lock.
func startService(t *testing.T, handler service.Handler) (socketPath, lockPath string) {
	t.Helper()
	dir := testutil.SocketDir(t)
	socketPath = filepath.Join(dir, "api.sock")
	lockPath = filepath.Join(dir, "secmgr.lock")

	server := service.NewSocketServer(socketPath, handler, slog.New(slog.DiscardHandler))
	server.LockPath = lockPath

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(ctx); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	waitForSocket(t, socketPath)
	return socketPath, lockPath
}

// registry answers queries about one installed application.
func registry(calls *atomic.Int32) service.HandlerFunc {
	return func(ctx context.Context, creds service.Credentials, req protocol.Request) (protocol.Response, error) {
		calls.Add(1)
		switch req := req.(type) {
		case *protocol.AppGetPkgID:
			if req.AppID != "org.example.gallery" {
				return nil, protocol.Errorf(protocol.ResultNoSuchObject, "no application %s", req.AppID)
			}
			return &protocol.PkgID{PkgID: "org.example.media"}, nil
		case *protocol.AppGetGroups:
			return &protocol.GroupIDs{GIDs: []int{601, 44}}, nil
		case *protocol.AppHasPrivilege:
			return &protocol.Privilege{Allowed: req.Privilege == "http://tizen.org/privilege/internet"}, nil
		case *protocol.PolicyLevels:
			return &protocol.Names{Names: []string{"Deny", "Allow"}}, nil
		case *protocol.UserDelete:
			return nil, protocol.Errorf(protocol.ResultAuthenticationFailed, "root only")
		default:
			return nil, nil
		}
	}
}

func TestOnline(t *testing.T) {
	var calls atomic.Int32
	socketPath, _ := startService(t, registry(&calls))
	client := New(socketPath)
	ctx := context.Background()

	pkgID, err := client.PackageID(ctx, "org.example.gallery")
	if err != nil || pkgID != "org.example.media" {
		t.Errorf("PackageID = %q, %v", pkgID, err)
	}

	allowed, err := client.HasPrivilege(ctx, "org.example.gallery", "http://tizen.org/privilege/internet", 5001)
	if err != nil || !allowed {
		t.Errorf("HasPrivilege = %v, %v", allowed, err)
	}

	levels, err := client.PolicyLevels(ctx)
	if err != nil || !reflect.DeepEqual(levels, []string{"Deny", "Allow"}) {
		t.Errorf("PolicyLevels = %q, %v", levels, err)
	}

	err = client.DeleteUser(ctx, 5001)
	var resultErr *protocol.ResultError
	if !errors.As(err, &resultErr) || resultErr.Code != protocol.ResultAuthenticationFailed {
		t.Errorf("DeleteUser error = %v, want AuthenticationFailed", err)
	}

	_, err = client.PackageID(ctx, "org.example.absent")
	if code := protocol.CodeOf(err); code != protocol.ResultNoSuchObject {
		t.Errorf("absent application: code %v (%v)", code, err)
	}

	if err := client.Install(ctx, &protocol.AppInstall{AppID: "org.example.notes", PkgID: "org.example.notes", UID: 5001}); err != nil {
		t.Errorf("Install: %v", err)
	}
	if got := calls.Load(); got != 6 {
		t.Errorf("service handled %d requests, want 6", got)
	}
}

func TestInvalidRequestsStayLocal(t *testing.T) {
	var calls atomic.Int32
	socketPath, _ := startService(t, registry(&calls))
	client := New(socketPath)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want protocol.Result
	}{
		{"install without application", func() error {
			return client.Install(ctx, &protocol.AppInstall{PkgID: "org.example.notes"})
		}, protocol.ResultReqNotComplete},
		{"package of empty application", func() error {
			_, err := client.PackageID(ctx, "")
			return err
		}, protocol.ResultInputParam},
		{"sharing without paths", func() error {
			return client.ApplySharing(ctx, protocol.Sharing{OwnerAppID: "org.example.gallery", TargetAppID: "org.example.editor"})
		}, protocol.ResultReqNotComplete},
		{"unknown path type", func() error {
			return client.Install(ctx, &protocol.AppInstall{
				AppID: "org.example.notes", PkgID: "org.example.notes",
				Paths: []protocol.AppPath{{Path: "/opt/usr/notes", Type: protocol.PathType(99)}},
			})
		}, protocol.ResultInputParam},
		{"empty policy update", func() error {
			return client.UpdatePolicy(ctx)
		}, protocol.ResultInputParam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := protocol.CodeOf(tt.call()); code != tt.want {
				t.Errorf("code = %v, want %v", code, tt.want)
			}
		})
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("service handled %d invalid requests", got)
	}
}

func TestTransportError(t *testing.T) {
	client := New(filepath.Join(testutil.SocketDir(t), "absent.sock"))

	_, err := client.Groups(context.Background())
	var transportErr *protocol.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v (%T), want *TransportError", err, err)
	}
	if code := protocol.CodeOf(err); code != protocol.ResultUnknown {
		t.Errorf("code = %v, want Unknown", code)
	}
}

func TestTruncatedResponse(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "api.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	done := make(chan struct{}, 1)
	go func() {
		defer func() { done <- struct{}{} }()
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(io.Discard, conn)
		// Success, but no boolean follows.
		protocol.WriteResponse(conn, protocol.ResultSuccess, nil)
	}()

	allowed, err := New(socketPath).HasPrivilege(context.Background(),
		"Gallery", "http://tizen.org/privilege/internet", 5001)
	var decodeErr *protocol.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error = %v (%T), want *DecodeError", err, err)
	}
	if code := protocol.CodeOf(err); code != protocol.ResultUnknown {
		t.Errorf("code = %v, want Unknown", code)
	}
	if allowed {
		t.Error("truncated response reported the privilege as allowed")
	}
	testutil.RequireReceive(t, done, testTimeout, "fake service did not finish")
}

func TestOffline(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "secmgr.lock")

	var seen service.Credentials
	var calls atomic.Int32
	handler := service.HandlerFunc(func(ctx context.Context, creds service.Credentials, req protocol.Request) (protocol.Response, error) {
		seen = creds
		return registry(&calls)(ctx, creds, req)
	})
	client := New(filepath.Join(t.TempDir(), "absent.sock"), WithOffline(lockPath, handler))

	pkgID, err := client.PackageID(context.Background(), "org.example.gallery")
	if err != nil || pkgID != "org.example.media" {
		t.Fatalf("offline PackageID = %q, %v", pkgID, err)
	}
	if seen.UID != os.Geteuid() || seen.PID != os.Getpid() {
		t.Errorf("offline credentials = %+v", seen)
	}

	// The lock is released after each call.
	lock, free := service.TryLock(lockPath)
	if !free {
		t.Fatal("offline call left the lock held")
	}
	lock.Close()

	_, err = client.PackageID(context.Background(), "org.example.absent")
	if code := protocol.CodeOf(err); code != protocol.ResultNoSuchObject {
		t.Errorf("offline absent application: code %v (%v)", code, err)
	}

	if err := client.UpdatePolicy(context.Background(), protocol.PolicyEntry{
		User: "5001", AppID: "org.example.gallery", Privilege: "http://tizen.org/privilege/camera", CurrentLevel: "Deny",
	}); err != nil {
		t.Errorf("offline UpdatePolicy: %v", err)
	}
}

func TestOfflineUnclassifiedError(t *testing.T) {
	handler := service.HandlerFunc(func(ctx context.Context, creds service.Credentials, req protocol.Request) (protocol.Response, error) {
		return nil, errors.New("disk full")
	})
	client := New(filepath.Join(t.TempDir(), "absent.sock"),
		WithOffline(filepath.Join(t.TempDir(), "secmgr.lock"), handler))

	err := client.AddUser(context.Background(), 5001, protocol.UserNormal)
	var resultErr *protocol.ResultError
	if !errors.As(err, &resultErr) || resultErr.Code != protocol.ResultUnknown {
		t.Errorf("error = %v, want ResultError with Unknown", err)
	}
}

func TestOfflineDefersToRunningService(t *testing.T) {
	var remote, local atomic.Int32
	socketPath, lockPath := startService(t, registry(&remote))
	client := New(socketPath, WithOffline(lockPath, registry(&local)))

	if _, err := client.AppGroups(context.Background(), "org.example.gallery"); err != nil {
		t.Fatalf("AppGroups: %v", err)
	}
	if remote.Load() != 1 || local.Load() != 0 {
		t.Errorf("remote calls %d, local calls %d; want the running service to answer", remote.Load(), local.Load())
	}
}

func TestStrerror(t *testing.T) {
	if got := Strerror(protocol.ResultNoSuchObject); got != "No such object" {
		t.Errorf("Strerror(NoSuchObject) = %q", got)
	}
	if got := Strerror(protocol.Result(99)); got != "Unknown error code" {
		t.Errorf("Strerror(99) = %q", got)
	}
}
