// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the public API of the policy manager. Every call
// validates its arguments locally, then either sends the request to
// the privileged service over its Unix socket or, in offline mode,
// executes it in-process.
//
// Offline mode is used when a [service.Handler] was configured with
// [WithOffline] and the service lock file can be locked, which proves
// no service is running. The lock is held for the duration of the
// call. Both paths return the same errors: a [*protocol.ResultError]
// for refused requests, a [*protocol.TransportError] when the service
// cannot be reached, and a [*protocol.DecodeError] for a malformed
// reply. [protocol.CodeOf] maps any of them to a result code.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/service"
)

// Client issues policy requests.
type Client struct {
	transport *service.Client
	logger    *slog.Logger

	lockPath string
	local    service.Handler

	// credentials returns the identity offline requests run under.
	credentials func() service.Credentials
}

// Option configures a Client.
type Option func(*Client)

// WithOffline enables offline mode: when lockPath can be locked, requests
// are dispatched to handler with the calling process's credentials.
func WithOffline(lockPath string, handler service.Handler) Option {
	return func(client *Client) {
		client.lockPath = lockPath
		client.local = handler
	}
}

// WithTimeout bounds waiting for each response from the service.
func WithTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		client.transport.Timeout = timeout
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// New returns a Client for the service listening on socketPath.
func New(socketPath string, options ...Option) *Client {
	client := &Client{
		transport:   service.NewClient(socketPath),
		logger:      slog.New(slog.DiscardHandler),
		credentials: service.ProcessCredentials,
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// Strerror returns the description of a result code.
func Strerror(code protocol.Result) string {
	return protocol.Strerror(code)
}

// do validates req and executes it, returning the response payload.
func (client *Client) do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if client.local != nil {
		if lock, free := service.TryLock(client.lockPath); free {
			defer lock.Close()
			client.logger.Debug("service not running, executing request in-process",
				"opcode", req.Opcode().String())
			return client.dispatch(ctx, req)
		}
	}

	response := protocol.NewResponse(req.Opcode())
	if err := client.transport.Call(ctx, req, response); err != nil {
		return nil, err
	}
	return response, nil
}

// dispatch runs req in-process. Errors that carry no result code are
// reported as ResultUnknown, as the service would report them.
func (client *Client) dispatch(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	code, response, err := service.Dispatch(ctx, client.local, client.credentials(), req)
	if err == nil {
		return response, nil
	}
	var resultErr *protocol.ResultError
	if errors.As(err, &resultErr) {
		return nil, err
	}
	return nil, &protocol.ResultError{Code: code, Message: err.Error()}
}

// Install registers an application and applies its rules.
func (client *Client) Install(ctx context.Context, req *protocol.AppInstall) error {
	if _, err := client.do(ctx, req); err != nil {
		return fmt.Errorf("install %s: %w", req.AppID, err)
	}
	return nil
}

// Uninstall removes an application. Removing an application that is
// not installed succeeds.
func (client *Client) Uninstall(ctx context.Context, req *protocol.AppUninstall) error {
	if _, err := client.do(ctx, req); err != nil {
		return fmt.Errorf("uninstall %s: %w", req.AppID, err)
	}
	return nil
}

// PackageID returns the package appID belongs to.
func (client *Client) PackageID(ctx context.Context, appID string) (string, error) {
	response, err := client.do(ctx, &protocol.AppGetPkgID{AppID: appID})
	if err != nil {
		return "", fmt.Errorf("package of %s: %w", appID, err)
	}
	return response.(*protocol.PkgID).PkgID, nil
}

// AppGroups returns the supplementary group ids appID's allowed
// privileges map to, for the calling user.
func (client *Client) AppGroups(ctx context.Context, appID string) ([]int, error) {
	response, err := client.do(ctx, &protocol.AppGetGroups{AppID: appID})
	if err != nil {
		return nil, fmt.Errorf("groups of %s: %w", appID, err)
	}
	return response.(*protocol.GroupIDs).GIDs, nil
}

// AddUser registers a user.
func (client *Client) AddUser(ctx context.Context, uid int, userType protocol.UserType) error {
	if _, err := client.do(ctx, &protocol.UserAdd{UID: uid, Type: userType}); err != nil {
		return fmt.Errorf("adding user %d: %w", uid, err)
	}
	return nil
}

// DeleteUser removes a user and every application installed only for
// it.
func (client *Client) DeleteUser(ctx context.Context, uid int) error {
	if _, err := client.do(ctx, &protocol.UserDelete{UID: uid}); err != nil {
		return fmt.Errorf("deleting user %d: %w", uid, err)
	}
	return nil
}

// UpdatePolicy stores policy entries.
func (client *Client) UpdatePolicy(ctx context.Context, entries ...protocol.PolicyEntry) error {
	if _, err := client.do(ctx, &protocol.PolicyUpdate{Entries: entries}); err != nil {
		return fmt.Errorf("updating policy: %w", err)
	}
	return nil
}

// Policy lists the policy entries of scope matching filter. Empty or
// wildcard filter fields match anything.
func (client *Client) Policy(ctx context.Context, scope protocol.PolicyScope, filter protocol.PolicyEntry) ([]protocol.PolicyEntry, error) {
	response, err := client.do(ctx, &protocol.PolicyGet{Scope: scope, Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("listing policy: %w", err)
	}
	return response.(*protocol.Policy).Entries, nil
}

// PolicyLevels returns the policy level descriptions, most restrictive
// first.
func (client *Client) PolicyLevels(ctx context.Context) ([]string, error) {
	response, err := client.do(ctx, &protocol.PolicyLevels{})
	if err != nil {
		return nil, fmt.Errorf("listing policy levels: %w", err)
	}
	return response.(*protocol.Names).Names, nil
}

// Groups returns every group some privilege maps to.
func (client *Client) Groups(ctx context.Context) ([]string, error) {
	response, err := client.do(ctx, &protocol.GroupsGet{})
	if err != nil {
		return nil, fmt.Errorf("listing privilege groups: %w", err)
	}
	return response.(*protocol.Names).Names, nil
}

// HasPrivilege reports whether appID holds privilege for uid.
func (client *Client) HasPrivilege(ctx context.Context, appID, privilege string, uid int) (bool, error) {
	response, err := client.do(ctx, &protocol.AppHasPrivilege{AppID: appID, Privilege: privilege, UID: uid})
	if err != nil {
		return false, fmt.Errorf("checking %s of %s: %w", privilege, appID, err)
	}
	return response.(*protocol.Privilege).Allowed, nil
}

// ApplySharing shares private paths of the owner application with the
// target application.
func (client *Client) ApplySharing(ctx context.Context, sharing protocol.Sharing) error {
	if _, err := client.do(ctx, &protocol.ShareApply{Sharing: sharing}); err != nil {
		return fmt.Errorf("sharing with %s: %w", sharing.TargetAppID, err)
	}
	return nil
}

// DropSharing withdraws a share made by ApplySharing.
func (client *Client) DropSharing(ctx context.Context, sharing protocol.Sharing) error {
	if _, err := client.do(ctx, &protocol.ShareDrop{Sharing: sharing}); err != nil {
		return fmt.Errorf("unsharing from %s: %w", sharing.TargetAppID, err)
	}
	return nil
}
