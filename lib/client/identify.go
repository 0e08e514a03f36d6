// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"syscall"

	"github.com/bureau-foundation/secmgr/lib/label"
	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/smack"
)

// Kernel hooks, replaced in tests.
var (
	labelFromPID    = smack.LabelFromPID
	labelFromSocket = smack.LabelFromSocket
	getgroups       = syscall.Getgroups

	// syscall.Setgroups applies to every thread of the process.
	setgroups = syscall.Setgroups
)

// Identity is the application a process runs as.
type Identity struct {
	AppID string

	// PkgID is set only when the package was requested.
	PkgID string
}

// IdentifyAppFromPID returns the application the process pid runs as,
// read from its SMACK label. With withPackage the service is asked for
// the package id too.
func (client *Client) IdentifyAppFromPID(ctx context.Context, pid int, withPackage bool) (Identity, error) {
	if pid <= 0 {
		return Identity{}, protocol.Errorf(protocol.ResultInputParam, "invalid pid %d", pid)
	}
	processLabel, err := labelFromPID(pid)
	if err != nil {
		return Identity{}, fmt.Errorf("identifying pid %d: %w", pid, err)
	}
	return client.identify(ctx, processLabel, withPackage)
}

// IdentifyAppFromSocket returns the application of the peer connected
// to the Unix socket fd.
func (client *Client) IdentifyAppFromSocket(ctx context.Context, fd int, withPackage bool) (Identity, error) {
	if fd < 0 {
		return Identity{}, protocol.Errorf(protocol.ResultInputParam, "invalid socket %d", fd)
	}
	processLabel, err := labelFromSocket(fd)
	if err != nil {
		return Identity{}, fmt.Errorf("identifying socket peer: %w", err)
	}
	return client.identify(ctx, processLabel, withPackage)
}

func (client *Client) identify(ctx context.Context, processLabel string, withPackage bool) (Identity, error) {
	appID, err := label.AppFromLabel(processLabel)
	if errors.Is(err, label.ErrInvalidLabel) {
		return Identity{}, protocol.Errorf(protocol.ResultNoSuchObject, "%v", err)
	}
	if err != nil {
		return Identity{}, err
	}
	identity := Identity{AppID: appID}
	if withPackage {
		identity.PkgID, err = client.PackageID(ctx, appID)
		if err != nil {
			return Identity{}, err
		}
	}
	return identity, nil
}

// SetProcessGroups adds the groups of appID's allowed privileges to the
// supplementary groups of the calling process. Groups already present
// are kept once.
func (client *Client) SetProcessGroups(ctx context.Context, appID string) error {
	gids, err := client.AppGroups(ctx, appID)
	if err != nil {
		return err
	}
	current, err := getgroups()
	if err != nil {
		return fmt.Errorf("reading supplementary groups: %w", err)
	}
	groups := slices.Clone(current)
	for _, gid := range gids {
		if !slices.Contains(groups, gid) {
			groups = append(groups, gid)
		}
	}
	if len(groups) == len(current) {
		return nil
	}
	if err := setgroups(groups); err != nil {
		return fmt.Errorf("setting supplementary groups of %s: %w", appID, err)
	}
	client.logger.Debug("supplementary groups set", "app_id", appID, "groups", groups)
	return nil
}
