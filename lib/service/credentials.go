// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/secmgr/lib/smack"
)

// Credentials identify the process on the other end of a connection.
type Credentials struct {
	UID int
	GID int
	PID int

	// Label is the peer's SMACK label, empty when SMACK is not
	// available.
	Label string
}

// Root reports whether the peer runs as uid 0.
func (c Credentials) Root() bool { return c.UID == 0 }

// ProcessCredentials returns the credentials of the calling process,
// used when a request is executed in-process.
func ProcessCredentials() Credentials {
	creds := Credentials{
		UID: os.Geteuid(),
		GID: os.Getegid(),
		PID: os.Getpid(),
	}
	if label, err := smack.LabelFromPID(creds.PID); err == nil {
		creds.Label = label
	}
	return creds
}

// PeerCredentials reads SO_PEERCRED (and SO_PEERSEC, best effort)
// from a Unix socket connection.
func PeerCredentials(conn *net.UnixConn) (Credentials, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Credentials{}, fmt.Errorf("accessing socket: %w", err)
	}

	var creds Credentials
	var credErr error
	controlErr := raw.Control(func(fd uintptr) {
		ucred, err := unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			credErr = fmt.Errorf("SO_PEERCRED: %w", err)
			return
		}
		creds = Credentials{UID: int(ucred.Uid), GID: int(ucred.Gid), PID: int(ucred.Pid)}
		if label, err := smack.LabelFromSocket(int(fd)); err == nil {
			creds.Label = label
		}
	})
	if controlErr != nil {
		return Credentials{}, fmt.Errorf("accessing socket: %w", controlErr)
	}
	return creds, credErr
}
