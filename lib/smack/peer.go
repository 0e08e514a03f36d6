// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package smack

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// procRoot is overridden in tests.
var procRoot = "/proc"

// LabelFromPID returns the SMACK label of a running process.
func LabelFromPID(pid int) (string, error) {
	if pid <= 0 {
		return "", fmt.Errorf("invalid pid %d", pid)
	}
	path := procRoot + "/" + strconv.Itoa(pid) + "/attr/current"
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", ErrKernel, path, err)
	}
	return trimLabel(string(data)), nil
}

// LabelFromSocket returns the SMACK label of the peer connected to the
// Unix socket fd.
func LabelFromSocket(fd int) (string, error) {
	value, err := unix.GetsockoptString(fd, unix.SOL_SOCKET, unix.SO_PEERSEC)
	if err != nil {
		return "", fmt.Errorf("%w: SO_PEERSEC: %v", ErrKernel, err)
	}
	return trimLabel(value), nil
}

func trimLabel(s string) string {
	return strings.TrimRight(s, "\x00\n")
}
