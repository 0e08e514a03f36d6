// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by AcquireLock when another process holds the
// lock.
var ErrLocked = errors.New("lock held by another process")

// Lock is an exclusive flock on a file. The lock is released when the
// holder closes it or exits.
type Lock struct {
	file *os.File
}

// AcquireLock takes the exclusive lock at path without blocking,
// creating the file if needed.
func AcquireLock(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return &Lock{file: file}, nil
}

// TryLock reports whether the lock at path is free by taking it. When
// free, the returned lock must be closed by the caller. A lock file
// that cannot be opened counts as held: the caller cannot prove no
// service is running.
func TryLock(path string) (*Lock, bool) {
	lock, err := AcquireLock(path)
	if err != nil {
		return nil, false
	}
	return lock, true
}

// Close releases the lock.
func (l *Lock) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}
