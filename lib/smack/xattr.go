// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package smack

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const (
	xattrAccess    = "security.SMACK64"
	xattrTransmute = "security.SMACK64TRANSMUTE"
	transmuteValue = "TRUE"
)

// Xattr labels files through security.SMACK64 extended attributes.
type Xattr struct{}

// LabelTree labels root and everything beneath it without following
// symlinks. With transmute set, directories are also marked
// transmuting so files created in them inherit the label.
func (Xattr) LabelTree(root, label string, transmute bool) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := SetFileLabel(path, label); err != nil {
			return err
		}
		if transmute && entry.IsDir() {
			if err := unix.Lsetxattr(path, xattrTransmute, []byte(transmuteValue), 0); err != nil {
				return fmt.Errorf("%w: setting %s on %s: %v", ErrKernel, xattrTransmute, path, err)
			}
		}
		return nil
	})
}

// LabelFile labels path alone.
func (Xattr) LabelFile(path, label string) error {
	return SetFileLabel(path, label)
}

// SetFileLabel sets the access label of a single path.
func SetFileLabel(path, label string) error {
	if err := unix.Lsetxattr(path, xattrAccess, []byte(label), 0); err != nil {
		return fmt.Errorf("%w: setting %s on %s: %v", ErrKernel, xattrAccess, path, err)
	}
	return nil
}

// FileLabel returns the access label of path.
func FileLabel(path string) (string, error) {
	buffer := make([]byte, 256)
	for {
		n, err := unix.Lgetxattr(path, xattrAccess, buffer)
		if errors.Is(err, unix.ERANGE) {
			buffer = make([]byte, len(buffer)*2)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: reading %s of %s: %v", ErrKernel, xattrAccess, path, err)
		}
		return string(bytes.TrimRight(buffer[:n], "\x00")), nil
	}
}
