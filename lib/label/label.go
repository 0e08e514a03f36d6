// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package label

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// Fixed system-domain labels.
const (
	User             = "User"
	System           = "System"
	SystemPrivileged = "System::Privileged"
	Floor            = "_"
	UserHome         = "User::Home"
)

// MaxLength is the longest label the kernel accepts (SMK_LONGLABEL - 1).
const MaxLength = 255

const (
	appPrefix    = "User::App::"
	pkgPrefix    = "User::Pkg::"
	authorPrefix = "User::Author::"
)

// ErrInvalidLabel is returned when a label is syntactically invalid or
// does not belong to the namespace an operation expects.
var ErrInvalidLabel = errors.New("invalid label")

// Process returns the process label for an application.
func Process(appID string) string {
	return appPrefix + appID
}

// PathRW returns the label of a package's private read-write paths.
func PathRW(pkgID string) string {
	return pkgPrefix + pkgID
}

// PathRO returns the label of a package's read-only paths.
func PathRO(pkgID string) string {
	return PathRW(pkgID) + "::RO"
}

// PathSharedRO returns the label of a package's paths that every
// installed application may read.
func PathSharedRO(pkgID string) string {
	return PathRW(pkgID) + "::SharedRO"
}

// PathTrusted returns the label of paths shared between all packages
// signed by the same author.
func PathTrusted(authorID int) string {
	return authorPrefix + strconv.Itoa(authorID)
}

// SharedPrivate returns the label applied to a private path of pkgID
// while it is shared with applications of other packages. The path is
// reduced to a fixed-size digest so the label stays within
// [MaxLength] and free of characters the kernel rejects.
func SharedPrivate(pkgID, path string) string {
	sum := blake3.Sum256([]byte(path))
	return PathRW(pkgID) + "::SharedPrivate::" + hex.EncodeToString(sum[:16])
}

// AppFromLabel returns the application identifier encoded in a process
// label. Labels outside the application namespace return
// ErrInvalidLabel.
func AppFromLabel(processLabel string) (string, error) {
	appID, ok := strings.CutPrefix(processLabel, appPrefix)
	if !ok || appID == "" {
		return "", fmt.Errorf("%w: %q is not an application label", ErrInvalidLabel, processLabel)
	}
	return appID, nil
}

// Validate reports whether s can be written to the kernel as a label.
func Validate(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLabel)
	}
	if len(s) > MaxLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidLabel, len(s), MaxLength)
	}
	if s[0] == '-' {
		return fmt.Errorf("%w: %q starts with '-'", ErrInvalidLabel, s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c > '~' {
			return fmt.Errorf("%w: %q contains byte 0x%02x", ErrInvalidLabel, s, c)
		}
		switch c {
		case '/', '"', '\'', '\\':
			return fmt.Errorf("%w: %q contains %q", ErrInvalidLabel, s, c)
		}
	}
	return nil
}
