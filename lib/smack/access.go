// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package smack

import (
	"fmt"
	"strings"
)

// Access is a set of SMACK access permissions.
type Access uint8

const (
	Read Access = 1 << iota
	Write
	Execute
	Append
	Transmute
	Lock
	Bringup
)

// NoAccess is the empty permission set, written as "-".
const NoAccess Access = 0

// accessLetters lists permission letters in canonical order.
var accessLetters = [...]struct {
	letter byte
	access Access
}{
	{'r', Read},
	{'w', Write},
	{'x', Execute},
	{'a', Append},
	{'t', Transmute},
	{'l', Lock},
	{'b', Bringup},
}

// ParseAccess parses a permission string such as "rwxat" or "-".
// Letters are case-insensitive and may appear in any order; '-' is a
// placeholder and grants nothing.
func ParseAccess(s string) (Access, error) {
	if s == "" {
		return NoAccess, fmt.Errorf("empty access string")
	}
	var access Access
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' {
			continue
		}
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		found := false
		for _, entry := range accessLetters {
			if entry.letter == c {
				access |= entry.access
				found = true
				break
			}
		}
		if !found {
			return NoAccess, fmt.Errorf("invalid access character %q in %q", s[i], s)
		}
	}
	return access, nil
}

// String returns the canonical short form: present letters in
// "rwxatlb" order, or "-" when empty.
func (a Access) String() string {
	if a == NoAccess {
		return "-"
	}
	var builder strings.Builder
	for _, entry := range accessLetters {
		if a&entry.access != 0 {
			builder.WriteByte(entry.letter)
		}
	}
	return builder.String()
}

// Long returns the fixed-position form smackfs expects: one column per
// permission in "rwxatl" order with '-' for absent ones. Bringup is
// appended only when set, since older kernels reject the letter.
func (a Access) Long() string {
	buffer := make([]byte, 0, len(accessLetters))
	for _, entry := range accessLetters {
		switch {
		case a&entry.access != 0:
			buffer = append(buffer, entry.letter)
		case entry.access != Bringup:
			buffer = append(buffer, '-')
		}
	}
	return string(buffer)
}
