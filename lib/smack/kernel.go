// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package smack

import "errors"

// ErrKernel wraps every failure reported by the kernel interface.
var ErrKernel = errors.New("smack kernel error")

// Rule sets the access of Subject on Object to exactly Access.
type Rule struct {
	Subject string
	Object  string
	Access  Access
}

// Change adds Allow to and removes Deny from whatever access Subject
// currently has on Object.
type Change struct {
	Subject string
	Object  string
	Allow   Access
	Deny    Access
}

// Kernel applies rules to the running policy.
//
// Load and Change submit their whole batch at once. If either returns
// an error the kernel may hold any prefix of the batch: callers must
// treat the batch as failed and not assume partial success.
type Kernel interface {
	// Enabled reports whether SMACK is active. When false, callers
	// skip Load, Change, and RevokeSubject.
	Enabled() bool

	Load(rules []Rule) error
	Change(changes []Change) error

	// RevokeSubject drops every rule with the given subject.
	RevokeSubject(subject string) error
}
