// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package smacktest provides an in-memory [smack.Kernel] for tests.
package smacktest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bureau-foundation/secmgr/lib/smack"
)

// Kernel records rules in memory the way the kernel would hold them.
// The zero value is a disabled kernel; use New for an enabled one.
type Kernel struct {
	mu       sync.Mutex
	enabled  bool
	rules    map[[2]string]smack.Access
	loads    int
	changes  int
	revoked  []string
	failNext error
}

var _ smack.Kernel = (*Kernel)(nil)

// New returns an enabled, empty kernel.
func New() *Kernel {
	return &Kernel{enabled: true, rules: make(map[[2]string]smack.Access)}
}

// Disabled returns a kernel that reports SMACK as inactive.
func Disabled() *Kernel {
	return &Kernel{rules: make(map[[2]string]smack.Access)}
}

// FailNext makes the next Load, Change, or RevokeSubject return err
// without touching state.
func (k *Kernel) FailNext(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failNext = err
}

func (k *Kernel) Enabled() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.enabled
}

func (k *Kernel) Load(rules []smack.Rule) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.takeFailure(); err != nil {
		return err
	}
	k.loads++
	for _, rule := range rules {
		key := [2]string{rule.Subject, rule.Object}
		if rule.Access == smack.NoAccess {
			delete(k.rules, key)
			continue
		}
		k.rules[key] = rule.Access
	}
	return nil
}

func (k *Kernel) Change(changes []smack.Change) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.takeFailure(); err != nil {
		return err
	}
	k.changes++
	for _, change := range changes {
		key := [2]string{change.Subject, change.Object}
		access := (k.rules[key] | change.Allow) &^ change.Deny
		if access == smack.NoAccess {
			delete(k.rules, key)
			continue
		}
		k.rules[key] = access
	}
	return nil
}

func (k *Kernel) RevokeSubject(subject string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.takeFailure(); err != nil {
		return err
	}
	k.revoked = append(k.revoked, subject)
	for key := range k.rules {
		if key[0] == subject {
			delete(k.rules, key)
		}
	}
	return nil
}

func (k *Kernel) takeFailure() error {
	err := k.failNext
	k.failNext = nil
	if err != nil {
		return fmt.Errorf("%w: %v", smack.ErrKernel, err)
	}
	return nil
}

// Access returns the access subject currently has on object.
func (k *Kernel) Access(subject, object string) smack.Access {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rules[[2]string{subject, object}]
}

// Rules returns every non-empty rule as "subject object access",
// sorted.
func (k *Kernel) Rules() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, 0, len(k.rules))
	for key, access := range k.rules {
		out = append(out, key[0]+" "+key[1]+" "+access.String())
	}
	sort.Strings(out)
	return out
}

// Calls returns how many Load and Change batches were accepted.
func (k *Kernel) Calls() (loads, changes int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.loads, k.changes
}

// Revoked returns the subjects passed to RevokeSubject, in order.
func (k *Kernel) Revoked() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.revoked...)
}
