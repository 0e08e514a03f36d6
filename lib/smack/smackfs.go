// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package smack

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DefaultMount is where smackfs is mounted on current systems.
const DefaultMount = "/sys/fs/smackfs"

// maxWrite bounds one write(2) to a smackfs rule file. The kernel
// parses at most a page per call and only whole lines.
const maxWrite = 4000

// FS is the smackfs implementation of [Kernel].
type FS struct {
	// Mount is the smackfs mount point. Empty means DefaultMount.
	Mount string
}

var _ Kernel = (*FS)(nil)

func (f *FS) mount() string {
	if f.Mount == "" {
		return DefaultMount
	}
	return f.Mount
}

// Enabled reports whether a smackfs is mounted at the mount point.
func (f *FS) Enabled() bool {
	var stat unix.Statfs_t
	if err := unix.Statfs(f.mount(), &stat); err != nil {
		return false
	}
	return stat.Type == unix.SMACK_MAGIC
}

// Load writes rules to load2.
func (f *FS) Load(rules []Rule) error {
	lines := make([][]byte, 0, len(rules))
	for _, rule := range rules {
		lines = append(lines, fmt.Appendf(nil, "%s %s %s\n", rule.Subject, rule.Object, rule.Access.Long()))
	}
	return f.writeLines("load2", lines)
}

// Change writes changes to change-rule.
func (f *FS) Change(changes []Change) error {
	lines := make([][]byte, 0, len(changes))
	for _, change := range changes {
		lines = append(lines, fmt.Appendf(nil, "%s %s %s %s\n",
			change.Subject, change.Object, change.Allow.Long(), change.Deny.Long()))
	}
	return f.writeLines("change-rule", lines)
}

// RevokeSubject writes subject to revoke-subject.
func (f *FS) RevokeSubject(subject string) error {
	return f.writeLines("revoke-subject", [][]byte{[]byte(subject)})
}

// writeLines opens one smackfs control file and submits lines packed
// into as few writes as the kernel accepts.
func (f *FS) writeLines(name string, lines [][]byte) error {
	if len(lines) == 0 {
		return nil
	}
	path := filepath.Join(f.mount(), name)
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrKernel, path, err)
	}
	defer file.Close()

	var chunk bytes.Buffer
	flush := func() error {
		if chunk.Len() == 0 {
			return nil
		}
		defer chunk.Reset()
		if _, err := file.Write(chunk.Bytes()); err != nil {
			return fmt.Errorf("%w: writing %s: %v", ErrKernel, path, err)
		}
		return nil
	}
	for _, line := range lines {
		if chunk.Len()+len(line) > maxWrite {
			if err := flush(); err != nil {
				return err
			}
		}
		chunk.Write(line)
	}
	return flush()
}
