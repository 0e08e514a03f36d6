// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permissible

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/sys/user"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/secmgr/lib/protocol"
)

// FileName is the name of every permissible-set file.
const FileName = "apps-labels"

const (
	validMode   fs.FileMode = 0o444
	invalidMode fs.FileMode = 0o000
)

// ErrFile wraps every filesystem failure of this package.
var ErrFile = errors.New("permissible set file error")

// ErrInvalidLabel is returned by Update for a label that cannot be
// stored as one line.
var ErrInvalidLabel = errors.New("invalid permissible set label")

// syncFile is replaced in tests to simulate a failing disk.
var syncFile = (*os.File).Sync

// Store locates and writes permissible-set files under one directory.
// Concurrent writers, including other processes, are serialized by
// the per-file flock; a Store itself holds no mutable state.
type Store struct {
	dir string

	// lookupName maps a uid to a user name.
	lookupName func(uid int) (string, error)

	// labelFile, when set, labels newly created files.
	labelFile func(path string) error
}

// Option configures a Store.
type Option func(*Store)

// WithUserLookup replaces the passwd lookup of user names.
func WithUserLookup(lookup func(uid int) (string, error)) Option {
	return func(s *Store) { s.lookupName = lookup }
}

// WithFileLabeler labels every file InitializeUser creates.
func WithFileLabeler(labelFile func(path string) error) Option {
	return func(s *Store) { s.labelFile = labelFile }
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string, options ...Option) *Store {
	store := &Store{dir: dir, lookupName: passwdName}
	for _, option := range options {
		option(store)
	}
	return store
}

func passwdName(uid int) (string, error) {
	entry, err := user.LookupUid(uid)
	if err != nil {
		return "", err
	}
	return entry.Name, nil
}

// Path returns the permissible-set file of uid for an installation
// type.
func (s *Store) Path(uid int, installType protocol.InstallType) (string, error) {
	if installType.Global() {
		return filepath.Join(s.dir, FileName), nil
	}
	name, err := s.lookupName(uid)
	if err != nil {
		return "", fmt.Errorf("%w: looking up user %d: %w", ErrFile, uid, err)
	}
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: unusable user name %q for uid %d", ErrFile, name, uid)
	}
	return filepath.Join(s.dir, name, FileName), nil
}

// Update replaces the permissible set of uid with labels. Labels must
// be non-empty and contain no line breaks, so that Read returns them
// unchanged. An invalid label leaves the file untouched.
func (s *Store) Update(uid int, installType protocol.InstallType, labels []string) error {
	for i, label := range labels {
		if label == "" || strings.ContainsAny(label, "\r\n") {
			return fmt.Errorf("%w: label %d: %q", ErrInvalidLabel, i, label)
		}
	}
	path, err := s.Path(uid, installType)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrFile, filepath.Dir(path), err)
	}
	return write(path, labels)
}

// write locks path, marks it invalid, replaces its content, and marks
// it valid again once the content is on disk. If any step fails the
// file stays invalid.
func write(path string, labels []string) error {
	file, err := openForWrite(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("%w: locking %s: %w", ErrFile, path, err)
	}
	if err := file.Chmod(invalidMode); err != nil {
		return fmt.Errorf("%w: invalidating %s: %w", ErrFile, path, err)
	}
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("%w: truncating %s: %w", ErrFile, path, err)
	}

	writer := bufio.NewWriter(file)
	for _, label := range labels {
		writer.WriteString(label)
		writer.WriteByte('\n')
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrFile, path, err)
	}
	if err := syncFile(file); err != nil {
		return fmt.Errorf("%w: syncing %s: %w", ErrFile, path, err)
	}
	if err := file.Chmod(validMode); err != nil {
		return fmt.Errorf("%w: validating %s: %w", ErrFile, path, err)
	}
	return nil
}

// openForWrite opens path for writing, creating it invalid. A valid
// file is read-only, which stops non-root owners from reopening it;
// for them the file is first switched to write-only, which is also
// invalid.
func openForWrite(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, invalidMode)
	if errors.Is(err, fs.ErrPermission) {
		if chmodErr := os.Chmod(path, 0o200); chmodErr == nil {
			file, err = os.OpenFile(path, os.O_WRONLY, 0)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrFile, path, err)
	}
	return file, nil
}

// Read returns the labels listed in path, in order. Read takes a
// shared lock, so it waits for a concurrent Update to finish.
func Read(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrFile, path, err)
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_SH); err != nil {
		return nil, fmt.Errorf("%w: locking %s: %w", ErrFile, path, err)
	}

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFile, path, err)
	}
	return labels, nil
}

// Valid reports whether path is marked valid.
func Valid(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFile, err)
	}
	return info.Mode().Perm() == validMode, nil
}

// InitializeUser creates the directory and an empty valid file for
// uid's local applications. An existing file is kept.
func (s *Store) InitializeUser(uid int) error {
	path, err := s.Path(uid, protocol.InstallLocal)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrFile, filepath.Dir(path), err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := write(path, nil); err != nil {
		return err
	}
	if s.labelFile != nil {
		if err := s.labelFile(path); err != nil {
			return fmt.Errorf("%w: labeling %s: %w", ErrFile, path, err)
		}
	}
	return nil
}

// RemoveUser deletes uid's file and directory. Missing entries are not
// an error.
func (s *Store) RemoveUser(uid int) error {
	path, err := s.Path(uid, protocol.InstallLocal)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %w", ErrFile, path, err)
	}
	if err := os.Remove(filepath.Dir(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %w", ErrFile, filepath.Dir(path), err)
	}
	return nil
}
