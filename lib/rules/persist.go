// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TempSuffix marks in-progress rule files. MergeRules skips them.
const TempSuffix = ".temp"

const filePerm = 0o644

// SaveToFile atomically replaces path with the set's rules, one per
// line in insertion order. On failure the destination is untouched and
// the temporary file is removed.
func (s *RuleSet) SaveToFile(path string) error {
	if s.closed {
		return ErrClosed
	}
	var buffer bytes.Buffer
	for _, rule := range s.Rules() {
		buffer.WriteString(rule.String())
		buffer.WriteByte('\n')
	}
	return writeFileAtomic(path, buffer.Bytes())
}

// LoadFromFile adds every rule persisted in path. Lines have three
// fields (subject, object, permissions) or four for change rules
// (subject, object, allow, deny). Nothing is added if any line is
// malformed.
func (s *RuleSet) LoadFromFile(path string) error {
	if s.closed {
		return ErrClosed
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrFile, path, err)
	}
	defer file.Close()

	var batch []entry
	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		fields := strings.Fields(scanner.Text())
		var rule entry
		switch len(fields) {
		case 0:
			continue
		case 3:
			rule, err = makeRule(fields[0], fields[1], fields[2])
		case 4:
			rule, err = makeModify(fields[0], fields[1], fields[2], fields[3])
		default:
			err = fmt.Errorf("%d fields", len(fields))
		}
		if err != nil {
			return fmt.Errorf("%w: %s:%d: %v", ErrFile, path, lineNumber, err)
		}
		batch = append(batch, rule)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrFile, path, err)
	}
	s.commit(batch)
	return nil
}

// writeFileAtomic writes data to path+TempSuffix, syncs it, renames it
// over path, and syncs the directory.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + TempSuffix
	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrFile, tmpPath, err)
	}

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("%w: writing %s: %w", ErrFile, tmpPath, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("%w: syncing %s: %w", ErrFile, tmpPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrFile, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: renaming %s: %w", ErrFile, tmpPath, err)
	}
	success = true

	return syncDir(filepath.Dir(path))
}

func syncDir(dir string) error {
	handle, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("%w: opening directory %s: %w", ErrFile, dir, err)
	}
	defer handle.Close()
	if err := handle.Sync(); err != nil {
		return fmt.Errorf("%w: syncing directory %s: %w", ErrFile, dir, err)
	}
	return nil
}
