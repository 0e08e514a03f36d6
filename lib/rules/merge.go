// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Snapshot describes a merged rules file.
type Snapshot struct {
	Path string

	// Files lists the fragments in the order they were concatenated.
	Files []string

	Size   int
	Digest [32]byte
}

// DigestHex returns the BLAKE3 digest of the snapshot contents.
func (s Snapshot) DigestHex() string {
	return hex.EncodeToString(s.Digest[:])
}

// MergeRules concatenates every rule file in rulesDir into mergedPath.
// Files ending in TempSuffix are in-progress writes and are skipped.
// Each fragment is newline-terminated in the output. Fragments are
// ordered package files first, then application files, then author
// files, then anything else, each group by name.
//
// The merged file is replaced atomically. A fragment that disappears
// between listing and reading is skipped.
func MergeRules(rulesDir, mergedPath string) (Snapshot, error) {
	dirEntries, err := os.ReadDir(rulesDir)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: listing %s: %w", ErrFile, rulesDir, err)
	}

	var names []string
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if !dirEntry.Type().IsRegular() || strings.HasSuffix(name, TempSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, rj := fragmentRank(names[i]), fragmentRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	var merged bytes.Buffer
	snapshot := Snapshot{Path: mergedPath}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(rulesDir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: reading %s: %w", ErrFile, name, err)
		}
		merged.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			merged.WriteByte('\n')
		}
		snapshot.Files = append(snapshot.Files, name)
	}

	if err := os.MkdirAll(filepath.Dir(mergedPath), 0o755); err != nil {
		return Snapshot{}, fmt.Errorf("%w: creating %s: %w", ErrFile, filepath.Dir(mergedPath), err)
	}
	if err := writeFileAtomic(mergedPath, merged.Bytes()); err != nil {
		return Snapshot{}, err
	}

	snapshot.Size = merged.Len()
	snapshot.Digest = blake3.Sum256(merged.Bytes())
	return snapshot, nil
}

func fragmentRank(name string) int {
	switch {
	case strings.HasPrefix(name, pkgFilePrefix):
		return 0
	case strings.HasPrefix(name, appFilePrefix):
		return 1
	case strings.HasPrefix(name, authorFilePrefix):
		return 2
	default:
		return 3
	}
}
