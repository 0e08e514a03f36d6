// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/zeebo/blake3"
)

func writeFragment(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMergeRules(t *testing.T) {
	dir := t.TempDir()
	rulesDir := filepath.Join(dir, "rules")
	if err := os.Mkdir(rulesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFragment(t, rulesDir, "pkg_A", "x y rx\n")
	writeFragment(t, rulesDir, "app_B", "a b w")
	writeFragment(t, rulesDir, "pkg_A.temp", "garbage")

	mergedPath := filepath.Join(dir, "rules-merged", "rules.merged")
	snapshot, err := MergeRules(rulesDir, mergedPath)
	if err != nil {
		t.Fatalf("MergeRules: %v", err)
	}

	data, err := os.ReadFile(mergedPath)
	if err != nil {
		t.Fatal(err)
	}
	want := "x y rx\na b w\n"
	if string(data) != want {
		t.Errorf("merged = %q, want %q", data, want)
	}
	if !reflect.DeepEqual(snapshot.Files, []string{"pkg_A", "app_B"}) {
		t.Errorf("fragments = %q", snapshot.Files)
	}
	if snapshot.Size != len(want) || snapshot.Digest != blake3.Sum256([]byte(want)) {
		t.Errorf("snapshot = %+v", snapshot)
	}
	if _, err := os.Stat(mergedPath + TempSuffix); !os.IsNotExist(err) {
		t.Errorf("temporary merged file left behind: %v", err)
	}
}

func TestMergeRulesOrdering(t *testing.T) {
	rulesDir := t.TempDir()
	writeFragment(t, rulesDir, "shared_ro", "s s r\n")
	writeFragment(t, rulesDir, "author_1", "t t r\n")
	writeFragment(t, rulesDir, "app_Z", "z z r\n")
	writeFragment(t, rulesDir, "app_A", "a a r\n")
	writeFragment(t, rulesDir, "pkg_q", "q q r\n")
	writeFragment(t, rulesDir, "empty", "")

	snapshot, err := MergeRules(rulesDir, filepath.Join(t.TempDir(), "merged"))
	if err != nil {
		t.Fatalf("MergeRules: %v", err)
	}
	want := []string{"pkg_q", "app_A", "app_Z", "author_1", "empty", "shared_ro"}
	if !reflect.DeepEqual(snapshot.Files, want) {
		t.Errorf("fragments = %q, want %q", snapshot.Files, want)
	}
	data, _ := os.ReadFile(snapshot.Path)
	if string(data) != "q q r\na a r\nz z r\nt t r\ns s r\n" {
		t.Errorf("merged = %q", data)
	}
}

func TestMergeRulesMissingDirectory(t *testing.T) {
	if _, err := MergeRules(filepath.Join(t.TempDir(), "absent"), filepath.Join(t.TempDir(), "merged")); err == nil {
		t.Error("MergeRules succeeded on a missing directory")
	}
}
