// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func saveStamp(t *testing.T) {
	t.Helper()
	commit, dirty, built, read := GitCommit, GitDirty, BuildTime, readBuildInfo
	t.Cleanup(func() {
		GitCommit, GitDirty, BuildTime, readBuildInfo = commit, dirty, built, read
	})
}

func TestInfo(t *testing.T) {
	saveStamp(t)

	GitCommit, GitDirty, BuildTime = "abc1234", "true", "2026-01-02T03:04:05Z"
	if got, want := Info(), Version+" (abc1234-dirty, 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	GitDirty = "false"
	if got := Info(); strings.Contains(got, "dirty") {
		t.Errorf("clean build reported dirty: %q", got)
	}
	if got := Full(); !strings.HasPrefix(got, Info()) || !strings.Contains(got, "Go: ") {
		t.Errorf("Full() = %q", got)
	}
}

func TestInfoFromBuildInfo(t *testing.T) {
	saveStamp(t)
	GitCommit, GitDirty, BuildTime = "unknown", "false", "unknown"

	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.time", Value: "2026-03-04T05:06:07Z"},
		}}, true
	}
	if got, want := Info(), Version+" (0123456789ab-dirty, 2026-03-04T05:06:07Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	if got, want := Info(), Version+" (unknown, unknown)"; got != want {
		t.Errorf("Info() without build info = %q, want %q", got, want)
	}
}
