// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the exit path shared by the secmgr binaries.
// Errors reaching main are reported on stderr because the structured
// logger may not exist yet, and errors that carry an exit code (such
// as a denied "has-privilege" check) exit with that code silently.
package process
