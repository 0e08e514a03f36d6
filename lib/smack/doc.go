// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package smack talks to the SMACK LSM: rule loading through smackfs,
// file labels through extended attributes, and peer labels through
// procfs and SO_PEERSEC.
//
// The [Kernel] interface is the boundary between rule synthesis and
// the kernel. [FS] implements it against a mounted smackfs; tests use
// the in-memory implementation in package smacktest. When smackfs is
// not mounted, [FS.Enabled] reports false and callers skip kernel
// writes entirely.
package smack
