// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. Unix domain sockets have a 108-byte path limit and
// t.TempDir() paths can exceed it.
//
// [WriteFiles] lays out rule templates and other fixture trees.
//
// [RequireReceive] bounds a channel receive with a timeout so a
// deadlocked test fails instead of hanging.
//
// [UniqueID] generates distinct identifiers for tests that share a
// database or socket.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
