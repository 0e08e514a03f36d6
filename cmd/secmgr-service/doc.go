// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Secmgr-service is the privileged policy manager. It listens on a
// Unix socket for install, uninstall, policy, and sharing requests,
// applies the resulting SMACK rules to the kernel, and persists them
// under the rules directory.
//
// While serving, it holds an exclusive lock on the configured lock
// file. Clients that find the lock free execute requests in-process
// instead.
//
// Usage:
//
//	secmgr-service --config /etc/secmgr/secmgr.yaml [--load-rules]
package main
