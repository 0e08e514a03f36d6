// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package manager implements the privileged side of the policy
// protocol.
//
// A [Service] owns the package database, the rule engine, and the
// permissible-set store, and answers every request type of package
// protocol. It is used two ways: behind a service.SocketServer in the
// policy daemon, and directly in-process by clients running in
// offline mode (no daemon, e.g. during image creation).
//
// Requests that change rules, labels, files, or the database are
// serialized by one mutex; queries run concurrently against the
// database's read pool.
//
// Authorization follows the caller's credentials:
//
//   - installation and removal: root, or the caller's own uid for
//     local applications
//   - user management: root only (ResultAuthenticationFailed)
//   - administrator policy levels: root or a registered admin user
//     (ResultAccessDenied)
//   - private sharing: root or the owner application's process
package manager
