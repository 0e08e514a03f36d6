// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Unix socket transport between policy
// clients and the privileged policy service.
//
// Each connection carries exactly one request-response cycle: the
// client writes a request (see package protocol), half-closes, and
// reads the response. The server reads the peer's credentials from
// the socket (SO_PEERCRED, plus the SMACK label when available),
// decodes and validates the request, and dispatches it to a [Handler].
//
// While serving, the server holds an exclusive lock on a lock file.
// Clients that manage to take the lock themselves know no service is
// running and may execute requests in-process instead (offline mode);
// see [TryLock].
//
// Key exports:
//
//   - [SocketServer] -- the accept loop with per-connection timeouts
//   - [Handler] and [Credentials] -- the dispatch contract
//   - [Client] -- one-shot request transport with typed errors
//   - [Lock], [AcquireLock], [TryLock] -- the service lock file
//   - [NewLogger] -- the JSON slog handler used by the service binary
package service
