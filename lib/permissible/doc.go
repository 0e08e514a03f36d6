// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package permissible maintains the permissible-set files: for each
// user, the list of application labels a launcher may start processes
// with.
//
// # Layout
//
// Files live under the store directory:
//
//	<dir>/apps-labels               global and preloaded applications
//	<dir>/<user name>/apps-labels   local applications of one user
//
// User names come from the passwd database (moby/sys/user) unless a
// lookup is supplied with [WithUserLookup]. [Store.InitializeUser]
// creates a user's directory with an empty valid file, and
// [Store.RemoveUser] deletes both.
//
// # Format and validity
//
// A file holds one label per line, in the order given to
// [Store.Update]. Labels are non-empty single lines; Update rejects
// anything else with [ErrInvalidLabel] before touching the file.
//
// The file mode is the validity flag. A file is valid when its mode is
// 0444. Update takes an exclusive flock, sets the mode to 0000,
// truncates, writes, syncs, and only then restores 0444. A reader that
// sees a readable file never sees a half-written list, and a crash or
// failed write leaves the file marked invalid until the next
// successful Update. [Read] takes a shared lock, so it waits for an
// Update in progress; callers decide with [Valid] whether to trust the
// content.
//
// Every filesystem failure wraps [ErrFile]. Nothing is retried.
package permissible
