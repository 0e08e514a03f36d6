// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pkgdb stores the security manager's view of the platform:
// installed packages, their applications, authors, and registered
// paths; which users each application is installed for and with which
// privileges; privilege policy; and active private path shares.
//
// The database is SQLite, opened through lib/sqlitepool. Every method
// that changes more than one row runs in a single IMMEDIATE
// transaction, so a failed install or uninstall leaves no partial
// records.
//
// An application belongs to exactly one package for its whole
// lifetime. It may be installed for several users; it is removed, and
// its package and author with it once they are empty, when the last
// user uninstalls it.
package pkgdb
