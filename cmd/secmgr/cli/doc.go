// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command-line framework of the secmgr tool.
//
// A [Command] tree is built in cmd/secmgr/commands and run with
// [Command.Execute], which routes positional arguments to
// subcommands, parses pflag flag sets, and prints structured help.
// Unknown commands and flags get a suggestion when a known name is
// within a small edit distance.
//
// [NewCommandLogger] picks a text or JSON slog handler depending on
// whether stderr is a terminal. [JSONOutput] gives commands a --json
// flag, and [ExitError] lets a command choose its exit code.
package cli
