// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Secmgr is the command-line client of the SMACK policy manager.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/secmgr/cmd/secmgr/commands"
	"github.com/bureau-foundation/secmgr/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return commands.Root().Execute(ctx, os.Args[1:])
}
