// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the secmgr command tree.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/bureau-foundation/secmgr/cmd/secmgr/cli"
	"github.com/bureau-foundation/secmgr/lib/version"
)

// currentUID is the default user of policy updates.
var currentUID = os.Getuid

// Root returns the secmgr command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "secmgr",
		Description: `secmgr: SMACK policy manager.

Install and uninstall applications, query and change privilege policy,
and share private paths between applications. Requests go to the
policy manager service; when it is not running they execute in-process.`,
		Subcommands: []*cli.Command{
			installCommand(),
			uninstallCommand(),
			pkgIDCommand(),
			appGroupsCommand(),
			hasPrivilegeCommand(),
			identifyCommand(),
			userCommand(),
			policyCommand(),
			shareCommand(),
			rulesCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(ctx context.Context, args []string) error {
					fmt.Fprintf(stdout, "secmgr %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
