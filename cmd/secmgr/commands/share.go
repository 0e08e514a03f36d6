// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/secmgr/cmd/secmgr/cli"
	"github.com/bureau-foundation/secmgr/lib/client"
	"github.com/bureau-foundation/secmgr/lib/protocol"
)

func shareCommand() *cli.Command {
	return &cli.Command{
		Name:    "share",
		Summary: "Share private paths between applications",
		Subcommands: []*cli.Command{
			shareSubcommand("apply", "Share private paths of the owner with the target", (*client.Client).ApplySharing),
			shareSubcommand("drop", "Withdraw a share made by apply", (*client.Client).DropSharing),
		},
	}
}

func shareSubcommand(name, summary string, call func(*client.Client, context.Context, protocol.Sharing) error) *cli.Command {
	var (
		conn   connection
		owner  string
		target string
	)
	usage := "secmgr share " + name + " --owner APP_ID --target APP_ID PATH..."
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&owner, "owner", "", "application owning the paths (required)")
			flagSet.StringVar(&target, "target", "", "application the paths are shared with (required)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			session, err := conn.connect("share/" + name)
			if err != nil {
				return err
			}
			defer session.Close()
			return call(session.Client, ctx, protocol.Sharing{
				OwnerAppID:  owner,
				TargetAppID: target,
				Paths:       args,
			})
		},
	}
}
