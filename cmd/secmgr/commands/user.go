// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/secmgr/cmd/secmgr/cli"
)

func userCommand() *cli.Command {
	return &cli.Command{
		Name:    "user",
		Summary: "Register and remove platform users",
		Subcommands: []*cli.Command{
			userAddCommand(),
			userDeleteCommand(),
		},
	}
}

func parseUID(arg string) (int, error) {
	uid, err := strconv.Atoi(arg)
	if err != nil || uid < 0 {
		return 0, fmt.Errorf("invalid uid %q", arg)
	}
	return uid, nil
}

func userAddCommand() *cli.Command {
	var (
		conn     connection
		userType string
	)
	return &cli.Command{
		Name:    "add",
		Summary: "Register a user and create its permissible label set",
		Usage:   "secmgr user add [flags] UID",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("add", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&userType, "type", "normal", "user type: system, admin, guest, or normal")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "secmgr user add [flags] UID"); err != nil {
				return err
			}
			uid, err := parseUID(args[0])
			if err != nil {
				return err
			}
			parsedType, err := parseUserType(userType)
			if err != nil {
				return err
			}
			session, err := conn.connect("user/add")
			if err != nil {
				return err
			}
			defer session.Close()
			return session.AddUser(ctx, uid, parsedType)
		},
	}
}

func userDeleteCommand() *cli.Command {
	var conn connection
	return &cli.Command{
		Name:    "delete",
		Summary: "Remove a user and the applications installed only for it",
		Usage:   "secmgr user delete [flags] UID",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("delete", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "secmgr user delete [flags] UID"); err != nil {
				return err
			}
			uid, err := parseUID(args[0])
			if err != nil {
				return err
			}
			session, err := conn.connect("user/delete")
			if err != nil {
				return err
			}
			defer session.Close()
			return session.DeleteUser(ctx, uid)
		},
	}
}
