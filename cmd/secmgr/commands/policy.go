// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/secmgr/cmd/secmgr/cli"
	"github.com/bureau-foundation/secmgr/lib/protocol"
)

func policyCommand() *cli.Command {
	return &cli.Command{
		Name:    "policy",
		Summary: "Read and change privilege policy",
		Subcommands: []*cli.Command{
			policyGetCommand(),
			policyUpdateCommand(),
			policyLevelsCommand(),
			groupsCommand(),
		},
	}
}

// policyEntry is the JSON form of a policy entry.
type policyEntry struct {
	User         string `json:"user"`
	AppID        string `json:"app_id"`
	Privilege    string `json:"privilege"`
	CurrentLevel string `json:"current_level,omitempty"`
	MaxLevel     string `json:"max_level,omitempty"`
}

func policyGetCommand() *cli.Command {
	var (
		conn      connection
		output    cli.JSONOutput
		scope     string
		user      string
		appID     string
		privilege string
	)
	return &cli.Command{
		Name:    "get",
		Summary: "List policy entries",
		Description: `List policy entries.

The effective scope shows, for every privilege of every application
visible to the user, the level in force and the administrator ceiling.
The self and admin scopes list stored user and administrator levels.
Filters accept "*" for any value.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlags(flagSet)
			flagSet.StringVar(&scope, "scope", "effective", "effective, self, or admin")
			flagSet.StringVar(&user, "user", "", "uid to list (default: the caller)")
			flagSet.StringVar(&appID, "app", "", "application id filter")
			flagSet.StringVar(&privilege, "privilege", "", "privilege filter")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 0, "secmgr policy get [flags]"); err != nil {
				return err
			}
			parsedScope, err := parsePolicyScope(scope)
			if err != nil {
				return err
			}
			session, err := conn.connect("policy/get")
			if err != nil {
				return err
			}
			defer session.Close()

			entries, err := session.Policy(ctx, parsedScope, protocol.PolicyEntry{
				User: user, AppID: appID, Privilege: privilege,
			})
			if err != nil {
				return err
			}
			rows := make([]policyEntry, len(entries))
			for i, entry := range entries {
				rows[i] = policyEntry(entry)
			}
			if done, err := emitJSON(&output, rows); done {
				return err
			}

			table := tabwriter.NewWriter(stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(table, "USER\tAPP\tPRIVILEGE\tLEVEL\tMAX LEVEL")
			for _, row := range rows {
				fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\n", row.User, row.AppID, row.Privilege, row.CurrentLevel, row.MaxLevel)
			}
			return table.Flush()
		},
	}
}

func policyUpdateCommand() *cli.Command {
	var (
		conn      connection
		user      string
		appID     string
		privilege string
		level     string
		maxLevel  string
	)
	return &cli.Command{
		Name:    "update",
		Summary: "Set the user or administrator level of a privilege",
		Usage:   "secmgr policy update [flags] --app APP_ID --privilege PRIVILEGE (--level LEVEL | --max-level LEVEL)",
		Examples: []cli.Example{{
			Description: "Deny the camera to every application of user 5001",
			Command:     `secmgr policy update --user 5001 --app '*' --privilege http://tizen.org/privilege/camera --level Deny`,
		}},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("update", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&user, "user", "", `uid the entry applies to, or "*" (default: the caller)`)
			flagSet.StringVar(&appID, "app", "", `application id, or "*"`)
			flagSet.StringVar(&privilege, "privilege", "", `privilege, or "*"`)
			flagSet.StringVar(&level, "level", "", "the user's own level")
			flagSet.StringVar(&maxLevel, "max-level", "", "the administrator ceiling")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 0, "secmgr policy update [flags]"); err != nil {
				return err
			}
			if user == "" {
				user = strconv.Itoa(currentUID())
			}
			session, err := conn.connect("policy/update")
			if err != nil {
				return err
			}
			defer session.Close()
			return session.UpdatePolicy(ctx, protocol.PolicyEntry{
				User:         user,
				AppID:        appID,
				Privilege:    privilege,
				CurrentLevel: level,
				MaxLevel:     maxLevel,
			})
		},
	}
}

func policyLevelsCommand() *cli.Command {
	var (
		conn   connection
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    "levels",
		Summary: "List policy levels, most restrictive first",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("levels", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			session, err := conn.connect("policy/levels")
			if err != nil {
				return err
			}
			defer session.Close()
			levels, err := session.PolicyLevels(ctx)
			if err != nil {
				return err
			}
			return printNames(&output, levels)
		},
	}
}

func groupsCommand() *cli.Command {
	var (
		conn   connection
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    "groups",
		Summary: "List every group a privilege maps to",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("groups", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			session, err := conn.connect("policy/groups")
			if err != nil {
				return err
			}
			defer session.Close()
			groups, err := session.Groups(ctx)
			if err != nil {
				return err
			}
			return printNames(&output, groups)
		},
	}
}

func printNames(output *cli.JSONOutput, names []string) error {
	if done, err := emitJSON(output, names); done {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(stdout, name)
	}
	return nil
}
