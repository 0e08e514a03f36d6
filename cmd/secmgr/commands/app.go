// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/secmgr/cmd/secmgr/cli"
	"github.com/bureau-foundation/secmgr/lib/protocol"
)

func installCommand() *cli.Command {
	var (
		conn        connection
		pkgID       string
		uid         int
		author      string
		installType string
		privileges  []string
		paths       []string
	)
	return &cli.Command{
		Name:    "install",
		Summary: "Install an application and apply its rules",
		Description: `Register an application, label its paths, and apply its SMACK rules.

Paths are given as PATH:TYPE, where TYPE is rw (the default), ro,
public-ro, shared-ro, or trusted-rw. Trusted paths need --author.`,
		Usage: "secmgr install [flags] APP_ID",
		Examples: []cli.Example{{
			Description: "Install a gallery for user 5001 with a private data directory",
			Command:     "secmgr install --pkg org.example.media --uid 5001 --path /opt/usr/home/owner/apps/media/data:rw org.example.gallery",
		}},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("install", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&pkgID, "pkg", "", "package id (required)")
			flagSet.IntVar(&uid, "uid", os.Getuid(), "user to install for")
			flagSet.StringVar(&author, "author", "", "author name, needed for trusted-rw paths")
			flagSet.StringVar(&installType, "type", "", "installation type: local, global, or preloaded (default: from --uid)")
			flagSet.StringArrayVar(&privileges, "privilege", nil, "privilege the application declares (repeatable)")
			flagSet.StringArrayVar(&paths, "path", nil, "registered path as PATH[:TYPE] (repeatable)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "secmgr install [flags] APP_ID"); err != nil {
				return err
			}
			req := &protocol.AppInstall{
				AppID:      args[0],
				PkgID:      pkgID,
				UID:        uid,
				AuthorName: author,
				Privileges: privileges,
			}
			var err error
			if req.InstallType, err = parseInstallType(installType); err != nil {
				return err
			}
			for _, spec := range paths {
				path, err := parsePathSpec(spec)
				if err != nil {
					return err
				}
				req.Paths = append(req.Paths, path)
			}

			session, err := conn.connect("install")
			if err != nil {
				return err
			}
			defer session.Close()
			if err := session.Install(ctx, req); err != nil {
				return err
			}
			session.logger.Info("installed", "app_id", req.AppID, "pkg_id", req.PkgID, "uid", req.UID)
			return nil
		},
	}
}

func uninstallCommand() *cli.Command {
	var (
		conn        connection
		uid         int
		installType string
	)
	return &cli.Command{
		Name:    "uninstall",
		Summary: "Uninstall an application and revoke its rules",
		Usage:   "secmgr uninstall [flags] APP_ID",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("uninstall", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.IntVar(&uid, "uid", os.Getuid(), "user to uninstall for")
			flagSet.StringVar(&installType, "type", "", "installation type: local, global, or preloaded (default: from --uid)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "secmgr uninstall [flags] APP_ID"); err != nil {
				return err
			}
			parsedType, err := parseInstallType(installType)
			if err != nil {
				return err
			}
			session, err := conn.connect("uninstall")
			if err != nil {
				return err
			}
			defer session.Close()
			return session.Uninstall(ctx, &protocol.AppUninstall{AppID: args[0], UID: uid, InstallType: parsedType})
		},
	}
}

func pkgIDCommand() *cli.Command {
	var conn connection
	return &cli.Command{
		Name:    "pkg-id",
		Summary: "Print the package of an application",
		Usage:   "secmgr pkg-id [flags] APP_ID",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("pkg-id", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "secmgr pkg-id [flags] APP_ID"); err != nil {
				return err
			}
			session, err := conn.connect("pkg-id")
			if err != nil {
				return err
			}
			defer session.Close()
			pkgID, err := session.PackageID(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, pkgID)
			return nil
		},
	}
}

func appGroupsCommand() *cli.Command {
	var (
		conn   connection
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    "app-groups",
		Summary: "Print the supplementary groups an application's privileges grant",
		Usage:   "secmgr app-groups [flags] APP_ID",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("app-groups", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			output.AddFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "secmgr app-groups [flags] APP_ID"); err != nil {
				return err
			}
			session, err := conn.connect("app-groups")
			if err != nil {
				return err
			}
			defer session.Close()
			gids, err := session.AppGroups(ctx, args[0])
			if err != nil {
				return err
			}
			if done, err := emitJSON(&output, gids); done {
				return err
			}
			for _, gid := range gids {
				fmt.Fprintln(stdout, gid)
			}
			return nil
		},
	}
}

func hasPrivilegeCommand() *cli.Command {
	var (
		conn connection
		uid  int
	)
	return &cli.Command{
		Name:    "has-privilege",
		Summary: "Check whether an application holds a privilege",
		Description: `Check whether an application holds a privilege for a user.

Prints "allowed" and exits 0, or prints "denied" and exits 1.`,
		Usage: "secmgr has-privilege [flags] APP_ID PRIVILEGE",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("has-privilege", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.IntVar(&uid, "uid", os.Getuid(), "user to check for")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "secmgr has-privilege [flags] APP_ID PRIVILEGE"); err != nil {
				return err
			}
			session, err := conn.connect("has-privilege")
			if err != nil {
				return err
			}
			defer session.Close()
			allowed, err := session.HasPrivilege(ctx, args[0], args[1], uid)
			if err != nil {
				return err
			}
			if !allowed {
				fmt.Fprintln(stdout, "denied")
				return &cli.ExitError{Code: 1}
			}
			fmt.Fprintln(stdout, "allowed")
			return nil
		},
	}
}

func identifyCommand() *cli.Command {
	var (
		conn        connection
		pid         int
		withPackage bool
	)
	return &cli.Command{
		Name:    "identify",
		Summary: "Print the application a process runs as",
		Usage:   "secmgr identify [flags] --pid PID",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("identify", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.IntVar(&pid, "pid", 0, "process to identify (required)")
			flagSet.BoolVar(&withPackage, "package", false, "also print the package id")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 0, "secmgr identify [flags] --pid PID"); err != nil {
				return err
			}
			session, err := conn.connect("identify")
			if err != nil {
				return err
			}
			defer session.Close()
			identity, err := session.IdentifyAppFromPID(ctx, pid, withPackage)
			if err != nil {
				return err
			}
			if withPackage {
				fmt.Fprintf(stdout, "%s %s\n", identity.AppID, identity.PkgID)
			} else {
				fmt.Fprintln(stdout, identity.AppID)
			}
			return nil
		},
	}
}
