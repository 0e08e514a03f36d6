// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/secmgr/cmd/secmgr/cli"
	"github.com/bureau-foundation/secmgr/lib/config"
	"github.com/bureau-foundation/secmgr/lib/rules"
	"github.com/bureau-foundation/secmgr/lib/service"
	"github.com/bureau-foundation/secmgr/lib/smack"
)

func rulesCommand() *cli.Command {
	return &cli.Command{
		Name:    "rules",
		Summary: "Maintain the persisted rule snapshot",
		Subcommands: []*cli.Command{
			rulesMergeCommand(),
			rulesLoadCommand(),
		},
	}
}

// localEngine returns a rule engine on the configured files, holding
// the service lock so no running service writes them concurrently.
func localEngine(conn *connection, command string) (*rules.Engine, *service.Lock, *config.Config, error) {
	cfg, err := conn.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	lock, free := service.TryLock(cfg.Paths.LockFile)
	if !free {
		return nil, nil, nil, fmt.Errorf("the policy manager service holds %s; stop it first", cfg.Paths.LockFile)
	}
	logger := cli.NewCommandLogger(conn.verbose).With("command", command)
	engine := rules.NewEngine(&smack.FS{Mount: cfg.Paths.Smackfs}, rules.Paths{
		RulesDir:    cfg.Paths.RulesDir,
		MergedRules: cfg.Paths.MergedRules,
		TemplateDir: cfg.Paths.TemplateDir,
	}, logger)
	return engine, lock, cfg, nil
}

func rulesMergeCommand() *cli.Command {
	var conn connection
	return &cli.Command{
		Name:    "merge",
		Summary: "Rebuild the merged snapshot from the rules directory",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("merge", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			engine, lock, _, err := localEngine(&conn, "rules/merge")
			if err != nil {
				return err
			}
			defer lock.Close()
			snapshot, err := engine.MergeRules()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s: %d files, %d bytes, blake3 %s\n",
				snapshot.Path, len(snapshot.Files), snapshot.Size, snapshot.DigestHex())
			return nil
		},
	}
}

func rulesLoadCommand() *cli.Command {
	var conn connection
	return &cli.Command{
		Name:    "load",
		Summary: "Apply the merged snapshot to the kernel",
		Description: `Apply the merged snapshot to the kernel.

Run at boot, before the service starts, to restore every installed
application's rules.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("load", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			engine, lock, cfg, err := localEngine(&conn, "rules/load")
			if err != nil {
				return err
			}
			defer lock.Close()
			if !engine.Kernel().Enabled() {
				return fmt.Errorf("SMACK is not enabled at %s", cfg.Paths.Smackfs)
			}
			count, err := engine.LoadSnapshot()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "loaded %d rules from %s\n", count, cfg.Paths.MergedRules)
			return nil
		},
	}
}
