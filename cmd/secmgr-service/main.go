// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/secmgr/lib/config"
	"github.com/bureau-foundation/secmgr/lib/manager"
	"github.com/bureau-foundation/secmgr/lib/process"
	"github.com/bureau-foundation/secmgr/lib/service"
	"github.com/bureau-foundation/secmgr/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		loadRules   bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to secmgr.yaml (default: $SECMGR_CONFIG)")
	flag.BoolVar(&loadRules, "load-rules", false, "apply the merged rule snapshot to the kernel before serving")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("secmgr-service %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return err
	}

	logger := service.NewLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := manager.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("starting policy manager: %w", err)
	}
	defer svc.Close()

	if loadRules {
		count, err := svc.Engine().LoadSnapshot()
		if err != nil {
			return fmt.Errorf("loading rule snapshot: %w", err)
		}
		logger.Info("rule snapshot applied", "path", cfg.Paths.MergedRules, "rules", count)
	}

	server := service.NewSocketServer(cfg.Paths.Socket, svc, logger)
	server.LockPath = cfg.Paths.LockFile
	server.SocketMode = 0o666
	server.ReadTimeout = timeout
	server.WriteTimeout = timeout

	logger.Info("policy manager starting",
		"version", version.Info(),
		"environment", string(cfg.Environment),
		"socket", cfg.Paths.Socket,
		"smack_enabled", svc.Engine().Kernel().Enabled(),
	)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("policy manager stopped")
	return nil
}
