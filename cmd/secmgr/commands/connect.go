// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/secmgr/cmd/secmgr/cli"
	"github.com/bureau-foundation/secmgr/lib/client"
	"github.com/bureau-foundation/secmgr/lib/config"
	"github.com/bureau-foundation/secmgr/lib/manager"
	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/service"
)

// stdout receives command output. Tests replace it.
var stdout io.Writer = os.Stdout

// connection holds the flags every command that talks to the manager
// shares.
type connection struct {
	configPath string
	socketPath string
	verbose    bool
}

func (c *connection) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "path to secmgr.yaml (default: $SECMGR_CONFIG)")
	flagSet.StringVar(&c.socketPath, "socket", "", "service socket (default: paths.socket from the config)")
	flagSet.BoolVarP(&c.verbose, "verbose", "v", false, "log debug output")
}

func (c *connection) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	// The lock file decides between online and offline mode. A
	// directory that cannot be created leaves the lock unobtainable,
	// which reads as a running service.
	_ = os.MkdirAll(filepath.Dir(cfg.Paths.LockFile), 0o755)
	return cfg, nil
}

// session is an open client plus whatever offline mode opened.
type session struct {
	*client.Client
	offline *offlineManager
	logger  *slog.Logger
}

func (s *session) Close() {
	s.offline.close()
}

// connect returns a client for the configured service. When the
// service is not running, requests run in-process on the same files.
func (c *connection) connect(command string) (*session, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := cli.NewCommandLogger(c.verbose).With("command", command)

	socketPath := cfg.Paths.Socket
	if c.socketPath != "" {
		socketPath = c.socketPath
	}
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}

	offline := &offlineManager{cfg: cfg, logger: logger}
	return &session{
		Client: client.New(socketPath,
			client.WithOffline(cfg.Paths.LockFile, offline),
			client.WithTimeout(timeout),
			client.WithLogger(logger),
		),
		offline: offline,
		logger:  logger,
	}, nil
}

// offlineManager opens the policy manager on first use, so online
// requests never touch its database.
type offlineManager struct {
	cfg    *config.Config
	logger *slog.Logger

	once    sync.Once
	manager *manager.Service
	err     error
}

var _ service.Handler = (*offlineManager)(nil)

func (o *offlineManager) Handle(ctx context.Context, creds service.Credentials, req protocol.Request) (protocol.Response, error) {
	o.once.Do(func() {
		o.logger.Info("policy manager service not running, working offline")
		o.manager, o.err = manager.Open(o.cfg, o.logger)
	})
	if o.err != nil {
		return nil, o.err
	}
	return o.manager.Handle(ctx, creds, req)
}

func (o *offlineManager) close() {
	if o == nil || o.manager == nil {
		return
	}
	if err := o.manager.Close(); err != nil {
		o.logger.Error("closing policy manager", "error", err)
	}
}

// emitJSON writes result to stdout when --json is set.
func emitJSON(output *cli.JSONOutput, result any) (bool, error) {
	output.Stdout = stdout
	return output.EmitJSON(result)
}
