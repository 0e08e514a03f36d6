// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/secmgr/lib/config"
	"github.com/bureau-foundation/secmgr/lib/label"
	"github.com/bureau-foundation/secmgr/lib/permissible"
	"github.com/bureau-foundation/secmgr/lib/pkgdb"
	"github.com/bureau-foundation/secmgr/lib/privilege"
	"github.com/bureau-foundation/secmgr/lib/rules"
	"github.com/bureau-foundation/secmgr/lib/smack"
)

// Open builds a Service on the live kernel and the files named by cfg.
// The returned Service owns its database; Close releases it.
func Open(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	kernel := &smack.FS{Mount: cfg.Paths.Smackfs}
	if !kernel.Enabled() {
		logger.Warn("SMACK is not enabled, rules are persisted but not applied",
			"smackfs", cfg.Paths.Smackfs)
	}

	mapping, err := privilege.Load(cfg.Paths.PrivilegeGroups)
	if err != nil {
		return nil, fmt.Errorf("loading privilege groups: %w", err)
	}

	db, err := pkgdb.Open(cfg.Paths.Database, logger)
	if err != nil {
		return nil, err
	}

	var storeOptions []permissible.Option
	if kernel.Enabled() {
		storeOptions = append(storeOptions, permissible.WithFileLabeler(func(path string) error {
			return smack.SetFileLabel(path, label.Floor)
		}))
	}

	s, err := New(Config{
		Engine: rules.NewEngine(kernel, rules.Paths{
			RulesDir:    cfg.Paths.RulesDir,
			MergedRules: cfg.Paths.MergedRules,
			TemplateDir: cfg.Paths.TemplateDir,
		}, logger),
		DB:          db,
		Permissible: permissible.NewStore(cfg.Paths.VarDir, storeOptions...),
		Privileges:  mapping,
		Levels:      cfg.Policy.Levels,
		GlobalUID:   cfg.Policy.GlobalAppUID,
		Logger:      logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	s.closer = db.Close
	return s, nil
}

// Close releases what Open acquired. It does nothing for a Service
// built with New.
func (s *Service) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Engine returns the rule engine the Service drives.
func (s *Service) Engine() *rules.Engine {
	return s.engine
}
