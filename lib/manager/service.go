// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/secmgr/lib/permissible"
	"github.com/bureau-foundation/secmgr/lib/pkgdb"
	"github.com/bureau-foundation/secmgr/lib/privilege"
	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/rules"
	"github.com/bureau-foundation/secmgr/lib/service"
	"github.com/bureau-foundation/secmgr/lib/smack"
)

// Labeler sets SMACK labels on paths. smack.Xattr implements it.
type Labeler interface {
	LabelTree(root, label string, transmute bool) error
	LabelFile(path, label string) error
}

// Config wires a Service to its collaborators.
type Config struct {
	Engine      *rules.Engine
	DB          *pkgdb.DB
	Permissible *permissible.Store

	// Privileges maps privileges to supplementary groups. Nil means
	// no privilege grants a group.
	Privileges *privilege.Mapping

	// LookupGroup resolves group names. Defaults to the system group
	// database.
	LookupGroup privilege.GroupLookup

	// Labeler labels registered paths. Defaults to smack.Xattr.
	Labeler Labeler

	// Levels are the policy level descriptions, most restrictive
	// first. The last level is the one that grants a privilege.
	Levels []string

	// GlobalUID owns globally installed applications.
	GlobalUID int

	Logger *slog.Logger
}

// Service answers policy requests. It implements service.Handler.
type Service struct {
	engine      *rules.Engine
	db          *pkgdb.DB
	permissible *permissible.Store
	privileges  *privilege.Mapping
	lookupGroup privilege.GroupLookup
	labeler     Labeler
	levels      []string
	globalUID   int
	logger      *slog.Logger

	// closer releases resources Open acquired.
	closer func() error

	// mu serializes mutating requests.
	mu sync.Mutex
}

// New returns a Service for config.
func New(config Config) (*Service, error) {
	switch {
	case config.Engine == nil:
		return nil, errors.New("manager: rule engine is required")
	case config.DB == nil:
		return nil, errors.New("manager: package database is required")
	case config.Permissible == nil:
		return nil, errors.New("manager: permissible store is required")
	case len(config.Levels) == 0:
		return nil, errors.New("manager: at least one policy level is required")
	}

	s := &Service{
		engine:      config.Engine,
		db:          config.DB,
		permissible: config.Permissible,
		privileges:  config.Privileges,
		lookupGroup: config.LookupGroup,
		labeler:     config.Labeler,
		levels:      config.Levels,
		globalUID:   config.GlobalUID,
		logger:      config.Logger,
	}
	if s.privileges == nil {
		s.privileges = &privilege.Mapping{}
	}
	if s.lookupGroup == nil {
		s.lookupGroup = privilege.LookupGroup
	}
	if s.labeler == nil {
		s.labeler = smack.Xattr{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

var _ service.Handler = (*Service)(nil)

// Handle executes one request for the peer identified by creds.
func (s *Service) Handle(ctx context.Context, creds service.Credentials, req protocol.Request) (protocol.Response, error) {
	switch req := req.(type) {
	case *protocol.AppInstall:
		return nil, s.install(ctx, creds, req)
	case *protocol.AppUninstall:
		return nil, s.uninstall(ctx, creds, req)
	case *protocol.AppGetPkgID:
		return s.packageOf(ctx, req.AppID)
	case *protocol.AppGetGroups:
		return s.appGroups(ctx, creds, req.AppID)
	case *protocol.UserAdd:
		return nil, s.addUser(ctx, creds, req)
	case *protocol.UserDelete:
		return nil, s.deleteUser(ctx, creds, req.UID)
	case *protocol.PolicyUpdate:
		return nil, s.updatePolicy(ctx, creds, req.Entries)
	case *protocol.PolicyGet:
		return s.policy(ctx, creds, req.Scope, req.Filter)
	case *protocol.PolicyLevels:
		return &protocol.Names{Names: append([]string(nil), s.levels...)}, nil
	case *protocol.GroupsGet:
		return &protocol.Names{Names: s.privileges.AllGroups()}, nil
	case *protocol.AppHasPrivilege:
		allowed, err := s.hasPrivilege(ctx, req.AppID, req.Privilege, req.UID)
		if err != nil {
			return nil, err
		}
		return &protocol.Privilege{Allowed: allowed}, nil
	case *protocol.ShareApply:
		return nil, s.applySharing(ctx, creds, &req.Sharing)
	case *protocol.ShareDrop:
		return nil, s.dropSharing(ctx, creds, &req.Sharing)
	default:
		return nil, protocol.Errorf(protocol.ResultUnknown, "unhandled request %s", req.Opcode())
	}
}

// packageOf answers AppGetPkgID.
func (s *Service) packageOf(ctx context.Context, appID string) (protocol.Response, error) {
	pkgID, err := s.db.AppPackage(ctx, appID)
	if errors.Is(err, pkgdb.ErrNotFound) {
		return nil, protocol.Errorf(protocol.ResultNoSuchObject, "application %s is not installed", appID)
	}
	if err != nil {
		return nil, err
	}
	return &protocol.PkgID{PkgID: pkgID}, nil
}

// merge rewrites the boot snapshot after a change.
func (s *Service) merge() error {
	if _, err := s.engine.MergeRules(); err != nil {
		return fmt.Errorf("merging rules: %w", err)
	}
	return nil
}

// shareOracle answers rules.ShareOracle from the database within one
// request's context.
type shareOracle struct {
	ctx context.Context
	db  *pkgdb.DB
}

func (o shareOracle) PathShared(path string) (bool, error) {
	return o.db.PathShared(o.ctx, path)
}

func (o shareOracle) TargetSharing(ownerPkgID, targetAppID string) (bool, error) {
	return o.db.TargetSharing(o.ctx, ownerPkgID, targetAppID)
}

// rulePackages converts database packages for the rule generators.
func rulePackages(packages []pkgdb.Package) []rules.Package {
	converted := make([]rules.Package, len(packages))
	for i, pkg := range packages {
		converted[i] = rules.Package{ID: pkg.ID, SharedRO: pkg.SharedRO, Apps: pkg.Apps}
	}
	return converted
}
