// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/secmgr/lib/label"
	"github.com/bureau-foundation/secmgr/lib/pkgdb"
	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/rules"
	"github.com/bureau-foundation/secmgr/lib/service"
)

// shareParties resolves the owner and target packages of a sharing
// request and checks the caller speaks for the owner.
func (s *Service) shareParties(ctx context.Context, creds service.Credentials, req *protocol.Sharing) (ownerPkg, targetPkg string, err error) {
	if !creds.Root() && creds.Label != label.Process(req.OwnerAppID) {
		return "", "", protocol.Errorf(protocol.ResultAccessDenied,
			"only %s or root may share its paths", req.OwnerAppID)
	}
	ownerPkg, err = s.db.AppPackage(ctx, req.OwnerAppID)
	if errors.Is(err, pkgdb.ErrNotFound) {
		return "", "", protocol.Errorf(protocol.ResultNoSuchObject, "owner %s is not installed", req.OwnerAppID)
	}
	if err != nil {
		return "", "", err
	}
	targetPkg, err = s.db.AppPackage(ctx, req.TargetAppID)
	if errors.Is(err, pkgdb.ErrNotFound) {
		return "", "", protocol.Errorf(protocol.ResultNoSuchObject, "target %s is not installed", req.TargetAppID)
	}
	if err != nil {
		return "", "", err
	}
	return ownerPkg, targetPkg, nil
}

// sharablePaths cleans paths and checks each exists below a
// read-write path the owner registered.
func (s *Service) sharablePaths(ctx context.Context, ownerAppID string, paths []string) ([]string, error) {
	registered, err := s.db.AppPaths(ctx, ownerAppID)
	if err != nil {
		return nil, err
	}
	cleaned := make([]string, 0, len(paths))
	for _, path := range paths {
		path = filepath.Clean(path)
		if !filepath.IsAbs(path) {
			return nil, protocol.Errorf(protocol.ResultInputParam, "path %s is not absolute", path)
		}
		if !ownedBy(path, registered) {
			return nil, protocol.Errorf(protocol.ResultInputParam,
				"path %s is not a private path of %s", path, ownerAppID)
		}
		if _, err := os.Lstat(path); err != nil {
			return nil, protocol.Errorf(protocol.ResultInputParam, "path %s: %v", path, err)
		}
		cleaned = append(cleaned, path)
	}
	return cleaned, nil
}

func ownedBy(path string, registered []protocol.AppPath) bool {
	for _, root := range registered {
		if root.Type != protocol.PathRW {
			continue
		}
		rootPath := filepath.Clean(root.Path)
		if path == rootPath || strings.HasPrefix(path, rootPath+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (s *Service) applySharing(ctx context.Context, creds service.Credentials, req *protocol.Sharing) error {
	ownerPkg, targetPkg, err := s.shareParties(ctx, creds, req)
	if err != nil {
		return err
	}
	if ownerPkg == targetPkg {
		s.logger.Info("sharing within one package, nothing to do",
			"owner_app_id", req.OwnerAppID, "target_app_id", req.TargetAppID)
		return nil
	}
	paths, err := s.sharablePaths(ctx, req.OwnerAppID, req.Paths)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ownerApps, err := s.db.PackageApps(ctx, ownerPkg)
	if err != nil {
		return err
	}

	var applied []rules.PrivateShare
	for _, path := range paths {
		share := rules.PrivateShare{
			OwnerPkgID:  ownerPkg,
			OwnerApps:   ownerApps,
			TargetAppID: req.TargetAppID,
			Path:        path,
			PathLabel:   label.SharedPrivate(ownerPkg, path),
		}
		if err := s.applyShare(ctx, req.OwnerAppID, share); err != nil {
			for i := len(applied) - 1; i >= 0; i-- {
				if dropErr := s.dropShare(ctx, req.OwnerAppID, applied[i]); dropErr != nil {
					s.logger.Error("rolling back share", "path", applied[i].Path, "error", dropErr)
				}
			}
			return err
		}
		applied = append(applied, share)
	}
	s.logger.Info("paths shared",
		"owner_app_id", req.OwnerAppID,
		"target_app_id", req.TargetAppID,
		"paths", len(paths),
	)
	return nil
}

// applyShare grants one share. Rules are derived from the state before
// the share is recorded.
func (s *Service) applyShare(ctx context.Context, ownerAppID string, share rules.PrivateShare) error {
	wasShared, err := s.db.PathShared(ctx, share.Path)
	if err != nil {
		return err
	}
	if err := s.engine.ApplyPrivateSharingRules(share, shareOracle{ctx: ctx, db: s.db}); err != nil {
		return err
	}
	if !wasShared {
		if err := s.labelFile(share.Path, share.PathLabel); err != nil {
			return err
		}
	}
	_, err = s.db.ApplySharing(ctx, ownerAppID, share.TargetAppID, share.Path, share.PathLabel)
	return err
}

func (s *Service) dropSharing(ctx context.Context, creds service.Credentials, req *protocol.Sharing) error {
	ownerPkg, targetPkg, err := s.shareParties(ctx, creds, req)
	if err != nil {
		return err
	}
	if ownerPkg == targetPkg {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ownerApps, err := s.db.PackageApps(ctx, ownerPkg)
	if err != nil {
		return err
	}
	for _, path := range req.Paths {
		path = filepath.Clean(path)
		share := rules.PrivateShare{
			OwnerPkgID:  ownerPkg,
			OwnerApps:   ownerApps,
			TargetAppID: req.TargetAppID,
			Path:        path,
			PathLabel:   label.SharedPrivate(ownerPkg, path),
		}
		if err := s.dropShare(ctx, req.OwnerAppID, share); err != nil {
			return err
		}
	}
	return nil
}

// dropShare withdraws one application of a share and retracts its
// rules once no application remains.
func (s *Service) dropShare(ctx context.Context, ownerAppID string, share rules.PrivateShare) error {
	remaining, err := s.db.DropSharing(ctx, ownerAppID, share.TargetAppID, share.Path)
	if errors.Is(err, pkgdb.ErrNotFound) {
		return protocol.Errorf(protocol.ResultNoSuchObject,
			"%s is not shared with %s", share.Path, share.TargetAppID)
	}
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	return s.retractShare(ctx, share)
}

// retractShare removes the rules of a share already deleted from the
// database, and restores the path's package label when nothing shares
// it any more.
func (s *Service) retractShare(ctx context.Context, share rules.PrivateShare) error {
	if err := s.engine.DropPrivateSharingRules(share, shareOracle{ctx: ctx, db: s.db}); err != nil {
		return err
	}
	shared, err := s.db.PathShared(ctx, share.Path)
	if err != nil || shared {
		return err
	}
	if _, err := os.Lstat(share.Path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return s.labelFile(share.Path, label.PathRW(share.OwnerPkgID))
}

// appShares returns every share appID takes part in, resolved for the
// rule generators.
func (s *Service) appShares(ctx context.Context, appID string) ([]rules.PrivateShare, error) {
	records, err := s.db.AppShares(ctx, appID)
	if err != nil {
		return nil, err
	}
	type owner struct {
		pkgID string
		apps  []string
	}
	owners := make(map[string]owner)
	shares := make([]rules.PrivateShare, 0, len(records))
	for _, record := range records {
		resolved, ok := owners[record.OwnerAppID]
		if !ok {
			pkgID, err := s.db.AppPackage(ctx, record.OwnerAppID)
			if err != nil {
				return nil, err
			}
			apps, err := s.db.PackageApps(ctx, pkgID)
			if err != nil {
				return nil, err
			}
			resolved = owner{pkgID: pkgID, apps: apps}
			owners[record.OwnerAppID] = resolved
		}
		shares = append(shares, rules.PrivateShare{
			OwnerPkgID:  resolved.pkgID,
			OwnerApps:   resolved.apps,
			TargetAppID: record.TargetAppID,
			Path:        record.Path,
			PathLabel:   record.PathLabel,
		})
	}
	return shares, nil
}

// labelFile labels a single path, or does nothing when SMACK is
// disabled.
func (s *Service) labelFile(path, pathLabel string) error {
	if !s.engine.Kernel().Enabled() {
		return nil
	}
	return s.labeler.LabelFile(path, pathLabel)
}
