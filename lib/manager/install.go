// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/secmgr/lib/label"
	"github.com/bureau-foundation/secmgr/lib/pkgdb"
	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/rules"
	"github.com/bureau-foundation/secmgr/lib/service"
)

// scope resolves the uid and installation type a request applies to
// and checks the caller may act on it. InstallNone means global for
// the global application user and local for everyone else.
func (s *Service) scope(creds service.Credentials, uid int, installType protocol.InstallType) (int, protocol.InstallType, error) {
	if installType == protocol.InstallNone {
		if uid == s.globalUID {
			installType = protocol.InstallGlobal
		} else {
			installType = protocol.InstallLocal
		}
	}
	if installType.Global() {
		uid = s.globalUID
	}
	if !creds.Root() && (installType.Global() || uid != creds.UID) {
		return 0, 0, protocol.Errorf(protocol.ResultAccessDenied,
			"uid %d may only manage its own local applications", creds.UID)
	}
	return uid, installType, nil
}

func (s *Service) install(ctx context.Context, creds service.Credentials, req *protocol.AppInstall) error {
	uid, installType, err := s.scope(creds, req.UID, req.InstallType)
	if err != nil {
		return err
	}
	for _, path := range req.Paths {
		if !filepath.IsAbs(path.Path) {
			return protocol.Errorf(protocol.ResultInputParam, "path %s is not absolute", path.Path)
		}
		if _, err := os.Lstat(path.Path); err != nil {
			return protocol.Errorf(protocol.ResultInputParam, "path %s: %v", path.Path, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInstall(ctx, req); err != nil {
		return err
	}

	installed, err := s.db.AddApplication(ctx, pkgdb.Install{
		AppID:      req.AppID,
		PkgID:      req.PkgID,
		UID:        uid,
		AuthorName: req.AuthorName,
		Privileges: req.Privileges,
		Paths:      req.Paths,
	})
	if errors.Is(err, pkgdb.ErrPackageMismatch) {
		return protocol.Errorf(protocol.ResultInputParam, "%v", err)
	}
	if err != nil {
		return err
	}

	if err := s.applyInstall(ctx, req, installed.AuthorID); err != nil {
		s.logger.Error("installation failed, removing database record",
			"app_id", req.AppID,
			"pkg_id", req.PkgID,
			"uid", uid,
			"error", err,
		)
		if _, rollbackErr := s.db.RemoveApplication(ctx, req.AppID, uid); rollbackErr != nil {
			s.logger.Error("removing failed installation", "app_id", req.AppID, "error", rollbackErr)
		}
		return err
	}

	if err := s.refreshPermissible(ctx, uid, installType); err != nil {
		return err
	}
	s.logger.Info("application installed",
		"app_id", req.AppID,
		"pkg_id", req.PkgID,
		"uid", uid,
		"install_type", int(installType),
	)
	return s.merge()
}

// checkInstall rejects installs that conflict with recorded state.
func (s *Service) checkInstall(ctx context.Context, req *protocol.AppInstall) error {
	pkgID, err := s.db.AppPackage(ctx, req.AppID)
	switch {
	case err == nil && pkgID != req.PkgID:
		return protocol.Errorf(protocol.ResultInputParam,
			"application %s belongs to package %s, not %s", req.AppID, pkgID, req.PkgID)
	case err != nil && !errors.Is(err, pkgdb.ErrNotFound):
		return err
	}

	if req.AuthorName != "" || !hasPathType(req.Paths, protocol.PathTrustedRW) {
		return nil
	}
	author, err := s.db.PackageAuthor(ctx, req.PkgID)
	if err != nil && !errors.Is(err, pkgdb.ErrNotFound) {
		return err
	}
	if author == pkgdb.NoAuthor {
		return protocol.Errorf(protocol.ResultInputParam, "trusted paths of %s need an author", req.PkgID)
	}
	return nil
}

// applyInstall labels the registered paths and generates rules.
func (s *Service) applyInstall(ctx context.Context, req *protocol.AppInstall, authorID int) error {
	sharedRO := false
	for _, path := range req.Paths {
		pathLabel, transmute := registeredPathLabel(req.PkgID, authorID, path.Type)
		if err := s.labelPath(path.Path, pathLabel, transmute); err != nil {
			return err
		}
		if path.Type == protocol.PathSharedRO {
			sharedRO = true
		}
	}
	if sharedRO {
		if err := s.db.SetPackageSharedRO(ctx, req.PkgID); err != nil {
			return err
		}
	}

	apps, err := s.db.PackageApps(ctx, req.PkgID)
	if err != nil {
		return err
	}
	if err := s.engine.InstallApplicationRules(req.AppID, req.PkgID, authorID, apps); err != nil {
		return err
	}
	return s.refreshSharedRO(ctx, false)
}

// registeredPathLabel returns the label and transmute flag of a path
// registered with pathType.
func registeredPathLabel(pkgID string, authorID int, pathType protocol.PathType) (string, bool) {
	switch pathType {
	case protocol.PathRO:
		return label.PathRO(pkgID), false
	case protocol.PathPublicRO:
		return label.UserHome, false
	case protocol.PathSharedRO:
		return label.PathSharedRO(pkgID), true
	case protocol.PathTrustedRW:
		return label.PathTrusted(authorID), true
	default:
		return label.PathRW(pkgID), true
	}
}

func hasPathType(paths []protocol.AppPath, pathType protocol.PathType) bool {
	for _, path := range paths {
		if path.Type == pathType {
			return true
		}
	}
	return false
}

// labelPath labels a tree, or does nothing when SMACK is disabled.
func (s *Service) labelPath(path, pathLabel string, transmute bool) error {
	if !s.engine.Kernel().Enabled() {
		return nil
	}
	return s.labeler.LabelTree(path, pathLabel, transmute)
}

// refreshSharedRO regenerates the shared read-only rules when any
// package (or, with force, a package just removed) owns shared
// read-only paths.
func (s *Service) refreshSharedRO(ctx context.Context, force bool) error {
	packages, err := s.db.Packages(ctx)
	if err != nil {
		return err
	}
	needed := force
	for _, pkg := range packages {
		needed = needed || pkg.SharedRO
	}
	if !needed {
		return nil
	}
	return s.engine.GenerateSharedRORules(rulePackages(packages))
}

// refreshPermissible rewrites the permissible set of the scope uid
// installs into.
func (s *Service) refreshPermissible(ctx context.Context, uid int, installType protocol.InstallType) error {
	apps, err := s.db.UserApps(ctx, uid)
	if err != nil {
		return err
	}
	return s.permissible.Update(uid, installType, rules.AppLabels(apps))
}

func (s *Service) uninstall(ctx context.Context, creds service.Credentials, req *protocol.AppUninstall) error {
	uid, installType, err := s.scope(creds, req.UID, req.InstallType)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.uninstallLocked(ctx, req.AppID, uid); err != nil {
		return err
	}
	if err := s.refreshPermissible(ctx, uid, installType); err != nil {
		return err
	}
	return s.merge()
}

// uninstallLocked removes appID for uid. An application that is not
// installed for uid is not an error. The caller holds mu and refreshes
// the permissible set and snapshot.
func (s *Service) uninstallLocked(ctx context.Context, appID string, uid int) error {
	installed, err := s.db.InstalledFor(ctx, appID, uid)
	if err != nil {
		return err
	}
	if !installed {
		s.logger.Warn("uninstalling application that is not installed", "app_id", appID, "uid", uid)
		return nil
	}

	// Shares are deleted with the application, so collect what their
	// retraction needs first.
	shares, err := s.appShares(ctx, appID)
	if err != nil {
		return err
	}

	removal, err := s.db.RemoveApplication(ctx, appID, uid)
	if err != nil {
		return err
	}
	if !removal.AppRemoved {
		s.logger.Info("application removed for user, still installed for others", "app_id", appID, "uid", uid)
		return nil
	}

	if err := s.engine.UninstallApplicationRules(appID); err != nil {
		return err
	}
	if removal.PkgRemoved {
		if err := s.engine.UninstallPackageRules(removal.PkgID); err != nil {
			return err
		}
		if removal.SharedRO {
			packages, err := s.db.Packages(ctx)
			if err != nil {
				return err
			}
			if err := s.engine.RevokeSharedRORules(rulePackages(packages), removal.PkgID); err != nil {
				return err
			}
		}
	} else {
		apps, err := s.db.PackageApps(ctx, removal.PkgID)
		if err != nil {
			return err
		}
		if err := s.engine.UpdatePackageRules(removal.PkgID, apps); err != nil {
			return err
		}
	}
	if removal.AuthorRemoved {
		if err := s.engine.UninstallAuthorRules(removal.AuthorID); err != nil {
			return err
		}
	}
	if err := s.refreshSharedRO(ctx, removal.SharedRO); err != nil {
		return err
	}

	for _, share := range shares {
		if err := s.retractShare(ctx, share); err != nil {
			s.logger.Error("retracting share of removed application",
				"app_id", appID,
				"path", share.Path,
				"target_app_id", share.TargetAppID,
				"error", err,
			)
		}
	}

	s.logger.Info("application uninstalled",
		"app_id", appID,
		"pkg_id", removal.PkgID,
		"uid", uid,
		"pkg_removed", removal.PkgRemoved,
	)
	return nil
}
