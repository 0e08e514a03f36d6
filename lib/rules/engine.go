// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/bureau-foundation/secmgr/lib/label"
	"github.com/bureau-foundation/secmgr/lib/smack"
)

// Rule file name prefixes and fixed names within the rules directory.
const (
	pkgFilePrefix    = "pkg_"
	appFilePrefix    = "app_"
	authorFilePrefix = "author_"
	sharedROFileName = "shared_ro"
)

// Template file names within the template directory.
const (
	AppTemplate      = "app-rules-template.smack"
	PkgTemplate      = "pkg-rules-template.smack"
	AuthorTemplate   = "author-rules-template.smack"
	SharedROTemplate = "sharedro-rules-template.smack"
)

// Paths locates the engine's files.
type Paths struct {
	// RulesDir holds one rule file per package, application, and
	// author. It must exist.
	RulesDir string

	// MergedRules is the boot snapshot written by MergeRules.
	MergedRules string

	// TemplateDir holds the rule templates.
	TemplateDir string
}

// Engine generates, applies, persists, and revokes the rules of
// installed entities.
//
// Engine holds no state besides its configuration. Callers serialize
// operations on the same entity.
type Engine struct {
	kernel smack.Kernel
	paths  Paths
	logger *slog.Logger
}

// NewEngine returns an Engine writing to kernel and paths. A nil
// logger discards output.
func NewEngine(kernel smack.Kernel, paths Paths, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{kernel: kernel, paths: paths, logger: logger}
}

// Kernel returns the kernel the engine applies rules to.
func (e *Engine) Kernel() smack.Kernel {
	return e.kernel
}

// InstallApplicationRules generates the rules of a newly installed
// application: its own template into app_<appID>, the author template
// into author_<authorID> when authorID is not negative, and then the
// package rules for pkgApps (which must include appID). Both templates
// are expanded with the application's process label and package.
func (e *Engine) InstallApplicationRules(appID, pkgID string, authorID int, pkgApps []string) error {
	appPath, err := e.ruleFile(appFilePrefix, appID)
	if err != nil {
		return err
	}
	if err := e.useTemplate(AppTemplate, appPath, label.Process(appID), pkgID, authorID); err != nil {
		return fmt.Errorf("installing rules of application %s: %w", appID, err)
	}

	if authorID >= 0 {
		authorPath, err := e.ruleFile(authorFilePrefix, strconv.Itoa(authorID))
		if err != nil {
			return err
		}
		if err := e.useTemplate(AuthorTemplate, authorPath, label.Process(appID), pkgID, authorID); err != nil {
			return fmt.Errorf("installing rules of author %d: %w", authorID, err)
		}
	}

	return e.UpdatePackageRules(pkgID, pkgApps)
}

// UpdatePackageRules regenerates pkg_<pkgID> from the package template
// and the cross-application rules of pkgApps.
func (e *Engine) UpdatePackageRules(pkgID string, pkgApps []string) error {
	path, err := e.ruleFile(pkgFilePrefix, pkgID)
	if err != nil {
		return err
	}
	set := New(e.kernel)
	defer set.Close()

	if err := set.AddFromTemplateFile(e.templatePath(PkgTemplate), "", pkgID, -1); err != nil {
		return fmt.Errorf("package %s: %w", pkgID, err)
	}
	if err := set.GeneratePackageCrossDeps(AppLabels(pkgApps)); err != nil {
		return fmt.Errorf("package %s: %w", pkgID, err)
	}
	return e.applyAndSave(set, path)
}

// UninstallApplicationRules revokes and deletes app_<appID>, then
// revokes anything else the kernel still holds for the process label.
func (e *Engine) UninstallApplicationRules(appID string) error {
	path, err := e.ruleFile(appFilePrefix, appID)
	if err != nil {
		return err
	}
	if err := e.uninstallRules(path); err != nil {
		return err
	}
	if !e.kernel.Enabled() {
		return nil
	}
	if err := e.kernel.RevokeSubject(label.Process(appID)); err != nil {
		return fmt.Errorf("revoking rules of application %s: %w", appID, err)
	}
	return nil
}

// UninstallPackageRules revokes and deletes pkg_<pkgID>.
func (e *Engine) UninstallPackageRules(pkgID string) error {
	path, err := e.ruleFile(pkgFilePrefix, pkgID)
	if err != nil {
		return err
	}
	return e.uninstallRules(path)
}

// UninstallAuthorRules revokes and deletes author_<authorID>.
func (e *Engine) UninstallAuthorRules(authorID int) error {
	path, err := e.ruleFile(authorFilePrefix, strconv.Itoa(authorID))
	if err != nil {
		return err
	}
	return e.uninstallRules(path)
}

// GenerateSharedRORules rebuilds the shared read-only rules of every
// package and writes them to the shared_ro file.
func (e *Engine) GenerateSharedRORules(packages []Package) error {
	set := New(e.kernel)
	defer set.Close()

	if err := set.addSharedRO(packages); err != nil {
		return err
	}
	for _, pkg := range packages {
		if !pkg.SharedRO {
			continue
		}
		if err := set.AddFromTemplateFile(e.templatePath(SharedROTemplate), "", pkg.ID, -1); err != nil {
			return fmt.Errorf("shared read-only rules of %s: %w", pkg.ID, err)
		}
	}
	return e.applyAndSave(set, filepath.Join(e.paths.RulesDir, sharedROFileName))
}

// RevokeSharedRORules clears every application's access to the shared
// read-only label of revokedPkg. The shared_ro file is left for the
// next GenerateSharedRORules.
func (e *Engine) RevokeSharedRORules(packages []Package, revokedPkg string) error {
	set := New(e.kernel)
	defer set.Close()

	if err := set.addSharedROTarget(packages, revokedPkg); err != nil {
		return err
	}
	if err := set.Clear(); err != nil {
		return fmt.Errorf("revoking shared read-only rules of %s: %w", revokedPkg, err)
	}
	return nil
}

// MergeRules writes the boot snapshot from the rules directory.
func (e *Engine) MergeRules() (Snapshot, error) {
	snapshot, err := MergeRules(e.paths.RulesDir, e.paths.MergedRules)
	if err != nil {
		return Snapshot{}, err
	}
	e.logger.Debug("merged rules",
		"path", snapshot.Path,
		"fragments", len(snapshot.Files),
		"size", snapshot.Size,
		"digest", snapshot.DigestHex(),
	)
	return snapshot, nil
}

// LoadSnapshot applies the merged snapshot to the kernel and returns
// the number of rules it held.
func (e *Engine) LoadSnapshot() (int, error) {
	set := New(e.kernel)
	defer set.Close()

	if err := set.LoadFromFile(e.paths.MergedRules); err != nil {
		return 0, err
	}
	if err := set.Apply(); err != nil {
		return 0, err
	}
	return set.Len(), nil
}

func (e *Engine) useTemplate(template, destination, processLabel, pkgID string, authorID int) error {
	set := New(e.kernel)
	defer set.Close()

	if err := set.AddFromTemplateFile(e.templatePath(template), processLabel, pkgID, authorID); err != nil {
		return err
	}
	return e.applyAndSave(set, destination)
}

func (e *Engine) applyAndSave(set *RuleSet, path string) error {
	if err := set.Apply(); err != nil {
		return err
	}
	return set.SaveToFile(path)
}

// uninstallRules clears the rules persisted in path from the kernel
// and deletes the file. A missing file is not an error. A failure to
// clear is logged and the file is deleted anyway, so the rules are
// gone after the next boot.
func (e *Engine) uninstallRules(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		e.logger.Warn("no rule file to uninstall", "path", path)
		return nil
	}

	set := New(e.kernel)
	defer set.Close()
	if err := set.LoadFromFile(path); err != nil {
		e.logger.Error("loading rules for uninstall", "path", path, "error", err)
	} else if err := set.Clear(); err != nil {
		e.logger.Error("clearing rules from kernel", "path", path, "error", err)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %w", ErrFile, path, err)
	}
	return nil
}

func (e *Engine) templatePath(name string) string {
	return filepath.Join(e.paths.TemplateDir, name)
}

// ruleFile returns the rule file path of an entity, refusing ids that
// would name anything outside the rules directory.
func (e *Engine) ruleFile(prefix, id string) (string, error) {
	if id == "" || strings.ContainsRune(id, '/') || strings.HasSuffix(id, TempSuffix) {
		return "", fmt.Errorf("%w: invalid identifier %q", ErrFile, id)
	}
	path, err := securejoin.SecureJoin(e.paths.RulesDir, prefix+id)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s%s: %w", ErrFile, prefix, id, err)
	}
	return path, nil
}
