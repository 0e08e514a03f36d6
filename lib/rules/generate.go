// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import "github.com/bureau-foundation/secmgr/lib/label"

// Permission sets granted by the generators.
const (
	// PermsAppInPackage is what applications of one package grant
	// each other.
	PermsAppInPackage = "rwxat"

	// PermsPathOwner is what a path's owning applications receive.
	PermsPathOwner = "rwxat"

	// PermsPathTarget is what an application receives on a path
	// shared with it.
	PermsPathTarget = "rxl"

	// PermsDirTarget lets a sharing target traverse the owner's
	// private directory to reach the shared path.
	PermsDirTarget = "x"

	// PermsPathSystem is what the User and System domains receive on
	// shared paths.
	PermsPathSystem = "rwxat"
)

// Package is an installed package as the generators need it.
type Package struct {
	ID       string
	SharedRO bool

	// Apps lists the application ids of the package.
	Apps []string
}

// GeneratePackageCrossDeps grants every application label in labels
// PermsAppInPackage on every other label in the list.
func (s *RuleSet) GeneratePackageCrossDeps(labels []string) error {
	if s.closed {
		return ErrClosed
	}
	var batch []entry
	for _, subject := range labels {
		for _, object := range labels {
			if subject == object {
				continue
			}
			rule, err := makeRule(subject, object, PermsAppInPackage)
			if err != nil {
				return err
			}
			batch = append(batch, rule)
		}
	}
	s.commit(batch)
	return nil
}

// addSharedRO adds, for every shared read-only package, owner access
// for its own applications and target access for every other
// application.
func (s *RuleSet) addSharedRO(packages []Package) error {
	var batch []entry
	for _, owner := range packages {
		if !owner.SharedRO {
			continue
		}
		object := label.PathSharedRO(owner.ID)
		for _, pkg := range packages {
			permissions := PermsPathTarget
			if pkg.ID == owner.ID {
				permissions = PermsPathOwner
			}
			for _, app := range pkg.Apps {
				rule, err := makeRule(label.Process(app), object, permissions)
				if err != nil {
					return err
				}
				batch = append(batch, rule)
			}
		}
	}
	s.commit(batch)
	return nil
}

// addSharedROTarget adds target access on revokedPkg's shared
// read-only label for every application of every package.
func (s *RuleSet) addSharedROTarget(packages []Package, revokedPkg string) error {
	object := label.PathSharedRO(revokedPkg)
	var batch []entry
	for _, pkg := range packages {
		for _, app := range pkg.Apps {
			rule, err := makeRule(label.Process(app), object, PermsPathTarget)
			if err != nil {
				return err
			}
			batch = append(batch, rule)
		}
	}
	s.commit(batch)
	return nil
}

// AppLabels maps application ids to process labels.
func AppLabels(apps []string) []string {
	labels := make([]string, len(apps))
	for i, app := range apps {
		labels[i] = label.Process(app)
	}
	return labels
}
