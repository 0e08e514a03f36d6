// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"fmt"

	"github.com/bureau-foundation/secmgr/lib/label"
)

// PrivateShare is one private path of an owner package shared with a
// target application.
type PrivateShare struct {
	OwnerPkgID string

	// OwnerApps lists the application ids of the owner package.
	OwnerApps []string

	TargetAppID string
	Path        string
	PathLabel   string
}

// ShareOracle reports the sharing state recorded by the caller.
type ShareOracle interface {
	// PathShared reports whether path is shared with any target.
	PathShared(path string) (bool, error)

	// TargetSharing reports whether targetAppID has any path of
	// ownerPkgID shared with it.
	TargetSharing(ownerPkgID, targetAppID string) (bool, error)
}

// ApplyPrivateSharingRules grants the rules of a new share. The oracle
// is consulted before the caller records the share, so "shared" means
// "shared already".
//
// The target gets PermsPathTarget on the path. A target without any
// other share from the owner package also gets PermsDirTarget on the
// package's read-write label. A path not shared before also gets
// owner, User, and System access on its new label.
func (e *Engine) ApplyPrivateSharingRules(share PrivateShare, oracle ShareOracle) error {
	pathShared, targetSharing, err := consult(share, oracle)
	if err != nil {
		return err
	}

	set := New(e.kernel)
	defer set.Close()

	targetLabel := label.Process(share.TargetAppID)
	if !targetSharing {
		if err := set.Add(targetLabel, label.PathRW(share.OwnerPkgID), PermsDirTarget); err != nil {
			return err
		}
	}
	if !pathShared {
		for _, subject := range pathSubjects(share.OwnerApps) {
			if err := set.Add(subject, share.PathLabel, PermsPathOwner); err != nil {
				return err
			}
		}
	}
	if err := set.Add(targetLabel, share.PathLabel, PermsPathTarget); err != nil {
		return err
	}
	if err := set.Apply(); err != nil {
		return fmt.Errorf("sharing %s with %s: %w", share.Path, share.TargetAppID, err)
	}
	return nil
}

// DropPrivateSharingRules retracts the rules of a removed share. The
// oracle is consulted after the caller removed the share, so "not
// shared" means "no longer shared". Every retraction is a change rule
// denying exactly the bits Apply granted.
func (e *Engine) DropPrivateSharingRules(share PrivateShare, oracle ShareOracle) error {
	pathShared, targetSharing, err := consult(share, oracle)
	if err != nil {
		return err
	}

	set := New(e.kernel)
	defer set.Close()

	targetLabel := label.Process(share.TargetAppID)
	if !targetSharing {
		if err := set.AddModify(targetLabel, label.PathRW(share.OwnerPkgID), "", PermsDirTarget); err != nil {
			return err
		}
	}
	if !pathShared {
		for _, subject := range pathSubjects(share.OwnerApps) {
			if err := set.AddModify(subject, share.PathLabel, "", PermsPathOwner); err != nil {
				return err
			}
		}
	}
	if err := set.AddModify(targetLabel, share.PathLabel, "", PermsPathTarget); err != nil {
		return err
	}
	if err := set.Apply(); err != nil {
		return fmt.Errorf("unsharing %s from %s: %w", share.Path, share.TargetAppID, err)
	}
	return nil
}

func consult(share PrivateShare, oracle ShareOracle) (pathShared, targetSharing bool, err error) {
	pathShared, err = oracle.PathShared(share.Path)
	if err != nil {
		return false, false, fmt.Errorf("querying shares of %s: %w", share.Path, err)
	}
	targetSharing, err = oracle.TargetSharing(share.OwnerPkgID, share.TargetAppID)
	if err != nil {
		return false, false, fmt.Errorf("querying shares of %s with %s: %w", share.OwnerPkgID, share.TargetAppID, err)
	}
	return pathShared, targetSharing, nil
}

// pathSubjects lists the labels that keep full access to a shared
// path: the owner's applications and the platform domains.
func pathSubjects(ownerApps []string) []string {
	subjects := AppLabels(ownerApps)
	return append(subjects, label.User, label.System, label.SystemPrivileged)
}
