// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rules synthesizes SMACK rules for installed applications,
// applies them to the kernel, and persists them for boot-time reload.
//
// # Rule sets
//
// A [RuleSet] is an in-memory batch of rules keyed by subject and
// object. Adding a rule for a pair already in the set merges the
// permissions; insertion order is kept for output. Rules enter a set
// from templates ([RuleSet.AddFromTemplate]), from the cross-entity
// generators ([RuleSet.GeneratePackageCrossDeps] and the [Engine]
// methods), or from a persisted file ([RuleSet.LoadFromFile]). A set is
// then applied to the kernel in one batch, cleared from it, or saved to
// disk. A set also carries change rules (subject, object, allow, deny)
// which alter an existing kernel rule instead of replacing it; private
// sharing uses them to retract only the bits a share granted.
//
// # Templates
//
// Templates live in the engine's template directory:
//
//	app-rules-template.smack       applied per application
//	pkg-rules-template.smack       applied per package
//	author-rules-template.smack    applied per author
//	sharedro-rules-template.smack  applied per shared read-only package
//
// Each non-blank line is "subject object permissions". The placeholders
// ~PROCESS~, ~PATH_RW~, ~PATH_RO~, ~PATH_SHARED_RO~, and ~PATH_TRUSTED~
// are replaced by labels from package label; a line left with an empty
// subject or object (an author template line without an author, for
// instance) is dropped. Any line with another token count rejects the
// whole template.
//
// # On-disk layout
//
// The rules directory holds one file per entity:
//
//	rules/
//	    pkg_<pkg id>         package template plus cross-application rules
//	    app_<app id>         application template
//	    author_<author id>   author template
//	    shared_ro            rules of every shared read-only package
//
// Every file has one rule per line, "subject object permissions", or
// "subject object allow deny" for change rules. Entity ids are joined
// under the rules directory with securejoin, so an id cannot name a
// file elsewhere.
//
// Files are replaced atomically: content is written to a sibling named
// <file>[TempSuffix] (".temp"), synced, and renamed over the
// destination, and the directory is synced after the rename. A crash
// at any point leaves either the old or the new file, never a mix. A
// failed write removes the temporary file. Stray ".temp" files are
// ignored by [MergeRules].
//
// # Merged snapshot
//
// [MergeRules] concatenates every rule file into one snapshot, written
// with the same temporary-file discipline. Package files come first,
// then application files, then author files, then everything else,
// each group in name order. The boot loader applies the snapshot
// ([Engine.LoadSnapshot]) before any application starts. The returned
// [Snapshot] records the merged fragments, size, and BLAKE3 digest.
//
// # Engine
//
// The [Engine] ties these together into the install and uninstall
// flows. Uninstalling clears from the kernel exactly the rules the
// entity's file holds, then deletes the file; a missing file is logged
// and tolerated. When the kernel reports SMACK as disabled, every
// kernel step is skipped and only files are written.
package rules
