// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bureau-foundation/secmgr/lib/label"
)

// Template placeholders.
const (
	PlaceholderProcess  = "~PROCESS~"
	PlaceholderRW       = "~PATH_RW~"
	PlaceholderRO       = "~PATH_RO~"
	PlaceholderSharedRO = "~PATH_SHARED_RO~"
	PlaceholderTrusted  = "~PATH_TRUSTED~"
)

// ErrTemplate is returned for a template line that is not exactly
// three tokens.
var ErrTemplate = errors.New("malformed rule template")

// AddFromTemplateFile reads a template file and adds its rules as
// AddFromTemplate does.
func (s *RuleSet) AddFromTemplateFile(path, processLabel, pkgID string, authorID int) error {
	if s.closed {
		return ErrClosed
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading template %s: %w", ErrFile, path, err)
	}
	if err := s.AddFromTemplate(strings.Split(string(data), "\n"), processLabel, pkgID, authorID); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// AddFromTemplate substitutes placeholders in each template line and
// adds the resulting rules.
//
// Blank lines are skipped. Every other line must have three tokens:
// subject, object, permissions. An empty processLabel leaves
// ~PROCESS~ empty, an empty pkgID does the same for the package path
// placeholders, and a negative authorID for ~PATH_TRUSTED~. A line
// whose subject or object is empty after substitution is skipped. If
// any line is malformed, nothing is added.
func (s *RuleSet) AddFromTemplate(lines []string, processLabel, pkgID string, authorID int) error {
	if s.closed {
		return ErrClosed
	}
	replacer := templateReplacer(processLabel, pkgID, authorID)

	var batch []entry
	for number, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		tokens := strings.Fields(trimmed)
		if len(tokens) != 3 {
			return fmt.Errorf("%w: line %d: %q has %d tokens, want 3", ErrTemplate, number+1, line, len(tokens))
		}
		subject := replacer.Replace(tokens[0])
		object := replacer.Replace(tokens[1])
		if subject == "" || object == "" {
			continue
		}
		rule, err := makeRule(subject, object, tokens[2])
		if err != nil {
			return fmt.Errorf("line %d: %w", number+1, err)
		}
		batch = append(batch, rule)
	}
	s.commit(batch)
	return nil
}

func templateReplacer(processLabel, pkgID string, authorID int) *strings.Replacer {
	var rw, ro, sharedRO, trusted string
	if pkgID != "" {
		rw = label.PathRW(pkgID)
		ro = label.PathRO(pkgID)
		sharedRO = label.PathSharedRO(pkgID)
	}
	if authorID >= 0 {
		trusted = label.PathTrusted(authorID)
	}
	return strings.NewReplacer(
		PlaceholderProcess, processLabel,
		PlaceholderRW, rw,
		PlaceholderRO, ro,
		PlaceholderSharedRO, sharedRO,
		PlaceholderTrusted, trusted,
	)
}
