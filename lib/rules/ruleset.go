// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/secmgr/lib/label"
	"github.com/bureau-foundation/secmgr/lib/smack"
)

var (
	// ErrClosed is returned by every method of a closed RuleSet.
	ErrClosed = errors.New("rule set is closed")

	// ErrFile wraps failures reading or writing rule files.
	ErrFile = errors.New("rule file error")

	// ErrInvalidRule is returned for rules with bad labels or
	// permission strings.
	ErrInvalidRule = errors.New("invalid rule")
)

// Rule is one entry of a RuleSet as it is persisted.
type Rule struct {
	Subject string
	Object  string

	// Permissions is the permission text of the rule. For a rule added
	// once it is the text given to Add verbatim; merged rules use the
	// canonical form.
	Permissions string

	// Modify marks a rule applied through change-rule. Deny holds the
	// permissions it removes; Permissions holds those it adds.
	Modify bool
	Deny   string
}

// String formats the rule as one persisted line without the newline.
func (r Rule) String() string {
	if r.Modify {
		return r.Subject + " " + r.Object + " " + r.Permissions + " " + r.Deny
	}
	return r.Subject + " " + r.Object + " " + r.Permissions
}

type entry struct {
	subject string
	object  string
	allow   smack.Access
	deny    smack.Access
	modify  bool

	// text is the permission text as first given, or empty once the
	// entry has been merged with another.
	text string
}

// RuleSet is an ordered collection of rules, one per subject and
// object pair. Adding a rule for a pair already present merges the
// permissions. Mutating methods either apply completely or leave the
// set unchanged.
//
// A RuleSet is not safe for concurrent use.
type RuleSet struct {
	kernel  smack.Kernel
	index   map[[2]string]int
	entries []entry
	closed  bool
}

// New returns an empty set bound to kernel for Apply and Clear.
func New(kernel smack.Kernel) *RuleSet {
	return &RuleSet{
		kernel: kernel,
		index:  make(map[[2]string]int),
	}
}

// Add adds subject → object with permissions, merging with any rule
// already present for the pair.
func (s *RuleSet) Add(subject, object, permissions string) error {
	if s.closed {
		return ErrClosed
	}
	rule, err := makeRule(subject, object, permissions)
	if err != nil {
		return err
	}
	s.commit([]entry{rule})
	return nil
}

// AddModify adds a change rule granting allow and removing deny.
// Either string may be empty, meaning no permissions.
func (s *RuleSet) AddModify(subject, object, allow, deny string) error {
	if s.closed {
		return ErrClosed
	}
	rule, err := makeModify(subject, object, allow, deny)
	if err != nil {
		return err
	}
	s.commit([]entry{rule})
	return nil
}

// Len returns the number of distinct subject and object pairs.
func (s *RuleSet) Len() int {
	return len(s.entries)
}

// Rules returns the rules in insertion order.
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, 0, len(s.entries))
	for _, e := range s.entries {
		rule := Rule{Subject: e.subject, Object: e.object, Modify: e.modify}
		rule.Permissions = e.text
		if rule.Permissions == "" {
			rule.Permissions = e.allow.String()
		}
		if e.modify {
			rule.Deny = e.deny.String()
		}
		out = append(out, rule)
	}
	return out
}

// Apply submits the set to the kernel. Plain rules go in one Load
// batch and change rules in one Change batch. A kernel that reports
// SMACK disabled turns Apply into a no-op.
func (s *RuleSet) Apply() error {
	if s.closed {
		return ErrClosed
	}
	if !s.kernel.Enabled() {
		return nil
	}
	var loads []smack.Rule
	var changes []smack.Change
	for _, e := range s.entries {
		if e.modify {
			changes = append(changes, smack.Change{Subject: e.subject, Object: e.object, Allow: e.allow, Deny: e.deny})
		} else {
			loads = append(loads, smack.Rule{Subject: e.subject, Object: e.object, Access: e.allow})
		}
	}
	if len(loads) > 0 {
		if err := s.kernel.Load(loads); err != nil {
			return fmt.Errorf("loading %d rules: %w", len(loads), err)
		}
	}
	if len(changes) > 0 {
		if err := s.kernel.Change(changes); err != nil {
			return fmt.Errorf("changing %d rules: %w", len(changes), err)
		}
	}
	return nil
}

// Clear sets the access of every pair in the set to nothing in the
// kernel. Files on disk are not touched.
func (s *RuleSet) Clear() error {
	if s.closed {
		return ErrClosed
	}
	if !s.kernel.Enabled() || len(s.entries) == 0 {
		return nil
	}
	cleared := make([]smack.Rule, 0, len(s.entries))
	for _, e := range s.entries {
		cleared = append(cleared, smack.Rule{Subject: e.subject, Object: e.object, Access: smack.NoAccess})
	}
	if err := s.kernel.Load(cleared); err != nil {
		return fmt.Errorf("clearing %d rules: %w", len(cleared), err)
	}
	return nil
}

// Close releases the set. Every later call returns ErrClosed.
func (s *RuleSet) Close() {
	s.closed = true
	s.index = nil
	s.entries = nil
}

func makeRule(subject, object, permissions string) (entry, error) {
	if err := validatePair(subject, object); err != nil {
		return entry{}, err
	}
	access, err := smack.ParseAccess(permissions)
	if err != nil {
		return entry{}, fmt.Errorf("%w: %s %s: %v", ErrInvalidRule, subject, object, err)
	}
	return entry{subject: subject, object: object, allow: access, text: permissions}, nil
}

func makeModify(subject, object, allow, deny string) (entry, error) {
	if err := validatePair(subject, object); err != nil {
		return entry{}, err
	}
	allowAccess, err := parseOptional(allow)
	if err != nil {
		return entry{}, fmt.Errorf("%w: %s %s: %v", ErrInvalidRule, subject, object, err)
	}
	denyAccess, err := parseOptional(deny)
	if err != nil {
		return entry{}, fmt.Errorf("%w: %s %s: %v", ErrInvalidRule, subject, object, err)
	}
	return entry{subject: subject, object: object, allow: allowAccess, deny: denyAccess, modify: true}, nil
}

func parseOptional(permissions string) (smack.Access, error) {
	if permissions == "" {
		return smack.NoAccess, nil
	}
	return smack.ParseAccess(permissions)
}

func validatePair(subject, object string) error {
	if err := label.Validate(subject); err != nil {
		return fmt.Errorf("%w: subject: %v", ErrInvalidRule, err)
	}
	if err := label.Validate(object); err != nil {
		return fmt.Errorf("%w: object: %v", ErrInvalidRule, err)
	}
	return nil
}

// commit merges already validated entries into the set.
func (s *RuleSet) commit(batch []entry) {
	for _, incoming := range batch {
		key := [2]string{incoming.subject, incoming.object}
		position, ok := s.index[key]
		if !ok {
			s.index[key] = len(s.entries)
			s.entries = append(s.entries, incoming)
			continue
		}
		existing := &s.entries[position]
		switch {
		case !existing.modify && !incoming.modify:
			existing.allow |= incoming.allow
			if existing.text != incoming.text {
				existing.text = ""
			}
		case existing.modify && incoming.modify:
			existing.allow |= incoming.allow
			existing.deny |= incoming.deny
			existing.text = ""
		case existing.modify:
			// The pair becomes a plain rule keeping the change's grants.
			existing.allow |= incoming.allow
			existing.deny = smack.NoAccess
			existing.modify = false
			existing.text = ""
		default:
			existing.allow = (existing.allow | incoming.allow) &^ incoming.deny
			existing.text = ""
		}
	}
}
