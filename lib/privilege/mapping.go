// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package privilege

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/moby/sys/user"
	"github.com/tidwall/jsonc"
)

// Mapping associates privileges with group names.
type Mapping struct {
	groups map[string][]string
}

// Load reads a mapping file. A missing file yields an empty mapping.
func Load(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Mapping{groups: map[string][]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading privilege mapping %s: %w", path, err)
	}
	mapping, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mapping, nil
}

// Parse decodes a JSONC mapping document.
func Parse(data []byte) (*Mapping, error) {
	var groups map[string][]string
	if err := json.Unmarshal(jsonc.ToJSON(data), &groups); err != nil {
		return nil, fmt.Errorf("parsing privilege mapping: %w", err)
	}
	for privilege, names := range groups {
		for _, name := range names {
			if name == "" {
				return nil, fmt.Errorf("privilege %s maps to an empty group name", privilege)
			}
		}
	}
	if groups == nil {
		groups = map[string][]string{}
	}
	return &Mapping{groups: groups}, nil
}

// Groups returns the sorted, deduplicated groups of privileges.
// Privileges without groups contribute nothing.
func (m *Mapping) Groups(privileges []string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, privilege := range privileges {
		for _, name := range m.groups[privilege] {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// AllGroups returns every group some privilege maps to, sorted.
func (m *Mapping) AllGroups() []string {
	privileges := make([]string, 0, len(m.groups))
	for privilege := range m.groups {
		privileges = append(privileges, privilege)
	}
	return m.Groups(privileges)
}

// GroupLookup resolves a group name to a gid.
type GroupLookup func(name string) (int, error)

// LookupGroup resolves names through the system group database.
func LookupGroup(name string) (int, error) {
	group, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	return group.Gid, nil
}

// ResolveGIDs maps group names to gids in order, failing on the first
// name that does not resolve.
func ResolveGIDs(names []string, lookup GroupLookup) ([]int, error) {
	gids := make([]int, 0, len(names))
	for _, name := range names {
		gid, err := lookup(name)
		if err != nil {
			return nil, fmt.Errorf("resolving group %s: %w", name, err)
		}
		gids = append(gids, gid)
	}
	return gids, nil
}
