// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/secmgr/lib/protocol"
)

var installTypes = map[string]protocol.InstallType{
	"":          protocol.InstallNone,
	"local":     protocol.InstallLocal,
	"global":    protocol.InstallGlobal,
	"preloaded": protocol.InstallPreloaded,
}

func parseInstallType(name string) (protocol.InstallType, error) {
	installType, ok := installTypes[name]
	if !ok {
		return 0, fmt.Errorf("unknown installation type %q (want local, global, or preloaded)", name)
	}
	return installType, nil
}

// parsePathSpec parses PATH or PATH:TYPE. A bare path is read-write.
func parsePathSpec(spec string) (protocol.AppPath, error) {
	path, typeName, found := strings.Cut(spec, ":")
	if path == "" {
		return protocol.AppPath{}, fmt.Errorf("empty path in %q", spec)
	}
	if !found {
		return protocol.AppPath{Path: path, Type: protocol.PathRW}, nil
	}
	pathType, ok := protocol.ParsePathType(typeName)
	if !ok {
		return protocol.AppPath{}, fmt.Errorf("unknown path type %q in %q (want rw, ro, public-ro, shared-ro, or trusted-rw)", typeName, spec)
	}
	return protocol.AppPath{Path: path, Type: pathType}, nil
}

func parseUserType(name string) (protocol.UserType, error) {
	userType, ok := protocol.ParseUserType(name)
	if !ok || userType == protocol.UserNone {
		return 0, fmt.Errorf("unknown user type %q (want system, admin, guest, or normal)", name)
	}
	return userType, nil
}

var policyScopes = map[string]protocol.PolicyScope{
	"effective": protocol.PolicyEffective,
	"admin":     protocol.PolicyAdmin,
	"self":      protocol.PolicySelf,
}

func parsePolicyScope(name string) (protocol.PolicyScope, error) {
	scope, ok := policyScopes[name]
	if !ok {
		return 0, fmt.Errorf("unknown policy scope %q (want effective, admin, or self)", name)
	}
	return scope, nil
}

// requireArgs checks the positional argument count of a command.
func requireArgs(args []string, want int, usage string) error {
	if len(args) != want {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}
