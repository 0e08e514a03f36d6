// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the policy
// manager service and command-line tool.
//
// Configuration is loaded from a single file specified by either the
// SECMGR_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search.
//
// The file may contain development and production sections that
// override base values when [Config].Environment matches.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${SECMGR_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// This package depends on no other packages of the module.
package config
