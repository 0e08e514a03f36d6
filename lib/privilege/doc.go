// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package privilege maps privileges to the supplementary groups that
// implement them.
//
// Some privileges are enforced by file ownership rather than by
// policy checks: holding the privilege means running with an extra
// group. The mapping is a JSONC file (JSON with comments and trailing
// commas) installed with the platform:
//
//	{
//	    // network access
//	    "http://tizen.org/privilege/internet": ["priv_internet"],
//	    "http://tizen.org/privilege/camera": ["priv_camera", "video"],
//	}
package privilege
