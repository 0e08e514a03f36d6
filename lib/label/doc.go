// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package label derives SMACK labels from application, package, and
// author identifiers.
//
// Every derivation is a pure function of its inputs: the same
// identifier always yields the same label, and distinct identifiers of
// one kind never collide. The label namespace is rooted at "User" so
// that system-domain labels ("System", "System::Privileged", "_") can
// never be produced from an application identifier:
//
//	User::App::<app>                       process label
//	User::Pkg::<pkg>                       package read-write paths
//	User::Pkg::<pkg>::RO                   package read-only paths
//	User::Pkg::<pkg>::SharedRO             package shared read-only paths
//	User::Pkg::<pkg>::SharedPrivate::<h>   path shared with other apps
//	User::Author::<id>                     author-trusted paths
//
// [AppFromLabel] inverts the process label derivation. [Validate]
// checks that a string is acceptable to the kernel as a label.
package label
