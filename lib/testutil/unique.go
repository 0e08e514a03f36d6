// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix.N" where N is a
// monotonically increasing integer, usable as an application or
// package id in tests that share state.
//
//	appID := testutil.UniqueID("org.example.app") // "org.example.app.1", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s.%d", prefix, uniqueCounter.Add(1))
}
