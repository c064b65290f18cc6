/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of schoolbell.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/schoolbell/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit is the short git revision, set at build time.
var Commit = "dev"

// String renders the version line printed by `schoolbell version`.
func String() string {
	return fmt.Sprintf("schoolbell %s (%s) %s/%s %s", Version, Commit, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
