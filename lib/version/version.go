// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for airlock binaries.
//
// Release builds inject values with -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/airlock/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Plain "go build" inside a checkout leaves GitCommit unset; Info then
// falls back to the VCS stamp the toolchain embeds in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set by -ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
)

type stamp struct {
	commit string
	dirty  bool
	built  string
}

func current() stamp {
	s := stamp{commit: GitCommit, dirty: GitDirty == "true", built: BuildTime}
	if s.commit != "unknown" {
		return s
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return s
	}
	return s.merge(info.Settings)
}

// merge fills unset fields from the vcs.* build settings.
func (s stamp) merge(settings []debug.BuildSetting) stamp {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			s.commit = setting.Value
			if len(s.commit) > 12 {
				s.commit = s.commit[:12]
			}
		case "vcs.modified":
			s.dirty = setting.Value == "true"
		case "vcs.time":
			if s.built == "unknown" {
				s.built = setting.Value
			}
		}
	}
	return s
}

func (s stamp) String() string {
	commit := s.commit
	if s.dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, s.built)
}

// Info returns the one-line version string.
func Info() string {
	return current().String()
}

// Full adds the Go toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
