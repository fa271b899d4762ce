// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestInfoMarksDirtyBuilds(t *testing.T) {
	savedCommit, savedDirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = savedCommit, savedDirty })

	GitCommit = "abc1234"
	GitDirty = "false"
	if got := Info(); !strings.Contains(got, "(abc1234,") {
		t.Errorf("Info() = %q, want clean commit", got)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want dirty marker", got)
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	if got := Full(); !strings.Contains(got, "Platform:") {
		t.Errorf("Full() = %q", got)
	}
}

func TestStampFromBuildSettings(t *testing.T) {
	base := stamp{commit: "unknown", built: "unknown"}
	merged := base.merge([]debug.BuildSetting{
		{Key: "vcs", Value: "git"},
		{Key: "vcs.revision", Value: "0123456789abcdef0123456789abcdef01234567"},
		{Key: "vcs.time", Value: "2026-03-01T12:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	})
	want := Version + " (0123456789ab-dirty, 2026-03-01T12:00:00Z)"
	if got := merged.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
