// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bureau-foundation/airlock/pathmap"
)

// ErrNotDirectory is returned when a workspace or extra directory does
// not exist or is not a directory.
var ErrNotDirectory = errors.New("not a directory")

const (
	// WorkspaceTarget is where the workspace is mounted in the sandbox.
	WorkspaceTarget = "/workspace"

	// ExtraPrefix is the parent of every extra-directory mount.
	ExtraPrefix = "/extra/"

	// dockerDesktopPrefix is prepended to host paths in the mount
	// sources Docker Desktop reports.
	dockerDesktopPrefix = "/host_mnt"
)

// Mount is one bind mount of a host directory into the sandbox.
type Mount struct {
	Source string `cbor:"source" json:"source"`
	Target string `cbor:"target" json:"target"`
}

// checkDirectory returns the absolute, cleaned form of path after
// confirming it is an existing directory.
func checkDirectory(path string) (string, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(absolute)
	if err != nil {
		return "", fmt.Errorf("%s: %w", absolute, ErrNotDirectory)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", absolute, ErrNotDirectory)
	}
	return absolute, nil
}

// planExtras assigns each extra directory a target under /extra/ named
// after its basename. Repeated basenames get -2, -3, and so on in the
// order given. A directory listed twice is mounted once.
func planExtras(extras []string) ([]Mount, error) {
	mounts := make([]Mount, 0, len(extras))
	seenSource := make(map[string]bool, len(extras))
	usedTarget := make(map[string]bool, len(extras))
	for _, extra := range extras {
		source, err := checkDirectory(extra)
		if err != nil {
			return nil, err
		}
		if seenSource[source] {
			continue
		}
		seenSource[source] = true

		base := filepath.Base(source)
		if base == "/" || base == "." {
			return nil, fmt.Errorf("cannot mount %s as an extra directory", source)
		}
		target := ExtraPrefix + base
		for suffix := 2; usedTarget[target]; suffix++ {
			target = ExtraPrefix + base + "-" + strconv.Itoa(suffix)
		}
		usedTarget[target] = true
		mounts = append(mounts, Mount{Source: source, Target: target})
	}
	return mounts, nil
}

// mappingFor builds the path mapping the proxy uses for a session.
func mappingFor(workspace string, extras []Mount) pathmap.Mapping {
	mapping := pathmap.Mapping{WorkspaceTarget: workspace}
	for _, mount := range extras {
		mapping[mount.Target] = mount.Source
	}
	return mapping
}

// normalizeSource strips the Docker Desktop /host_mnt prefix so live
// mount sources compare equal to the host paths that were requested.
func normalizeSource(source string) string {
	if rest, ok := strings.CutPrefix(source, dockerDesktopPrefix); ok && strings.HasPrefix(rest, "/") {
		source = rest
	}
	return filepath.Clean(source)
}

// extraSet keys extra mounts by target, ignoring everything mounted
// outside /extra/.
func extraSet(mounts []Mount) map[string]string {
	set := make(map[string]string, len(mounts))
	for _, mount := range mounts {
		if strings.HasPrefix(mount.Target, ExtraPrefix) {
			set[mount.Target] = normalizeSource(mount.Source)
		}
	}
	return set
}

// sameExtras reports whether a running container's bind mounts carry
// exactly the requested extra directories.
func sameExtras(live, requested []Mount) bool {
	liveSet := extraSet(live)
	requestedSet := extraSet(requested)
	if len(liveSet) != len(requestedSet) {
		return false
	}
	for target, source := range requestedSet {
		if liveSet[target] != source {
			return false
		}
	}
	return true
}

// describeMounts renders mounts for log attributes.
func describeMounts(mounts []Mount) []string {
	described := make([]string, 0, len(mounts))
	for _, mount := range mounts {
		described = append(described, mount.Source+":"+mount.Target)
	}
	sort.Strings(described)
	return described
}
