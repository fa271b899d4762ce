// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathmap

import (
	"sort"
	"strings"
)

// Mapping maps container mount prefixes to host directories.
type Mapping map[string]string

// Resolve returns the host path for a container path. An exact key
// match wins; otherwise the longest key k for which path starts with
// k + "/" is replaced by its host directory. Paths outside every
// prefix are returned unchanged.
func (m Mapping) Resolve(path string) string {
	if host, ok := m[path]; ok {
		return host
	}
	for _, prefix := range m.prefixesLongestFirst() {
		if rest, ok := strings.CutPrefix(path, prefix+"/"); ok {
			return strings.TrimSuffix(m[prefix], "/") + "/" + rest
		}
	}
	return path
}

// Covers reports whether path lies under one of the mount prefixes.
func (m Mapping) Covers(path string) bool {
	if _, ok := m[path]; ok {
		return true
	}
	for prefix := range m {
		if strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// TranslateArg rewrites a single argument. A bare path is resolved.
// A flag=value argument has only its value resolved, and only when the
// value lies under a mount prefix.
func (m Mapping) TranslateArg(arg string) string {
	if m.Covers(arg) {
		return m.Resolve(arg)
	}
	name, value, found := strings.Cut(arg, "=")
	if !found || !m.Covers(value) {
		return arg
	}
	return name + "=" + m.Resolve(value)
}

// TranslateArgs rewrites every argument with TranslateArg. The input
// slice is not modified.
func (m Mapping) TranslateArgs(args []string) []string {
	translated := make([]string, len(args))
	for index, arg := range args {
		translated[index] = m.TranslateArg(arg)
	}
	return translated
}

// fileSchemes are the aws CLI prefixes that load a parameter from a
// local file.
var fileSchemes = []string{"fileb://", "file://"}

// TranslateAWSArgs is TranslateArgs plus rewriting of file:// and
// fileb:// parameter values, bare or after "=".
func (m Mapping) TranslateAWSArgs(args []string) []string {
	translated := make([]string, len(args))
	for index, arg := range args {
		if rewritten, ok := m.translateFileURI(arg); ok {
			translated[index] = rewritten
			continue
		}
		if name, value, found := strings.Cut(arg, "="); found {
			if rewritten, ok := m.translateFileURI(value); ok {
				translated[index] = name + "=" + rewritten
				continue
			}
		}
		translated[index] = m.TranslateArg(arg)
	}
	return translated
}

func (m Mapping) translateFileURI(value string) (string, bool) {
	for _, scheme := range fileSchemes {
		if path, ok := strings.CutPrefix(value, scheme); ok && m.Covers(path) {
			return scheme + m.Resolve(path), true
		}
	}
	return "", false
}

func (m Mapping) prefixesLongestFirst() []string {
	prefixes := make([]string, 0, len(m))
	for prefix := range m {
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})
	return prefixes
}
