// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the airlock host configuration.
//
// The file is located by the --config flag or the AIRLOCK_CONFIG
// environment variable. When neither is set the built-in defaults
// apply, rooted at ~/.airlock. Environment variables never override
// individual values; the only expansion is ${HOME}, ${AIRLOCK_ROOT},
// and ${VAR:-default} patterns inside path fields, so derived paths
// follow a relocated root.
//
// Key exports:
//
//   - [Config] with Paths, Proxy, Tools, Audit, Sandbox sections
//   - [Default] and [Load]
//   - [Config.Validate], which reports every problem at once
package config
