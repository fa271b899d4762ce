// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import "time"

// Environment variables read by the shim. The workspace hash is set by
// the session's compose file; the others exist for tests and
// non-standard installs.
const (
	EnvProxyURL      = "AIRLOCK_PROXY_URL"
	EnvTokenFile     = "AIRLOCK_TOKEN_FILE"
	EnvWorkspaceHash = "AIRLOCK_WORKSPACE_HASH"
)

const (
	DefaultProxyURL  = "http://host.docker.internal:8765"
	DefaultTokenFile = "/etc/airlock/proxy-token"

	// DefaultTimeout covers long terraform plans.
	DefaultTimeout = 10 * time.Minute
)

// Config locates the proxy.
type Config struct {
	ProxyURL      string
	TokenFile     string
	WorkspaceHash string
	Timeout       time.Duration
}

// ConfigFromEnv builds a Config from environment lookups, filling in
// defaults for unset values.
func ConfigFromEnv(getenv func(string) string) Config {
	config := Config{
		ProxyURL:      getenv(EnvProxyURL),
		TokenFile:     getenv(EnvTokenFile),
		WorkspaceHash: getenv(EnvWorkspaceHash),
		Timeout:       DefaultTimeout,
	}
	if config.ProxyURL == "" {
		config.ProxyURL = DefaultProxyURL
	}
	if config.TokenFile == "" {
		config.TokenFile = DefaultTokenFile
	}
	return config
}
