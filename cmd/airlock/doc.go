// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Airlock is the operator CLI for sandboxed workspaces. It launches and
// tears down per-workspace sandbox containers, shows their status,
// manages the proxy token, reads the audit log, and administers the
// MCP server registry and its sealed header values.
package main
