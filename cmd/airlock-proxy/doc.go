// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Airlock-proxy is the host side of the sandbox: a loopback HTTP
// server that runs git, gh, terraform, kubectl, and aws on behalf of
// containers that have no credentials or outbound network of their
// own. Infrastructure tools are filtered by a read-only policy; every
// request is written to the audit log. It also reverse-proxies
// registered MCP servers, attaching host-held auth headers.
package main
