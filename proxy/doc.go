// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package proxy is the host side of airlock: the only process that
// runs commands with host credentials on behalf of a sandboxed agent.
//
// [Server] listens on a loopback TCP address. The container reaches it
// through the Docker gateway hostname; nothing routable is bound.
// Every request except GET /health must present the installation's
// bearer token, compared in constant time against a [secret.Buffer].
//
// [Handler] serves one POST endpoint per registered [Tool]. A request
// is shape-checked, classified by the tool's policy validator, and
// only then translated and executed:
//
//	decode -> policy.Check -> pathmap translate -> Executor -> JSON
//
// A refused command never reaches the [Executor]; the client receives
// blocked:true with exit code 126. Each outcome is appended to the
// [AuditLog], which records the command line and exit status but never
// command output.
//
// gh receives a GitHub token from a [TokenCache] that re-runs
// "gh auth token" on the host after a short TTL. Cloud credentials are
// never handled explicitly: the spawned tools inherit the host
// environment and read their own configuration files.
//
// [MCPProxy] forwards /mcp/<name>/... to servers listed in a JSONC
// registry, adding headers the container never sees. Header values
// may be sealed with age and are opened per request.
//
// [secret.Buffer]: github.com/bureau-foundation/airlock/lib/secret.Buffer
package proxy
