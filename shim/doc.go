// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shim is the container side of the tool proxy. The shim
// binary is installed in the sandbox under each proxied tool's name;
// it forwards argv and the working directory to the host proxy and
// reproduces the real tool's output and exit status.
//
// The client mirrors the proxy's wire format with its own types so
// that sandbox code does not import the proxy implementation.
//
// Exit statuses the shim adds on top of the tool's own: 126 when the
// proxy refused the command by policy, 128 when the proxy could not be
// reached or answered with something other than a proxy response.
package shim
