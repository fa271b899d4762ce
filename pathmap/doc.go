// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathmap translates container paths into host paths for one
// workspace session.
//
// A [Mapping] pairs container mount prefixes (/workspace,
// /extra/<name>) with absolute host directories. Each session keeps
// its mapping in a path-mappings.json file inside its data directory.
// The proxy loads the file fresh on every request through a [Store],
// so directories attached mid-session take effect immediately. A
// missing file is an empty mapping, which makes every path pass
// through unchanged: a session that has been torn down can never lend
// its directories to a later one.
package pathmap
