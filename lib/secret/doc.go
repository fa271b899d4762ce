// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds credential material in memory the Go runtime
// never sees.
//
// A [Buffer] is an anonymous mmap region locked into RAM (mlock) and
// excluded from core dumps (MADV_DONTDUMP). The proxy keeps its bearer
// token and the cached GitHub token in Buffers so that neither can be
// swapped to disk, and both are zeroed when the process releases them.
//
// [Buffer.Equal] compares in constant time; it is the only comparison
// the proxy uses for bearer tokens.
package secret
