// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by airlock tests.
//
// [RequireReceive] is the one place tests wait on wall-clock time: a
// select with a timeout, so a streaming or concurrency bug fails the
// test instead of hanging it.
package testutil
