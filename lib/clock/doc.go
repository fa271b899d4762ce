// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that makes decisions based on elapsed time (credential expiry,
// audit timestamps, session descriptors) takes a Clock instead of
// calling time.Now directly. Production code passes Real(); tests pass
// Fake() and move time forward explicitly with Advance, so TTL
// behaviour can be asserted without sleeping.
package clock
