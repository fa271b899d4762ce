// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

// RequireReceive returns the next value from ch. The test fails if ch
// is closed first or nothing arrives within timeout; format and args
// describe what was being waited for.
//
//	first := testutil.RequireReceive(t, events, 5*time.Second, "first event from %s", name)
func RequireReceive[T any](t testing.TB, ch <-chan T, timeout time.Duration, format string, args ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while waiting for %s", fmt.Sprintf(format, args...))
		}
		return value
	case <-timer.C:
		t.Fatalf("timed out after %v waiting for %s", timeout, fmt.Sprintf(format, args...))
	}
	panic("unreachable")
}
