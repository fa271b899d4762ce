// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// hangupErrors are what a relay sees when either end of a stream goes
// away normally.
var hangupErrors = []error{
	io.EOF,
	net.ErrClosed,
	context.Canceled,
	syscall.EPIPE,
	syscall.ECONNRESET,
}

// IsExpectedCloseError reports whether err only means the peer hung
// up. The MCP relay checks it before logging a failed stream copy.
func IsExpectedCloseError(err error) bool {
	for _, target := range hangupErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
