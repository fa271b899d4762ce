// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"errors"
	"fmt"
	"io"
)

const (
	// ExitBlocked is returned when the proxy refused the command.
	ExitBlocked = 126

	// ExitUnreachable is returned when no proxy response was obtained.
	ExitUnreachable = 128
)

// Render writes a tool's output the way the real tool would have and
// returns the exit status the shim should exit with.
func Render(stdout, stderr io.Writer, tool string, response *Response, err error) int {
	if err != nil {
		var unreachable *UnreachableError
		if errors.As(err, &unreachable) {
			fmt.Fprintf(stderr, "airlock: %s: %v\n", tool, unreachable)
			return ExitUnreachable
		}
		fmt.Fprintf(stderr, "airlock: %s: %v\n", tool, err)
		return 1
	}

	if response.Blocked {
		fmt.Fprintf(stderr, "airlock: %s blocked: %s\n", tool, response.Reason)
		return ExitBlocked
	}

	io.WriteString(stdout, response.Stdout)
	io.WriteString(stderr, response.Stderr)
	if response.Error != "" {
		fmt.Fprintf(stderr, "airlock: %s: %s\n", tool, response.Error)
		if response.ExitCode == 0 {
			return 1
		}
	}
	return response.ExitCode
}
