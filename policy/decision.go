// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import "fmt"

// BlockedExitCode is the exit status reported for a refused command.
// It is distinct from any status the real tools use for failure.
const BlockedExitCode = 126

// Decision is the outcome of a policy check. Reason is set only when
// Allowed is false.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns a permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Block returns a refusal with a formatted reason.
func Block(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Validator classifies an argument list for one tool.
type Validator interface {
	Check(args []string) Decision
}

// Unrestricted permits every invocation.
type Unrestricted struct{}

// Check always allows.
func (Unrestricted) Check([]string) Decision {
	return Allow()
}

var (
	_ Validator = Unrestricted{}
	_ Validator = (*Subcommands)(nil)
	_ Validator = (*AWS)(nil)
)
