// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import "encoding/json"

// CommandRequest is the JSON body posted to a tool endpoint.
type CommandRequest struct {
	// Args is kept raw so that a missing or mistyped field can be told
	// apart from an empty argument list.
	Args json.RawMessage `json:"args"`

	// Cwd is the caller's working directory as the container sees it.
	// It is resolved through the workspace mapping. Nil or empty runs
	// the tool in the host home directory, which tools with RequireCwd
	// refuse.
	Cwd *string `json:"cwd,omitempty"`

	// WorkspaceHash selects the mapping file under the workspaces
	// directory. Empty means no mapping: paths pass through unchanged.
	WorkspaceHash string `json:"workspace_hash,omitempty"`
}

// CommandResult is the JSON body returned by a tool endpoint. ExitCode
// is always present so the shim can distinguish a result from an
// intermediary's error page.
type CommandResult struct {
	// Success is true only when the tool ran and exited zero.
	Success bool `json:"success"`

	// Stdout and Stderr are the tool's captured output, possibly
	// truncated by the executor's output cap.
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// ExitCode is the tool's exit status, or ExitSpawnFailure if it
	// could not be started. A blocked command reports
	// policy.BlockedExitCode and a refused request errorExitCode.
	ExitCode int `json:"exitCode"`

	// Blocked is set when policy refused the command. Reason says why.
	Blocked bool   `json:"blocked,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// Error describes a request the proxy refused or could not serve.
	// It is empty whenever the executor was reached.
	Error string `json:"error,omitempty"`
}

// errorExitCode is reported alongside request errors (bad body,
// missing directory, authentication failure).
const errorExitCode = 1
