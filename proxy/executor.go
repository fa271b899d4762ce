// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Command is a fully prepared invocation: policy has passed and paths
// are already host paths.
type Command struct {
	Tool   string
	Binary string
	Args   []string
	Dir    string

	// Env holds extra NAME=value entries appended to the inherited
	// environment.
	Env []string
}

// Result is the outcome of running a Command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string

	// SpawnError is set when the process could not be started.
	SpawnError error
}

// Executor runs prepared commands. Implementations must not use a
// shell.
type Executor interface {
	Execute(ctx context.Context, command Command) Result
}

// ExitSpawnFailure is reported when the binary could not be started.
const ExitSpawnFailure = 127

// ProcessExecutor runs commands as host child processes.
type ProcessExecutor struct {
	// MaxOutputBytes caps each of stdout and stderr. Output beyond the
	// cap is discarded and a marker appended. Zero means no cap.
	MaxOutputBytes int64

	Logger *slog.Logger
}

// Execute runs the command to completion. Cancelling ctx kills the
// child; the handler passes a context detached from the HTTP request
// because there is no cancellation protocol.
func (e *ProcessExecutor) Execute(ctx context.Context, command Command) Result {
	cmd := exec.CommandContext(ctx, command.Binary, command.Args...)
	cmd.Dir = command.Dir
	cmd.Env = append(inheritedEnvironment(), command.Env...)

	stdout := &cappedBuffer{limit: e.MaxOutputBytes}
	stderr := &cappedBuffer{limit: e.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		result.ExitCode = ExitSpawnFailure
		result.SpawnError = err
		result.Stderr += fmt.Sprintf("airlock: failed to start %s: %v\n", command.Tool, err)
		if e.Logger != nil {
			e.Logger.Error("spawn failed", "tool", command.Tool, "binary", command.Binary, "error", err)
		}
		return result
	}

	result.ExitCode = exitErr.ExitCode()
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		result.ExitCode = 128 + int(status.Signal())
	}
	return result
}

// inheritedEnvironment is the proxy's environment minus its own
// AIRLOCK_* settings. Cloud CLIs rely on the rest (AWS_PROFILE,
// KUBECONFIG, and so on).
func inheritedEnvironment() []string {
	environment := os.Environ()
	filtered := environment[:0:0]
	for _, entry := range environment {
		if strings.HasPrefix(entry, "AIRLOCK_") {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

// cappedBuffer keeps the first limit bytes written to it and counts
// the rest. Writes never fail, so the child is not killed by SIGPIPE
// when it produces more than the cap.
type cappedBuffer struct {
	limit   int64
	buffer  bytes.Buffer
	dropped int64
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buffer.Write(p)
	}
	room := b.limit - int64(b.buffer.Len())
	if room <= 0 {
		b.dropped += int64(len(p))
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buffer.Write(p[:room])
		b.dropped += int64(len(p)) - room
		return len(p), nil
	}
	return b.buffer.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.dropped == 0 {
		return b.buffer.String()
	}
	return fmt.Sprintf("%s\n[airlock: output truncated, %d bytes dropped]\n", b.buffer.String(), b.dropped)
}

var _ Executor = (*ProcessExecutor)(nil)
