// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// ContainerState is what the runtime reports about one container.
type ContainerState struct {
	Running bool

	// Mounts are the container's bind mounts as the runtime reports
	// them, sources not yet normalized.
	Mounts []Mount
}

// Runtime performs container operations for the Manager.
type Runtime interface {
	// Inspect returns nil, nil when no container has that name.
	Inspect(ctx context.Context, name string) (*ContainerState, error)

	ComposeUp(ctx context.Context, project, composeFile string) error
	ComposeDown(ctx context.Context, project, composeFile string) error

	// RemoveContainer force-removes a container. A missing container
	// is not an error.
	RemoveContainer(ctx context.Context, name string) error
}

// DockerRuntime drives the docker CLI.
type DockerRuntime struct {
	// Binary defaults to "docker" on PATH.
	Binary string
}

// run executes a docker command and returns stdout. On failure the
// error includes trimmed stderr, which is also returned so callers can
// recognize specific daemon responses.
func (d DockerRuntime) run(ctx context.Context, args ...string) (string, string, error) {
	binary := d.Binary
	if binary == "" {
		binary = "docker"
	}
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, binary, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		trimmed := strings.TrimSpace(stderr.String())
		return "", trimmed, fmt.Errorf("docker %s: %w (stderr: %s)", strings.Join(args, " "), err, trimmed)
	}
	return stdout.String(), stderr.String(), nil
}

func isNoSuchContainer(stderr string) bool {
	return strings.Contains(stderr, "No such container") || strings.Contains(stderr, "No such object")
}

// Inspect implements Runtime.
func (d DockerRuntime) Inspect(ctx context.Context, name string) (*ContainerState, error) {
	stdout, stderr, err := d.run(ctx, "container", "inspect", name)
	if err != nil {
		if isNoSuchContainer(stderr) {
			return nil, nil
		}
		return nil, err
	}

	var inspected []struct {
		State struct {
			Running bool `json:"Running"`
		} `json:"State"`
		Mounts []struct {
			Type        string `json:"Type"`
			Source      string `json:"Source"`
			Destination string `json:"Destination"`
		} `json:"Mounts"`
	}
	if err := json.Unmarshal([]byte(stdout), &inspected); err != nil {
		return nil, fmt.Errorf("parsing docker inspect output for %s: %w", name, err)
	}
	if len(inspected) == 0 {
		return nil, nil
	}

	state := &ContainerState{Running: inspected[0].State.Running}
	for _, mount := range inspected[0].Mounts {
		if mount.Type != "bind" {
			continue
		}
		state.Mounts = append(state.Mounts, Mount{Source: mount.Source, Target: mount.Destination})
	}
	return state, nil
}

// ComposeUp implements Runtime.
func (d DockerRuntime) ComposeUp(ctx context.Context, project, composeFile string) error {
	_, _, err := d.run(ctx, "compose", "--project-name", project, "--file", composeFile, "up", "--detach", "--remove-orphans")
	return err
}

// ComposeDown implements Runtime.
func (d DockerRuntime) ComposeDown(ctx context.Context, project, composeFile string) error {
	_, _, err := d.run(ctx, "compose", "--project-name", project, "--file", composeFile, "down", "--remove-orphans")
	return err
}

// RemoveContainer implements Runtime.
func (d DockerRuntime) RemoveContainer(ctx context.Context, name string) error {
	_, stderr, err := d.run(ctx, "rm", "--force", name)
	if err != nil && !isNoSuchContainer(stderr) {
		return err
	}
	return nil
}
