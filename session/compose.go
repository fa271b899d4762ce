// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ComposeFileName is the compose file inside a session's data
// directory.
const ComposeFileName = "docker-compose.yaml"

// serviceName is the single service in every generated compose file.
const serviceName = "sandbox"

// Environment variables set in the sandbox for the shim.
const (
	EnvWorkspaceHash = "AIRLOCK_WORKSPACE_HASH"
	EnvProxyURL      = "AIRLOCK_PROXY_URL"
)

// Container labels identifying airlock sessions.
const (
	LabelHash      = "airlock.hash"
	LabelWorkspace = "airlock.workspace"
)

type composeFile struct {
	Name     string                    `yaml:"name"`
	Services map[string]composeService `yaml:"services"`
	Networks map[string]composeNetwork `yaml:"networks"`
}

type composeService struct {
	Image         string            `yaml:"image"`
	ContainerName string            `yaml:"container_name"`
	Init          bool              `yaml:"init"`
	StdinOpen     bool              `yaml:"stdin_open"`
	TTY           bool              `yaml:"tty"`
	WorkingDir    string            `yaml:"working_dir"`
	Environment   map[string]string `yaml:"environment"`
	Labels        map[string]string `yaml:"labels"`
	Volumes       []composeVolume   `yaml:"volumes"`
	Networks      []string          `yaml:"networks"`
	ExtraHosts    []string          `yaml:"extra_hosts,omitempty"`
}

type composeVolume struct {
	Type   string `yaml:"type"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

type composeNetwork struct {
	External bool `yaml:"external"`
}

// renderCompose produces the compose file for a session. The sandbox
// joins only the external internal network; the proxy host name
// resolves to the host gateway.
func renderCompose(descriptor Descriptor, network, proxyHost, proxyURL string) ([]byte, error) {
	volumes := []composeVolume{{Type: "bind", Source: descriptor.Workspace, Target: WorkspaceTarget}}
	for _, mount := range descriptor.Extras {
		volumes = append(volumes, composeVolume{Type: "bind", Source: mount.Source, Target: mount.Target})
	}

	service := composeService{
		Image:         descriptor.Image,
		ContainerName: descriptor.Container,
		Init:          true,
		StdinOpen:     true,
		TTY:           true,
		WorkingDir:    WorkspaceTarget,
		Environment: map[string]string{
			EnvWorkspaceHash: descriptor.Hash,
			EnvProxyURL:      proxyURL,
		},
		Labels: map[string]string{
			LabelHash:      descriptor.Hash,
			LabelWorkspace: descriptor.Workspace,
		},
		Volumes:  volumes,
		Networks: []string{network},
	}
	if proxyHost != "" {
		service.ExtraHosts = []string{proxyHost + ":host-gateway"}
	}

	data, err := yaml.Marshal(composeFile{
		Name:     descriptor.Project,
		Services: map[string]composeService{serviceName: service},
		Networks: map[string]composeNetwork{network: {External: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("rendering compose file: %w", err)
	}
	return data, nil
}
