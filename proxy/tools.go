// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"fmt"

	"github.com/bureau-foundation/airlock/pathmap"
	"github.com/bureau-foundation/airlock/policy"
)

// Tool is one proxied command. Each Tool gets a POST /<Name> endpoint.
type Tool struct {
	// Name is both the endpoint path segment and the shim's tool name.
	Name string

	// Binary is the absolute path of the real executable on the host.
	Binary string

	// Validator decides whether a command may run. It sees the
	// arguments before translation.
	Validator policy.Validator

	// Translate rewrites container paths in the argument list. Nil
	// leaves arguments untouched.
	Translate func(pathmap.Mapping, []string) []string

	// RequireCwd rejects requests without a working directory. Tools
	// that accept no cwd run in the host user's home directory.
	RequireCwd bool

	// Credentials injects the cached GitHub token as GH_TOKEN and
	// GITHUB_TOKEN.
	Credentials bool
}

// DefaultTools builds the registration table for git, gh, terraform,
// kubectl, and aws. binaries maps each name to its resolved host path;
// validators come from policy.For.
//
// git and gh arguments are free text (commit messages, PR bodies) and
// are never rewritten.
func DefaultTools(binaries map[string]string) ([]Tool, error) {
	tools := []Tool{
		{Name: "git", RequireCwd: true},
		{Name: "gh", Credentials: true},
		{Name: "terraform", Translate: pathmap.Mapping.TranslateArgs, RequireCwd: true},
		{Name: "kubectl", Translate: pathmap.Mapping.TranslateArgs, RequireCwd: true},
		{Name: "aws", Translate: pathmap.Mapping.TranslateAWSArgs, RequireCwd: true},
	}
	for index := range tools {
		tool := &tools[index]
		validator, ok := policy.For(tool.Name)
		if !ok {
			return nil, fmt.Errorf("no policy for tool %s", tool.Name)
		}
		tool.Validator = validator
		binary, ok := binaries[tool.Name]
		if !ok || binary == "" {
			return nil, fmt.Errorf("no binary for tool %s", tool.Name)
		}
		tool.Binary = binary
	}
	return tools, nil
}
