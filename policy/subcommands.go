// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import "strings"

// Subcommands allows an invocation when its first argument names a
// permitted subcommand. Subcommands with an entry in Nested must also
// have a permitted second argument.
type Subcommands struct {
	// Tool names the command in refusal messages.
	Tool string

	Allowed map[string]bool

	// Nested restricts the children of selected subcommands. A missing
	// child is allowed: the tool only prints usage.
	Nested map[string]map[string]bool

	// LeadingFlag decides invocations whose first argument is a flag.
	// Nil blocks them.
	LeadingFlag func(flag string) Decision
}

// Check implements Validator.
func (s *Subcommands) Check(args []string) Decision {
	if len(args) == 0 {
		return Allow()
	}

	subcommand := args[0]
	if isFlag(subcommand) {
		if s.LeadingFlag == nil {
			return Block("%s: flags before the subcommand are not permitted", s.Tool)
		}
		return s.LeadingFlag(subcommand)
	}

	if !s.Allowed[subcommand] {
		return Block("%s %s is not permitted: only read-only operations may run through the proxy", s.Tool, subcommand)
	}

	children, restricted := s.Nested[subcommand]
	if !restricted || len(args) < 2 {
		return Allow()
	}
	child := args[1]
	if isHelpFlag(child) {
		return Allow()
	}
	if isFlag(child) {
		return Block("%s %s: place flags after the %s subcommand", s.Tool, subcommand, subcommand)
	}
	if !children[child] {
		return Block("%s %s %s is not permitted: allowed are %s", s.Tool, subcommand, child, joinKeys(children))
	}
	return Allow()
}

// Terraform permits init, plan, and inspection commands. Mutating
// state subcommands and apply/destroy/import are refused.
func Terraform() *Subcommands {
	return &Subcommands{
		Tool: "terraform",
		Allowed: set("init", "plan", "validate", "fmt", "show", "output", "graph",
			"providers", "version", "workspace", "state", "console"),
		Nested: map[string]map[string]bool{
			"state":     set("list", "show", "pull"),
			"workspace": set("list", "show", "select"),
		},
		LeadingFlag: func(string) Decision { return Allow() },
	}
}

// Kubectl permits read-only cluster queries.
func Kubectl() *Subcommands {
	return &Subcommands{
		Tool: "kubectl",
		Allowed: set("get", "describe", "logs", "top", "api-resources", "api-versions",
			"cluster-info", "config", "version", "auth", "diff", "explain", "wait", "events"),
		Nested: map[string]map[string]bool{
			"config": set("view", "get-contexts", "current-context", "get-clusters", "get-users"),
			"auth":   set("can-i", "whoami"),
		},
		LeadingFlag: func(flag string) Decision {
			if isHelpFlag(flag) || flag == "--version" {
				return Allow()
			}
			return Block("kubectl: place global flags such as %s after the subcommand", flagName(flag))
		},
	}
}

func isFlag(arg string) bool {
	return strings.HasPrefix(arg, "-") && arg != "-"
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "-help"
}

func flagName(arg string) string {
	name, _, _ := strings.Cut(arg, "=")
	return name
}

func set(values ...string) map[string]bool {
	result := make(map[string]bool, len(values))
	for _, value := range values {
		result[value] = true
	}
	return result
}
