// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"strings"
	"testing"
)

func allBinaries() map[string]string {
	return map[string]string{
		"git":       "/usr/bin/git",
		"gh":        "/usr/bin/gh",
		"terraform": "/usr/local/bin/terraform",
		"kubectl":   "/usr/local/bin/kubectl",
		"aws":       "/usr/local/bin/aws",
	}
}

func TestDefaultToolsTakesPolicyValidators(t *testing.T) {
	tools, err := DefaultTools(allBinaries())
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		if tool.Validator == nil {
			t.Fatalf("%s has no validator", tool.Name)
		}
		if tool.Binary != allBinaries()[tool.Name] {
			t.Errorf("%s binary = %q", tool.Name, tool.Binary)
		}
		byName[tool.Name] = tool
	}
	if len(byName) != 5 {
		t.Fatalf("tools = %v", byName)
	}

	blocked := map[string][]string{
		"terraform": {"apply"},
		"kubectl":   {"delete", "pod", "x"},
		"aws":       {"ec2", "terminate-instances"},
	}
	for name, args := range blocked {
		if decision := byName[name].Validator.Check(args); decision.Allowed {
			t.Errorf("%s %q allowed", name, args)
		}
	}
	for _, name := range []string{"git", "gh"} {
		if decision := byName[name].Validator.Check([]string{"push", "--force"}); !decision.Allowed {
			t.Errorf("%s blocked: %s", name, decision.Reason)
		}
	}
	if !byName["gh"].Credentials || byName["gh"].RequireCwd {
		t.Errorf("gh = %+v", byName["gh"])
	}
	if byName["git"].Translate != nil || byName["gh"].Translate != nil {
		t.Error("git and gh arguments must not be translated")
	}
}

func TestDefaultToolsRequiresEveryBinary(t *testing.T) {
	binaries := allBinaries()
	delete(binaries, "kubectl")
	_, err := DefaultTools(binaries)
	if err == nil || !strings.Contains(err.Error(), "kubectl") {
		t.Errorf("error = %v, want one naming kubectl", err)
	}
}
