// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

// validators is the policy for every proxied tool. proxy.DefaultTools
// builds its registration table from it.
var validators = map[string]Validator{
	"git":       Unrestricted{},
	"gh":        Unrestricted{},
	"terraform": Terraform(),
	"kubectl":   Kubectl(),
	"aws":       AWS{},
}

// For returns the validator for a tool name.
func For(tool string) (Validator, bool) {
	validator, ok := validators[tool]
	return validator, ok
}

// Evaluate checks args against the validator for tool. An unknown
// tool is refused.
func Evaluate(tool string, args []string) Decision {
	validator, ok := For(tool)
	if !ok {
		return Block("%s is not a proxied tool", tool)
	}
	return validator.Check(args)
}
