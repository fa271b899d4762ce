// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"sort"
	"strings"
)

// mutatingVerbs are operation-name prefixes that change AWS state.
var mutatingVerbs = set(
	"create", "delete", "terminate", "remove", "put", "update", "run", "start",
	"stop", "reboot", "modify", "release", "deregister", "revoke", "disable",
	"enable", "attach", "detach", "associate", "disassociate", "import", "export",
	"invoke", "publish", "send", "execute", "cancel", "reset", "restore",
)

// awsValueOptions are the AWS CLI v2 global options whose value is the
// next argument (unless written --name=value).
var awsValueOptions = set(
	"--region", "--profile", "--output", "--endpoint-url", "--query",
	"--cli-read-timeout", "--cli-connect-timeout", "--cli-binary-format",
	"--color", "--ca-bundle",
)

// awsSwitches are the AWS CLI v2 global options that take no value.
var awsSwitches = set(
	"--debug", "--no-verify-ssl", "--no-paginate", "--no-sign-request",
	"--no-cli-pager", "--cli-auto-prompt", "--no-cli-auto-prompt",
	"--version", "--help",
)

// AWS refuses operations whose name starts with a mutating verb, such
// as terminate-instances or put-object. An option it does not know in
// front of the operation is refused too: whether it takes a value
// decides which token is the operation.
type AWS struct{}

// Check implements Validator.
func (AWS) Check(args []string) Decision {
	positional := make([]string, 0, 2)
	for index := 0; index < len(args) && len(positional) < 2; index++ {
		arg := args[index]
		if !isFlag(arg) {
			positional = append(positional, arg)
			continue
		}
		name, _, inline := strings.Cut(arg, "=")
		switch {
		case awsValueOptions[name]:
			if !inline {
				index++
			}
		case awsSwitches[name]:
		default:
			return Block("aws option %s before the operation is not recognised", name)
		}
	}
	if len(positional) < 2 {
		return Allow()
	}

	service, operation := positional[0], positional[1]
	verb, _, _ := strings.Cut(strings.ToLower(operation), "-")
	if mutatingVerbs[verb] {
		return Block("aws %s %s is not permitted: %q operations modify infrastructure", service, operation, verb)
	}
	return Allow()
}

func joinKeys(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
