// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Airlock-shim runs inside the sandbox container, installed (or
// symlinked) as git, gh, terraform, kubectl, and aws. It sends argv and
// the working directory to airlock-proxy on the host and reproduces the
// tool's stdout, stderr, and exit status.
//
// Invocation forms:
//
//	git status                          (argv[0] names the tool)
//	airlock-shim git status
//	airlock-shim --null-args git 2      (2 arguments read NUL-terminated from stdin)
//
// The count keeps an empty argv distinct from one empty argument. A
// shell wrapper passes "$#":
//
//	printf '%s\0' "$@" | airlock-shim --null-args terraform "$#"
package main
