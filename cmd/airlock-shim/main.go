// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bureau-foundation/airlock/shim"
)

const binaryName = "airlock-shim"

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr, os.Getenv))
}

func run(argv []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) int {
	tool, args, err := parseInvocation(argv, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", binaryName, err)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		return shim.Render(stdout, stderr, tool, nil, fmt.Errorf("determining working directory: %w", err))
	}

	config := shim.ConfigFromEnv(getenv)
	client, err := shim.NewClient(config)
	if err != nil {
		return shim.Render(stdout, stderr, tool, nil, err)
	}
	defer client.Close()

	response, err := client.Run(context.Background(), tool, shim.Request{
		Args:          args,
		Cwd:           cwd,
		WorkspaceHash: config.WorkspaceHash,
	})
	return shim.Render(stdout, stderr, tool, response, err)
}

// parseInvocation determines the tool and its arguments from argv.
func parseInvocation(argv []string, stdin io.Reader) (string, []string, error) {
	if len(argv) == 0 {
		return "", nil, fmt.Errorf("empty argv")
	}
	name := filepath.Base(argv[0])
	if name != binaryName {
		return name, argv[1:], nil
	}

	rest := argv[1:]
	if len(rest) > 0 && rest[0] == "--null-args" {
		if len(rest) != 3 {
			return "", nil, fmt.Errorf("usage: %s --null-args <tool> <argc> < argv", binaryName)
		}
		argc, err := strconv.Atoi(rest[2])
		if err != nil {
			return "", nil, fmt.Errorf("argument count %q is not a number", rest[2])
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", nil, fmt.Errorf("reading arguments from stdin: %w", err)
		}
		args, err := shim.DecodeArgsCount(data, argc)
		if err != nil {
			return "", nil, err
		}
		return rest[1], args, nil
	}
	if len(rest) == 0 {
		return "", nil, fmt.Errorf("usage: %s <tool> [args...]", binaryName)
	}
	return rest[0], rest[1:], nil
}
