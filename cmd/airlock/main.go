// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/airlock/cmd/airlock/cli"
	"github.com/bureau-foundation/airlock/lib/clock"
	"github.com/bureau-foundation/airlock/lib/config"
	"github.com/bureau-foundation/airlock/session"
)

func main() {
	a := &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: cli.NewCommandLogger(),
		clock:  clock.Real(),
	}
	if err := a.root().Execute(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every command shares. Tests replace the streams
// and the container runtime.
type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer
	logger         *slog.Logger
	clock          clock.Clock

	// runtime overrides the docker CLI runtime.
	runtime session.Runtime

	configPath string
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:        "airlock",
		Description: "Run coding agents in network-isolated containers whose git, gh, terraform,\nkubectl, and aws calls are mediated by a host proxy.",
		HelpOutput:  a.stderr,
		Subcommands: []*cli.Command{
			a.launchCommand(),
			a.teardownCommand(),
			a.statusCommand(),
			a.tokenCommand(),
			a.auditCommand(),
			a.mcpCommand(),
			a.versionCommand(),
		},
	}
}

// configFlag adds --config to a command's flag set.
func (a *app) configFlag(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&a.configPath, "config", "", "path to config file (default: $"+config.EnvConfig+", else built-in defaults)")
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
