// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/airlock/cmd/airlock/cli"
	"github.com/bureau-foundation/airlock/proxy"
)

func (a *app) tokenCommand() *cli.Command {
	return &cli.Command{
		Name:    "token",
		Summary: "Manage the proxy bearer token",
		Subcommands: []*cli.Command{
			a.tokenGenerateCommand(),
			a.tokenPathCommand(),
		},
	}
}

func (a *app) tokenGenerateCommand() *cli.Command {
	var force bool
	return &cli.Command{
		Name:        "generate",
		Summary:     "Create the proxy token file",
		Description: "Generate a random 64-hex-character proxy token and write it with mode 0600.\nThe sandbox image must be rebuilt with the new token afterwards.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("generate", pflag.ContinueOnError)
			flagSet.BoolVar(&force, "force", false, "replace an existing token")
			a.configFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.Paths.TokenFile); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to replace it)", cfg.Paths.TokenFile)
			}
			token, err := proxy.GenerateToken()
			if err != nil {
				return err
			}
			if err := proxy.WriteTokenFile(cfg.Paths.TokenFile, token); err != nil {
				return err
			}
			a.logger.Info("proxy token written", "path", cfg.Paths.TokenFile)
			fmt.Fprintln(a.stdout, cfg.Paths.TokenFile)
			return nil
		},
	}
}

func (a *app) tokenPathCommand() *cli.Command {
	return &cli.Command{
		Name:    "path",
		Summary: "Print the proxy token file location",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("path", pflag.ContinueOnError)
			a.configFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, cfg.Paths.TokenFile)
			return nil
		},
	}
}
