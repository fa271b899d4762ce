// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/airlock/cmd/airlock/cli"
	"github.com/bureau-foundation/airlock/lib/config"
	"github.com/bureau-foundation/airlock/session"
)

func (a *app) manager(cfg *config.Config) (*session.Manager, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	runtime := a.runtime
	if runtime == nil {
		runtime = session.DockerRuntime{Binary: cfg.Sandbox.DockerBinary}
	}
	return session.NewManager(session.Config{
		DataDir:         cfg.Paths.WorkspacesDir(),
		Image:           cfg.Sandbox.Image,
		Network:         cfg.Sandbox.Network,
		ProxyHost:       cfg.Sandbox.ProxyHost,
		ProxyURL:        "http://" + net.JoinHostPort(cfg.Sandbox.ProxyHost, cfg.Proxy.Port()),
		LegacyContainer: cfg.Sandbox.LegacyContainer,
		Runtime:         runtime,
		Clock:           a.clock,
		Logger:          a.logger,
	})
}

func (a *app) launchCommand() *cli.Command {
	var extras []string
	var outputJSON bool
	return &cli.Command{
		Name:    "launch",
		Summary: "Start or reuse the sandbox for a workspace",
		Description: "Start the sandbox container for a workspace directory, or reuse the running one.\n" +
			"A running sandbox whose extra directories differ from the requested set is recreated.",
		Usage: "airlock launch [flags] [workspace-dir]",
		Examples: []cli.Example{
			{Description: "Sandbox the current directory", Command: "airlock launch"},
			{Description: "Also mount a reference checkout at /extra/shared-modules", Command: "airlock launch ~/src/app --extra ~/src/shared-modules"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("launch", pflag.ContinueOnError)
			flagSet.StringArrayVar(&extras, "extra", nil, "additional host directory to mount under /extra/ (repeatable)")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			a.configFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("launch takes at most one workspace directory, got %d", len(args))
			}
			workspace := "."
			if len(args) == 1 {
				workspace = args[0]
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.Paths.TokenFile); errors.Is(err, os.ErrNotExist) {
				a.logger.Warn("proxy token missing, run 'airlock token generate' and rebuild the sandbox image", "path", cfg.Paths.TokenFile)
			}
			manager, err := a.manager(cfg)
			if err != nil {
				return err
			}

			launched, err := manager.Launch(context.Background(), session.LaunchRequest{Workspace: workspace, Extras: extras})
			if err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(a.stdout, launched)
			}
			fmt.Fprintf(a.stdout, "session %s %s\n", launched.Hash, launched.State)
			fmt.Fprintf(a.stdout, "  workspace  %s -> %s\n", launched.Workspace, session.WorkspaceTarget)
			for _, mount := range launched.Extras {
				fmt.Fprintf(a.stdout, "  extra      %s -> %s\n", mount.Source, mount.Target)
			}
			fmt.Fprintf(a.stdout, "  container  %s\n", launched.Container)
			fmt.Fprintf(a.stdout, "attach with: %s exec -it %s bash\n", cfg.Sandbox.DockerBinary, launched.Container)
			return nil
		},
	}
}

func (a *app) teardownCommand() *cli.Command {
	var hash string
	return &cli.Command{
		Name:        "teardown",
		Summary:     "Stop a workspace sandbox and delete its session data",
		Description: "Stop the sandbox for a workspace and delete its session directory. The path\nmapping is removed first, so the proxy stops translating paths for it at once.",
		Usage:       "airlock teardown [flags] [workspace-dir]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("teardown", pflag.ContinueOnError)
			flagSet.StringVar(&hash, "hash", "", "address the session by hash (see 'airlock status')")
			a.configFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 1 || (hash != "" && len(args) > 0) {
				return fmt.Errorf("teardown takes one workspace directory or --hash")
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			manager, err := a.manager(cfg)
			if err != nil {
				return err
			}

			var torn *session.Session
			if hash != "" {
				torn, err = manager.TeardownHash(context.Background(), hash)
			} else {
				workspace := "."
				if len(args) == 1 {
					workspace = args[0]
				}
				torn, err = manager.Teardown(context.Background(), workspace)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "session %s %s\n", torn.Hash, torn.State)
			return nil
		},
	}
}
