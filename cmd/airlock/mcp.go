// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/airlock/cmd/airlock/cli"
	"github.com/bureau-foundation/airlock/lib/sealed"
	"github.com/bureau-foundation/airlock/lib/secret"
	"github.com/bureau-foundation/airlock/proxy"
)

func (a *app) mcpCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp",
		Summary: "Inspect the MCP server registry and seal header values",
		Description: "MCP servers listed in the registry are reachable from the sandbox at\n" +
			"/mcp/<name>/ on the proxy. Header values written as age:<base64> are decrypted\n" +
			"with the host identity on each request and never enter the container.",
		Subcommands: []*cli.Command{
			a.mcpListCommand(),
			a.mcpKeygenCommand(),
			a.mcpSealCommand(),
		},
	}
}

// mcpListEntry is the --json shape of one registry entry. Header
// values are omitted.
type mcpListEntry struct {
	Name    string   `json:"name"`
	URL     string   `json:"url"`
	Headers []string `json:"headers"`
	Sealed  []string `json:"sealed"`
}

func (a *app) mcpListCommand() *cli.Command {
	var outputJSON bool
	return &cli.Command{
		Name:    "list",
		Summary: "List registered MCP servers",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			a.configFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			registry, err := proxy.LoadMCPRegistry(cfg.Paths.MCPRegistry)
			if err != nil {
				return err
			}

			entries := make([]mcpListEntry, 0, len(registry.Servers))
			for _, name := range registry.Names() {
				server := registry.Servers[name]
				entry := mcpListEntry{Name: name, URL: server.URL, Headers: []string{}, Sealed: []string{}}
				for header, value := range server.Headers {
					entry.Headers = append(entry.Headers, header)
					if sealed.IsSealed(value) {
						entry.Sealed = append(entry.Sealed, header)
					}
				}
				sort.Strings(entry.Headers)
				sort.Strings(entry.Sealed)
				entries = append(entries, entry)
			}

			if outputJSON {
				return cli.WriteJSON(a.stdout, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(a.stdout, "no MCP servers registered in %s\n", cfg.Paths.MCPRegistry)
				return nil
			}
			for _, entry := range entries {
				fmt.Fprintf(a.stdout, "%s\t%s", entry.Name, entry.URL)
				if len(entry.Headers) > 0 {
					labels := make([]string, len(entry.Headers))
					for index, header := range entry.Headers {
						labels[index] = header
						if contains(entry.Sealed, header) {
							labels[index] += " (sealed)"
						}
					}
					fmt.Fprintf(a.stdout, "\theaders: %s", strings.Join(labels, ", "))
				}
				fmt.Fprintln(a.stdout)
			}
			return nil
		},
	}
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func (a *app) mcpKeygenCommand() *cli.Command {
	var force bool
	return &cli.Command{
		Name:        "keygen",
		Summary:     "Create the host identity used to open sealed header values",
		Description: "Generate an age identity at paths.sealed_identity (mode 0600) and print its\npublic key. Values sealed to that key can only be opened on this host.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.BoolVar(&force, "force", false, "replace an existing identity (values sealed to it become unreadable)")
			a.configFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Paths.SealedIdentity
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to replace it)", path)
			}

			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return err
			}
			defer keypair.Close()

			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return fmt.Errorf("creating identity directory: %w", err)
			}
			header := fmt.Sprintf("# created: %s\n# public key: %s\n",
				a.clock.Now().UTC().Format("2006-01-02T15:04:05Z"), keypair.PublicKey)
			content := append([]byte(header), keypair.PrivateKey.Bytes()...)
			content = append(content, '\n')
			defer secret.Zero(content)
			if err := os.WriteFile(path, content, 0600); err != nil {
				return fmt.Errorf("writing identity: %w", err)
			}
			if err := os.Chmod(path, 0600); err != nil {
				return fmt.Errorf("restricting identity permissions: %w", err)
			}

			a.logger.Info("identity written", "path", path)
			fmt.Fprintln(a.stdout, keypair.PublicKey)
			return nil
		},
	}
}

func (a *app) mcpSealCommand() *cli.Command {
	var recipients []string
	return &cli.Command{
		Name:    "seal",
		Summary: "Encrypt a header value for the MCP registry",
		Usage:   "airlock mcp seal [flags] <value | ->",
		Examples: []cli.Example{
			{Description: "Seal a bearer token read from stdin", Command: "printf 'Bearer %s' \"$TOKEN\" | airlock mcp seal -"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flagSet.StringArrayVar(&recipients, "recipient", nil, "age1... recipient (default: the host identity's public key)")
			a.configFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("seal takes exactly one value (or - for stdin)")
			}
			value := args[0]
			if value == "-" {
				data, err := io.ReadAll(a.stdin)
				if err != nil {
					return fmt.Errorf("reading value from stdin: %w", err)
				}
				value = strings.TrimRight(string(data), "\r\n")
			}
			if value == "" {
				return fmt.Errorf("refusing to seal an empty value")
			}

			if len(recipients) == 0 {
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				identity, err := sealed.LoadIdentity(cfg.Paths.SealedIdentity)
				if err != nil {
					return fmt.Errorf("loading host identity (run 'airlock mcp keygen' first): %w", err)
				}
				publicKey, err := sealed.PublicKeyOf(identity)
				identity.Close()
				if err != nil {
					return err
				}
				recipients = []string{publicKey}
			}

			sealedValue, err := sealed.Seal(value, recipients)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, sealedValue)
			return nil
		},
	}
}
