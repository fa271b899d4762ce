// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/airlock/cmd/airlock/cli"
	"github.com/bureau-foundation/airlock/proxy"
)

func (a *app) auditCommand() *cli.Command {
	var limit int
	var outputJSON bool
	return &cli.Command{
		Name:    "audit",
		Summary: "Show recent proxied commands",
		Examples: []cli.Example{
			{Description: "Last 50 requests, rotated segments included", Command: "airlock audit --limit 50"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("audit", pflag.ContinueOnError)
			flagSet.IntVarP(&limit, "limit", "n", 20, "number of records to show (0 for all)")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			a.configFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("audit takes no arguments")
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			records, err := proxy.ReadAudit(cfg.Paths.AuditLog, limit)
			if err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(a.stdout, records)
			}
			for _, record := range records {
				writeAuditLine(a.stdout, record)
			}
			return nil
		},
	}
}

// writeAuditLine prints one record. Arguments came from the sandbox,
// so terminal escape sequences are stripped before printing.
func writeAuditLine(w io.Writer, record proxy.AuditRecord) {
	args := make([]string, len(record.Args))
	for index, arg := range record.Args {
		arg = ansi.Strip(arg)
		if arg == "" || strings.ContainsAny(arg, " \t\n\"'") {
			arg = strconv.Quote(arg)
		}
		args[index] = arg
	}

	var outcome string
	switch {
	case record.Blocked:
		outcome = "blocked: " + ansi.Strip(record.Reason)
	case record.Error != "":
		outcome = fmt.Sprintf("exit=%d error: %s", record.ExitCode, ansi.Strip(record.Error))
	default:
		outcome = fmt.Sprintf("exit=%d", record.ExitCode)
	}

	fmt.Fprintf(w, "%s  %-9s %s  [%s, %dms]\n",
		record.Time.UTC().Format("2006-01-02T15:04:05Z"),
		record.Tool,
		strings.Join(args, " "),
		outcome,
		record.DurationMS,
	)
}
