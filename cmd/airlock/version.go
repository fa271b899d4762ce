// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/bureau-foundation/airlock/cmd/airlock/cli"
	"github.com/bureau-foundation/airlock/lib/version"
)

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Fprintf(a.stdout, "airlock %s\n", version.Full())
			return nil
		},
	}
}
