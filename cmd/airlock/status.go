// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/airlock/cmd/airlock/cli"
	"github.com/bureau-foundation/airlock/session"
)

func (a *app) statusCommand() *cli.Command {
	var outputJSON bool
	return &cli.Command{
		Name:    "status",
		Summary: "List workspace sessions and their containers",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			a.configFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("status takes no arguments")
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			manager, err := a.manager(cfg)
			if err != nil {
				return err
			}
			sessions, err := manager.List(context.Background())
			if err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(a.stdout, sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(a.stdout, "no sessions")
				return nil
			}
			renderSessions(a.stdout, sessions, colorProfile(a.stdout))
			return nil
		},
	}
}

// colorProfile returns ANSI256 for a terminal that has not asked for
// NO_COLOR, and plain ASCII otherwise.
func colorProfile(w io.Writer) termenv.Profile {
	file, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) || termenv.EnvNoColor() {
		return termenv.Ascii
	}
	return termenv.ANSI256
}

// renderSessions writes sessions as an aligned table. Column widths
// are measured on the unstyled text and padding is added outside the
// styling, so escape sequences never count toward alignment.
func renderSessions(w io.Writer, sessions []session.Session, profile termenv.Profile) {
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)

	plain := renderer.NewStyle()
	header := renderer.NewStyle().Bold(true)
	stateStyles := map[session.State]lipgloss.Style{
		session.StateRunning: renderer.NewStyle().Foreground(lipgloss.Color("2")),
		session.StateStopped: renderer.NewStyle().Foreground(lipgloss.Color("3")),
		session.StateAbsent:  renderer.NewStyle().Foreground(lipgloss.Color("8")),
	}

	type cell struct {
		text  string
		style lipgloss.Style
	}
	rows := [][]cell{{
		{"HASH", header}, {"STATE", header}, {"WORKSPACE", header}, {"EXTRAS", header}, {"CREATED", header},
	}}
	for _, entry := range sessions {
		stateStyle, ok := stateStyles[entry.State]
		if !ok {
			stateStyle = plain
		}
		targets := make([]string, 0, len(entry.Extras))
		for _, mount := range entry.Extras {
			targets = append(targets, mount.Target)
		}
		extras := "-"
		if len(targets) > 0 {
			extras = strings.Join(targets, ",")
		}
		rows = append(rows, []cell{
			{entry.Hash, plain},
			{entry.State.String(), stateStyle},
			{entry.Workspace, plain},
			{extras, plain},
			{entry.CreatedAt.Local().Format("2006-01-02 15:04"), plain},
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for column, c := range row {
			widths[column] = max(widths[column], lipgloss.Width(c.text))
		}
	}

	const gap = 2
	for _, row := range rows {
		var line strings.Builder
		for column, c := range row {
			line.WriteString(c.style.Render(c.text))
			if column < len(row)-1 {
				line.WriteString(strings.Repeat(" ", widths[column]-lipgloss.Width(c.text)+gap))
			}
		}
		fmt.Fprintln(w, line.String())
	}
}
