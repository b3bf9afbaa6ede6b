// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/symbolengine/serenad/internal/httpapi"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	rootStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the running Language Server fleet for the active project",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	application, err := buildApp(ctx, projectRoot)
	if err != nil {
		return err
	}
	defer application.close(ctx)

	resp := httpapi.BuildStatus(application.registry)
	out := cmd.OutOrStdout()

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(out, renderStatusTable(resp))
		return nil
	}
	fmt.Fprintln(out, renderStatusPlain(resp))
	return nil
}

func renderStatusTable(resp httpapi.StatusResponse) string {
	var b strings.Builder
	b.WriteString(rootStyle.Render("project: "+resp.ProjectRoot) + "\n")
	if len(resp.Languages) == 0 {
		b.WriteString(cellStyle.Render("no language servers running"))
		return b.String()
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s %-36s %-10s %s", "LANGUAGE", "ID", "STATE", "IDLE")) + "\n")
	for _, l := range resp.Languages {
		b.WriteString(cellStyle.Render(fmt.Sprintf("%-12s %-36s %-10s %s", l.Language, l.ID, l.State, l.IdleFor)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderStatusPlain(resp httpapi.StatusResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "project: %s\n", resp.ProjectRoot)
	if len(resp.Languages) == 0 {
		b.WriteString("no language servers running")
		return b.String()
	}
	fmt.Fprintf(&b, "%-12s %-36s %-10s %s\n", "LANGUAGE", "ID", "STATE", "IDLE")
	for _, l := range resp.Languages {
		fmt.Fprintf(&b, "%-12s %-36s %-10s %s\n", l.Language, l.ID, l.State, l.IdleFor)
	}
	return strings.TrimRight(b.String(), "\n")
}
