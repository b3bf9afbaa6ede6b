// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/symbolengine/serenad/internal/dispatch"
)

var toolParams string

var toolCmd = &cobra.Command{
	Use:   "tool <name>",
	Short: "Invoke a single registered tool from the shell",
	Long:  "Invokes a tool by name with JSON params (from --params, or stdin if omitted) for scripting and manual debugging, bypassing the tool-call server.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTool,
}

func init() {
	toolCmd.Flags().StringVar(&toolParams, "params", "", "JSON object of tool parameters; reads stdin if empty")
}

func runTool(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := args[0]

	application, err := buildApp(ctx, projectRoot)
	if err != nil {
		return err
	}
	defer application.close(ctx)

	raw := []byte(toolParams)
	if len(raw) == 0 {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading params from stdin: %w", err)
		}
	}

	dispatcher := dispatch.NewDispatcher(application.tools)
	result := dispatcher.Invoke(ctx, name, raw)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if !result.OK {
		return fmt.Errorf("tool %s failed: %s", name, result.Message)
	}
	return nil
}
