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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/symbolengine/serenad/internal/cache"
	"github.com/symbolengine/serenad/internal/dispatch"
	"github.com/symbolengine/serenad/internal/editengine"
	"github.com/symbolengine/serenad/internal/lsproc"
	"github.com/symbolengine/serenad/internal/retriever"
	"github.com/symbolengine/serenad/internal/telemetry"
	"github.com/symbolengine/serenad/pkg/logging"
)

var (
	projectRoot string
	logLevel    string
	logJSON     bool
)

var rootCmd = &cobra.Command{
	Use:   "serenad",
	Short: "Language-server orchestration and symbol engine for coding agents",
	Long: `serenad orchestrates per-project Language Servers and exposes their
symbol-level view of a source tree (find, overview, reference, and
symbol-scoped edit operations) as a set of named tools.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project", ".", "project root to activate")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit stderr logs as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolCmd)
	rootCmd.AddCommand(statusCmd)
}

func parseLevel(name string) logging.Level {
	switch name {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// app bundles the components every subcommand needs, wired once against
// a single activated project root.
type app struct {
	logger     *logging.Logger
	cache      *cache.Cache
	registry   *lsproc.ProjectRegistry
	ops        *lsproc.Operations
	ret        *retriever.Retriever
	eng        *editengine.Engine
	tools      *dispatch.Registry
	telemetry  telemetry.Shutdown
}

// close releases every resource buildApp acquired, in reverse order.
func (a *app) close(ctx context.Context) {
	if a.registry != nil {
		_ = a.registry.ShutdownActive(ctx)
	}
	if a.telemetry != nil {
		a.telemetry(ctx)
	}
	a.logger.Close()
}

// buildApp activates root and wires the full component chain against it.
// Every subcommand that touches the LS fleet or the tool surface starts
// here so they observe one consistent view of the project.
func buildApp(ctx context.Context, root string) (*app, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	logger := logging.New(logging.Config{Level: parseLevel(logLevel), Service: "serenad", JSON: logJSON})

	telemetryShutdown, err := telemetry.Init(ctx, "serenad", logger.Slog())
	if err != nil {
		logger.Warn("telemetry init failed, continuing without it", "error", err)
		telemetryShutdown = func(context.Context) {}
	}

	configs := lsproc.NewConfigRegistry()
	registry := lsproc.NewProjectRegistry(lsproc.DefaultManagerConfig(), configs, logger.Slog())

	manager, err := registry.Activate(ctx, absRoot)
	if err != nil {
		return nil, fmt.Errorf("activating project %s: %w", absRoot, err)
	}

	c := cache.New(filepath.Join(absRoot, ".serena", "cache"), logger.Slog())
	ops := lsproc.NewOperations(manager)
	ret := retriever.New(ops, c)
	eng := editengine.New(ops, c)

	tools := dispatch.NewRegistry()
	dispatch.RegisterCoreTools(tools, ret, eng)

	return &app{logger: logger, cache: c, registry: registry, ops: ops, ret: ret, eng: eng, tools: tools, telemetry: telemetryShutdown}, nil
}
