// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/symbolengine/serenad/internal/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the operational HTTP surface and the idle-server reaper",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8787", "address for the operational HTTP surface")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	application, err := buildApp(ctx, projectRoot)
	if err != nil {
		return err
	}
	defer application.close(context.Background())

	router := httpapi.NewRouter(application.registry)
	server := &http.Server{Addr: serveAddr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		application.logger.Info("operational HTTP surface listening", "addr", serveAddr, "project", projectRoot)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		application.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		application.logger.Warn("http server shutdown error", "error", err)
	}
	return application.registry.ShutdownActive(shutdownCtx)
}
