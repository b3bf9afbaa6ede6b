// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsproc

import (
	"context"
	"log/slog"
	"sync"
)

// ProjectRegistry owns the single currently-active Manager for a
// running serenad instance. Activation is idempotent (§4.5):
// reactivating the already-active root is a no-op, while activating a
// different root first tears down the previous Manager's entire LS
// fleet before the new one spawns anything.
type ProjectRegistry struct {
	config  ManagerConfig
	configs *ConfigRegistry
	logger  *slog.Logger

	mu      sync.Mutex
	active  *Manager
	rootDir string
}

func NewProjectRegistry(config ManagerConfig, configs *ConfigRegistry, logger *slog.Logger) *ProjectRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectRegistry{config: config, configs: configs, logger: logger}
}

// Activate returns the Manager for rootPath. If rootPath is already the
// active project, the existing Manager is returned unchanged. Otherwise
// the previous Manager (if any) is fully shut down before a new one is
// constructed and started as the active project.
func (p *ProjectRegistry) Activate(ctx context.Context, rootPath string) (*Manager, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil && p.rootDir == rootPath {
		return p.active, nil
	}

	if p.active != nil {
		if err := p.active.ShutdownAll(ctx); err != nil {
			p.logger.Warn("error shutting down previous project", slog.String("root", p.rootDir), slog.Any("error", err))
		}
	}

	manager := NewManager(rootPath, p.config, p.configs, p.logger)
	manager.StartIdleMonitor()
	p.active = manager
	p.rootDir = rootPath
	return manager, nil
}

// Active returns the currently-active Manager, or nil if no project has
// been activated yet.
func (p *ProjectRegistry) Active() *Manager {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// ActiveRoot returns the currently-active project root, or "" if none.
func (p *ProjectRegistry) ActiveRoot() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rootDir
}

// ShutdownActive tears down the active project's Manager, if any, and
// clears the active slot.
func (p *ProjectRegistry) ShutdownActive(ctx context.Context) error {
	p.mu.Lock()
	manager := p.active
	p.active = nil
	p.rootDir = ""
	p.mu.Unlock()

	if manager == nil {
		return nil
	}
	return manager.ShutdownAll(ctx)
}
