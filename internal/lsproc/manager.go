// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsproc

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ManagerConfig tunes the Manager's timeouts.
type ManagerConfig struct {
	IdleTimeout    time.Duration
	StartupTimeout time.Duration
	RequestTimeout time.Duration
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleTimeout:    10 * time.Minute,
		StartupTimeout: 30 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// Manager owns every Language Server spawned for one project root,
// keyed by language. A project's LS fleet is lazily populated: the
// first request for a language spawns its server; concurrent first
// requests for the same language coalesce onto one spawn.
type Manager struct {
	config   ManagerConfig
	rootPath string
	configs  *ConfigRegistry
	logger   *slog.Logger

	serversMu sync.RWMutex
	servers   map[string]*Server

	spawnGroup singleflight.Group

	stopped  chan struct{}
	stopOnce sync.Once
}

func NewManager(rootPath string, config ManagerConfig, configs *ConfigRegistry, logger *slog.Logger) *Manager {
	if configs == nil {
		configs = NewConfigRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		config:   config,
		rootPath: rootPath,
		configs:  configs,
		logger:   logger,
		servers:  make(map[string]*Server),
		stopped:  make(chan struct{}),
	}
}

// GetOrSpawn returns the Ready server for language, spawning it lazily
// on first use. Concurrent first-request callers for the same language
// coalesce onto a single singleflight.Group.Do call.
//
// A server that has crashed (state Failed) is never respawned
// transparently: GetOrSpawn returns ErrServerDown for it instead, per
// the no-auto-restart policy. Recovery requires an explicit Shutdown of
// that language (or reactivating the project), after which the next
// GetOrSpawn spawns a fresh instance.
func (m *Manager) GetOrSpawn(ctx context.Context, language string) (*Server, error) {
	if ctx == nil {
		return nil, fmt.Errorf("lsproc: ctx must not be nil")
	}
	select {
	case <-m.stopped:
		return nil, ErrManagerStopped
	default:
	}

	if server := m.Get(language); server != nil {
		return server, nil
	}
	if m.isFailed(language) {
		return nil, ErrServerDown
	}

	result, err, _ := m.spawnGroup.Do(language, func() (interface{}, error) {
		if server := m.Get(language); server != nil {
			return server, nil
		}
		if m.isFailed(language) {
			return nil, ErrServerDown
		}

		m.serversMu.Lock()
		if stale, ok := m.servers[language]; ok && stale.State() == ServerStateStopped {
			delete(m.servers, language)
		}
		m.serversMu.Unlock()

		config, ok := m.configs.Get(language)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
		}

		server := NewServer(config, m.rootPath, m.logger)
		startCtx := ctx
		if m.config.StartupTimeout > 0 {
			var cancel context.CancelFunc
			startCtx, cancel = context.WithTimeout(ctx, m.config.StartupTimeout)
			defer cancel()
		}
		if err := server.Start(startCtx); err != nil {
			return nil, err
		}

		m.serversMu.Lock()
		m.servers[language] = server
		m.serversMu.Unlock()
		return server, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Server), nil
}

// isFailed reports whether language's tracked server exists and has
// crashed, without promoting it to Ready the way Get does.
func (m *Manager) isFailed(language string) bool {
	m.serversMu.RLock()
	defer m.serversMu.RUnlock()
	server, ok := m.servers[language]
	return ok && server.State() == ServerStateFailed
}

// Get returns the Ready server for language, or nil if none is running.
func (m *Manager) Get(language string) *Server {
	m.serversMu.RLock()
	defer m.serversMu.RUnlock()
	server, ok := m.servers[language]
	if ok && server.State() == ServerStateReady {
		return server
	}
	return nil
}

// Shutdown stops and removes the server for language, if running.
func (m *Manager) Shutdown(ctx context.Context, language string) error {
	m.serversMu.Lock()
	server, ok := m.servers[language]
	if ok {
		delete(m.servers, language)
	}
	m.serversMu.Unlock()
	if !ok {
		return nil
	}
	return server.Shutdown(ctx)
}

// ShutdownAll stops every running server and marks the manager stopped;
// GetOrSpawn fails fast after this call. Safe to call more than once.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopped) })

	m.serversMu.Lock()
	snapshot := m.servers
	m.servers = make(map[string]*Server)
	m.serversMu.Unlock()

	var lastErr error
	for lang, server := range snapshot {
		if err := server.Shutdown(ctx); err != nil {
			m.logger.Warn("error shutting down language server", slog.String("language", lang), slog.Any("error", err))
			lastErr = err
		}
	}
	return lastErr
}

// IsAvailable reports whether language's configured command is on PATH.
func (m *Manager) IsAvailable(language string) bool {
	config, ok := m.configs.Get(language)
	if !ok {
		return false
	}
	_, err := exec.LookPath(config.Command)
	return err == nil
}

// RunningServers lists languages with a currently Ready server.
func (m *Manager) RunningServers() []string {
	m.serversMu.RLock()
	defer m.serversMu.RUnlock()
	out := make([]string, 0, len(m.servers))
	for lang, server := range m.servers {
		if server.State() == ServerStateReady {
			out = append(out, lang)
		}
	}
	return out
}

func (m *Manager) Config() ManagerConfig    { return m.config }
func (m *Manager) RootPath() string         { return m.rootPath }
func (m *Manager) Configs() *ConfigRegistry { return m.configs }

// ServerStatus is a point-in-time snapshot of one fleet entry, for
// introspection surfaces (the operational HTTP API, the status CLI
// command) that need more than just the list of running languages.
type ServerStatus struct {
	Language string
	ID       uuid.UUID
	State    ServerState
	LastUsed time.Time
}

// Snapshot lists every server the Manager currently tracks, regardless
// of state, for display purposes.
func (m *Manager) Snapshot() []ServerStatus {
	m.serversMu.RLock()
	defer m.serversMu.RUnlock()
	out := make([]ServerStatus, 0, len(m.servers))
	for lang, server := range m.servers {
		out = append(out, ServerStatus{
			Language: lang,
			ID:       server.ID(),
			State:    server.State(),
			LastUsed: server.LastUsed(),
		})
	}
	return out
}

// ReleaseFile closes path on its owning server, if one is running. A
// no-op when no server handles language.
func (m *Manager) ReleaseFile(ctx context.Context, language, path string) error {
	if ctx == nil {
		return fmt.Errorf("lsproc: ctx must not be nil")
	}
	server := m.Get(language)
	if server == nil {
		return nil
	}
	return server.ReleaseFile(ctx, path)
}

// ReopenFile force-closes then reopens path at content on its owning
// server. A no-op when no server handles language.
func (m *Manager) ReopenFile(ctx context.Context, language, path, content string) error {
	if ctx == nil {
		return fmt.Errorf("lsproc: ctx must not be nil")
	}
	server := m.Get(language)
	if server == nil {
		return nil
	}
	return server.ReopenFile(ctx, path, content)
}

// StartIdleMonitor launches a background goroutine that shuts down
// servers idle longer than IdleTimeout. A no-op if IdleTimeout <= 0.
func (m *Manager) StartIdleMonitor() {
	if m.config.IdleTimeout <= 0 {
		return
	}
	interval := m.config.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopped:
				return
			case <-ticker.C:
				m.shutdownIdle()
			}
		}
	}()
}

func (m *Manager) shutdownIdle() {
	m.serversMu.RLock()
	var toShutdown []string
	for lang, server := range m.servers {
		if server.State() == ServerStateReady && time.Since(server.LastUsed()) > m.config.IdleTimeout {
			toShutdown = append(toShutdown, lang)
		}
	}
	m.serversMu.RUnlock()

	for _, lang := range toShutdown {
		m.logger.Info("shutting down idle language server", slog.String("language", lang))
		_ = m.Shutdown(context.Background(), lang)
	}
}
