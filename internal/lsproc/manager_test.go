// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsproc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	registry := NewConfigRegistry()
	registry.Register(LanguageConfig{
		Language:   "nolang",
		Command:    "definitely-not-a-real-language-server-binary",
		Extensions: []string{".nolang"},
	})
	return NewManager(t.TempDir(), DefaultManagerConfig(), registry, nil)
}

func TestManager_GetOrSpawn_NilContext(t *testing.T) {
	m := newTestManager(t)
	_, err := m.GetOrSpawn(nil, "nolang") //nolint:staticcheck
	require.Error(t, err)
}

func TestManager_GetOrSpawn_UnsupportedLanguage(t *testing.T) {
	m := newTestManager(t)
	_, err := m.GetOrSpawn(context.Background(), "not-registered")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestManager_GetOrSpawn_MissingBinary(t *testing.T) {
	m := newTestManager(t)
	_, err := m.GetOrSpawn(context.Background(), "nolang")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerNotInstalled)
}

func TestManager_Get_NilWhenNotRunning(t *testing.T) {
	m := newTestManager(t)
	assert.Nil(t, m.Get("nolang"))
}

func TestManager_Shutdown_NoopWhenNotRunning(t *testing.T) {
	m := newTestManager(t)
	assert.NoError(t, m.Shutdown(context.Background(), "nolang"))
}

func TestManager_ShutdownAll_IdempotentAndFailsFastAfter(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.ShutdownAll(context.Background()))
	require.NoError(t, m.ShutdownAll(context.Background()))

	_, err := m.GetOrSpawn(context.Background(), "nolang")
	assert.ErrorIs(t, err, ErrManagerStopped)
}

func TestManager_GetOrSpawn_ConcurrentCallsCoalesce(t *testing.T) {
	m := newTestManager(t)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = m.GetOrSpawn(context.Background(), "nolang")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrServerNotInstalled)
	}
}

func TestManager_GetOrSpawn_FailedServerNotRespawnedTransparently(t *testing.T) {
	m := newTestManager(t)
	crashed := NewServer(LanguageConfig{Language: "nolang", Command: "definitely-not-a-real-language-server-binary"}, m.rootPath, nil)
	crashed.setState(ServerStateFailed)
	m.serversMu.Lock()
	m.servers["nolang"] = crashed
	m.serversMu.Unlock()

	_, err := m.GetOrSpawn(context.Background(), "nolang")
	assert.ErrorIs(t, err, ErrServerDown)

	// Explicit reactivation: Shutdown clears the failed entry so the
	// next GetOrSpawn is free to attempt a fresh spawn again.
	require.NoError(t, m.Shutdown(context.Background(), "nolang"))
	_, err = m.GetOrSpawn(context.Background(), "nolang")
	assert.ErrorIs(t, err, ErrServerNotInstalled)
}

func TestManager_IsAvailable(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.IsAvailable("nolang"))
	assert.False(t, m.IsAvailable("not-registered"))
}

func TestManager_ReleaseFile_NoopWithoutRunningServer(t *testing.T) {
	m := newTestManager(t)
	assert.NoError(t, m.ReleaseFile(context.Background(), "nolang", "/tmp/a.nolang"))
	assert.NoError(t, m.ReopenFile(context.Background(), "nolang", "/tmp/a.nolang", "content"))
}

func TestManager_StartIdleMonitor_SafeWithZeroServers(t *testing.T) {
	registry := NewConfigRegistry()
	cfg := DefaultManagerConfig()
	cfg.IdleTimeout = 50 * time.Millisecond
	m := NewManager(t.TempDir(), cfg, registry, nil)
	m.StartIdleMonitor()
	time.Sleep(120 * time.Millisecond)
	assert.NoError(t, m.ShutdownAll(context.Background()))
}
