// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsproc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Start_NilContext(t *testing.T) {
	s := NewServer(LanguageConfig{Language: "go", Command: "gopls"}, t.TempDir(), nil)
	err := s.Start(nil) //nolint:staticcheck
	require.Error(t, err)
}

func TestServer_Start_MissingBinary(t *testing.T) {
	s := NewServer(LanguageConfig{Language: "nolang", Command: "definitely-not-a-real-binary"}, t.TempDir(), nil)
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerNotInstalled)
	assert.Equal(t, ServerStateFailed, s.State())
}

func TestServer_Start_Twice_Rejected(t *testing.T) {
	s := NewServer(LanguageConfig{Language: "nolang", Command: "definitely-not-a-real-binary"}, t.TempDir(), nil)
	_ = s.Start(context.Background())

	// The failed first Start leaves the server Failed, not Uninitialized,
	// so a second Start is rejected with ErrServerAlreadyStarted.
	assert.Equal(t, ServerStateFailed, s.State())
	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrServerAlreadyStarted)
}

func TestServer_Request_RequiresReadyState(t *testing.T) {
	s := NewServer(LanguageConfig{Language: "go", Command: "gopls"}, t.TempDir(), nil)
	_, err := s.Request(context.Background(), "textDocument/hover", nil)
	assert.ErrorIs(t, err, ErrServerNotRunning)
}

func TestServer_WatchProcessDeath_TransitionsReadyToFailed(t *testing.T) {
	s := NewServer(LanguageConfig{Language: "go", Command: "gopls"}, t.TempDir(), nil)
	s.readDone = make(chan struct{})
	s.setState(ServerStateReady)
	close(s.readDone)

	s.watchProcessDeath()

	assert.Equal(t, ServerStateFailed, s.State())
	_, err := s.Request(context.Background(), "textDocument/hover", nil)
	assert.ErrorIs(t, err, ErrServerDown)
}

func TestServer_WatchProcessDeath_IgnoresDeliberateShutdown(t *testing.T) {
	s := NewServer(LanguageConfig{Language: "go", Command: "gopls"}, t.TempDir(), nil)
	s.readDone = make(chan struct{})
	s.setState(ServerStateStopping)
	close(s.readDone)

	s.watchProcessDeath()

	assert.Equal(t, ServerStateStopping, s.State())
}

func TestServer_ID_IsStablePerInstance(t *testing.T) {
	s1 := NewServer(LanguageConfig{Language: "go", Command: "gopls"}, t.TempDir(), nil)
	s2 := NewServer(LanguageConfig{Language: "go", Command: "gopls"}, t.TempDir(), nil)
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, s1.ID(), s1.ID())
}

func TestHashContent_DeterministicAndSensitive(t *testing.T) {
	h1 := hashContent("package main\n")
	h2 := hashContent("package main\n")
	h3 := hashContent("package main\n\n")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestPathToURI_RoundTrip(t *testing.T) {
	uri := pathToURI("/tmp/a/b.go")
	assert.Equal(t, "/tmp/a/b.go", uriToPath(uri))
}
