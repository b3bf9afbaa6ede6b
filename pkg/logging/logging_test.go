// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestLogger_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelInfo, LogDir: dir, Service: "testsvc", Quiet: true})
	defer logger.Close()

	logger.Info("hello world", "key", "value")

	entries, err := filepath.Glob(filepath.Join(dir, "testsvc_*.log"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(entries[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
	assert.Contains(t, string(data), `"service":"testsvc"`)
}

func TestLogger_Quiet_NoStderrHandlerButFileStillWrites(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "quiet", Quiet: true})
	defer logger.Close()

	logger.Warn("careful")

	entries, err := filepath.Glob(filepath.Join(dir, "quiet_*.log"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLogger_With_AddsAttributesWithoutMutatingParent(t *testing.T) {
	dir := t.TempDir()
	parent := New(Config{LogDir: dir, Service: "withtest", Quiet: true})
	defer parent.Close()

	child := parent.With("request_id", "abc123")
	child.Info("scoped message")

	entries, err := filepath.Glob(filepath.Join(dir, "withtest_*.log"))
	require.NoError(t, err)
	data, err := os.ReadFile(entries[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "request_id")
	assert.Contains(t, string(data), "abc123")
}

func TestLogger_ExporterReceivesEntriesAboveConfiguredLevel(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelWarn, Quiet: true, Exporter: exporter})
	defer logger.Close()

	logger.Info("should not export")
	logger.Error("should export")

	require.Eventually(t, func() bool {
		return len(exporter.Entries()) == 1
	}, time.Second, 5*time.Millisecond)

	entries := exporter.Entries()
	assert.Equal(t, "should export", entries[0].Message)
	assert.Equal(t, LevelError, entries[0].Level)
}

func TestWriterExporter_FormatsEntry(t *testing.T) {
	var buf byteBuffer
	exporter := NewWriterExporter(&buf)
	err := exporter.Export(nil, LogEntry{Timestamp: time.Unix(0, 0), Level: LevelInfo, Message: "m", Attrs: map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "m")
	assert.Contains(t, buf.String(), "INFO")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".serenad/logs"), expandPath("~/.serenad/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
}

func TestArgsToMap(t *testing.T) {
	m := argsToMap([]any{"a", 1, "b", "two"})
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, m)
}

func TestNopExporter_DiscardsSilently(t *testing.T) {
	n := &NopExporter{}
	assert.NoError(t, n.Export(nil, LogEntry{}))
	assert.NoError(t, n.Flush(nil))
	assert.NoError(t, n.Close())
}

// byteBuffer is a tiny io.Writer so this test file doesn't need "bytes"
// just to exercise WriterExporter.
type byteBuffer struct{ data []byte }

func (b *byteBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *byteBuffer) String() string { return string(b.data) }
