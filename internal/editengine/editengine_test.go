// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package editengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolengine/serenad/internal/lspwire"
	"github.com/symbolengine/serenad/internal/lsproc"
	"github.com/symbolengine/serenad/internal/symbol"
)

func newTestEngine(t *testing.T, root string) *Engine {
	t.Helper()
	manager := lsproc.NewManager(root, lsproc.DefaultManagerConfig(), nil, nil)
	ops := lsproc.NewOperations(manager)
	return New(ops, nil)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func symbolAt(path string, startLine, startCol, endLine, endCol int) *symbol.Symbol {
	r := lspwire.Range{
		Start: lspwire.Position{Line: startLine, Character: startCol},
		End:   lspwire.Position{Line: endLine, Character: endCol},
	}
	s := &symbol.Symbol{Name: "add", Kind: symbol.KindFunction, Range: r, SelectionRange: r}
	symbol.NewTree(path, []*symbol.Symbol{s})
	return s
}

func TestReplaceBody_RewritesRangeAndPreservesRest(t *testing.T) {
	dir := t.TempDir()
	content := "def add(a, b):\n    return a + b\n\ndef sub(a, b):\n    return a - b\n"
	path := writeFile(t, dir, "calc.py", content)

	sym := symbolAt(path, 0, 0, 1, len("    return a + b"))

	e := newTestEngine(t, dir)
	result, err := e.ReplaceBody(context.Background(), sym, "def add(a, b):\n    return a + b + 0", "")
	require.NoError(t, err)
	assert.Equal(t, path, result.Path)
	assert.NotEmpty(t, result.Diff)

	updated, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(updated), "a + b + 0")
	assert.Contains(t, string(updated), "def sub(a, b):")
}

func TestReplaceBody_ConflictOnHashMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "calc.py", "def add(a, b):\n    return a + b\n")
	sym := symbolAt(path, 0, 0, 1, 17)

	e := newTestEngine(t, dir)
	_, err := e.ReplaceBody(context.Background(), sym, "def add(a, b):\n    return 0\n", "not-the-real-hash")
	assert.ErrorIs(t, err, ErrEditConflict)
}

func TestInsertBefore_InsertsAtRangeStart(t *testing.T) {
	dir := t.TempDir()
	content := "def add(a, b):\n    return a + b\n"
	path := writeFile(t, dir, "calc.py", content)
	sym := symbolAt(path, 0, 0, 1, 17)

	e := newTestEngine(t, dir)
	_, err := e.InsertBefore(context.Background(), sym, "# a comment\n", "")
	require.NoError(t, err)

	updated, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# a comment\ndef add(a, b):\n    return a + b\n", string(updated))
}

func TestInsertAfter_InsertsAtRangeEnd(t *testing.T) {
	dir := t.TempDir()
	content := "def add(a, b):\n    return a + b"
	path := writeFile(t, dir, "calc.py", content)
	sym := symbolAt(path, 0, 0, 1, len("    return a + b"))

	e := newTestEngine(t, dir)
	_, err := e.InsertAfter(context.Background(), sym, "\n\ndef sub(a, b):\n    return a - b", "")
	require.NoError(t, err)

	updated, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(updated), "def sub(a, b):")
}

func TestReplaceRange_SingleLine(t *testing.T) {
	content := "hello world\n"
	r := lspwire.Range{Start: lspwire.Position{Line: 0, Character: 6}, End: lspwire.Position{Line: 0, Character: 11}}
	out := replaceRange(content, r, "there")
	assert.Equal(t, "hello there\n", out)
}

func TestGenerateUnifiedDiff_EmptyWhenNoChange(t *testing.T) {
	diff, err := generateUnifiedDiff("a.py", "same\n", "same\n")
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestGenerateUnifiedDiff_ReportsAddedLine(t *testing.T) {
	diff, err := generateUnifiedDiff("a.py", "one\ntwo\n", "one\ntwo\nthree\n")
	require.NoError(t, err)
	assert.Contains(t, diff, "+three")
}
