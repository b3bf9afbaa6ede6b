// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retriever

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolengine/serenad/internal/lsproc"
	"github.com/symbolengine/serenad/internal/symbol"
)

func newTestRetriever(t *testing.T, root string) *Retriever {
	t.Helper()
	manager := lsproc.NewManager(root, lsproc.DefaultManagerConfig(), nil, nil)
	ops := lsproc.NewOperations(manager)
	return New(ops, nil)
}

func TestCandidateFiles_SingleFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0o644))

	r := newTestRetriever(t, dir)
	files, err := r.candidateFiles(file)
	require.NoError(t, err)
	assert.Equal(t, []string{file}, files)
}

func TestCandidateFiles_DirectoryFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	goFile := filepath.Join(dir, "main.go")
	txtFile := filepath.Join(dir, "README.txt")
	subdir := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(subdir, 0o755))
	subGoFile := filepath.Join(subdir, "helper.go")

	require.NoError(t, os.WriteFile(goFile, []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(txtFile, []byte("not code\n"), 0o644))
	require.NoError(t, os.WriteFile(subGoFile, []byte("package sub\n"), 0o644))

	r := newTestRetriever(t, dir)
	files, err := r.candidateFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{goFile, subGoFile}, files)
}

func TestCandidateFiles_MissingScope(t *testing.T) {
	r := newTestRetriever(t, t.TempDir())
	_, err := r.candidateFiles("/does/not/exist.go")
	assert.Error(t, err)
}

func TestFindByName_NilContext(t *testing.T) {
	r := newTestRetriever(t, t.TempDir())
	_, err := r.FindByName(nil, "Calc/add", t.TempDir(), symbol.FindOptions{}) //nolint:staticcheck
	assert.Error(t, err)
}

func TestFindReferencingSymbols_NilSymbol(t *testing.T) {
	r := newTestRetriever(t, t.TempDir())
	_, err := r.FindReferencingSymbols(context.Background(), nil, "a.go")
	assert.Error(t, err)
}

func TestGetOverview_NilContext(t *testing.T) {
	r := newTestRetriever(t, t.TempDir())
	_, err := r.GetOverview(nil, "a.go") //nolint:staticcheck
	assert.Error(t, err)
}
