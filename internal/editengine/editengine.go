// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package editengine executes symbol-scoped edits against files on
// disk (C7): replace a symbol's body, insert text adjacent to it, or
// apply a rename's WorkspaceEdit. Every edit is atomic per file (buffer
// rewrite, temp file, rename into place) and keeps the owning Language
// Server's view of the file in sync via didChange.
package editengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/symbolengine/serenad/internal/cache"
	"github.com/symbolengine/serenad/internal/lspwire"
	"github.com/symbolengine/serenad/internal/lsproc"
	"github.com/symbolengine/serenad/internal/symbol"
)

// ErrEditConflict is returned when the file on disk no longer matches
// the content hash the caller resolved its symbol against.
var ErrEditConflict = errors.New("editengine: file changed on disk since symbol was resolved")

// EditResult is what a successful single-file edit returns: enough for
// a caller to see what happened without re-reading the file.
type EditResult struct {
	Path        string
	OldContentHash string
	NewContentHash string
	Diff        string
}

// Engine applies symbol-scoped mutations. One Engine is shared across a
// project; per-file mutexes serialize concurrent edits to the same
// file without blocking edits to unrelated files.
type Engine struct {
	ops   *lsproc.Operations
	cache *cache.Cache

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(ops *lsproc.Operations, c *cache.Cache) *Engine {
	return &Engine{ops: ops, cache: c, locks: make(map[string]*sync.Mutex)}
}

func (e *Engine) lockFor(path string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	lock, ok := e.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[path] = lock
	}
	return lock
}

// ReplaceBody atomically replaces sym's range in its owning file with
// newText, written verbatim (callers own indentation). expectedHash, if
// non-empty, must match the file's current content hash or the edit is
// refused with ErrEditConflict rather than silently clobbering an
// intervening change.
func (e *Engine) ReplaceBody(ctx context.Context, sym *symbol.Symbol, newText, expectedHash string) (*EditResult, error) {
	return e.apply(ctx, sym.FileOf(), expectedHash, func(content string) string {
		return replaceRange(content, sym.Range, newText)
	})
}

// InsertBefore inserts text immediately before sym's range, with no
// reflow of surrounding content.
func (e *Engine) InsertBefore(ctx context.Context, sym *symbol.Symbol, text, expectedHash string) (*EditResult, error) {
	zero := lspwire.Range{Start: sym.Range.Start, End: sym.Range.Start}
	return e.apply(ctx, sym.FileOf(), expectedHash, func(content string) string {
		return replaceRange(content, zero, text)
	})
}

// InsertAfter inserts text immediately after sym's range.
func (e *Engine) InsertAfter(ctx context.Context, sym *symbol.Symbol, text, expectedHash string) (*EditResult, error) {
	zero := lspwire.Range{Start: sym.Range.End, End: sym.Range.End}
	return e.apply(ctx, sym.FileOf(), expectedHash, func(content string) string {
		return replaceRange(content, zero, text)
	})
}

// apply is the shared atomic-write/resync/cache-invalidate path for the
// three single-file mutation kinds above.
func (e *Engine) apply(ctx context.Context, path, expectedHash string, transform func(string) string) (*EditResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("editengine: ctx must not be nil")
	}
	lock := e.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("editengine: read %s: %w", path, err)
	}
	oldContent := string(raw)
	oldHash := lsproc.HashContent(oldContent)
	if expectedHash != "" && oldHash != expectedHash {
		return nil, fmt.Errorf("%w: %s", ErrEditConflict, path)
	}

	newContent := transform(oldContent)
	if err := atomicWrite(path, newContent); err != nil {
		return nil, err
	}
	newHash := lsproc.HashContent(newContent)

	if err := e.resync(ctx, path, newContent); err != nil {
		return nil, err
	}
	if e.cache != nil {
		_ = e.cache.Evict(path)
	}

	diff, err := generateUnifiedDiff(path, oldContent, newContent)
	if err != nil {
		diff = ""
	}
	return &EditResult{Path: path, OldContentHash: oldHash, NewContentHash: newHash, Diff: diff}, nil
}

// resync tells the owning Language Server about a file's new content.
// It is a no-op if no server for the file's language is currently
// running: the next request that touches the file will open it fresh
// at the new content, which satisfies the same invariant.
func (e *Engine) resync(ctx context.Context, path, content string) error {
	manager := e.ops.Manager()
	language, ok := manager.Configs().LanguageForPath(path)
	if !ok {
		return nil
	}
	server := manager.Get(language)
	if server == nil {
		return nil
	}
	_, _, err := server.EnsureOpen(ctx, path, content)
	return err
}

func atomicWrite(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".editengine-*")
	if err != nil {
		return fmt.Errorf("editengine: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("editengine: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("editengine: close temp file: %w", err)
	}
	info, statErr := os.Stat(path)
	if statErr == nil {
		os.Chmod(tmpPath, info.Mode())
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("editengine: rename into place: %w", err)
	}
	return nil
}

// replaceRange substitutes replacement for the byte span r covers in
// content, using the same line/column slicing discipline as
// symbol.PopulateBodyText so an edit's coordinates agree with the
// BodyText a caller read sym.Range against.
func replaceRange(content string, r lspwire.Range, replacement string) string {
	lines := splitLinesKeepEnds(content)
	if r.Start.Line < 0 || r.Start.Line >= len(lines) || r.End.Line < 0 || r.End.Line >= len(lines) {
		return content
	}
	before := joinLines(lines[:r.Start.Line])
	startLine := lines[r.Start.Line]
	startCol := clampInt(r.Start.Character, 0, len(startLine))
	before += startLine[:startCol]

	endLine := lines[r.End.Line]
	endCol := clampInt(r.End.Character, 0, len(endLine))
	after := endLine[endCol:]
	if r.End.Line+1 < len(lines) {
		after += joinLines(lines[r.End.Line+1:])
	}

	return before + replacement + after
}

func splitLinesKeepEnds(content string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i+1])
			start = i + 1
		}
	}
	lines = append(lines, content[start:])
	return lines
}

func joinLines(lines []string) string {
	var out string
	for _, l := range lines {
		out += l
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RenameResult reports a rename's outcome across every file the
// WorkspaceEdit touched.
type RenameResult struct {
	Summary lsproc.WorkspaceEditSummary
	Diffs   map[string]string

	// Written lists files successfully rewritten, in application order.
	Written []string
	// FailedFile is set when application halted partway through; Written
	// enumerates what landed before the failure.
	FailedFile string
}

// Rename asks the owning Language Server for a WorkspaceEdit at sym's
// selection range, validates and summarizes it, then applies every
// file's edits in reverse document order (so earlier edits in the same
// file don't shift later ones' coordinates) across files in
// deterministic lexical order. On the first file that fails to apply,
// application halts; files already written are not rolled back.
func (e *Engine) Rename(ctx context.Context, sym *symbol.Symbol, newName, ownerPath string) (*RenameResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("editengine: ctx must not be nil")
	}
	start := sym.SelectionRange.Start
	edit, err := e.ops.Rename(ctx, ownerPath, start.Line+1, start.Character, newName)
	if err != nil {
		return nil, err
	}
	if err := lsproc.ValidateWorkspaceEdit(edit); err != nil {
		return nil, err
	}

	perFile := collectEditsByPath(e.ops, edit)
	paths := make([]string, 0, len(perFile))
	for p := range perFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	result := &RenameResult{
		Summary: lsproc.SummarizeWorkspaceEdit(edit),
		Diffs:   make(map[string]string),
	}
	for _, path := range paths {
		edits := perFile[path]
		sort.Slice(edits, func(i, j int) bool {
			return rangeAfter(edits[i].Range, edits[j].Range)
		})

		editResult, err := e.applyFileEdits(ctx, path, edits)
		if err != nil {
			result.FailedFile = path
			return result, fmt.Errorf("editengine: applying rename to %s: %w", path, err)
		}
		result.Written = append(result.Written, path)
		result.Diffs[path] = editResult.Diff
	}
	return result, nil
}

func collectEditsByPath(ops *lsproc.Operations, edit *lspwire.WorkspaceEdit) map[string][]lspwire.TextEdit {
	out := make(map[string][]lspwire.TextEdit)
	for uri, edits := range edit.Changes {
		path := ops.URIToPath(uri)
		out[path] = append(out[path], edits...)
	}
	for _, dc := range edit.DocumentChanges {
		path := ops.URIToPath(dc.TextDocument.URI)
		out[path] = append(out[path], dc.Edits...)
	}
	return out
}

// rangeAfter orders two ranges so that the later range in the document
// sorts first, giving reverse document order when used as a Less func.
func rangeAfter(a, b lspwire.Range) bool {
	if a.Start.Line != b.Start.Line {
		return a.Start.Line > b.Start.Line
	}
	return a.Start.Character > b.Start.Character
}

// applyFileEdits applies edits (already sorted in reverse document
// order) to path as one buffered rewrite and one atomic rename.
func (e *Engine) applyFileEdits(ctx context.Context, path string, edits []lspwire.TextEdit) (*EditResult, error) {
	return e.apply(ctx, path, "", func(content string) string {
		for _, ed := range edits {
			content = replaceRange(content, ed.Range, ed.NewText)
		}
		return content
	})
}
