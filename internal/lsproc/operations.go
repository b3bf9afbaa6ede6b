// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsproc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/symbolengine/serenad/internal/lspwire"
	"github.com/symbolengine/serenad/internal/transport"
)

const (
	maxRetries = 1
	retryDelay = 100 * time.Millisecond
)

// Operations is the language-aware query/mutation surface built on top
// of a Manager: it resolves the owning server for a file, keeps it
// synced to the file's current content, and issues the LSP request.
type Operations struct {
	manager *Manager
}

func NewOperations(manager *Manager) *Operations { return &Operations{manager: manager} }

func (o *Operations) Manager() *Manager { return o.manager }

// isRetryableError reports whether requestWithRetry should re-resolve
// the server and try once more. ErrServerDown is deliberately excluded:
// a crashed server is never retried transparently (no-auto-restart),
// so the caller sees ErrServerDown rather than a masked retry.
func isRetryableError(err error) bool {
	if errors.Is(err, ErrServerNotRunning) {
		return true
	}
	var lspErr *transport.LSPError
	if errors.As(err, &lspErr) {
		return lspErr.Code <= -32000 && lspErr.Code >= -32099
	}
	return false
}

func (o *Operations) languageFromPath(path string) (string, error) {
	lang, ok := o.manager.Configs().LanguageForPath(path)
	if !ok {
		return "", fmt.Errorf("%w: no language for %s", ErrUnsupportedLanguage, path)
	}
	return lang, nil
}

// requestWithRetry resolves language's server (spawning lazily) and
// issues requestFn, retrying once on a transient/retryable error after
// re-resolving the server (covering a server that was not Ready yet or
// any more; a crashed server, ErrServerDown, is not retried).
func (o *Operations) requestWithRetry(ctx context.Context, language string, requestFn func(*Server) (json.RawMessage, error)) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		server, err := o.manager.GetOrSpawn(ctx, language)
		if err != nil {
			lastErr = err
			if attempt < maxRetries && isRetryableError(err) {
				time.Sleep(retryDelay)
				continue
			}
			return nil, lastErr
		}
		raw, err := requestFn(server)
		if err != nil {
			lastErr = err
			if attempt < maxRetries && isRetryableError(err) {
				time.Sleep(retryDelay)
				continue
			}
			return nil, lastErr
		}
		return raw, nil
	}
	return nil, lastErr
}

func toLSPPosition(line, col int) lspwire.Position {
	return lspwire.Position{Line: line - 1, Character: col}
}

func parseLocationResponse(data json.RawMessage) ([]lspwire.Location, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var links []lspwire.LocationLink
	if err := json.Unmarshal(data, &links); err == nil && len(links) > 0 && links[0].TargetURI != "" {
		out := make([]lspwire.Location, 0, len(links))
		for _, l := range links {
			out = append(out, lspwire.Location{URI: l.TargetURI, Range: l.TargetRange})
		}
		return out, nil
	}

	var locs []lspwire.Location
	if err := json.Unmarshal(data, &locs); err == nil {
		return locs, nil
	}

	var single lspwire.Location
	if err := json.Unmarshal(data, &single); err == nil && single.URI != "" {
		return []lspwire.Location{single}, nil
	}

	var singleLink lspwire.LocationLink
	if err := json.Unmarshal(data, &singleLink); err == nil && singleLink.TargetURI != "" {
		return []lspwire.Location{{URI: singleLink.TargetURI, Range: singleLink.TargetRange}}, nil
	}

	return nil, fmt.Errorf("lsproc: invalid location response")
}

// Definition resolves textDocument/definition at a 1-indexed line and
// 0-indexed column.
func (o *Operations) Definition(ctx context.Context, filePath string, line, col int) ([]lspwire.Location, error) {
	if ctx == nil {
		return nil, fmt.Errorf("lsproc: ctx must not be nil")
	}
	language, err := o.languageFromPath(filePath)
	if err != nil {
		return nil, err
	}
	ctx, span := startOperationSpan(ctx, "definition", language, filePath)
	defer span.End()

	start := time.Now()
	params := lspwire.TextDocumentPositionParams{
		TextDocument: lspwire.TextDocumentIdentifier{URI: pathToURI(filePath)},
		Position:     toLSPPosition(line, col),
	}
	raw, err := o.requestWithRetry(ctx, language, func(s *Server) (json.RawMessage, error) {
		return s.Request(ctx, "textDocument/definition", params)
	})
	recordOperationMetrics(ctx, "definition", language, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	return parseLocationResponse(raw)
}

// References resolves textDocument/references.
func (o *Operations) References(ctx context.Context, filePath string, line, col int, includeDecl bool) ([]lspwire.Location, error) {
	if ctx == nil {
		return nil, fmt.Errorf("lsproc: ctx must not be nil")
	}
	language, err := o.languageFromPath(filePath)
	if err != nil {
		return nil, err
	}
	ctx, span := startOperationSpan(ctx, "references", language, filePath)
	defer span.End()

	start := time.Now()
	params := lspwire.ReferenceParams{
		TextDocumentPositionParams: lspwire.TextDocumentPositionParams{
			TextDocument: lspwire.TextDocumentIdentifier{URI: pathToURI(filePath)},
			Position:     toLSPPosition(line, col),
		},
		Context: lspwire.ReferenceContext{IncludeDeclaration: includeDecl},
	}
	raw, err := o.requestWithRetry(ctx, language, func(s *Server) (json.RawMessage, error) {
		return s.Request(ctx, "textDocument/references", params)
	})
	recordOperationMetrics(ctx, "references", language, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	return parseLocationResponse(raw)
}

// HoverInfo is the normalized result of a hover request.
type HoverInfo struct {
	Content string
	Kind    string
	Range   *lspwire.Range
}

func (o *Operations) Hover(ctx context.Context, filePath string, line, col int) (*HoverInfo, error) {
	if ctx == nil {
		return nil, fmt.Errorf("lsproc: ctx must not be nil")
	}
	language, err := o.languageFromPath(filePath)
	if err != nil {
		return nil, err
	}
	ctx, span := startOperationSpan(ctx, "hover", language, filePath)
	defer span.End()

	start := time.Now()
	params := lspwire.TextDocumentPositionParams{
		TextDocument: lspwire.TextDocumentIdentifier{URI: pathToURI(filePath)},
		Position:     toLSPPosition(line, col),
	}
	raw, err := o.requestWithRetry(ctx, language, func(s *Server) (json.RawMessage, error) {
		return s.Request(ctx, "textDocument/hover", params)
	})
	recordOperationMetrics(ctx, "hover", language, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var result lspwire.HoverResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("lsproc: decode hover result: %w", err)
	}
	return &HoverInfo{Content: result.Contents.Value, Kind: result.Contents.Kind, Range: result.Range}, nil
}

// Rename issues textDocument/rename. Not retried: it is a mutating
// request and retrying it against a server that may have partially
// processed it risks duplicate side effects.
func (o *Operations) Rename(ctx context.Context, filePath string, line, col int, newName string) (*lspwire.WorkspaceEdit, error) {
	if ctx == nil {
		return nil, fmt.Errorf("lsproc: ctx must not be nil")
	}
	if newName == "" {
		return nil, fmt.Errorf("lsproc: newName must not be empty")
	}
	language, err := o.languageFromPath(filePath)
	if err != nil {
		return nil, err
	}
	ctx, span := startOperationSpan(ctx, "rename", language, filePath)
	defer span.End()

	start := time.Now()
	server, err := o.manager.GetOrSpawn(ctx, language)
	if err != nil {
		recordOperationMetrics(ctx, "rename", language, time.Since(start), false)
		return nil, err
	}
	params := lspwire.RenameParams{
		TextDocumentPositionParams: lspwire.TextDocumentPositionParams{
			TextDocument: lspwire.TextDocumentIdentifier{URI: pathToURI(filePath)},
			Position:     toLSPPosition(line, col),
		},
		NewName: newName,
	}
	raw, err := server.Request(ctx, "textDocument/rename", params)
	recordOperationMetrics(ctx, "rename", language, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("lsproc: rename not supported at position")
	}
	var edit lspwire.WorkspaceEdit
	if err := json.Unmarshal(raw, &edit); err != nil {
		return nil, fmt.Errorf("lsproc: decode workspace edit: %w", err)
	}
	return &edit, nil
}

// PrepareRename issues textDocument/prepareRename.
func (o *Operations) PrepareRename(ctx context.Context, filePath string, line, col int) (*lspwire.PrepareRenameResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("lsproc: ctx must not be nil")
	}
	language, err := o.languageFromPath(filePath)
	if err != nil {
		return nil, err
	}
	params := lspwire.PrepareRenameParams{
		TextDocumentPositionParams: lspwire.TextDocumentPositionParams{
			TextDocument: lspwire.TextDocumentIdentifier{URI: pathToURI(filePath)},
			Position:     toLSPPosition(line, col),
		},
	}
	raw, err := o.requestWithRetry(ctx, language, func(s *Server) (json.RawMessage, error) {
		return s.Request(ctx, "textDocument/prepareRename", params)
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var result lspwire.PrepareRenameResult
	if err := json.Unmarshal(raw, &result); err == nil && result.Placeholder != "" {
		return &result, nil
	}
	var r lspwire.Range
	if err := json.Unmarshal(raw, &r); err == nil {
		return &lspwire.PrepareRenameResult{Range: r}, nil
	}
	return nil, nil
}

// WorkspaceSymbol issues workspace/symbol for the given language.
func (o *Operations) WorkspaceSymbol(ctx context.Context, language, query string) ([]lspwire.SymbolInformation, error) {
	if ctx == nil {
		return nil, fmt.Errorf("lsproc: ctx must not be nil")
	}
	raw, err := o.requestWithRetry(ctx, language, func(s *Server) (json.RawMessage, error) {
		return s.Request(ctx, "workspace/symbol", lspwire.WorkspaceSymbolParams{Query: query})
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var symbols []lspwire.SymbolInformation
	if err := json.Unmarshal(raw, &symbols); err != nil {
		return nil, fmt.Errorf("lsproc: decode workspace symbols: %w", err)
	}
	return symbols, nil
}

// DocumentSymbols issues textDocument/documentSymbol after ensuring the
// file is open at its current on-disk content.
func (o *Operations) DocumentSymbols(ctx context.Context, filePath, content string) (json.RawMessage, error) {
	if ctx == nil {
		return nil, fmt.Errorf("lsproc: ctx must not be nil")
	}
	language, err := o.languageFromPath(filePath)
	if err != nil {
		return nil, err
	}
	ctx, span := startOperationSpan(ctx, "document_symbol", language, filePath)
	defer span.End()

	start := time.Now()
	server, err := o.manager.GetOrSpawn(ctx, language)
	if err != nil {
		recordOperationMetrics(ctx, "document_symbol", language, time.Since(start), false)
		return nil, err
	}
	if _, _, err := server.EnsureOpen(ctx, filePath, content); err != nil {
		recordOperationMetrics(ctx, "document_symbol", language, time.Since(start), false)
		return nil, err
	}
	raw, err := server.Request(ctx, "textDocument/documentSymbol", struct {
		TextDocument lspwire.TextDocumentIdentifier `json:"textDocument"`
	}{TextDocument: lspwire.TextDocumentIdentifier{URI: pathToURI(filePath)}})
	recordOperationMetrics(ctx, "document_symbol", language, time.Since(start), err == nil)
	return raw, err
}

// IsAvailable reports whether filePath's language server binary is on PATH.
func (o *Operations) IsAvailable(filePath string) bool {
	language, err := o.languageFromPath(filePath)
	if err != nil {
		return false
	}
	return o.manager.IsAvailable(language)
}

func (o *Operations) URIToPath(uri string) string { return uriToPath(uri) }
func (o *Operations) PathToURI(path string) string { return pathToURI(path) }

// WorkspaceEditSummary totals a WorkspaceEdit's footprint for reporting
// back to a tool caller without requiring it to re-read every file.
type WorkspaceEditSummary struct {
	FileCount  int
	TotalEdits int
	Files      map[string]int
}

func SummarizeWorkspaceEdit(edit *lspwire.WorkspaceEdit) WorkspaceEditSummary {
	summary := WorkspaceEditSummary{Files: make(map[string]int)}
	if edit == nil {
		return summary
	}
	for uri, edits := range edit.Changes {
		path := uriToPath(uri)
		summary.Files[path] += len(edits)
		summary.TotalEdits += len(edits)
	}
	for _, dc := range edit.DocumentChanges {
		path := uriToPath(dc.TextDocument.URI)
		if _, already := summary.Files[path]; !already {
			summary.Files[path] = 0
		}
		summary.Files[path] += len(dc.Edits)
		summary.TotalEdits += len(dc.Edits)
	}
	summary.FileCount = len(summary.Files)
	return summary
}

// ValidateWorkspaceEdit checks structural well-formedness before the
// edit engine attempts to apply it: non-empty, file:// URIs, and
// non-negative, properly ordered ranges. Unlike some Language Server
// clients, both the Changes and DocumentChanges forms receive identical
// range validation here.
func ValidateWorkspaceEdit(edit *lspwire.WorkspaceEdit) error {
	if edit == nil {
		return fmt.Errorf("lsproc: workspace edit is nil")
	}
	if len(edit.Changes) == 0 && len(edit.DocumentChanges) == 0 {
		return fmt.Errorf("lsproc: workspace edit has no changes")
	}
	validateEdits := func(uri string, edits []lspwire.TextEdit) error {
		if !isFileURI(uri) {
			return fmt.Errorf("lsproc: invalid uri scheme: %s", uri)
		}
		for _, e := range edits {
			if e.Range.Start.Line < 0 || e.Range.Start.Character < 0 {
				return fmt.Errorf("lsproc: negative range start in %s", uri)
			}
			if e.Range.End.Line < e.Range.Start.Line ||
				(e.Range.End.Line == e.Range.Start.Line && e.Range.End.Character < e.Range.Start.Character) {
				return fmt.Errorf("lsproc: range end before start in %s", uri)
			}
		}
		return nil
	}
	for uri, edits := range edit.Changes {
		if err := validateEdits(uri, edits); err != nil {
			return err
		}
	}
	for _, dc := range edit.DocumentChanges {
		if err := validateEdits(dc.TextDocument.URI, dc.Edits); err != nil {
			return err
		}
	}
	return nil
}

func isFileURI(uri string) bool {
	return len(uri) >= len("file://") && uri[:7] == "file://"
}
