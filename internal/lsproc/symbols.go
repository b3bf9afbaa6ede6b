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
	"fmt"
	"os"
	"time"

	"github.com/symbolengine/serenad/internal/cache"
	"github.com/symbolengine/serenad/internal/lspwire"
	"github.com/symbolengine/serenad/internal/symbol"
)

// DocumentSymbolTree is the cache-backed fulfillment of
// requestDocumentSymbols (§4.2): it reads path's current on-disk
// content, consults the cache under (path, contentHash, server.ID()),
// and on a miss issues textDocument/documentSymbol, normalizes the
// flat-or-hierarchical LSP response into symbol.Tree, and stores the
// result before returning it. The returned contentHash is the exact
// value a caller must echo back on a later edit to detect EditConflict.
func (o *Operations) DocumentSymbolTree(ctx context.Context, c *cache.Cache, filePath string) (tree *symbol.Tree, contentHash string, err error) {
	if ctx == nil {
		return nil, "", fmt.Errorf("lsproc: ctx must not be nil")
	}
	language, err := o.languageFromPath(filePath)
	if err != nil {
		return nil, "", err
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("lsproc: read %s: %w", filePath, err)
	}
	content := string(raw)
	contentHash = HashContent(content)

	server, err := o.manager.GetOrSpawn(ctx, language)
	if err != nil {
		return nil, "", err
	}

	if c != nil {
		if rec, ok := c.Get(cache.Key{FilePath: filePath, ContentHash: contentHash, LSID: server.ID()}); ok {
			return rec.Symbols, contentHash, nil
		}
	}

	start := time.Now()
	docRaw, err := o.DocumentSymbols(ctx, filePath, content)
	if err != nil {
		recordOperationMetrics(ctx, "document_symbol_tree", language, time.Since(start), false)
		return nil, "", err
	}

	tree, err = parseDocumentSymbolResponse(filePath, docRaw)
	if err != nil {
		return nil, "", err
	}
	symbol.PopulateBodyText(tree, content)

	if c != nil {
		if putErr := c.Put(cache.Key{FilePath: filePath, ContentHash: contentHash, LSID: server.ID()}, tree); putErr != nil {
			o.manager.logger.Warn("lsproc: cache put failed", "file", filePath, "error", putErr)
		}
	}
	return tree, contentHash, nil
}

// parseDocumentSymbolResponse accepts either the hierarchical
// DocumentSymbol[] shape or the flat SymbolInformation[] shape a server
// may return instead, synthesizing parenthood in the flat case.
func parseDocumentSymbolResponse(filePath string, raw json.RawMessage) (*symbol.Tree, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return symbol.NewTree(filePath, nil), nil
	}

	var hierarchical []lspwire.DocumentSymbol
	if err := json.Unmarshal(raw, &hierarchical); err == nil && looksHierarchical(raw) {
		return symbol.FromDocumentSymbols(filePath, hierarchical), nil
	}

	var flat []lspwire.SymbolInformation
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("lsproc: decode documentSymbol response: %w", err)
	}
	return symbol.FromFlatSymbolInformation(filePath, flat), nil
}

// looksHierarchical distinguishes the two documentSymbol response
// shapes: DocumentSymbol carries "range"/"selectionRange", while
// SymbolInformation carries "location". Both unmarshal successfully
// into either Go struct (zero-valuing unknown fields), so the shape
// must be sniffed from the raw JSON rather than from unmarshal error.
func looksHierarchical(raw json.RawMessage) bool {
	var probe []struct {
		Range    json.RawMessage `json:"range"`
		Location json.RawMessage `json:"location"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	if len(probe) == 0 {
		return true
	}
	return probe[0].Range != nil
}
