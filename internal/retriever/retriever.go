// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retriever is the high-level, language-agnostic query surface
// (C6) built on top of lsproc's per-file symbol trees: find symbols by
// name path across a scope, find what references a symbol, and summarize
// a file's top-level shape.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/symbolengine/serenad/internal/cache"
	"github.com/symbolengine/serenad/internal/lspwire"
	"github.com/symbolengine/serenad/internal/lsproc"
	"github.com/symbolengine/serenad/internal/symbol"
)

// Retriever answers findByName, findReferencingSymbols, and getOverview
// queries by delegating to Operations for each file's symbol tree.
type Retriever struct {
	ops   *lsproc.Operations
	cache *cache.Cache
}

func New(ops *lsproc.Operations, c *cache.Cache) *Retriever {
	return &Retriever{ops: ops, cache: c}
}

// fileTree is one file's resolved symbol tree along with the path it was
// built from, so a reference hit can be traced back to its owning tree.
type fileTree struct {
	path string
	tree *symbol.Tree
}

// FindByName enumerates every supported-language file under scope (a
// single file or a directory walked recursively), resolves each file's
// symbol tree, and merges every namePath match across all of them.
// Results are ordered by file path, then by the per-file pre-order
// match order.
func (r *Retriever) FindByName(ctx context.Context, namePath string, scope string, opts symbol.FindOptions) ([]*symbol.Symbol, error) {
	if ctx == nil {
		return nil, fmt.Errorf("retriever: ctx must not be nil")
	}
	files, err := r.candidateFiles(scope)
	if err != nil {
		return nil, err
	}

	path := symbol.ParseNamePath(namePath)
	var matches []*symbol.Symbol
	for _, f := range files {
		tree, _, err := r.ops.DocumentSymbolTree(ctx, r.cache, f)
		if err != nil {
			if errors.Is(err, lsproc.ErrServerDown) {
				return nil, err
			}
			continue
		}
		hits := symbol.FindByNamePath(tree, path, opts)
		matches = append(matches, hits...)
		if opts.MaxResults > 0 && len(matches) >= opts.MaxResults {
			matches = matches[:opts.MaxResults]
			break
		}
	}
	return matches, nil
}

// candidateFiles resolves scope into the set of files whose extension is
// registered to a supported language. scope may be a single file (which
// is returned as-is, unfiltered) or a directory (walked recursively,
// filtered by extension).
func (r *Retriever) candidateFiles(scope string) ([]string, error) {
	info, err := os.Stat(scope)
	if err != nil {
		return nil, fmt.Errorf("retriever: stat scope %s: %w", scope, err)
	}
	if !info.IsDir() {
		return []string{scope}, nil
	}

	configs := r.ops.Manager().Configs()
	var files []string
	err = filepath.WalkDir(scope, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := configs.LanguageForPath(path); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("retriever: walk %s: %w", scope, err)
	}
	sort.Strings(files)
	return files, nil
}

// ReferenceHit pairs a reference Location with the symbol enclosing it
// in the referencing file's tree. Enclosing may be nil when no symbol in
// that file's tree contains the location (e.g. a reference at file
// scope, outside any declared symbol).
type ReferenceHit struct {
	Location  lspwire.Location
	Enclosing *symbol.Symbol
}

// FindReferencingSymbols issues references at sym's selection-range
// start within ownerPath, then resolves the smallest enclosing symbol
// for each hit by loading that hit's file's tree and consulting C4.
func (r *Retriever) FindReferencingSymbols(ctx context.Context, sym *symbol.Symbol, ownerPath string) ([]ReferenceHit, error) {
	if ctx == nil {
		return nil, fmt.Errorf("retriever: ctx must not be nil")
	}
	if sym == nil {
		return nil, fmt.Errorf("retriever: symbol must not be nil")
	}
	start := sym.SelectionRange.Start
	locations, err := r.ops.References(ctx, ownerPath, start.Line+1, start.Character, false)
	if err != nil {
		return nil, err
	}

	treeCache := make(map[string]*symbol.Tree)
	hits := make([]ReferenceHit, 0, len(locations))
	for _, loc := range locations {
		path := r.ops.URIToPath(loc.URI)
		tree, ok := treeCache[path]
		if !ok {
			tree, _, err = r.ops.DocumentSymbolTree(ctx, r.cache, path)
			if err != nil {
				tree = nil
			}
			treeCache[path] = tree
		}
		var enclosing *symbol.Symbol
		if tree != nil {
			enclosing = symbol.SmallestEnclosing(tree, loc.Range.Start)
		}
		hits = append(hits, ReferenceHit{Location: loc, Enclosing: enclosing})
	}
	return hits, nil
}

// OverviewEntry is one row of getOverview's summary: a symbol's name
// path and kind, without body text or full range detail.
type OverviewEntry struct {
	NamePath symbol.NamePath
	Kind     symbol.Kind
}

// GetOverview returns every top-level symbol in path's file plus their
// immediate children, in pre-order. Deeper descendants are omitted; the
// intent is a quick shape summary, not a full dump.
func (r *Retriever) GetOverview(ctx context.Context, path string) ([]OverviewEntry, error) {
	if ctx == nil {
		return nil, fmt.Errorf("retriever: ctx must not be nil")
	}
	tree, _, err := r.ops.DocumentSymbolTree(ctx, r.cache, path)
	if err != nil {
		return nil, err
	}

	var entries []OverviewEntry
	for _, root := range tree.Roots {
		entries = append(entries, OverviewEntry{NamePath: symbol.NameOf(root), Kind: root.Kind})
		for _, child := range root.Children {
			entries = append(entries, OverviewEntry{NamePath: symbol.NameOf(child), Kind: child.Kind})
		}
	}
	return entries, nil
}
