// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/symbolengine/serenad/internal/editengine"
	"github.com/symbolengine/serenad/internal/retriever"
	"github.com/symbolengine/serenad/internal/symbol"
)

// RegisterCoreTools wires the seven core tools (§4.8) into registry,
// backed by ret for reads and eng for mutations.
func RegisterCoreTools(registry *Registry, ret *retriever.Retriever, eng *editengine.Engine) {
	registry.Register(findSymbolTool(ret))
	registry.Register(findReferencingSymbolsTool(ret))
	registry.Register(getSymbolsOverviewTool(ret))
	registry.Register(replaceSymbolBodyTool(ret, eng))
	registry.Register(insertBeforeSymbolTool(ret, eng))
	registry.Register(insertAfterSymbolTool(ret, eng))
	registry.Register(renameSymbolTool(ret, eng))
}

type findSymbolInput struct {
	NamePath   string   `json:"namePath" validate:"required"`
	Scope      string   `json:"scope" validate:"required"`
	Substring  bool     `json:"substring"`
	Kinds      []string `json:"kinds"`
	MaxResults int      `json:"maxResults"`
}

func findSymbolTool(ret *retriever.Retriever) Tool {
	return Tool{
		Name:        "findSymbol",
		Description: "Find symbols by name path within a file or directory scope.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]SchemaProperty{
				"namePath":   {Type: "string", Description: "Slash-separated symbol name path, e.g. Calc/add"},
				"scope":      {Type: "string", Description: "File or directory to search under"},
				"substring":  {Type: "boolean", Description: "Match the final name-path segment as a substring"},
				"kinds":      {Type: "array", Items: &struct{ Type string `json:"type"` }{Type: "string"}, Description: "Restrict to these symbol kinds"},
				"maxResults": {Type: "integer", Description: "Cap on returned matches"},
			},
			Required: []string{"namePath", "scope"},
		},
		// Scanning a directory scope may spawn and warm up a Language
		// Server for every matching file; allow more than the default.
		Timeout:  10 * time.Minute,
		NewInput: func() any { return &findSymbolInput{} },
		Handler: func(ctx context.Context, raw any) (string, error) {
			in := raw.(*findSymbolInput)
			opts := symbol.FindOptions{SubstringMatch: in.Substring, MaxResults: in.MaxResults}
			if len(in.Kinds) > 0 {
				opts.KindsIncluded = make(map[symbol.Kind]bool, len(in.Kinds))
				for _, name := range in.Kinds {
					if k, ok := symbol.ParseKind(name); ok {
						opts.KindsIncluded[k] = true
					}
				}
			}
			matches, err := ret.FindByName(ctx, in.NamePath, in.Scope, opts)
			if err != nil {
				return "", err
			}
			return marshalSymbols(matches)
		},
	}
}

type findReferencingSymbolsInput struct {
	NamePath string `json:"namePath" validate:"required"`
	Path     string `json:"path" validate:"required"`
}

func findReferencingSymbolsTool(ret *retriever.Retriever) Tool {
	return Tool{
		Name:        "findReferencingSymbols",
		Description: "Find symbols referencing the named symbol in a given file.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]SchemaProperty{
				"namePath": {Type: "string"},
				"path":     {Type: "string"},
			},
			Required: []string{"namePath", "path"},
		},
		NewInput: func() any { return &findReferencingSymbolsInput{} },
		Handler: func(ctx context.Context, raw any) (string, error) {
			in := raw.(*findReferencingSymbolsInput)
			sym, err := resolveOne(ctx, ret, in.NamePath, in.Path)
			if err != nil {
				return "", err
			}
			hits, err := ret.FindReferencingSymbols(ctx, sym, in.Path)
			if err != nil {
				return "", err
			}
			type hitView struct {
				URI       string `json:"uri"`
				Line      int    `json:"line"`
				Character int    `json:"character"`
				Enclosing string `json:"enclosing,omitempty"`
			}
			views := make([]hitView, 0, len(hits))
			for _, h := range hits {
				v := hitView{URI: h.Location.URI, Line: h.Location.Range.Start.Line, Character: h.Location.Range.Start.Character}
				if h.Enclosing != nil {
					v.Enclosing = symbol.NameOf(h.Enclosing).String()
				}
				views = append(views, v)
			}
			data, err := json.Marshal(views)
			return string(data), err
		},
	}
}

type getSymbolsOverviewInput struct {
	Path string `json:"path" validate:"required"`
}

func getSymbolsOverviewTool(ret *retriever.Retriever) Tool {
	return Tool{
		Name:        "getSymbolsOverview",
		Description: "Summarize a file's top-level and one-level-deep symbols.",
		Schema: Schema{
			Type:       "object",
			Properties: map[string]SchemaProperty{"path": {Type: "string"}},
			Required:   []string{"path"},
		},
		NewInput: func() any { return &getSymbolsOverviewInput{} },
		Handler: func(ctx context.Context, raw any) (string, error) {
			in := raw.(*getSymbolsOverviewInput)
			entries, err := ret.GetOverview(ctx, in.Path)
			if err != nil {
				return "", err
			}
			type entryView struct {
				NamePath string `json:"namePath"`
				Kind     string `json:"kind"`
			}
			views := make([]entryView, 0, len(entries))
			for _, e := range entries {
				views = append(views, entryView{NamePath: e.NamePath.String(), Kind: e.Kind.String()})
			}
			data, err := json.Marshal(views)
			return string(data), err
		},
	}
}

type replaceSymbolBodyInput struct {
	NamePath string `json:"namePath" validate:"required"`
	Path     string `json:"path" validate:"required"`
	NewBody  string `json:"newBody" validate:"required"`
}

func replaceSymbolBodyTool(ret *retriever.Retriever, eng *editengine.Engine) Tool {
	return Tool{
		Name:        "replaceSymbolBody",
		Description: "Replace a symbol's body with new text.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]SchemaProperty{
				"namePath": {Type: "string"},
				"path":     {Type: "string"},
				"newBody":  {Type: "string"},
			},
			Required: []string{"namePath", "path", "newBody"},
		},
		NewInput: func() any { return &replaceSymbolBodyInput{} },
		Handler: func(ctx context.Context, raw any) (string, error) {
			in := raw.(*replaceSymbolBodyInput)
			sym, err := resolveOne(ctx, ret, in.NamePath, in.Path)
			if err != nil {
				return "", err
			}
			result, err := eng.ReplaceBody(ctx, sym, in.NewBody, "")
			if err != nil {
				return "", err
			}
			return editResultJSON(result)
		},
	}
}

type insertSymbolInput struct {
	NamePath string `json:"namePath" validate:"required"`
	Path     string `json:"path" validate:"required"`
	Text     string `json:"text" validate:"required"`
}

func insertBeforeSymbolTool(ret *retriever.Retriever, eng *editengine.Engine) Tool {
	return Tool{
		Name:        "insertBeforeSymbol",
		Description: "Insert text immediately before a symbol's range.",
		Schema:      insertSymbolSchema(),
		NewInput:    func() any { return &insertSymbolInput{} },
		Handler: func(ctx context.Context, raw any) (string, error) {
			in := raw.(*insertSymbolInput)
			sym, err := resolveOne(ctx, ret, in.NamePath, in.Path)
			if err != nil {
				return "", err
			}
			result, err := eng.InsertBefore(ctx, sym, in.Text, "")
			if err != nil {
				return "", err
			}
			return editResultJSON(result)
		},
	}
}

func insertAfterSymbolTool(ret *retriever.Retriever, eng *editengine.Engine) Tool {
	return Tool{
		Name:        "insertAfterSymbol",
		Description: "Insert text immediately after a symbol's range.",
		Schema:      insertSymbolSchema(),
		NewInput:    func() any { return &insertSymbolInput{} },
		Handler: func(ctx context.Context, raw any) (string, error) {
			in := raw.(*insertSymbolInput)
			sym, err := resolveOne(ctx, ret, in.NamePath, in.Path)
			if err != nil {
				return "", err
			}
			result, err := eng.InsertAfter(ctx, sym, in.Text, "")
			if err != nil {
				return "", err
			}
			return editResultJSON(result)
		},
	}
}

func insertSymbolSchema() Schema {
	return Schema{
		Type: "object",
		Properties: map[string]SchemaProperty{
			"namePath": {Type: "string"},
			"path":     {Type: "string"},
			"text":     {Type: "string"},
		},
		Required: []string{"namePath", "path", "text"},
	}
}

type renameSymbolInput struct {
	NamePath string `json:"namePath" validate:"required"`
	Path     string `json:"path" validate:"required"`
	NewName  string `json:"newName" validate:"required"`
}

func renameSymbolTool(ret *retriever.Retriever, eng *editengine.Engine) Tool {
	return Tool{
		Name:        "renameSymbol",
		Description: "Rename a symbol and apply the resulting workspace edit.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]SchemaProperty{
				"namePath": {Type: "string"},
				"path":     {Type: "string"},
				"newName":  {Type: "string"},
			},
			Required: []string{"namePath", "path", "newName"},
		},
		NewInput: func() any { return &renameSymbolInput{} },
		Handler: func(ctx context.Context, raw any) (string, error) {
			in := raw.(*renameSymbolInput)
			sym, err := resolveOne(ctx, ret, in.NamePath, in.Path)
			if err != nil {
				return "", err
			}
			result, err := eng.Rename(ctx, sym, in.NewName, in.Path)
			if err != nil {
				return "", err
			}
			data, merr := json.Marshal(result)
			return string(data), merr
		},
	}
}

// resolveOne finds exactly the symbol a mutating tool should act on,
// erroring on zero or ambiguous matches rather than silently picking one.
func resolveOne(ctx context.Context, ret *retriever.Retriever, namePath, path string) (*symbol.Symbol, error) {
	matches, err := ret.FindByName(ctx, namePath, path, symbol.FindOptions{MaxResults: 2})
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("dispatch: no symbol matches %q in %s", namePath, path)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("dispatch: %q is ambiguous in %s", namePath, path)
	}
}

func marshalSymbols(matches []*symbol.Symbol) (string, error) {
	type view struct {
		NamePath string `json:"namePath"`
		Kind     string `json:"kind"`
		File     string `json:"file"`
	}
	views := make([]view, 0, len(matches))
	for _, s := range matches {
		views = append(views, view{NamePath: symbol.NameOf(s).String(), Kind: s.Kind.String(), File: s.FileOf()})
	}
	data, err := json.Marshal(views)
	return string(data), err
}

func editResultJSON(r *editengine.EditResult) (string, error) {
	data, err := json.Marshal(r)
	return string(data), err
}
