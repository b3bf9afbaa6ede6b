// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lspwire defines the LSP 3.17 wire types exchanged with a
// Language Server subprocess: positions, ranges, capabilities,
// document-symbol shapes and workspace edits.
package lspwire

// Position is a zero-based line/column pair, UTF-16 code units per LSP.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is the half-open interval [Start, End).
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether p falls within r (start inclusive, end exclusive).
func (r Range) Contains(p Position) bool {
	if p.Line < r.Start.Line || (p.Line == r.Start.Line && p.Character < r.Start.Character) {
		return false
	}
	if p.Line > r.End.Line || (p.Line == r.End.Line && p.Character >= r.End.Character) {
		return false
	}
	return true
}

// ContainsRange reports whether other lies within r. A range equal to r
// counts as contained.
func (r Range) ContainsRange(other Range) bool {
	return r.Contains(other.Start) && (r.contains(other.End))
}

func (r Range) contains(p Position) bool {
	if p.Line < r.Start.Line || (p.Line == r.Start.Line && p.Character < r.Start.Character) {
		return false
	}
	if p.Line > r.End.Line || (p.Line == r.End.Line && p.Character > r.End.Character) {
		return false
	}
	return true
}

// Before reports whether r ends at or before the start of other, used to
// order non-overlapping edits by document position.
func (r Range) Before(other Range) bool {
	if r.End.Line != other.Start.Line {
		return r.End.Line < other.Start.Line
	}
	return r.End.Character <= other.Start.Character
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// LocationLink is the richer form some servers return instead of Location.
type LocationLink struct {
	TargetURI            string `json:"targetUri"`
	TargetRange           Range  `json:"targetRange"`
	TargetSelectionRange Range  `json:"targetSelectionRange"`
}

type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

type RenameParams struct {
	TextDocumentPositionParams
	NewName string `json:"newName"`
}

type PrepareRenameParams struct {
	TextDocumentPositionParams
}

type PrepareRenameResult struct {
	Range       Range  `json:"range"`
	Placeholder string `json:"placeholder,omitempty"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type HoverResultContents struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type HoverResult struct {
	Contents HoverResultContents `json:"contents"`
	Range    *Range              `json:"range,omitempty"`
}

type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

type SymbolInformation struct {
	Name          string   `json:"name"`
	Kind          int      `json:"kind"`
	Location      Location `json:"location"`
	ContainerName string   `json:"containerName,omitempty"`
}

// DocumentSymbol is the hierarchical shape a server may return directly
// from textDocument/documentSymbol.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           int              `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// TextEdit is a single non-overlapping replacement within a file.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// WorkspaceEdit is the multi-file edit description returned for a rename.
type WorkspaceEdit struct {
	Changes         map[string][]TextEdit `json:"changes,omitempty"`
	DocumentChanges []TextDocumentEdit    `json:"documentChanges,omitempty"`
}

type TextDocumentEdit struct {
	TextDocument VersionedTextDocumentIdentifier `json:"textDocument"`
	Edits        []TextEdit                      `json:"edits"`
}

// ClientCapabilities is the subset of LSP 3.17 client capabilities this
// orchestrator advertises during initialize.
type ClientCapabilities struct {
	TextDocument TextDocumentClientCapabilities `json:"textDocument"`
	Workspace    WorkspaceClientCapabilities    `json:"workspace"`
}

type TextDocumentClientCapabilities struct {
	Synchronization *TextDocumentSyncClientCapabilities `json:"synchronization,omitempty"`
	Definition      *DefinitionCapabilities              `json:"definition,omitempty"`
	References      *ReferencesCapabilities              `json:"references,omitempty"`
	Hover           *HoverCapabilities                   `json:"hover,omitempty"`
	Rename          *RenameCapabilities                  `json:"rename,omitempty"`
	DocumentSymbol  *DocumentSymbolCapabilities          `json:"documentSymbol,omitempty"`
}

type TextDocumentSyncClientCapabilities struct {
	DidSave bool `json:"didSave"`
}

type DefinitionCapabilities struct{}
type ReferencesCapabilities struct{}
type HoverCapabilities struct {
	ContentFormat []string `json:"contentFormat,omitempty"`
}
type RenameCapabilities struct {
	PrepareSupport bool `json:"prepareSupport"`
}
type DocumentSymbolCapabilities struct {
	HierarchicalDocumentSymbolSupport bool `json:"hierarchicalDocumentSymbolSupport"`
}

type WorkspaceClientCapabilities struct {
	ApplyEdit     bool                               `json:"applyEdit"`
	WorkspaceEdit *WorkspaceEditClientCapabilities    `json:"workspaceEdit,omitempty"`
	Symbol        *WorkspaceSymbolClientCapabilities  `json:"symbol,omitempty"`
}

type WorkspaceEditClientCapabilities struct {
	DocumentChanges bool `json:"documentChanges"`
}

type WorkspaceSymbolClientCapabilities struct{}

type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type InitializeParams struct {
	ProcessID             int                 `json:"processId"`
	RootURI               string              `json:"rootUri"`
	RootPath              string              `json:"rootPath,omitempty"`
	Capabilities           ClientCapabilities  `json:"capabilities"`
	WorkspaceFolders       []WorkspaceFolder   `json:"workspaceFolders,omitempty"`
	InitializationOptions  interface{}         `json:"initializationOptions,omitempty"`
}

// ServerCapabilities is the subset of server-declared capabilities this
// orchestrator inspects before issuing requests that depend on them.
type ServerCapabilities struct {
	DefinitionProvider         interface{} `json:"definitionProvider,omitempty"`
	ReferencesProvider         interface{} `json:"referencesProvider,omitempty"`
	HoverProvider              interface{} `json:"hoverProvider,omitempty"`
	RenameProvider             interface{} `json:"renameProvider,omitempty"`
	DocumentSymbolProvider     interface{} `json:"documentSymbolProvider,omitempty"`
	WorkspaceSymbolProvider    interface{} `json:"workspaceSymbolProvider,omitempty"`
}

func (c ServerCapabilities) HasDefinitionProvider() bool     { return c.DefinitionProvider != nil && c.DefinitionProvider != false }
func (c ServerCapabilities) HasReferencesProvider() bool     { return c.ReferencesProvider != nil && c.ReferencesProvider != false }
func (c ServerCapabilities) HasHoverProvider() bool          { return c.HoverProvider != nil && c.HoverProvider != false }
func (c ServerCapabilities) HasRenameProvider() bool         { return c.RenameProvider != nil && c.RenameProvider != false }
func (c ServerCapabilities) HasDocumentSymbolProvider() bool { return c.DocumentSymbolProvider != nil && c.DocumentSymbolProvider != false }
func (c ServerCapabilities) HasWorkspaceSymbolProvider() bool {
	return c.WorkspaceSymbolProvider != nil && c.WorkspaceSymbolProvider != false
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}
