// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbol

import (
	"encoding/json"

	"github.com/symbolengine/serenad/internal/lspwire"
)

// Symbol is one node in a file's symbol tree. Parent is a weak,
// non-owning back-reference used only for upward traversal (nameOf,
// iterAncestors); ownership of the tree flows strictly from File down
// through Children, per the arena/index discipline described for this
// domain: a symbol never owns its parent.
type Symbol struct {
	Name           string
	Kind           Kind
	Range          lspwire.Range
	SelectionRange lspwire.Range
	BodyText       string
	Children       []*Symbol
	Parent         *Symbol

	// file is the path, as given to NewTree, of the file this symbol's tree root was
	// built from. Only the root(s) of a tree need carry it explicitly;
	// FileOf walks to the root to answer it for any node.
	file string
}

// Tree is one file's symbol forest (LSP document symbols are a forest
// of top-level symbols, each optionally File-kinded as a synthetic
// root).
type Tree struct {
	FilePath string
	Roots    []*Symbol
}

// FileOf returns the file path of the tree s belongs to.
func (s *Symbol) FileOf() string {
	node := s
	for node.Parent != nil {
		node = node.Parent
	}
	return node.file
}

// NewTree links every symbol's Parent pointer and records the owning
// file path on every root, establishing the invariants pure functions
// in this package rely on.
func NewTree(filePath string, roots []*Symbol) *Tree {
	for _, r := range roots {
		linkParents(r, nil, filePath)
	}
	return &Tree{FilePath: filePath, Roots: roots}
}

func linkParents(s *Symbol, parent *Symbol, filePath string) {
	s.Parent = parent
	if parent == nil {
		s.file = filePath
	}
	for _, c := range s.Children {
		linkParents(c, s, filePath)
	}
}

// FromDocumentSymbols converts an LSP hierarchical documentSymbol
// response into a Tree, synthesizing BodyText lazily (callers that need
// it call PopulateBodyText with the file's content).
func FromDocumentSymbols(filePath string, docSymbols []lspwire.DocumentSymbol) *Tree {
	roots := make([]*Symbol, 0, len(docSymbols))
	for _, ds := range docSymbols {
		roots = append(roots, fromDocumentSymbol(ds))
	}
	return NewTree(filePath, roots)
}

func fromDocumentSymbol(ds lspwire.DocumentSymbol) *Symbol {
	s := &Symbol{
		Name:           ds.Name,
		Kind:           FromLSP(ds.Kind),
		Range:          ds.Range,
		SelectionRange: ds.SelectionRange,
	}
	for _, child := range ds.Children {
		s.Children = append(s.Children, fromDocumentSymbol(child))
	}
	return s
}

// FromFlatSymbolInformation builds a Tree from the flat
// SymbolInformation shape some servers return instead of the
// hierarchical DocumentSymbol, synthesizing parenthood by nesting a
// symbol under the smallest enclosing range among its siblings.
func FromFlatSymbolInformation(filePath string, infos []lspwire.SymbolInformation) *Tree {
	nodes := make([]*Symbol, 0, len(infos))
	for _, info := range infos {
		nodes = append(nodes, &Symbol{
			Name:           info.Name,
			Kind:           FromLSP(info.Kind),
			Range:          info.Location.Range,
			SelectionRange: info.Location.Range,
		})
	}

	var roots []*Symbol
	for _, candidate := range nodes {
		var bestParent *Symbol
		for _, other := range nodes {
			if other == candidate {
				continue
			}
			if other.Range.ContainsRange(candidate.Range) && other.Range != candidate.Range {
				if bestParent == nil || bestParent.Range.ContainsRange(other.Range) {
					bestParent = other
				}
			}
		}
		if bestParent != nil {
			bestParent.Children = append(bestParent.Children, candidate)
		} else {
			roots = append(roots, candidate)
		}
	}
	return NewTree(filePath, roots)
}

// PopulateBodyText slices content by each symbol's Range to fill in
// BodyText throughout the tree. content must be the exact text the
// tree's ranges were computed against.
func PopulateBodyText(t *Tree, content string) {
	lines := splitLinesKeepEnds(content)
	for _, root := range t.Roots {
		populateBodyText(root, lines)
	}
}

func populateBodyText(s *Symbol, lines []string) {
	s.BodyText = sliceRange(lines, s.Range)
	for _, c := range s.Children {
		populateBodyText(c, lines)
	}
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

func sliceRange(lines []string, r lspwire.Range) string {
	if r.Start.Line < 0 || r.Start.Line >= len(lines) || r.End.Line < 0 || r.End.Line >= len(lines) {
		return ""
	}
	if r.Start.Line == r.End.Line {
		line := lines[r.Start.Line]
		start := clamp(r.Start.Character, 0, len(line))
		end := clamp(r.End.Character, start, len(line))
		return line[start:end]
	}
	var out string
	first := lines[r.Start.Line]
	out += first[clamp(r.Start.Character, 0, len(first)):]
	for i := r.Start.Line + 1; i < r.End.Line; i++ {
		out += lines[i]
	}
	last := lines[r.End.Line]
	out += last[:clamp(r.End.Character, 0, len(last))]
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MarshalJSON/UnmarshalJSON let a Tree round-trip through the persisted
// cache envelope without exposing the Parent back-reference (which
// would otherwise make json.Marshal recurse infinitely).
type treeJSON struct {
	FilePath string        `json:"filePath"`
	Roots    []*symbolJSON `json:"roots"`
}

type symbolJSON struct {
	Name           string         `json:"name"`
	Kind           Kind           `json:"kind"`
	Range          lspwire.Range  `json:"range"`
	SelectionRange lspwire.Range  `json:"selectionRange"`
	BodyText       string         `json:"bodyText,omitempty"`
	Children       []*symbolJSON  `json:"children,omitempty"`
}

func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(treeJSON{FilePath: t.FilePath, Roots: toSymbolJSON(t.Roots)})
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	var tj treeJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return err
	}
	roots := fromSymbolJSON(tj.Roots)
	*t = *NewTree(tj.FilePath, roots)
	return nil
}

func toSymbolJSON(symbols []*Symbol) []*symbolJSON {
	out := make([]*symbolJSON, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, &symbolJSON{
			Name: s.Name, Kind: s.Kind, Range: s.Range, SelectionRange: s.SelectionRange,
			BodyText: s.BodyText, Children: toSymbolJSON(s.Children),
		})
	}
	return out
}

func fromSymbolJSON(symbols []*symbolJSON) []*Symbol {
	out := make([]*Symbol, 0, len(symbols))
	for _, sj := range symbols {
		out = append(out, &Symbol{
			Name: sj.Name, Kind: sj.Kind, Range: sj.Range, SelectionRange: sj.SelectionRange,
			BodyText: sj.BodyText, Children: fromSymbolJSON(sj.Children),
		})
	}
	return out
}
