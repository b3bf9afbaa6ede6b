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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentSymbolResponse_Hierarchical(t *testing.T) {
	raw := json.RawMessage(`[
		{
			"name": "Calculator",
			"kind": 5,
			"range": {"start": {"line": 0, "character": 0}, "end": {"line": 10, "character": 0}},
			"selectionRange": {"start": {"line": 0, "character": 5}, "end": {"line": 0, "character": 15}},
			"children": [
				{
					"name": "Add",
					"kind": 6,
					"range": {"start": {"line": 1, "character": 0}, "end": {"line": 3, "character": 0}},
					"selectionRange": {"start": {"line": 1, "character": 5}, "end": {"line": 1, "character": 8}}
				}
			]
		}
	]`)

	tree, err := parseDocumentSymbolResponse("calc.go", raw)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	assert.Equal(t, "Calculator", tree.Roots[0].Name)
	require.Len(t, tree.Roots[0].Children, 1)
	assert.Equal(t, "Add", tree.Roots[0].Children[0].Name)
	assert.Same(t, tree.Roots[0], tree.Roots[0].Children[0].Parent)
}

func TestParseDocumentSymbolResponse_Flat(t *testing.T) {
	raw := json.RawMessage(`[
		{
			"name": "Calculator",
			"kind": 5,
			"location": {"uri": "file:///calc.go", "range": {"start": {"line": 0, "character": 0}, "end": {"line": 10, "character": 0}}}
		},
		{
			"name": "Add",
			"kind": 6,
			"location": {"uri": "file:///calc.go", "range": {"start": {"line": 1, "character": 0}, "end": {"line": 3, "character": 0}}}
		}
	]`)

	tree, err := parseDocumentSymbolResponse("calc.go", raw)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	assert.Equal(t, "Calculator", tree.Roots[0].Name)
	require.Len(t, tree.Roots[0].Children, 1)
	assert.Equal(t, "Add", tree.Roots[0].Children[0].Name)
}

func TestParseDocumentSymbolResponse_Empty(t *testing.T) {
	tree, err := parseDocumentSymbolResponse("empty.go", json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, tree.Roots)

	tree, err = parseDocumentSymbolResponse("empty.go", json.RawMessage(``))
	require.NoError(t, err)
	assert.Empty(t, tree.Roots)
}

func TestParseDocumentSymbolResponse_Invalid(t *testing.T) {
	_, err := parseDocumentSymbolResponse("bad.go", json.RawMessage(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestLooksHierarchical(t *testing.T) {
	assert.True(t, looksHierarchical(json.RawMessage(`[{"range": {}}]`)))
	assert.False(t, looksHierarchical(json.RawMessage(`[{"location": {}}]`)))
	assert.True(t, looksHierarchical(json.RawMessage(`[]`)))
}

func TestDocumentSymbolTree_NilContext(t *testing.T) {
	m := NewManager(t.TempDir(), DefaultManagerConfig(), nil, nil)
	o := NewOperations(m)
	_, _, err := o.DocumentSymbolTree(nil, nil, "main.go") //nolint:staticcheck
	assert.Error(t, err)
}

func TestDocumentSymbolTree_UnsupportedLanguage(t *testing.T) {
	m := NewManager(t.TempDir(), DefaultManagerConfig(), nil, nil)
	o := NewOperations(m)
	_, _, err := o.DocumentSymbolTree(context.Background(), nil, "main.xyz")
	assert.Error(t, err)
}
