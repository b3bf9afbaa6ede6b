// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolengine/serenad/internal/lspwire"
	"github.com/symbolengine/serenad/internal/symbol"
)

func sampleTree() *symbol.Tree {
	root := &symbol.Symbol{
		Name: "Calc",
		Kind: symbol.KindClass,
		Range: lspwire.Range{
			Start: lspwire.Position{Line: 0, Character: 0},
			End:   lspwire.Position{Line: 2, Character: 0},
		},
	}
	return symbol.NewTree("a.py", []*symbol.Symbol{root})
}

func TestCache_PutGet_RoundTrip(t *testing.T) {
	c := New(t.TempDir(), nil)
	key := Key{FilePath: "a.py", ContentHash: "h1", LSID: uuid.New()}

	require.NoError(t, c.Put(key, sampleTree()))

	rec, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "a.py", rec.FilePath)
	assert.Equal(t, SchemaVersion, rec.SchemaVersion)
	require.Len(t, rec.Symbols.Roots, 1)
	assert.Equal(t, "Calc", rec.Symbols.Roots[0].Name)
}

func TestCache_Get_MissWhenAbsent(t *testing.T) {
	c := New(t.TempDir(), nil)
	_, ok := c.Get(Key{FilePath: "missing.py", ContentHash: "h1", LSID: uuid.New()})
	assert.False(t, ok)
}

func TestCache_Get_MissOnDifferentHash(t *testing.T) {
	c := New(t.TempDir(), nil)
	lsID := uuid.New()
	key := Key{FilePath: "a.py", ContentHash: "h1", LSID: lsID}
	require.NoError(t, c.Put(key, sampleTree()))

	_, ok := c.Get(Key{FilePath: "a.py", ContentHash: "h2", LSID: lsID})
	assert.False(t, ok)
}

func TestCache_Get_MissOnDifferentLSID(t *testing.T) {
	c := New(t.TempDir(), nil)
	key := Key{FilePath: "a.py", ContentHash: "h1", LSID: uuid.New()}
	require.NoError(t, c.Put(key, sampleTree()))

	_, ok := c.Get(Key{FilePath: "a.py", ContentHash: "h1", LSID: uuid.New()})
	assert.False(t, ok)
}

func TestCache_Get_MissOnSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, nil)
	key := Key{FilePath: "a.py", ContentHash: "h1", LSID: uuid.New()}
	require.NoError(t, c.Put(key, sampleTree()))

	rec, ok := c.Get(key)
	require.True(t, ok)

	// Simulate a record written by a newer release: bump the schema
	// version past what this binary understands and write it back raw.
	rec.SchemaVersion = SchemaVersion + 1
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, key.fileName()), data, 0o640))

	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestCache_Evict_RemovesAllHashesForPath(t *testing.T) {
	c := New(t.TempDir(), nil)
	lsID := uuid.New()
	keyA := Key{FilePath: "a.py", ContentHash: "h1", LSID: lsID}
	keyB := Key{FilePath: "a.py", ContentHash: "h2", LSID: lsID}
	keyOther := Key{FilePath: "b.py", ContentHash: "h1", LSID: lsID}
	require.NoError(t, c.Put(keyA, sampleTree()))
	require.NoError(t, c.Put(keyB, sampleTree()))
	require.NoError(t, c.Put(keyOther, sampleTree()))

	require.NoError(t, c.Evict("a.py"))

	_, ok := c.Get(keyA)
	assert.False(t, ok)
	_, ok = c.Get(keyB)
	assert.False(t, ok)
	_, ok = c.Get(keyOther)
	assert.True(t, ok)
}

func TestCache_LastWriterWinsOnConcurrentPut(t *testing.T) {
	c := New(t.TempDir(), nil)
	key := Key{FilePath: "a.py", ContentHash: "h1", LSID: uuid.New()}

	done := make(chan struct{})
	go func() { _ = c.Put(key, sampleTree()); close(done) }()
	require.NoError(t, c.Put(key, sampleTree()))
	<-done

	_, ok := c.Get(key)
	assert.True(t, ok)
}

func TestCache_Prune_RemovesOldRecords(t *testing.T) {
	c := New(t.TempDir(), nil)
	key := Key{FilePath: "a.py", ContentHash: "h1", LSID: uuid.New()}
	require.NoError(t, c.Put(key, sampleTree()))

	require.NoError(t, c.Prune(time.Now().Add(time.Hour)))

	_, ok := c.Get(key)
	assert.False(t, ok)
}
