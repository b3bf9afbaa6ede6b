// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cache is the content-hash-keyed persistent store of per-file
// symbol trees (C3): a key derived from (filePath, contentHash, lsId)
// maps to a self-describing envelope holding the serialized Symbol
// tree. Loss of the directory backing the cache must never change
// observable behavior — every miss, including a corrupt or
// schema-mismatched record, is treated as a cache miss, never an error.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/symbolengine/serenad/internal/symbol"
)

// SchemaVersion identifies the on-disk record layout, including the
// choice of SHA-256 as the content hash algorithm. Bumping it makes
// every existing record a miss rather than risking a misparsed one.
const SchemaVersion = 1

// Key identifies one cached symbol tree: a specific file at a specific
// on-disk content hash, as seen by a specific Language Server instance.
// Including LSID (Open Question (c) in the design notes) prevents a
// symbol tree produced by one language server from being served back
// for a different one after a project reconfigures its LS.
type Key struct {
	FilePath    string
	ContentHash string
	LSID        uuid.UUID
}

func (k Key) fileName() string {
	sum := sha256.Sum256([]byte(k.FilePath + "\x00" + k.ContentHash + "\x00" + k.LSID.String()))
	return hex.EncodeToString(sum[:]) + ".symbols"
}

// Record is the self-describing envelope persisted for one Key.
type Record struct {
	SchemaVersion int          `json:"schemaVersion"`
	FilePath      string       `json:"filePath"`
	ContentHash   string       `json:"contentHash"`
	LSID          uuid.UUID    `json:"lsId"`
	ProducedAt    time.Time    `json:"producedAt"`
	Symbols       *symbol.Tree `json:"symbols"`
}

// Cache is a directory-backed key/value store of Records, one file per
// key. It has no required size bound; Evict and an optional mtime-based
// Prune are the only eviction paths.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// New returns a Cache rooted at dir. dir is created lazily on first Put;
// a Cache over a directory that doesn't exist yet behaves as entirely
// empty (every Get is a miss).
func New(dir string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{dir: dir, logger: logger}
}

func (c *Cache) Dir() string { return c.dir }

// Get returns the record for key, or (nil, false) on any miss: absent
// file, unreadable file, corrupt JSON, or a schema version mismatch.
// Cache errors are never propagated to the caller, per §7's propagation
// policy (downgraded to misses, logged at debug).
func (c *Cache) Get(key Key) (*Record, bool) {
	path := filepath.Join(c.dir, key.fileName())
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Debug("cache: corrupt record, treating as miss", slog.String("path", path), slog.Any("error", err))
		return nil, false
	}
	if rec.SchemaVersion != SchemaVersion {
		return nil, false
	}
	if rec.FilePath != key.FilePath || rec.ContentHash != key.ContentHash || rec.LSID != key.LSID {
		return nil, false
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		c.logger.Debug("cache: touch on read failed", slog.String("path", path), slog.Any("error", err))
	}
	return &rec, true
}

// Put atomically writes symbols under key: write to a temp file in the
// same directory, then rename into place. Concurrent Puts for the same
// key are safe; whichever rename lands last wins.
func (c *Cache) Put(key Key, symbols *symbol.Tree) error {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return fmt.Errorf("cache: mkdir: %w", err)
	}
	rec := Record{
		SchemaVersion: SchemaVersion,
		FilePath:      key.FilePath,
		ContentHash:   key.ContentHash,
		LSID:          key.LSID,
		ProducedAt:    time.Now(),
		Symbols:       symbols,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: marshal record: %w", err)
	}

	final := filepath.Join(c.dir, key.fileName())
	tmp, err := os.CreateTemp(c.dir, "tmp-*.symbols")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: rename into place: %w", err)
	}
	return nil
}

// Evict removes every record for filePath regardless of content hash or
// LSID, used after a file is deleted or renamed out from under a
// tracked project. Since records are keyed by an opaque hash of the
// tuple, eviction by path alone requires reading each record's header;
// this is the cost of the no-size-bound, no-index design.
func (c *Cache) Evict(filePath string) error {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: read dir: %w", err)
	}
	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".symbols") {
			continue
		}
		full := filepath.Join(c.dir, entry.Name())
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		var header struct {
			FilePath string `json:"filePath"`
		}
		if err := json.Unmarshal(data, &header); err != nil {
			continue
		}
		if header.FilePath != filePath {
			continue
		}
		if err := os.Remove(full); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Prune removes every record whose file hasn't been read (via Get) or
// written (via Put) more recently than olderThan. It is an optional LRU
// pass; the cache has no other size bound.
func (c *Cache) Prune(olderThan time.Time) error {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: read dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".symbols") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(olderThan) {
			_ = os.Remove(filepath.Join(c.dir, entry.Name()))
		}
	}
	return nil
}
