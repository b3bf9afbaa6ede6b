// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lsproc owns the lifecycle of a single Language Server
// subprocess (Server) and the per-project fleet of such subprocesses
// (Manager): spawning, the initialize handshake, per-file open/change
// bookkeeping, and graceful-then-forced shutdown.
package lsproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/symbolengine/serenad/internal/lspwire"
	"github.com/symbolengine/serenad/internal/transport"
)

// ServerState is the lifecycle state of one Language Server subprocess.
type ServerState int

const (
	ServerStateUninitialized ServerState = iota
	ServerStateStarting
	ServerStateReady
	ServerStateStopping
	ServerStateStopped
	ServerStateFailed
)

func (s ServerState) String() string {
	names := []string{"uninitialized", "starting", "ready", "stopping", "stopped", "failed"}
	if int(s) < 0 || int(s) >= len(names) {
		return "unknown"
	}
	return names[s]
}

// fileEntry tracks one open file's version and content hash against a
// single Language Server.
type fileEntry struct {
	uri         string
	openVersion int
	contentHash string
}

// Server wraps one Language Server subprocess, its transport, and the
// open-file bookkeeping needed to keep the subprocess's view of a
// project's files converged with their on-disk content.
type Server struct {
	id       uuid.UUID
	config   LanguageConfig
	rootPath string

	cmd   *exec.Cmd
	stdin io.WriteCloser

	tr *transport.Transport

	capabilities lspwire.ServerCapabilities

	state   ServerState
	stateMu sync.RWMutex

	filesMu sync.Mutex
	files   map[string]*fileEntry

	ctx    context.Context
	cancel context.CancelFunc

	readDone chan struct{}

	lastUsed   time.Time
	lastUsedMu sync.Mutex

	logger *slog.Logger
}

// NewServer constructs a Server in the Uninitialized state. Start must
// be called before any other operation.
func NewServer(config LanguageConfig, rootPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		id:       uuid.New(),
		config:   config,
		rootPath: rootPath,
		files:    make(map[string]*fileEntry),
		logger:   logger,
	}
}

// ID returns the UUID minted for this instance at construction, used to
// namespace cache keys so a symbol tree cached under one Language Server
// is never confused for one produced by another.
func (s *Server) ID() uuid.UUID { return s.id }

// Start spawns the subprocess and runs the initialize/initialized
// handshake. ctx bounds only the handshake itself; the subprocess and
// its reader loop run against an independent context that outlives ctx.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("lsproc: ctx must not be nil")
	}
	if s.State() != ServerStateUninitialized {
		return ErrServerAlreadyStarted
	}
	s.setState(ServerStateStarting)

	path, err := exec.LookPath(s.config.Command)
	if err != nil {
		s.setState(ServerStateFailed)
		return fmt.Errorf("%w: %s: %v", ErrServerNotInstalled, s.config.Command, err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	cmd := exec.CommandContext(s.ctx, path, s.config.Args...)
	cmd.Dir = s.rootPath
	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.setState(ServerStateFailed)
		return fmt.Errorf("lsproc: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.setState(ServerStateFailed)
		return fmt.Errorf("lsproc: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		s.setState(ServerStateFailed)
		return fmt.Errorf("lsproc: start %s: %w", s.config.Command, err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.tr = transport.New(stdout, stdin)
	s.tr.OnNotification("window/logMessage", s.handleLogMessage)

	s.readDone = make(chan struct{})
	go func() {
		defer close(s.readDone)
		_ = s.tr.ReadLoop(s.ctx)
	}()
	go s.watchProcessDeath()

	if err := s.initialize(ctx); err != nil {
		recordServerSpawn(ctx, s.config.Language, false)
		s.setState(ServerStateFailed)
		_ = s.Shutdown(ctx)
		return fmt.Errorf("%w: %v", ErrInitializeFailed, err)
	}

	s.setState(ServerStateReady)
	s.touchLastUsed()
	recordServerSpawn(ctx, s.config.Language, true)
	s.logger.Info("language server ready",
		slog.String("language", s.config.Language),
		slog.String("command", s.config.Command),
		slog.String("ls_id", s.id.String()),
		slog.Bool("hover", s.capabilities.HasHoverProvider()),
		slog.Bool("rename", s.capabilities.HasRenameProvider()),
		slog.Bool("document_symbol", s.capabilities.HasDocumentSymbolProvider()))
	return nil
}

func (s *Server) handleLogMessage(params json.RawMessage) {
	var v struct {
		Type    int    `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return
	}
	s.logger.Debug("language server log", slog.String("ls_id", s.id.String()), slog.String("message", v.Message))
}

func (s *Server) initialize(ctx context.Context) error {
	params := lspwire.InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   pathToURI(s.rootPath),
		RootPath:  s.rootPath,
		Capabilities: lspwire.ClientCapabilities{
			TextDocument: lspwire.TextDocumentClientCapabilities{
				Synchronization: &lspwire.TextDocumentSyncClientCapabilities{DidSave: true},
				Definition:      &lspwire.DefinitionCapabilities{},
				References:      &lspwire.ReferencesCapabilities{},
				Hover:           &lspwire.HoverCapabilities{ContentFormat: []string{"markdown", "plaintext"}},
				Rename:          &lspwire.RenameCapabilities{PrepareSupport: true},
				DocumentSymbol:  &lspwire.DocumentSymbolCapabilities{HierarchicalDocumentSymbolSupport: true},
			},
			Workspace: lspwire.WorkspaceClientCapabilities{
				ApplyEdit:     true,
				WorkspaceEdit: &lspwire.WorkspaceEditClientCapabilities{DocumentChanges: true},
				Symbol:        &lspwire.WorkspaceSymbolClientCapabilities{},
			},
		},
		WorkspaceFolders: []lspwire.WorkspaceFolder{{URI: pathToURI(s.rootPath), Name: "workspace"}},
	}
	if s.config.InitializationOptions != nil {
		params.InitializationOptions = s.config.InitializationOptions
	}

	raw, err := s.tr.Call(ctx, "initialize", params)
	if err != nil {
		return err
	}
	var result lspwire.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("lsproc: decode initialize result: %w", err)
	}
	s.capabilities = result.Capabilities

	return s.tr.Notify("initialized", struct{}{})
}

// Shutdown sends shutdown/exit, waits briefly for the subprocess to
// exit, then force-kills it. It is idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	state := s.State()
	if state == ServerStateStopped || state == ServerStateStopping {
		return nil
	}
	s.setState(ServerStateStopping)
	defer s.cleanup()

	if s.tr != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, _ = s.tr.Call(shutdownCtx, "shutdown", nil)
		cancel()
		_ = s.tr.Notify("exit", nil)
		s.tr.Close()
	}
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		done := make(chan error, 1)
		go func() { done <- s.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			_ = s.cmd.Process.Kill()
			<-done
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.readDone != nil {
		select {
		case <-s.readDone:
		case <-time.After(time.Second):
		}
	}
	return nil
}

// watchProcessDeath waits for the read loop to end, which happens both
// on a deliberate Shutdown (ctx cancelled) and on the subprocess dying
// out from under this Server (transport EOF/read error). Shutdown
// always moves state to Stopping before tearing anything down, so
// seeing Ready here means the read loop ended for the latter reason:
// the server is flipped to Failed so the next Request/Notify reports
// ErrServerDown instead of hanging on a dead transport.
func (s *Server) watchProcessDeath() {
	<-s.readDone
	if s.State() != ServerStateReady {
		return
	}
	s.logger.Warn("language server terminated unexpectedly",
		slog.String("language", s.config.Language),
		slog.String("ls_id", s.id.String()),
		slog.Any("error", ErrServerCrashed))
	s.setState(ServerStateFailed)
}

func (s *Server) cleanup() {
	s.filesMu.Lock()
	s.files = make(map[string]*fileEntry)
	s.filesMu.Unlock()
	s.setState(ServerStateStopped)
}

func (s *Server) State() ServerState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Server) setState(state ServerState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

func (s *Server) Language() string            { return s.config.Language }
func (s *Server) RootPath() string            { return s.rootPath }
func (s *Server) Capabilities() lspwire.ServerCapabilities { return s.capabilities }

func (s *Server) LastUsed() time.Time {
	s.lastUsedMu.Lock()
	defer s.lastUsedMu.Unlock()
	return s.lastUsed
}

func (s *Server) touchLastUsed() {
	s.lastUsedMu.Lock()
	s.lastUsed = time.Now()
	s.lastUsedMu.Unlock()
}

// Request issues a request, requiring the server to be Ready. It
// returns ErrServerDown if the subprocess has crashed since it was last
// Ready, or ErrServerNotRunning for any other non-Ready state.
func (s *Server) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if ctx == nil {
		return nil, fmt.Errorf("lsproc: ctx must not be nil")
	}
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	s.touchLastUsed()
	return s.tr.Call(ctx, method, params)
}

// Notify sends a notification, requiring the server to be Ready. See
// Request for the ErrServerDown/ErrServerNotRunning distinction.
func (s *Server) Notify(method string, params interface{}) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	s.touchLastUsed()
	return s.tr.Notify(method, params)
}

func (s *Server) requireReady() error {
	switch s.State() {
	case ServerStateReady:
		return nil
	case ServerStateFailed:
		return ErrServerDown
	default:
		return ErrServerNotRunning
	}
}

// EnsureOpen opens path at content if not already open at its current
// hash, or sends didChange if the tracked hash is stale. It returns
// whether the file was (re)synced and the file's current content hash.
func (s *Server) EnsureOpen(ctx context.Context, path, content string) (hash string, changed bool, err error) {
	hash = hashContent(content)
	uri := pathToURI(path)

	s.filesMu.Lock()
	entry, ok := s.files[path]
	s.filesMu.Unlock()

	if !ok {
		if err := s.Notify("textDocument/didOpen", lspwire.DidOpenTextDocumentParams{
			TextDocument: lspwire.TextDocumentItem{URI: uri, LanguageID: s.config.Language, Version: 1, Text: content},
		}); err != nil {
			return "", false, err
		}
		s.filesMu.Lock()
		s.files[path] = &fileEntry{uri: uri, openVersion: 1, contentHash: hash}
		s.filesMu.Unlock()
		return hash, true, nil
	}

	if entry.contentHash == hash {
		return hash, false, nil
	}

	newVersion := entry.openVersion + 1
	if err := s.Notify("textDocument/didChange", lspwire.DidChangeTextDocumentParams{
		TextDocument:   lspwire.VersionedTextDocumentIdentifier{URI: uri, Version: newVersion},
		ContentChanges: []lspwire.TextDocumentContentChangeEvent{{Text: content}},
	}); err != nil {
		return "", false, err
	}
	s.filesMu.Lock()
	entry.openVersion = newVersion
	entry.contentHash = hash
	s.filesMu.Unlock()
	return hash, true, nil
}

// ReleaseFile closes path (if open), forgetting its tracked version.
func (s *Server) ReleaseFile(ctx context.Context, path string) error {
	if ctx == nil {
		return fmt.Errorf("lsproc: ctx must not be nil")
	}
	s.filesMu.Lock()
	entry, ok := s.files[path]
	delete(s.files, path)
	s.filesMu.Unlock()
	if !ok || s.State() != ServerStateReady {
		return nil
	}
	return s.Notify("textDocument/didClose", lspwire.DidCloseTextDocumentParams{
		TextDocument: lspwire.TextDocumentIdentifier{URI: entry.uri},
	})
}

// ReopenFile force-closes then reopens path at content, bypassing the
// content-hash comparison EnsureOpen relies on. Intended for callers
// that know a file changed out from under this process, e.g. a VCS
// checkout, and want a clean resync rather than relying on the next
// semantic request to notice the stale hash.
func (s *Server) ReopenFile(ctx context.Context, path, content string) error {
	if err := s.ReleaseFile(ctx, path); err != nil {
		return err
	}
	_, _, err := s.EnsureOpen(ctx, path, content)
	return err
}

func (s *Server) OpenVersion(path string) (int, bool) {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()
	entry, ok := s.files[path]
	if !ok {
		return 0, false
	}
	return entry.openVersion, true
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// HashContent is the content hash used to key SymbolCache records and to
// detect on-disk mutation between a symbol lookup and a later edit. It is
// exported so callers outside this package (the cache and edit engine) key
// against the exact same digest this package uses for didChange detection.
func HashContent(content string) string { return hashContent(content) }

func pathToURI(path string) string {
	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

func uriToPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	if u.Scheme != "file" {
		return uri
	}
	return u.Path
}
