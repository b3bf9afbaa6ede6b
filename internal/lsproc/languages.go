// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsproc

import (
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/mod/modfile"
)

// LanguageConfig names the subprocess to spawn for a language, which file
// extensions route to it, and which filenames mark a project root.
type LanguageConfig struct {
	Language              string
	Command               string
	Args                  []string
	Extensions            []string
	RootFiles             []string
	InitializationOptions interface{}
}

// ConfigRegistry maps languages and file extensions to LanguageConfig.
type ConfigRegistry struct {
	mu         sync.RWMutex
	byLanguage map[string]LanguageConfig
	byExt      map[string]string
}

// NewConfigRegistry returns a registry pre-populated with the languages
// this orchestrator ships support for out of the box.
func NewConfigRegistry() *ConfigRegistry {
	r := &ConfigRegistry{
		byLanguage: make(map[string]LanguageConfig),
		byExt:      make(map[string]string),
	}
	r.registerDefaults()
	return r
}

func (r *ConfigRegistry) registerDefaults() {
	defaults := []LanguageConfig{
		{Language: "go", Command: "gopls", Args: []string{"serve"}, Extensions: []string{".go"}, RootFiles: []string{"go.mod", "go.sum"}},
		{Language: "python", Command: "pyright-langserver", Args: []string{"--stdio"}, Extensions: []string{".py", ".pyi"}, RootFiles: []string{"pyproject.toml", "requirements.txt", "setup.py"}},
		{Language: "typescript", Command: "typescript-language-server", Args: []string{"--stdio"}, Extensions: []string{".ts", ".tsx"}, RootFiles: []string{"tsconfig.json", "package.json"}},
		{Language: "javascript", Command: "typescript-language-server", Args: []string{"--stdio"}, Extensions: []string{".js", ".jsx", ".mjs", ".cjs"}, RootFiles: []string{"package.json", "jsconfig.json"}},
		{Language: "rust", Command: "rust-analyzer", Extensions: []string{".rs"}, RootFiles: []string{"Cargo.toml"}},
		{Language: "java", Command: "jdtls", Extensions: []string{".java"}, RootFiles: []string{"pom.xml", "build.gradle", "build.gradle.kts"}},
		{Language: "c", Command: "clangd", Extensions: []string{".c", ".h"}, RootFiles: []string{"compile_commands.json", "CMakeLists.txt", "Makefile"}},
		{Language: "cpp", Command: "clangd", Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx"}, RootFiles: []string{"compile_commands.json", "CMakeLists.txt", "Makefile"}},
	}
	for _, c := range defaults {
		r.Register(c)
	}
}

// Register adds or replaces the config for a language. Extension mapping
// conflicts resolve in favor of the most recently registered config.
func (r *ConfigRegistry) Register(config LanguageConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLanguage[config.Language] = config
	for _, ext := range config.Extensions {
		r.byExt[ext] = config.Language
	}
}

func (r *ConfigRegistry) Get(language string) (LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byLanguage[language]
	return c, ok
}

func (r *ConfigRegistry) GetByExtension(ext string) (LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.byExt[ext]
	if !ok {
		return LanguageConfig{}, false
	}
	c := r.byLanguage[lang]
	return c, true
}

func (r *ConfigRegistry) LanguageForExtension(ext string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.byExt[ext]
	return lang, ok
}

func (r *ConfigRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		out = append(out, lang)
	}
	return out
}

func (r *ConfigRegistry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	return out
}

// LanguageForPath resolves the file-extension rule for path.
func (r *ConfigRegistry) LanguageForPath(path string) (string, bool) {
	return r.LanguageForExtension(filepath.Ext(path))
}

// GoModulePath reads the module path out of a go.mod at root, if present.
// It returns ("", false) when no go.mod exists or it cannot be parsed;
// absence of a go.mod is not itself an error condition for this orchestrator.
func GoModulePath(root string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", false
	}
	mf, err := modfile.Parse("go.mod", data, nil)
	if err != nil || mf.Module == nil {
		return "", false
	}
	return mf.Module.Mod.Path, true
}
