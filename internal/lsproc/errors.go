// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsproc

import "errors"

var (
	ErrServerNotRunning     = errors.New("lsproc: server not running")
	ErrServerNotInstalled   = errors.New("lsproc: server binary not installed")
	ErrUnsupportedLanguage  = errors.New("lsproc: unsupported language")
	ErrInitializeFailed     = errors.New("lsproc: initialize failed")
	ErrServerCrashed        = errors.New("lsproc: server crashed")
	ErrServerAlreadyStarted = errors.New("lsproc: server already started")
	ErrServerDown           = errors.New("lsproc: server down")
	ErrManagerStopped       = errors.New("lsproc: manager stopped")
)
