// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/symbolengine/serenad/internal/httpapi"
)

func TestRenderStatusPlain_EmptyFleet(t *testing.T) {
	out := renderStatusPlain(httpapi.StatusResponse{ProjectRoot: "/tmp/proj"})
	assert.Contains(t, out, "/tmp/proj")
	assert.Contains(t, out, "no language servers running")
}

func TestRenderStatusPlain_ListsLanguages(t *testing.T) {
	resp := httpapi.StatusResponse{
		ProjectRoot: "/tmp/proj",
		Languages: []httpapi.LanguageStatus{
			{Language: "go", ID: "abc-123", State: "Ready", IdleFor: "2s"},
		},
	}
	out := renderStatusPlain(resp)
	assert.Contains(t, out, "go")
	assert.Contains(t, out, "abc-123")
	assert.Contains(t, out, "Ready")
}

func TestRenderStatusTable_ListsLanguages(t *testing.T) {
	resp := httpapi.StatusResponse{
		ProjectRoot: "/tmp/proj",
		Languages: []httpapi.LanguageStatus{
			{Language: "python", ID: "xyz-789", State: "Starting", IdleFor: "0s"},
		},
	}
	out := renderStatusTable(resp)
	assert.Contains(t, out, "python")
	assert.Contains(t, out, "xyz-789")
}
