// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsproc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectRegistry_ReactivatingSameRootIsNoOp(t *testing.T) {
	reg := NewProjectRegistry(DefaultManagerConfig(), nil, nil)
	root := t.TempDir()

	m1, err := reg.Activate(context.Background(), root)
	require.NoError(t, err)
	m2, err := reg.Activate(context.Background(), root)
	require.NoError(t, err)

	assert.Same(t, m1, m2)
}

func TestProjectRegistry_ActivatingDifferentRootReplacesManager(t *testing.T) {
	reg := NewProjectRegistry(DefaultManagerConfig(), nil, nil)
	rootA := t.TempDir()
	rootB := t.TempDir()

	m1, err := reg.Activate(context.Background(), rootA)
	require.NoError(t, err)
	m2, err := reg.Activate(context.Background(), rootB)
	require.NoError(t, err)

	assert.NotSame(t, m1, m2)
	assert.Equal(t, rootB, reg.ActiveRoot())
}

func TestProjectRegistry_ShutdownActive_ClearsState(t *testing.T) {
	reg := NewProjectRegistry(DefaultManagerConfig(), nil, nil)
	root := t.TempDir()
	_, err := reg.Activate(context.Background(), root)
	require.NoError(t, err)

	require.NoError(t, reg.ShutdownActive(context.Background()))
	assert.Nil(t, reg.Active())
	assert.Empty(t, reg.ActiveRoot())
}
