package sidecar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairWorkspaceSkeleton(t *testing.T) {
	dir := t.TempDir()
	require.True(t, WorkspaceSkeletonMissing(dir))

	require.NoError(t, RepairWorkspaceSkeleton(dir))
	assert.False(t, WorkspaceSkeletonMissing(dir))

	for _, name := range coreWorkspaceFiles {
		content, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, content, name)
	}
	for _, name := range coreWorkspaceDirs {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.True(t, info.IsDir(), name)
	}
}

func TestRepairWorkspaceSkeletonKeepsContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SOUL.md"), []byte("custom soul"), 0o644))

	require.NoError(t, RepairWorkspaceSkeleton(dir))

	content, err := os.ReadFile(filepath.Join(dir, "SOUL.md"))
	require.NoError(t, err)
	assert.Equal(t, "custom soul", string(content))
}

func TestWorkspaceEffectivelyEmpty(t *testing.T) {
	dir := t.TempDir()

	empty, err := workspaceEffectivelyEmpty(dir)
	require.NoError(t, err)
	assert.True(t, empty)

	empty, err = workspaceEffectivelyEmpty(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.True(t, empty, "nonexistent dir counts as empty")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), nil, 0o644))
	empty, err = workspaceEffectivelyEmpty(dir)
	require.NoError(t, err)
	assert.True(t, empty, "finder droppings do not count")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "IDENTITY.md"), []byte("x"), 0o644))
	empty, err = workspaceEffectivelyEmpty(dir)
	require.NoError(t, err)
	assert.False(t, empty)
}
