package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("binary"), 0o600))

	tests := []struct {
		name         string
		opts         []CopyOpt
		expectedPerm os.FileMode
	}{
		{
			name:         "keeps source permissions",
			expectedPerm: 0o600,
		},
		{
			name:         "dest permissions",
			opts:         []CopyOpt{WithDestPermissions(0o755)},
			expectedPerm: 0o755,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := filepath.Join(t.TempDir(), "dst")
			require.NoError(t, CopyFile(src, dst, tt.opts...))

			content, err := os.ReadFile(dst)
			require.NoError(t, err)
			assert.Equal(t, "binary", string(content))

			info, err := os.Stat(dst)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedPerm, info.Mode().Perm())
		})
	}

	t.Run("overwrites existing file", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "dst")
		require.NoError(t, os.WriteFile(dst, []byte("previous contents that are longer"), 0o644))
		require.NoError(t, CopyFile(src, dst))

		content, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "binary", string(content))
	})

	t.Run("missing source", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "dst")
		require.Error(t, CopyFile(filepath.Join(dir, "nope"), dst))
		assert.False(t, Exists(dst))
	})

	t.Run("directory source", func(t *testing.T) {
		require.Error(t, CopyFile(dir, filepath.Join(t.TempDir(), "dst")))
	})
}

func TestCopyDir(t *testing.T) {
	src := filepath.Join(t.TempDir(), "OLoveBar.app")
	macos := filepath.Join(src, "Contents", "MacOS")
	require.NoError(t, os.MkdirAll(macos, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(macos, "OLoveBar"), []byte("exe"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Contents", "PkgInfo"), []byte("APPL????"), 0o644))
	require.NoError(t, os.Symlink("MacOS/OLoveBar", filepath.Join(src, "Contents", "current")))

	dst := filepath.Join(t.TempDir(), "copy.app")
	require.NoError(t, CopyDir(src, dst))

	info, err := os.Stat(filepath.Join(dst, "Contents", "MacOS", "OLoveBar"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	content, err := os.ReadFile(filepath.Join(dst, "Contents", "PkgInfo"))
	require.NoError(t, err)
	assert.Equal(t, "APPL????", string(content))

	link, err := os.Readlink(filepath.Join(dst, "Contents", "current"))
	require.NoError(t, err)
	assert.Equal(t, "MacOS/OLoveBar", link)

	t.Run("existing destination", func(t *testing.T) {
		require.Error(t, CopyDir(src, dst))
	})

	t.Run("file source", func(t *testing.T) {
		require.Error(t, CopyDir(filepath.Join(src, "Contents", "PkgInfo"), filepath.Join(t.TempDir(), "x")))
	})
}

func TestIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	ok, err := IsFile(file)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsFile(dir)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsFile(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}
