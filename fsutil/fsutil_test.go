package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(src, "css", "site.css"), []byte("body{}")))
	require.NoError(t, WriteFile(filepath.Join(src, "logo.svg"), []byte("<svg/>")))

	dst := filepath.Join(t.TempDir(), "theme")
	require.NoError(t, CopyTree(src, dst))

	raw, err := os.ReadFile(filepath.Join(dst, "css", "site.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(raw))
	assert.FileExists(t, filepath.Join(dst, "logo.svg"))
}

func TestReplaceDir(t *testing.T) {
	root := t.TempDir()
	final := filepath.Join(root, "dist")
	require.NoError(t, WriteFile(filepath.Join(final, "old.html"), []byte("old")))

	staged := filepath.Join(root, "staged")
	require.NoError(t, WriteFile(filepath.Join(staged, "index.html"), []byte("new")))

	require.NoError(t, ReplaceDir(staged, final))
	assert.FileExists(t, filepath.Join(final, "index.html"))
	assert.NoFileExists(t, filepath.Join(final, "old.html"))
	assert.NoDirExists(t, staged)
	assert.NoDirExists(t, final+".old")
}

func TestReplaceDirWithoutPreviousOutput(t *testing.T) {
	root := t.TempDir()
	staged := filepath.Join(root, "staged")
	require.NoError(t, WriteFile(filepath.Join(staged, "index.html"), []byte("new")))

	final := filepath.Join(root, "nested", "dist")
	require.NoError(t, ReplaceDir(staged, final))
	assert.FileExists(t, filepath.Join(final, "index.html"))
}
