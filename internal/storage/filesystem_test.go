package storage

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileSystem(t *testing.T) {
	t.Parallel()

	t.Run("write then read round trip", func(t *testing.T) {
		t.Parallel()
		fs := NewMemoryFileSystem()
		require.NoError(t, fs.WriteFile("/a/b/c.txt", []byte("hello"), 0644))

		data, err := fs.ReadFile("/a/b/c.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)
		assert.True(t, fs.Exists("/a/b/c.txt"))
		assert.True(t, fs.Exists("/a/b"))
	})

	t.Run("open missing file", func(t *testing.T) {
		t.Parallel()
		fs := NewMemoryFileSystem()
		_, err := fs.Open("/nope")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("create writer flushes on close", func(t *testing.T) {
		t.Parallel()
		fs := NewMemoryFileSystem()
		w, err := fs.Create("/out.bin")
		require.NoError(t, err)
		_, err = w.Write([]byte("abc"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		f, err := fs.Open("/out.bin")
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "abc", string(data))
	})

	t.Run("read dir lists immediate children sorted", func(t *testing.T) {
		t.Parallel()
		fs := NewMemoryFileSystem()
		require.NoError(t, fs.WriteFile("/frames/cam01/000001.jpg", nil, 0644))
		require.NoError(t, fs.WriteFile("/frames/cam01/000000.jpg", nil, 0644))
		require.NoError(t, fs.WriteFile("/frames/cam02/000000.jpg", nil, 0644))

		names, err := fs.ReadDir("/frames")
		require.NoError(t, err)
		assert.Equal(t, []string{"cam01", "cam02"}, names)

		names, err = fs.ReadDir("/frames/cam01")
		require.NoError(t, err)
		assert.Equal(t, []string{"000000.jpg", "000001.jpg"}, names)
	})

	t.Run("rename moves content", func(t *testing.T) {
		t.Parallel()
		fs := NewMemoryFileSystem()
		require.NoError(t, fs.WriteFile("/stage.tmp", []byte("x"), 0644))
		require.NoError(t, fs.Rename("/stage.tmp", "/stage.db"))
		assert.False(t, fs.Exists("/stage.tmp"))
		data, err := fs.ReadFile("/stage.db")
		require.NoError(t, err)
		assert.Equal(t, "x", string(data))
	})

	t.Run("remove all clears subtree", func(t *testing.T) {
		t.Parallel()
		fs := NewMemoryFileSystem()
		require.NoError(t, fs.WriteFile("/d/x", nil, 0644))
		require.NoError(t, fs.WriteFile("/d/sub/y", nil, 0644))
		require.NoError(t, fs.RemoveAll("/d"))
		assert.False(t, fs.Exists("/d/x"))
		assert.False(t, fs.Exists("/d/sub/y"))
		assert.False(t, fs.Exists("/d"))
	})
}

func TestGlob(t *testing.T) {
	t.Parallel()
	fs := NewMemoryFileSystem()
	require.NoError(t, fs.WriteFile("/vis/cam01/00000.jpg", nil, 0644))
	require.NoError(t, fs.WriteFile("/vis/cam01/00001.jpg", nil, 0644))
	require.NoError(t, fs.WriteFile("/vis/cam01/notes.txt", nil, 0644))

	names, err := Glob(fs, "/vis/cam01", ".jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{"00000.jpg", "00001.jpg"}, names)
}
