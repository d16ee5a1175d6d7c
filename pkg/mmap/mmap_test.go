package mmap

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestOpenReadClose(t *testing.T) {
	content := []byte("Hello, Mmap!")
	m, err := Open(writeTemp(t, content))
	require.NoError(t, err)

	assert.Equal(t, len(content), m.Len())
	assert.Equal(t, content, m.Bytes())

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "Mmap!", string(buf))

	n, err = m.ReadAt(make([]byte, 10), 7)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)

	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
	require.NoError(t, m.Close())

	_, err = m.ReadAt(buf, 0)
	assert.Equal(t, ErrClosed, err)
}

func TestOpenEmptyFile(t *testing.T) {
	m, err := Open(writeTemp(t, nil))
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Bytes())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileWindows(t *testing.T) {
	gran := Granularity()
	content := make([]byte, 3*gran+17)
	for i := range content {
		content[i] = byte(i % 251)
	}
	f, err := OpenFile(writeTemp(t, content))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(len(content)), f.Size())

	for off := 0; off < len(content); off += gran {
		length := gran
		if off+length > len(content) {
			length = len(content) - off
		}
		w, err := f.Map(int64(off), length)
		require.NoError(t, err)
		assert.Equal(t, content[off:off+length], w.Bytes())
		require.NoError(t, w.Close())
	}
}

func TestFileMapRejectsBadWindows(t *testing.T) {
	gran := Granularity()
	f, err := OpenFile(writeTemp(t, make([]byte, 2*gran)))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Map(1, 10)
	assert.ErrorIs(t, err, ErrInvalidOffset)

	_, err = f.Map(int64(gran), 2*gran)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	empty, err := f.Map(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	require.NoError(t, empty.Close())
}

func TestMappingOutlivesFile(t *testing.T) {
	content := []byte("still readable after the descriptor is closed")
	f, err := OpenFile(writeTemp(t, content))
	require.NoError(t, err)
	m, err := f.Map(0, len(content))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, content, m.Bytes())
	require.NoError(t, m.Close())

	_, err = f.Map(0, 1)
	assert.ErrorIs(t, err, ErrClosed)
}
