package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.dat")
	payload := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, payload, m.Bytes())
	assert.Equal(t, int64(len(payload)), m.Size())
}

func TestReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.dat")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	buf := make([]byte, 4)
	n, err := m.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(buf))

	_, err = m.ReadAt(buf, 8)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpen_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.dat")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Empty(t, m.Bytes())
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.dat"))
	assert.Error(t, err)
}
