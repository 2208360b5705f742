package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/scrubgo/record"
	"github.com/hupe1980/scrubgo/store"
	"github.com/hupe1980/scrubgo/store/storetest"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := New(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestStore_ContractCompressed(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := New(t.TempDir(), func(o *Options) {
			o.Compress = true
		})
		require.NoError(t, err)
		return s
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	f, err := record.New("/acq/1234567890_123456_20240101/rec.npx2",
		record.WithSize(2048), record.WithChecksum("CBF43926"))
	require.NoError(t, err)

	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, f))
	require.NoError(t, s.Close())

	reopened, err := New(dir)
	require.NoError(t, err)

	matches, err := reopened.GetMatches(ctx, f, record.Self)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestStore_ReadsLegacyDocument(t *testing.T) {
	dir := t.TempDir()

	// Document layout written by the original acquisition tooling: a map of
	// items with separate windows/posix path spellings.
	legacy := `{
  "rec.npx2": {
    "windows": "\\\\acq\\1234567890_123456_20240101\\rec.npx2",
    "posix": "/acq/1234567890_123456_20240101/rec.npx2",
    "crc32": "CBF43926",
    "size": 2048
  },
  "rec2.npx2": {
    "linux": "/acq/1234567890_123456_20240101/rec2.npx2",
    "crc32": "11111111",
    "size": 100
  }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1234567890_123456_20240101.json"), []byte(legacy), 0o644))

	s, err := New(dir)
	require.NoError(t, err)

	f, err := record.New("/acq/1234567890_123456_20240101/rec.npx2",
		record.WithSize(2048), record.WithChecksum("CBF43926"))
	require.NoError(t, err)

	matches, err := s.GetMatches(context.Background(), f, record.Self)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "/acq/1234567890_123456_20240101/rec.npx2", matches[0].Path())
}

func TestStore_LegacyWindowsOnlyPath(t *testing.T) {
	dir := t.TempDir()

	legacy := `{
  "rec.npx2": {
    "windows": "\\\\share\\1234567890_123456_20240101\\rec.npx2",
    "crc32": "CBF43926",
    "size": 2048
  }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1234567890_123456_20240101.json"), []byte(legacy), 0o644))

	s, err := New(dir)
	require.NoError(t, err)

	probe, err := record.New("//share/1234567890_123456_20240101/rec.npx2",
		record.WithSize(2048), record.WithChecksum("CBF43926"))
	require.NoError(t, err)

	matches, err := s.GetMatches(context.Background(), probe, record.Self)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestStore_MigratesLegacyToNativeOnAdd(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	legacy := `{
  "rec.npx2": {
    "posix": "/acq/1234567890_123456_20240101/rec.npx2",
    "crc32": "CBF43926",
    "size": 2048
  }
}`
	docPath := filepath.Join(dir, "1234567890_123456_20240101.json")
	require.NoError(t, os.WriteFile(docPath, []byte(legacy), 0o644))

	s, err := New(dir)
	require.NoError(t, err)

	added, err := record.New("/acq/1234567890_123456_20240101/rec2.npx2",
		record.WithSize(100), record.WithChecksum("11111111"))
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, added))

	// Rewritten document is the native array form and still holds both.
	data, err := os.ReadFile(docPath)
	require.NoError(t, err)
	assert.Equal(t, byte('['), data[0])

	reopened, err := New(dir)
	require.NoError(t, err)

	legacyProbe, err := record.New("/acq/1234567890_123456_20240101/rec.npx2",
		record.WithSize(2048), record.WithChecksum("CBF43926"))
	require.NoError(t, err)

	matches, err := reopened.GetMatches(ctx, legacyProbe, record.Self)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	matches, err = reopened.GetMatches(ctx, added, record.Self)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
