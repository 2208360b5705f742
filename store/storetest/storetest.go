// Package storetest provides the conformance suite every checksum store
// backend must pass. Backends call Run from their own tests with a factory
// producing a fresh, empty store.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/scrubgo/record"
	"github.com/hupe1980/scrubgo/store"
)

// Factory produces a fresh, empty store for a single subtest. Cleanup is
// registered on t by the factory itself.
type Factory func(t *testing.T) store.Store

// Run exercises the full store contract against the backend under test.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("add then match self", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		f := mustFile(t, "/acq/1234567890_123456_20240101/rec.npx2",
			record.WithSize(2048), record.WithChecksum("CBF43926"))

		require.NoError(t, s.Add(ctx, f))

		matches, err := s.GetMatches(ctx, f, record.Self)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		require.Equal(t, f.Path(), matches[0].Path())

		cs, ok := matches[0].Checksum()
		require.True(t, ok)
		require.Equal(t, "CBF43926", cs)
	})

	t.Run("add is idempotent", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		f := mustFile(t, "/acq/1234567890_123456_20240101/rec.npx2",
			record.WithSize(2048), record.WithChecksum("CBF43926"))

		require.NoError(t, s.Add(ctx, f))
		require.NoError(t, s.Add(ctx, f))
		require.NoError(t, s.Add(ctx, f))

		matches, err := s.GetMatches(ctx, f, record.Self)
		require.NoError(t, err)
		require.Len(t, matches, 1)
	})

	t.Run("partitions are isolated", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		a := mustFile(t, "/acq/1234567890_123456_20240101/rec.npx2",
			record.WithSize(2048), record.WithChecksum("CBF43926"))
		b := mustFile(t, "/acq/1234567890_123456_20240102/rec.npx2",
			record.WithSize(2048), record.WithChecksum("CBF43926"))

		require.NoError(t, s.Add(ctx, a))

		matches, err := s.GetMatches(ctx, b)
		require.NoError(t, err)
		require.Empty(t, matches)
	})

	t.Run("default filter drops unrelated", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		stored := mustFile(t, "/acq/1234567890_123456_20240101/other.npx2",
			record.WithSize(100), record.WithChecksum("11111111"))
		probe := mustFile(t, "/acq/1234567890_123456_20240101/rec.npx2",
			record.WithSize(2048), record.WithChecksum("CBF43926"))

		require.NoError(t, s.Add(ctx, stored))

		matches, err := s.GetMatches(ctx, probe)
		require.NoError(t, err)
		require.Empty(t, matches)
	})

	t.Run("kind filter selects copies", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		original := mustFile(t, "/acq/1234567890_123456_20240101/rec.npx2",
			record.WithSize(2048), record.WithChecksum("CBF43926"))
		sameName := mustFile(t, "/backup/1234567890_123456_20240101/rec.npx2",
			record.WithSize(2048), record.WithChecksum("CBF43926"))
		renamed := mustFile(t, "/backup/1234567890_123456_20240101/rec_copy.npx2",
			record.WithSize(2048), record.WithChecksum("CBF43926"))

		require.NoError(t, s.Add(ctx, sameName))
		require.NoError(t, s.Add(ctx, renamed))

		matches, err := s.GetMatches(ctx, original, record.ValidCopySameName)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		require.Equal(t, sameName.Path(), matches[0].Path())

		matches, err = s.GetMatches(ctx, original, record.ValidCopyKinds()...)
		require.NoError(t, err)
		require.Len(t, matches, 2)
	})

	t.Run("checksumless entries remain visible", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		bare := mustFile(t, "/acq/1234567890_123456_20240101/rec.npx2",
			record.WithSize(2048))
		probe := mustFile(t, "/acq/1234567890_123456_20240101/rec.npx2",
			record.WithSize(2048), record.WithChecksum("CBF43926"))

		require.NoError(t, s.Add(ctx, bare))

		// The probe carries the checksum and the stored entry lacks it, so
		// the relationship is OTHER_NO_CHECKSUM from the probe's side.
		matches, err := s.GetMatches(ctx, probe, record.OtherNoChecksum)
		require.NoError(t, err)
		require.Len(t, matches, 1)

		_, ok := matches[0].Checksum()
		require.False(t, ok)
	})

	t.Run("checksums are never rewritten in place", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		bare := mustFile(t, "/acq/1234567890_123456_20240101/rec.npx2",
			record.WithSize(2048))
		hashed := mustFile(t, "/acq/1234567890_123456_20240101/rec.npx2",
			record.WithSize(2048), record.WithChecksum("CBF43926"))

		require.NoError(t, s.Add(ctx, bare))
		require.NoError(t, s.Add(ctx, hashed))

		// Both generations coexist: the checksumless original and the
		// checksummed successor.
		matches, err := s.GetMatches(ctx, hashed, record.Self)
		require.NoError(t, err)
		require.Len(t, matches, 1)

		matches, err = s.GetMatches(ctx, hashed, record.OtherNoChecksum)
		require.NoError(t, err)
		require.Len(t, matches, 1)

		_, ok := matches[0].Checksum()
		require.False(t, ok)
	})
}

func mustFile(t *testing.T, path string, opts ...record.Option) *record.File {
	t.Helper()

	f, err := record.New(path, opts...)
	require.NoError(t, err)

	return f
}
