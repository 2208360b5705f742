package checksum

import (
	"context"
	"hash"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlgorithm_CheckVectors(t *testing.T) {
	// The standard CRC check string digests are published for both
	// polynomials, so the self-test vectors are independently verifiable.
	ctx := context.Background()

	crc, err := New()
	require.NoError(t, err)
	got, err := crc.Sum(ctx, strings.NewReader("123456789"))
	require.NoError(t, err)
	assert.Equal(t, "CBF43926", got)

	crcC, err := New(func(o *Options) { o.Algorithm = CRC32C{} })
	require.NoError(t, err)
	got, err = crcC.Sum(ctx, strings.NewReader("123456789"))
	require.NoError(t, err)
	assert.Equal(t, "E3069283", got)
}

// brokenAlgorithm claims a digest its hash cannot produce.
type brokenAlgorithm struct {
	CRC32
}

func (brokenAlgorithm) Check() ([]byte, string) { return []byte("123456789"), "00000000" }

func TestNew_SelfTestFailure(t *testing.T) {
	_, err := New(func(o *Options) { o.Algorithm = brokenAlgorithm{} })
	assert.ErrorIs(t, err, ErrSelfTest)
}

func TestEngine_ValidDigest(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8, e.DigestWidth())
	assert.True(t, e.ValidDigest("CBF43926"))
	assert.False(t, e.ValidDigest("cbf43926"))
	assert.False(t, e.ValidDigest("CBF4392"))
	assert.False(t, e.ValidDigest("CBF4392G"))
}

func writeSessionFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "1234567890_123456_20240101")
	require.NoError(t, os.MkdirAll(dir, 0o750))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()

	rng := rand.New(rand.NewSource(42))
	data := make([]byte, n)
	_, err := rng.Read(data)
	require.NoError(t, err)

	return data
}

func TestEngine_StrategiesAgree(t *testing.T) {
	// Several sizes around the chunk boundary; digests must be
	// byte-identical between buffered and mapped reads.
	ctx := context.Background()

	for _, size := range []int{1, DefaultChunkSize - 1, DefaultChunkSize, DefaultChunkSize + 1, 3*DefaultChunkSize + 17} {
		data := randomPayload(t, size)
		path := writeSessionFile(t, "rec.npx2", data)

		buffered, err := New(func(o *Options) { o.Strategy = Buffered })
		require.NoError(t, err)
		mapped, err := New(func(o *Options) { o.Strategy = Mapped })
		require.NoError(t, err)

		d1, err := buffered.Compute(ctx, path)
		require.NoError(t, err)
		d2, err := mapped.Compute(ctx, path)
		require.NoError(t, err)

		assert.Equal(t, d1, d2, "size %d", size)
	}
}

func TestEngine_ChunkSizeInvariance(t *testing.T) {
	ctx := context.Background()
	data := randomPayload(t, 10_000)
	path := writeSessionFile(t, "rec.npx2", data)

	small, err := New(func(o *Options) { o.ChunkSize = 7 })
	require.NoError(t, err)
	large, err := New(func(o *Options) { o.ChunkSize = 1 << 20 })
	require.NoError(t, err)

	d1, err := small.Compute(ctx, path)
	require.NoError(t, err)
	d2, err := large.Compute(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}

func TestEngine_SumStateIsRestartable(t *testing.T) {
	ctx := context.Background()
	data := randomPayload(t, 5000)

	e, err := New()
	require.NoError(t, err)

	whole, err := e.Sum(ctx, strings.NewReader(string(data)))
	require.NoError(t, err)

	// Same bytes in two installments through one persistent state.
	var h hash.Hash = e.NewState()
	_, err = e.SumState(ctx, h, strings.NewReader(string(data[:2000])))
	require.NoError(t, err)
	resumed, err := e.SumState(ctx, h, strings.NewReader(string(data[2000:])))
	require.NoError(t, err)

	assert.Equal(t, whole, resumed)
}

func TestEngine_ComputeHonorsCancellation(t *testing.T) {
	path := writeSessionFile(t, "rec.npx2", randomPayload(t, 100_000))

	e, err := New(func(o *Options) { o.ChunkSize = 16 })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Compute(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_BuildRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("small file is hashed eagerly", func(t *testing.T) {
		path := writeSessionFile(t, "rec.npx2", []byte("123456789"))

		e, err := New()
		require.NoError(t, err)

		f, err := e.BuildRecord(ctx, path)
		require.NoError(t, err)

		cs, ok := f.Checksum()
		require.True(t, ok)
		assert.Equal(t, "CBF43926", cs)
	})

	t.Run("file at threshold stays partially known", func(t *testing.T) {
		path := writeSessionFile(t, "rec.npx2", []byte("123456789"))

		e, err := New(func(o *Options) { o.AutoThreshold = 9 })
		require.NoError(t, err)

		f, err := e.BuildRecord(ctx, path)
		require.NoError(t, err)

		_, ok := f.Checksum()
		assert.False(t, ok)

		size, ok := f.Size()
		require.True(t, ok)
		assert.Equal(t, int64(9), size)
	})

	t.Run("inaccessible file stays partially known", func(t *testing.T) {
		e, err := New()
		require.NoError(t, err)

		f, err := e.BuildRecord(ctx, "/acq/1234567890_123456_20240101/rec.npx2")
		require.NoError(t, err)

		_, ok := f.Checksum()
		assert.False(t, ok)
	})
}

func TestEngine_HashRecord(t *testing.T) {
	ctx := context.Background()
	path := writeSessionFile(t, "rec.npx2", []byte("123456789"))

	// Threshold of zero would defer every eager hash; HashRecord ignores it.
	e, err := New(func(o *Options) { o.AutoThreshold = 0 })
	require.NoError(t, err)

	f, err := e.HashRecord(ctx, path)
	require.NoError(t, err)

	cs, ok := f.Checksum()
	require.True(t, ok)
	assert.Equal(t, "CBF43926", cs)
}

func TestEngine_IOThrottle(t *testing.T) {
	// A limiter must not change the digest, only the pacing.
	ctx := context.Background()
	data := randomPayload(t, 4096)
	path := writeSessionFile(t, "rec.npx2", data)

	plain, err := New()
	require.NoError(t, err)
	throttled, err := New(func(o *Options) {
		o.IOLimitBytesPerSec = 1 << 20
	})
	require.NoError(t, err)

	d1, err := plain.Compute(ctx, path)
	require.NoError(t, err)
	d2, err := throttled.Compute(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}
