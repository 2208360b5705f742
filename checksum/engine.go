package checksum

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hupe1980/scrubgo/internal/mmap"
	"github.com/hupe1980/scrubgo/record"
)

// ErrSelfTest is returned when the digest function fails to reproduce its
// known self-test vector. It is fatal: an engine that fails the self-test
// cannot be constructed, so no digest from a broken algorithm can ever be
// persisted or compared.
var ErrSelfTest = errors.New("checksum algorithm self-test failed")

// ReadStrategy selects how file contents are fed to the digest.
type ReadStrategy int

const (
	// Buffered streams the file through fixed-size read calls.
	Buffered ReadStrategy = iota

	// Mapped digests over a read-only memory mapping. Digests are
	// byte-identical to the Buffered strategy.
	Mapped
)

// DefaultAutoThreshold gates eager hashing at construction time: files at or
// above this size are left partially known so routine scans never block on
// multi-hundred-gigabyte recordings.
const DefaultAutoThreshold = 50 * 1024 * 1024

// DefaultChunkSize is the streaming read granularity.
const DefaultChunkSize = 64 * 1024

// Options configure an Engine.
type Options struct {
	// Algorithm is the digest implementation. Defaults to CRC32.
	Algorithm Algorithm

	// ChunkSize is the streaming granularity in bytes.
	ChunkSize int

	// AutoThreshold is the eager-hash size gate in bytes.
	AutoThreshold int64

	// Strategy selects buffered or memory-mapped reads.
	Strategy ReadStrategy

	// IOLimitBytesPerSec throttles digest reads. 0 means unlimited.
	IOLimitBytesPerSec int

	// Logger receives construction-time warnings. nil discards them.
	Logger *slog.Logger
}

// DefaultOptions are the options used when none are supplied.
var DefaultOptions = Options{
	Algorithm:     CRC32{},
	ChunkSize:     DefaultChunkSize,
	AutoThreshold: DefaultAutoThreshold,
	Strategy:      Buffered,
}

// Engine computes digests and applies the record construction policy.
type Engine struct {
	alg       Algorithm
	chunkSize int
	threshold int64
	strategy  ReadStrategy
	limiter   *rate.Limiter
	logger    *slog.Logger
	width     int
}

// New creates an Engine and runs the algorithm self-test before first use.
func New(optFns ...func(o *Options)) (*Engine, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Algorithm == nil {
		opts.Algorithm = CRC32{}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Engine{
		alg:       opts.Algorithm,
		chunkSize: opts.ChunkSize,
		threshold: opts.AutoThreshold,
		strategy:  opts.Strategy,
		logger:    opts.Logger,
		width:     2 * opts.Algorithm.New().Size(),
	}

	if opts.IOLimitBytesPerSec > 0 {
		burst := opts.IOLimitBytesPerSec
		if burst < opts.ChunkSize {
			burst = opts.ChunkSize
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.IOLimitBytesPerSec), burst)
	}

	if err := e.selfTest(); err != nil {
		return nil, err
	}

	return e, nil
}

// selfTest verifies the digest function against its fixed vector.
func (e *Engine) selfTest() error {
	input, want := e.alg.Check()

	got, err := e.Sum(context.Background(), strings.NewReader(string(input)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSelfTest, err)
	}
	if got != want {
		return fmt.Errorf("%w: %s(%q) = %s, want %s", ErrSelfTest, e.alg.Name(), input, got, want)
	}

	return nil
}

// Algorithm returns the injected digest implementation.
func (e *Engine) Algorithm() Algorithm { return e.alg }

// AutoThreshold returns the eager-hash size gate in bytes.
func (e *Engine) AutoThreshold() int64 { return e.threshold }

// DigestWidth returns the canonical digest width in hex characters.
func (e *Engine) DigestWidth() int { return e.width }

// ValidDigest reports whether s is a well-formed digest for the configured
// algorithm: fixed width, uppercase hexadecimal.
func (e *Engine) ValidDigest(s string) bool {
	if len(s) != e.width {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// NewState returns a fresh hash state for restartable digesting with
// [Engine.SumState].
func (e *Engine) NewState() hash.Hash { return e.alg.New() }

// SumState streams r into an existing hash state in fixed-size chunks and
// returns the rendered digest. The state survives the call, so an
// interrupted stream can be resumed by calling SumState again with the same
// state and the remaining bytes.
func (e *Engine) SumState(ctx context.Context, h hash.Hash, r io.Reader) (string, error) {
	buf := make([]byte, e.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := r.Read(buf)
		if n > 0 {
			if werr := e.wait(ctx, n); werr != nil {
				return "", werr
			}
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return e.format(h), nil
}

// Sum streams r into a fresh hash state and returns the rendered digest.
func (e *Engine) Sum(ctx context.Context, r io.Reader) (string, error) {
	return e.SumState(ctx, e.alg.New(), r)
}

// Compute digests the file at path using the configured read strategy.
// Both strategies produce byte-identical digests.
func (e *Engine) Compute(ctx context.Context, path string) (string, error) {
	if e.strategy == Mapped {
		return e.computeMapped(ctx, path)
	}
	return e.computeBuffered(ctx, path)
}

func (e *Engine) computeBuffered(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return e.Sum(ctx, f)
}

func (e *Engine) computeMapped(ctx context.Context, path string) (string, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to map %s: %w", path, err)
	}
	defer m.Close()

	h := e.alg.New()
	data := m.Bytes()

	for off := 0; off < len(data); off += e.chunkSize {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		end := off + e.chunkSize
		if end > len(data) {
			end = len(data)
		}
		if werr := e.wait(ctx, end-off); werr != nil {
			return "", werr
		}
		h.Write(data[off:end])
	}

	return e.format(h), nil
}

func (e *Engine) wait(ctx context.Context, n int) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.WaitN(ctx, n)
}

func (e *Engine) format(h hash.Hash) string {
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// BuildRecord constructs a record for path under the engine's policy: size
// comes from stat, and the checksum is computed eagerly only for accessible
// files below the auto-checksum threshold. Larger files stay partially
// known until the resolver needs their digest.
func (e *Engine) BuildRecord(ctx context.Context, path string) (*record.File, error) {
	f, err := record.New(path)
	if err != nil {
		return nil, err
	}

	if f.SessionConflict() {
		e.logger.Warn("conflicting session keys in path", "path", f.Path(), "session", f.Session().String())
	}

	size, ok := f.Size()
	if !ok || size >= e.threshold || !f.Accessible() {
		return f, nil
	}

	digest, err := e.Compute(ctx, f.OSPath())
	if err != nil {
		return nil, fmt.Errorf("failed to checksum %s: %w", f.Path(), err)
	}

	return f.WithDigest(digest)
}

// HashRecord constructs a record for path and digests it unconditionally,
// regardless of size. Used when a backup candidate must be verified.
func (e *Engine) HashRecord(ctx context.Context, path string) (*record.File, error) {
	f, err := record.New(path)
	if err != nil {
		return nil, err
	}

	digest, err := e.Compute(ctx, f.OSPath())
	if err != nil {
		return nil, fmt.Errorf("failed to checksum %s: %w", f.Path(), err)
	}

	return f.WithDigest(digest)
}
