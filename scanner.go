package scrubgo

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/scrubgo/record"
	"github.com/hupe1980/scrubgo/store"
)

// Mode selects what the walk does with each record.
type Mode int

const (
	// Register adds each record to the store under the engine's
	// size-threshold-gated hashing policy.
	Register Mode = iota

	// Reclaim runs the full delete-if-backed-up pipeline per record.
	Reclaim
)

// WalkOptions configure a walk.
type WalkOptions struct {
	// Mode selects registration or reclamation. Defaults to Register.
	Mode Mode

	// Recursive descends into subdirectories.
	Recursive bool

	// Extensions restricts the walk to the given file extensions (with dot,
	// case-insensitive). Empty means every regular file.
	Extensions []string

	// MinSessionAge skips sessions younger than this, so recordings still
	// being transferred are never touched. 0 disables the gate.
	MinSessionAge time.Duration

	// BackupRoots are extra roots passed through to the resolver in Reclaim
	// mode.
	BackupRoots []string

	// MaxWorkers bounds concurrent per-file work. Defaults to GOMAXPROCS.
	MaxWorkers int
}

// FileError is one file's failure during a walk.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

// Report summarizes a completed walk.
type Report struct {
	Scanned    int
	Registered int
	Deleted    int
	Skipped    int
	Reclaimed  int64
	Failures   []FileError
}

// Walk processes every matching regular file under root with a bounded
// worker pool.
//
// Files with no derivable session key are skipped and logged, never fatal. A
// single file's failure is collected into the report and the walk continues;
// only store unavailability and context cancellation abort the run.
func (r *Resolver) Walk(ctx context.Context, root string, optFns ...func(o *WalkOptions)) (*Report, error) {
	opts := WalkOptions{
		MaxWorkers: runtime.GOMAXPROCS(0),
	}

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = runtime.GOMAXPROCS(0)
	}

	paths, err := collectPaths(root, opts)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		report Report
	)

	sem := semaphore.NewWeighted(int64(opts.MaxWorkers))
	g, ctx := errgroup.WithContext(ctx)

	var acquireErr error

	for _, p := range paths {
		p := p
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			outcome, err := r.walkOne(ctx, p, opts)

			mu.Lock()
			defer mu.Unlock()
			report.Scanned++
			switch {
			case err != nil && abortsWalk(err):
				return err
			case err != nil:
				report.Failures = append(report.Failures, FileError{Path: p, Err: err})
			case outcome.skipped:
				report.Skipped++
			case outcome.registered:
				report.Registered++
			case outcome.reclaimed > 0:
				report.Deleted++
				report.Reclaimed += outcome.reclaimed
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &report, err
	}
	if acquireErr != nil {
		return &report, acquireErr
	}

	r.logger.LogWalk(ctx, root, report.Scanned, report.Registered, report.Deleted,
		report.Skipped, len(report.Failures), report.Reclaimed)

	return &report, nil
}

// abortsWalk reports whether a per-file error must stop the remaining work.
func abortsWalk(err error) bool {
	return errors.Is(err, store.ErrUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type walkOutcome struct {
	skipped    bool
	registered bool
	reclaimed  int64
}

func (r *Resolver) walkOne(ctx context.Context, path string, opts WalkOptions) (walkOutcome, error) {
	f, err := r.engine.BuildRecord(ctx, path)
	if errors.Is(err, record.ErrNoSessionKey) {
		r.logger.DebugContext(ctx, "no session key, skipping", "path", path)
		return walkOutcome{skipped: true}, nil
	}
	if err != nil {
		return walkOutcome{}, err
	}

	if opts.MinSessionAge > 0 && !sessionOldEnough(f.Session(), opts.MinSessionAge) {
		r.logger.DebugContext(ctx, "session too recent, skipping",
			"path", f.Path(),
			"session", f.Session().String(),
		)
		return walkOutcome{skipped: true}, nil
	}

	if opts.Mode == Reclaim {
		reclaimed, err := r.DeleteIfBackedUp(ctx, f, opts.BackupRoots...)
		if err != nil {
			return walkOutcome{}, err
		}
		return walkOutcome{reclaimed: reclaimed}, nil
	}

	registered, err := r.register(ctx, f)
	if err != nil {
		return walkOutcome{}, err
	}
	return walkOutcome{registered: registered}, nil
}

// sessionOldEnough applies the min-age gate. An unparsable session date
// fails the gate: a session whose age is unknown is never assumed old.
func sessionOldEnough(key record.SessionKey, minAge time.Duration) bool {
	date, ok := key.Time()
	if !ok {
		return false
	}
	return time.Since(date) >= minAge
}

// register adds f to the store unless an equivalent entry already exists.
// Store writes for the session are serialized through the session mutex.
func (r *Resolver) register(ctx context.Context, f *record.File) (bool, error) {
	key := store.PartitionKey(f)
	r.sessions.Lock(key)
	defer r.sessions.Unlock(key)

	matches, err := r.store.GetMatches(ctx, f,
		record.Self, record.SelfNoChecksum, record.OtherNoChecksum)
	if err != nil {
		return false, err
	}

	for _, m := range matches {
		switch record.Classify(f, m) {
		case record.Self:
			// Already registered with this identity.
			return false, nil
		case record.SelfNoChecksum:
			// The store already knows a checksum this record lacks.
			return false, nil
		}
	}

	if err := r.store.Add(ctx, f); err != nil {
		return false, err
	}

	r.audit.record(OpRegistered, f.Path(), "", record.Unknown, "", 0)

	return true, nil
}

// collectPaths gathers the candidate files up front so worker scheduling is
// independent of directory iteration order.
func collectPaths(root string, opts WalkOptions) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !extensionMatches(p, opts.Extensions) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return paths, nil
}

func extensionMatches(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, want := range extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
