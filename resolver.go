package scrubgo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/hupe1980/scrubgo/checksum"
	"github.com/hupe1980/scrubgo/internal/fsx"
	"github.com/hupe1980/scrubgo/internal/keymutex"
	"github.com/hupe1980/scrubgo/record"
	"github.com/hupe1980/scrubgo/store"
)

// DefaultProbeTimeout bounds existence probes against backup roots.
const DefaultProbeTimeout = 5 * time.Second

// Resolver drives the backup resolution pipeline over a checksum store:
// ensure a subject's checksum, locate verified copies under backup roots, and
// reclaim the subject once a copy has been proven.
//
// Store mutations are serialized per session key, so concurrent workers on
// one session cannot race a large-file hash or a duplicate insert; distinct
// sessions never block each other.
type Resolver struct {
	store          store.Store
	engine         *checksum.Engine
	logger         *Logger
	locator        SessionLocator
	policy         DeletionPolicy
	audit          auditRecorder
	invalidBackups InvalidBackupMode
	probeTimeout   time.Duration
	fs             fsx.FileSystem
	sessions       *keymutex.KeyMutex
}

// New creates a Resolver over s.
//
// Construction fails if the default checksum engine cannot pass its
// algorithm self-test; a Resolver never exists with a broken digest.
func New(s store.Store, optFns ...Option) (*Resolver, error) {
	opts := options{
		logger:       NewLogger(nil),
		audit:        nil,
		probeTimeout: DefaultProbeTimeout,
		fs:           fsx.Default,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.engine == nil {
		engine, err := checksum.New(func(o *checksum.Options) {
			o.Logger = opts.logger.Logger
		})
		if err != nil {
			return nil, err
		}
		opts.engine = engine
	}

	if opts.audit == nil {
		opts.audit = logAudit(opts.logger)
	}

	return &Resolver{
		store:          s,
		engine:         opts.engine,
		logger:         opts.logger,
		locator:        opts.locator,
		policy:         opts.policy,
		audit:          auditRecorder{sink: opts.audit},
		invalidBackups: opts.invalidBackups,
		probeTimeout:   opts.probeTimeout,
		fs:             opts.fs,
		sessions:       keymutex.New(),
	}, nil
}

// logAudit adapts the logger into the default audit sink.
func logAudit(logger *Logger) AuditSink {
	return AuditFunc(func(e AuditEvent) {
		logger.LogAttrs(context.Background(), slog.LevelInfo, "audit",
			slog.String("op", string(e.Op)),
			slog.String("subject", e.Subject),
			slog.String("other", e.Other),
			slog.String("match", e.Match.String()),
			slog.String("note", e.Note),
			slog.Int64("bytes", e.Bytes),
		)
	})
}

// Engine returns the checksum engine in use.
func (r *Resolver) Engine() *checksum.Engine { return r.engine }

// EnsureChecksum returns subject with a known checksum, persisting a new
// store record when one had to be computed.
//
// A subject that already carries a checksum is returned unchanged. Otherwise
// the store is consulted first: a SELF_NO_CHECKSUM match holds a checksum
// for the identical path and size, and adopting it avoids re-hashing a
// possibly huge file. Conflicting store checksums for the subject's path are
// logged and fall through to a fresh computation. Idempotent under repeated
// calls.
func (r *Resolver) EnsureChecksum(ctx context.Context, subject *record.File) (*record.File, error) {
	if _, ok := subject.Checksum(); ok {
		return subject, nil
	}

	key := store.PartitionKey(subject)
	r.sessions.Lock(key)
	defer r.sessions.Unlock(key)

	matches, err := r.store.GetMatches(ctx, subject, record.SelfNoChecksum)
	if err != nil {
		return nil, fmt.Errorf("failed to query store for %s: %w", subject.Path(), err)
	}

	if digest, ok := soleChecksum(matches); ok {
		adopted, err := subject.WithDigest(digest)
		if err != nil {
			return nil, err
		}
		r.logger.LogChecksum(ctx, subject.Path(), digest, true, nil)
		r.audit.record(OpExchange, subject.Path(), matches[0].Path(), record.SelfNoChecksum, "", 0)
		return adopted, nil
	}
	if len(matches) > 1 {
		r.logger.WarnContext(ctx, "store checksums disagree, recomputing",
			"path", subject.Path(),
			"entries", len(matches),
		)
	}

	hashed, err := r.engine.HashRecord(ctx, subject.Path())
	if err != nil {
		r.logger.LogChecksum(ctx, subject.Path(), "", false, err)
		return nil, err
	}

	if err := r.store.Add(ctx, hashed); err != nil {
		return nil, fmt.Errorf("failed to persist checksum for %s: %w", subject.Path(), err)
	}

	digest, _ := hashed.Checksum()
	r.logger.LogChecksum(ctx, subject.Path(), digest, false, nil)
	r.audit.record(OpChecksum, subject.Path(), "", record.Unknown, "", 0)

	return hashed, nil
}

// soleChecksum returns the single checksum all matches agree on.
func soleChecksum(matches []*record.File) (string, bool) {
	var digest string
	for _, m := range matches {
		cs, ok := m.Checksum()
		if !ok {
			continue
		}
		if digest != "" && digest != cs {
			return "", false
		}
		digest = cs
	}
	return digest, digest != ""
}

// FindInvalidCopies returns stored records that look like failed or suspect
// copies of subject, ranked CHECKSUM_COLLISION through
// UNSYNCED_OR_CORRUPT_DATA. Each discovery is logged and audited.
func (r *Resolver) FindInvalidCopies(ctx context.Context, subject *record.File) ([]*record.File, error) {
	matches, err := r.store.GetMatches(ctx, subject, record.InvalidCopyKinds()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query store for %s: %w", subject.Path(), err)
	}

	for _, m := range matches {
		kind := record.Classify(subject, m)
		r.logger.LogInvalidCopy(ctx, subject.Path(), m.Path(), kind)
		r.audit.record(OpInvalidCopy, subject.Path(), m.Path(), kind, "", 0)
	}

	return matches, nil
}

// FindValidBackups locates verified byte-identical copies of subject under
// the backup roots. Roots default to the session-resolved locations from the
// locator, plus any caller-supplied extraRoots.
//
// Three phases, cheapest first:
//  1. Existing store matches ranked VALID_COPY_* rooted under a backup root.
//  2. An existence probe of the exact mirrored relative path under each
//     root; a present candidate is hashed and classified.
//  3. A scan of the mirrored directory's immediate children for any file of
//     the subject's size; candidates are hashed and the first VALID_COPY_*
//     wins.
//
// Re-hashing is therefore limited to files that were renamed or relocated
// during transfer. Returns an error wrapping [ErrAmbiguousBackup] when store
// entries for one path disagree on its checksum.
func (r *Resolver) FindValidBackups(ctx context.Context, subject *record.File, extraRoots ...string) (*record.BackupSet, error) {
	roots, err := r.backupRoots(ctx, subject, extraRoots)
	if err != nil {
		return nil, err
	}

	set := record.NewBackupSet()

	if err := r.backupsFromStore(ctx, subject, roots, set); err != nil {
		return nil, err
	}
	if !set.Empty() {
		return set, nil
	}

	if err := r.backupsFromMirroredPath(ctx, subject, roots, set); err != nil {
		return nil, err
	}
	if !set.Empty() {
		return set, nil
	}

	if err := r.backupsFromSizeScan(ctx, subject, roots, set); err != nil {
		return nil, err
	}

	return set, nil
}

// backupRoots resolves the probe roots for subject: locator-resolved
// canonical locations first, then caller-supplied extras.
func (r *Resolver) backupRoots(ctx context.Context, subject *record.File, extra []string) ([]string, error) {
	var roots []string

	if r.locator != nil {
		loc, ok, err := r.locator.Locate(ctx, subject.Session())
		if err != nil {
			return nil, fmt.Errorf("failed to locate session %s: %w", subject.Session(), err)
		}
		if ok {
			roots = append(roots, loc.Roots()...)
		}
	}

	for _, root := range extra {
		if root != "" {
			roots = append(roots, path.Clean(strings.ReplaceAll(root, `\`, "/")))
		}
	}

	return roots, nil
}

// backupsFromStore collects existing VALID_COPY_* store matches rooted under
// a backup root. With no roots configured every match qualifies. Store
// entries for one path that disagree on checksum are ambiguous and withhold
// the whole result.
func (r *Resolver) backupsFromStore(ctx context.Context, subject *record.File, roots []string, set *record.BackupSet) error {
	matches, err := r.store.GetMatches(ctx, subject, record.BackupKinds()...)
	if err != nil {
		return fmt.Errorf("failed to query store for %s: %w", subject.Path(), err)
	}

	checksums := make(map[string]map[string]struct{})
	for _, m := range matches {
		if cs, ok := m.Checksum(); ok {
			if checksums[m.Key()] == nil {
				checksums[m.Key()] = make(map[string]struct{})
			}
			checksums[m.Key()][cs] = struct{}{}
		}
	}

	for _, m := range matches {
		kind := record.Classify(subject, m)
		if !kind.IsValidCopy() {
			continue
		}
		if len(checksums[m.Key()]) > 1 {
			var conflict []string
			for cs := range checksums[m.Key()] {
				conflict = append(conflict, cs)
			}
			return &AmbiguousBackupError{Path: m.Path(), Checksums: conflict}
		}
		if len(roots) > 0 && !underAnyRoot(m.Key(), roots) {
			continue
		}
		r.logger.LogClassified(ctx, subject.Path(), m.Path(), kind)
		r.audit.record(OpClassified, subject.Path(), m.Path(), kind, "store", 0)
		set.Add(m)
	}

	return nil
}

// backupsFromMirroredPath probes root/<session-relative path> under each
// root with a bounded existence check and verifies any present candidate by
// hashing it. Verified candidates are persisted so the next run resolves
// from the store alone.
func (r *Resolver) backupsFromMirroredPath(ctx context.Context, subject *record.File, roots []string, set *record.BackupSet) error {
	for _, root := range roots {
		candidate := path.Join(root, subject.RelPath())
		if strings.EqualFold(candidate, subject.Path()) {
			continue
		}

		info, err := fsx.StatTimeout(ctx, r.fs, candidate, r.probeTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		if err := r.verifyCandidate(ctx, subject, candidate, set); err != nil {
			return err
		}
	}

	return nil
}

// backupsFromSizeScan walks the mirrored directory's immediate children
// looking for a renamed copy: any regular file of the subject's exact size
// is hashed and classified, and the first valid copy wins.
func (r *Resolver) backupsFromSizeScan(ctx context.Context, subject *record.File, roots []string, set *record.BackupSet) error {
	size, ok := subject.Size()
	if !ok {
		return nil
	}

	for _, root := range roots {
		dir := path.Join(root, path.Dir(subject.RelPath()))

		entries, err := r.fs.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.Size() != size {
				continue
			}

			candidate := path.Join(dir, entry.Name())
			if strings.EqualFold(candidate, subject.Path()) {
				continue
			}

			if err := r.verifyCandidate(ctx, subject, candidate, set); err != nil {
				return err
			}
			if !set.Empty() {
				return nil
			}
		}
	}

	return nil
}

// verifyCandidate hashes a candidate path, classifies it against subject,
// and on a valid copy registers it in both the set and the store.
func (r *Resolver) verifyCandidate(ctx context.Context, subject *record.File, candidate string, set *record.BackupSet) error {
	hashed, err := r.engine.HashRecord(ctx, candidate)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.WarnContext(ctx, "failed to verify backup candidate",
			"subject", subject.Path(),
			"candidate", candidate,
			"error", err,
		)
		return nil
	}

	kind := record.Classify(subject, hashed)
	r.logger.LogClassified(ctx, subject.Path(), hashed.Path(), kind)
	r.audit.record(OpClassified, subject.Path(), hashed.Path(), kind, "probe", 0)

	if !kind.IsValidCopy() {
		return nil
	}

	if err := r.store.Add(ctx, hashed); err != nil {
		return fmt.Errorf("failed to persist backup record for %s: %w", hashed.Path(), err)
	}
	set.Add(hashed)

	return nil
}

// underAnyRoot reports whether key (a case-folded slash path) lies under one
// of the roots.
func underAnyRoot(key string, roots []string) bool {
	for _, root := range roots {
		prefix := strings.ToLower(root)
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// DeleteIfBackedUp unlinks subject once a verified backup exists, returning
// the number of bytes reclaimed. 0 with a nil error means the subject was
// kept; every kept outcome is logged and audited with its reason.
//
// The pipeline is ensure checksum, surface suspect copies, locate verified
// backups, then re-verify literal checksum and size equality against the
// chosen backup before unlinking. A configured policy may veto. Permission
// failures on the unlink are logged as KEPT, not returned as errors. The
// unlink happens synchronously and is logged immediately before the
// filesystem call.
func (r *Resolver) DeleteIfBackedUp(ctx context.Context, subject *record.File, extraRoots ...string) (int64, error) {
	subject, err := r.EnsureChecksum(ctx, subject)
	if err != nil {
		return 0, err
	}

	invalid, err := r.FindInvalidCopies(ctx, subject)
	if err != nil {
		return 0, err
	}
	if len(invalid) > 0 && r.invalidBackups == BlockDeletion {
		return r.kept(ctx, subject, "suspect copies exist"), nil
	}

	set, err := r.FindValidBackups(ctx, subject, extraRoots...)
	if err != nil {
		if errors.Is(err, ErrAmbiguousBackup) {
			r.logger.WarnContext(ctx, "withholding deletion", "path", subject.Path(), "error", err)
			return r.kept(ctx, subject, err.Error()), nil
		}
		return 0, err
	}
	if set.Empty() {
		return r.kept(ctx, subject, "no valid backup found"), nil
	}

	backup := set.Files()[0]

	// Literal re-verification, independent of the classifier: a logic error
	// upstream must not reach the unlink.
	subjectCS, ok1 := subject.Checksum()
	backupCS, ok2 := backup.Checksum()
	subjectSize, ok3 := subject.Size()
	backupSize, ok4 := backup.Size()
	if !ok1 || !ok2 || !ok3 || !ok4 || subjectCS != backupCS || subjectSize != backupSize {
		r.logger.ErrorContext(ctx, "safety re-verification failed",
			"subject", subject.Path(),
			"backup", backup.Path(),
		)
		return r.kept(ctx, subject, "safety re-verification failed"), nil
	}

	if r.policy != nil {
		if err := r.policy.Allow(ctx, subject); err != nil {
			return r.kept(ctx, subject, "policy veto: "+err.Error()), nil
		}
	}

	r.logger.LogDelete(ctx, subject.Path(), subjectSize, backup.Path())

	if err := r.fs.Remove(subject.OSPath()); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return r.kept(ctx, subject, "permission denied"), nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return r.kept(ctx, subject, "already gone"), nil
		}
		return 0, fmt.Errorf("failed to delete %s: %w", subject.Path(), err)
	}

	r.audit.record(OpDeleted, subject.Path(), backup.Path(), record.Classify(subject, backup), "", subjectSize)

	return subjectSize, nil
}

func (r *Resolver) kept(ctx context.Context, subject *record.File, reason string) int64 {
	r.logger.LogKept(ctx, subject.Path(), reason)
	r.audit.record(OpKept, subject.Path(), "", record.Unknown, reason, 0)
	return 0
}
