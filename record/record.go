package record

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// digestPattern is the persisted digest contract: fixed-width uppercase hex,
// 8 characters for the 32-bit algorithms in use.
var digestPattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

// IsDigest reports whether s conforms to the canonical digest format.
func IsDigest(s string) bool {
	return digestPattern.MatchString(s)
}

// File represents a single file belonging to a recording session.
// It is an immutable value; derive updated identities via [File.WithDigest].
type File struct {
	path     string // slash form, original case, used for display and unlink
	key      string // canonical comparison key: case-folded slash form
	name     string
	relPath  string // session-relative: <sessionFolder>/.../name
	session  SessionKey
	conflict bool
	size     int64
	hasSize  bool
	checksum string
}

type recordConfig struct {
	checksum string
	size     int64
	hasSize  bool
}

// Option configures record construction.
type Option func(*recordConfig)

// WithChecksum supplies a previously computed digest, e.g. when
// reconstructing a record from a persisted store entry. The digest must pass
// format validation.
func WithChecksum(digest string) Option {
	return func(c *recordConfig) {
		c.checksum = digest
	}
}

// WithSize supplies the file size in bytes, overriding any stat result.
func WithSize(size int64) Option {
	return func(c *recordConfig) {
		c.size = size
		c.hasSize = true
	}
}

// New constructs a File from a filesystem path.
//
// The path must point at a regular file; when the path is inaccessible the
// file-ness check falls back to an extension heuristic, as network shares
// holding backups are routinely offline. The path must contain a session
// key. Size is taken from stat when accessible and not supplied.
//
// New never hashes file contents - eager checksum policy belongs to the
// checksum engine.
func New(p string, optFns ...Option) (*File, error) {
	if p == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	var cfg recordConfig
	for _, fn := range optFns {
		fn(&cfg)
	}

	// Canonical slash form is decided once, here. Comparisons use the
	// case-folded key; display and unlink keep the original spelling.
	slashed := strings.ReplaceAll(p, `\`, "/")

	info, statErr := os.Stat(filepath.FromSlash(slashed))
	accessible := statErr == nil
	if accessible {
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPath, slashed)
		}
	} else if path.Ext(slashed) == "" {
		return nil, fmt.Errorf("%w: %s is inaccessible and has no extension", ErrInvalidPath, slashed)
	}

	session, conflict, err := ParseSessionKey(slashed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, slashed)
	}

	f := &File{
		path:     slashed,
		key:      strings.ToLower(slashed),
		name:     path.Base(slashed),
		session:  session,
		conflict: conflict,
	}
	f.relPath = sessionRelPath(slashed, session)

	switch {
	case cfg.hasSize:
		f.size, f.hasSize = cfg.size, true
	case accessible:
		f.size, f.hasSize = info.Size(), true
	}

	if cfg.checksum != "" {
		if !IsDigest(cfg.checksum) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidChecksum, cfg.checksum)
		}
		if !f.hasSize {
			return nil, fmt.Errorf("%w: checksum supplied without a size for %s", ErrInvalidChecksum, slashed)
		}
		f.checksum = cfg.checksum
	}

	return f, nil
}

// sessionRelPath derives the path relative to the parent of a hypothetical
// session folder, i.e. sessionFolder/.../name. The session string first
// appears in the path as a child of some repository of session folders;
// splitting there gives the mirrored layout a backup root is expected to
// hold.
func sessionRelPath(slashed string, session SessionKey) string {
	folder := session.String()
	parts := strings.Split(slashed, "/")
	for i, part := range parts {
		if strings.Contains(part, folder) {
			rel := strings.Join(parts[i:], "/")
			if part != folder {
				rel = folder + "/" + rel
			}
			return rel
		}
	}
	return folder + "/" + path.Base(slashed)
}

// Path returns the canonical slash-form path in its original case.
func (f *File) Path() string { return f.path }

// OSPath returns the path in the host separator convention, for stat and
// unlink calls.
func (f *File) OSPath() string { return filepath.FromSlash(f.path) }

// Key returns the canonical comparison key (case-folded slash form).
func (f *File) Key() string { return f.key }

// Name returns the final path element.
func (f *File) Name() string { return f.name }

// RelPath returns the session-relative path, sessionFolder/.../name.
func (f *File) RelPath() string { return f.relPath }

// Session returns the session key derived from the path.
func (f *File) Session() SessionKey { return f.session }

// SessionConflict reports whether the path contained a second, different
// session string - a non-fatal inconsistency worth logging.
func (f *File) SessionConflict() bool { return f.conflict }

// Size returns the file size in bytes, if known.
func (f *File) Size() (int64, bool) { return f.size, f.hasSize }

// Checksum returns the content digest, if known.
func (f *File) Checksum() (string, bool) { return f.checksum, f.checksum != "" }

// Accessible reports whether the path currently resolves to a regular file.
// It is recomputed on every call; long-lived records never cache it.
func (f *File) Accessible() bool {
	info, err := os.Stat(f.OSPath())
	return err == nil && info.Mode().IsRegular()
}

// WithDigest returns a copy of f carrying the given digest. The size must
// already be known: checksum and size are set together, never independently.
func (f *File) WithDigest(digest string) (*File, error) {
	if !IsDigest(digest) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChecksum, digest)
	}
	if !f.hasSize {
		return nil, fmt.Errorf("%w: cannot attach checksum to %s without a size", ErrInvalidChecksum, f.path)
	}
	clone := *f
	clone.checksum = digest
	return &clone, nil
}

// String renders the identity triple for logs and reports.
func (f *File) String() string {
	cs := f.checksum
	if cs == "" {
		cs = "-"
	}
	if !f.hasSize {
		return fmt.Sprintf("%s (checksum=%s size=?)", f.path, cs)
	}
	return fmt.Sprintf("%s (checksum=%s size=%d)", f.path, cs, f.size)
}
