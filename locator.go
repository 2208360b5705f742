package scrubgo

import (
	"context"
	"path"

	"github.com/hupe1980/scrubgo/record"
)

// SessionLocation is where a session's files canonically live.
type SessionLocation struct {
	Key record.SessionKey

	// ArchiveRoot is the durable copy location for the session, empty when
	// the session has none.
	ArchiveRoot string

	// IngestRoot is the staging location the session is transferred through,
	// empty when the session has none.
	IngestRoot string
}

// Roots returns the non-empty roots in probe order, archive first.
func (l SessionLocation) Roots() []string {
	var roots []string
	if l.ArchiveRoot != "" {
		roots = append(roots, l.ArchiveRoot)
	}
	if l.IngestRoot != "" {
		roots = append(roots, l.IngestRoot)
	}
	return roots
}

// SessionLocator resolves a session key to its canonical locations. The
// second return is false when the locator knows nothing about the session,
// which is not an error.
type SessionLocator interface {
	Locate(ctx context.Context, key record.SessionKey) (SessionLocation, bool, error)
}

// LocatorFunc adapts a function to a SessionLocator.
type LocatorFunc func(ctx context.Context, key record.SessionKey) (SessionLocation, bool, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context, key record.SessionKey) (SessionLocation, bool, error) {
	return f(ctx, key)
}

// StaticLocator resolves every session to the same fixed archive and ingest
// repositories. A root is a directory holding session folders, so a file's
// mirrored location is root joined with its session-relative path.
type StaticLocator struct {
	ArchiveRoot string
	IngestRoot  string
}

// Locate returns the fixed repositories for any session.
func (l StaticLocator) Locate(_ context.Context, key record.SessionKey) (SessionLocation, bool, error) {
	loc := SessionLocation{Key: key}
	if l.ArchiveRoot != "" {
		loc.ArchiveRoot = path.Clean(l.ArchiveRoot)
	}
	if l.IngestRoot != "" {
		loc.IngestRoot = path.Clean(l.IngestRoot)
	}
	return loc, loc.ArchiveRoot != "" || loc.IngestRoot != "", nil
}

// DeletionPolicy can veto deletion of a subject for domain-specific reasons,
// e.g. source data whose processed output does not exist downstream yet. A
// non-nil error vetoes; its message is logged as the KEPT reason.
type DeletionPolicy interface {
	Allow(ctx context.Context, subject *record.File) error
}

// PolicyFunc adapts a function to a DeletionPolicy.
type PolicyFunc func(ctx context.Context, subject *record.File) error

// Allow calls f.
func (f PolicyFunc) Allow(ctx context.Context, subject *record.File) error {
	return f(ctx, subject)
}
