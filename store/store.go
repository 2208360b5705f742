// Package store defines the checksum store contract: a persistent,
// session-partitioned registry of previously seen (path, size, checksum)
// records.
//
// Every lookup is scoped to the record's session partition - a conforming
// backend never scans across sessions, so lookup cost is independent of
// total store size. Add is an idempotent, atomic upsert that never rewrites
// a checksum in place: records are append-only, and a path whose checksum
// becomes known gains a second entry rather than mutating the first.
//
// The interface deliberately assumes nothing beyond per-partition atomicity,
// so it is satisfiable by a local file, an embedded KV database, and a
// networked document store alike. Conformance is checked by the shared
// suite in store/storetest.
package store

import (
	"context"
	"errors"

	"github.com/hupe1980/scrubgo/record"
)

// ErrUnavailable is returned when a backend cannot be reached or read.
// Callers must propagate it - records are never silently dropped.
var ErrUnavailable = errors.New("checksum store unavailable")

// Store is a session-partitioned registry of file records.
type Store interface {
	// Add upserts f into its session partition. Adding an identical
	// (path, size, checksum) record again is a no-op. Add never updates a
	// stored checksum in place; callers wanting to avoid unbounded
	// duplication check for an existing SELF/SELF_NO_CHECKSUM entry first.
	Add(ctx context.Context, f *record.File) error

	// GetMatches returns stored records r from f's session partition for
	// which Classify(f, r) is one of kinds. An empty kinds list selects
	// every relationship except UNRELATED and UNKNOWN.
	GetMatches(ctx context.Context, f *record.File, kinds ...record.MatchKind) ([]*record.File, error)

	// Close releases backend resources. The store must not be used after.
	Close() error
}

// MatchesFilter reports whether kind passes the given filter, applying the
// default (everything except UNRELATED/UNKNOWN) when kinds is empty.
func MatchesFilter(kind record.MatchKind, kinds []record.MatchKind) bool {
	if len(kinds) == 0 {
		return kind != record.Unrelated && kind != record.Unknown
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// PartitionKey returns the session partition a record belongs to.
func PartitionKey(f *record.File) string {
	return f.Session().String()
}
