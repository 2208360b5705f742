package store

import (
	"strings"

	"github.com/hupe1980/scrubgo/record"
)

// Entry is the persisted form of a record: the durable contract shared by
// every backend. Path is the canonical slash form; the Posix and Windows
// fields only appear in documents written by legacy tooling and are
// consulted as fallbacks on load.
type Entry struct {
	Path     string `json:"path,omitempty"`
	Posix    string `json:"posix,omitempty"`
	Windows  string `json:"windows,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Size     *int64 `json:"size,omitempty"`
}

// NewEntry converts a record into its persisted form.
func NewEntry(f *record.File) Entry {
	e := Entry{Path: f.Path()}
	if cs, ok := f.Checksum(); ok {
		e.Checksum = cs
	}
	if size, ok := f.Size(); ok {
		s := size
		e.Size = &s
	}
	return e
}

// ID returns the de-duplication key for an entry within its partition:
// canonical path plus checksum. A path whose checksum becomes known gets a
// distinct ID, preserving append-only semantics.
func (e Entry) ID() string {
	return strings.ToLower(e.pickPath()) + "#" + e.Checksum
}

func (e Entry) pickPath() string {
	switch {
	case e.Path != "":
		return e.Path
	case e.Posix != "":
		return e.Posix
	default:
		// Legacy separator variant.
		return strings.ReplaceAll(e.Windows, `\`, "/")
	}
}

// Record reconstructs the record. Accessibility is recomputed by the record
// itself, never restored from the document.
func (e Entry) Record() (*record.File, error) {
	var opts []record.Option
	if e.Checksum != "" {
		opts = append(opts, record.WithChecksum(e.Checksum))
	}
	if e.Size != nil {
		opts = append(opts, record.WithSize(*e.Size))
	}
	return record.New(e.pickPath(), opts...)
}
