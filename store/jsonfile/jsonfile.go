// Package jsonfile implements the checksum store on plain local files: one
// JSON document per session partition inside a root directory.
//
// This is the reference backend - it satisfies the full store contract with
// no external service. Documents are written atomically (temp file + rename)
// and can optionally be zstd-compressed. Loading tolerates the legacy
// document layout produced by earlier acquisition tooling, a map of items
// carrying separate windows/posix path spellings.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/scrubgo/record"
	"github.com/hupe1980/scrubgo/store"
)

const (
	plainExt      = ".json"
	compressedExt = ".json.zst"
)

// Options configure a Store.
type Options struct {
	// Compress writes partitions as zstd-compressed documents. Existing
	// documents are read in either form regardless.
	Compress bool

	// FileMode is the permission for created documents.
	FileMode os.FileMode
}

// DefaultOptions are the options used when none are supplied.
var DefaultOptions = Options{
	FileMode: 0o644,
}

// Store is a file-backed checksum store rooted at a directory.
type Store struct {
	dir  string
	opts Options

	mu sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0o644
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", store.ErrUnavailable, dir, err)
	}

	return &Store{dir: dir, opts: opts}, nil
}

// Add upserts f into its session partition document.
func (s *Store) Add(_ context.Context, f *record.File) error {
	entry := store.NewEntry(f)
	key := store.PartitionKey(f)

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(key)
	if err != nil {
		return err
	}

	for _, existing := range entries {
		if existing.ID() == entry.ID() {
			return nil
		}
	}

	return s.save(key, append(entries, entry))
}

// GetMatches returns stored records classifying into kinds against f.
func (s *Store) GetMatches(_ context.Context, f *record.File, kinds ...record.MatchKind) ([]*record.File, error) {
	s.mu.Lock()
	entries, err := s.load(store.PartitionKey(f))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var matches []*record.File
	for _, e := range entries {
		r, err := e.Record()
		if err != nil {
			continue
		}
		if store.MatchesFilter(record.Classify(f, r), kinds) {
			matches = append(matches, r)
		}
	}

	return matches, nil
}

// Close is a no-op; every mutation is flushed before Add returns.
func (s *Store) Close() error { return nil }

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) partitionPath(key, ext string) string {
	return filepath.Join(s.dir, key+ext)
}

// load reads a partition document in whichever form it exists on disk.
func (s *Store) load(key string) ([]store.Entry, error) {
	for _, ext := range []string{plainExt, compressedExt} {
		raw, err := os.ReadFile(s.partitionPath(key, ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read partition %s: %v", store.ErrUnavailable, key, err)
		}
		return decodeDocument(key, raw)
	}
	return nil, nil
}

// zstdMagic is the zstd frame header.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

func decodeDocument(key string, raw []byte) ([]store.Entry, error) {
	if bytes.HasPrefix(raw, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd init: %v", store.ErrUnavailable, err)
		}
		defer dec.Close()

		raw, err = dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress partition %s: %v", store.ErrUnavailable, key, err)
		}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	// Native documents are an array of entries; legacy documents are a map
	// of items keyed by display path, carrying windows/posix spellings.
	if trimmed[0] == '[' {
		var entries []store.Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("%w: parse partition %s: %v", store.ErrUnavailable, key, err)
		}
		return entries, nil
	}

	var legacy map[string]legacyItem
	if err := json.Unmarshal(trimmed, &legacy); err != nil {
		return nil, fmt.Errorf("%w: parse legacy partition %s: %v", store.ErrUnavailable, key, err)
	}

	entries := make([]store.Entry, 0, len(legacy))
	for _, item := range legacy {
		entries = append(entries, item.entry())
	}
	return entries, nil
}

// legacyItem is the document layout written by the original tooling.
type legacyItem struct {
	Windows string `json:"windows,omitempty"`
	Posix   string `json:"posix,omitempty"`
	Linux   string `json:"linux,omitempty"`
	CRC32   string `json:"crc32,omitempty"`
	Size    *int64 `json:"size,omitempty"`
}

func (it legacyItem) entry() store.Entry {
	e := store.Entry{
		Posix:    it.Posix,
		Windows:  it.Windows,
		Checksum: it.CRC32,
		Size:     it.Size,
	}
	if e.Posix == "" {
		e.Posix = it.Linux
	}
	return e
}

// save writes the partition document atomically: temp file in the same
// directory, fsync, rename.
func (s *Store) save(key string, entries []store.Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode partition %s: %v", store.ErrUnavailable, key, err)
	}

	ext := plainExt
	if s.opts.Compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("%w: zstd init: %v", store.ErrUnavailable, err)
		}
		data = enc.EncodeAll(data, nil)
		enc.Close()
		ext = compressedExt
	}

	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: write partition %s: %v", store.ErrUnavailable, key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write partition %s: %v", store.ErrUnavailable, key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync partition %s: %v", store.ErrUnavailable, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close partition %s: %v", store.ErrUnavailable, key, err)
	}

	if err := os.Chmod(tmpName, s.opts.FileMode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: chmod partition %s: %v", store.ErrUnavailable, key, err)
	}

	if err := os.Rename(tmpName, s.partitionPath(key, ext)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: commit partition %s: %v", store.ErrUnavailable, key, err)
	}

	return nil
}
