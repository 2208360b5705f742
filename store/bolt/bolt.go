// Package bolt implements the checksum store on an embedded bbolt database.
//
// One bucket per session partition, one key per entry. bbolt gives the store
// single-file durability with real transactions, which makes it the backend
// of choice for acquisition hosts that outlive a process but have no network
// database available.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hupe1980/scrubgo/record"
	"github.com/hupe1980/scrubgo/store"
)

// Options configure a Store.
type Options struct {
	// Timeout bounds how long Open waits for the file lock.
	Timeout time.Duration
}

// DefaultOptions are the options used when none are supplied.
var DefaultOptions = Options{
	Timeout: 5 * time.Second,
}

// Store is a bbolt-backed checksum store.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", store.ErrUnavailable, path, err)
	}

	return &Store{db: db}, nil
}

// Add upserts f into its session partition bucket.
func (s *Store) Add(_ context.Context, f *record.File) error {
	entry := store.NewEntry(f)
	key := store.PartitionKey(f)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode entry: %v", store.ErrUnavailable, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		id := []byte(entry.ID())
		if b.Get(id) != nil {
			return nil
		}
		return b.Put(id, data)
	})
	if err != nil {
		return fmt.Errorf("%w: put entry in partition %s: %v", store.ErrUnavailable, key, err)
	}

	return nil
}

// GetMatches returns stored records classifying into kinds against f.
func (s *Store) GetMatches(_ context.Context, f *record.File, kinds ...record.MatchKind) ([]*record.File, error) {
	key := store.PartitionKey(f)

	var matches []*record.File

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var e store.Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			r, err := e.Record()
			if err != nil {
				return nil
			}
			if store.MatchesFilter(record.Classify(f, r), kinds) {
				matches = append(matches, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan partition %s: %v", store.ErrUnavailable, key, err)
	}

	return matches, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}
