// Package miniostore implements the checksum store on MinIO and other
// S3-compatible object storage: one JSON document per session partition,
// stored under a configurable key prefix.
//
// Object storage has no conditional append, so Add performs a
// read-modify-write of the partition document under a per-store mutex. The
// resolution layer already serializes writers per session, so the window for
// cross-process lost updates is limited to concurrent fleets pointed at the
// same bucket; deployments needing stronger coordination use the DynamoDB
// backend instead.
package miniostore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/scrubgo/record"
	"github.com/hupe1980/scrubgo/store"
)

// Store is an object-storage-backed checksum store.
type Store struct {
	client *minio.Client
	bucket string
	prefix string

	mu sync.Mutex
}

// New creates a Store writing partition documents to bucket under prefix.
func New(client *minio.Client, bucket, prefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *Store) key(partition string) string {
	return path.Join(s.prefix, partition+".json")
}

// Add upserts f into its session partition document.
func (s *Store) Add(ctx context.Context, f *record.File) error {
	entry := store.NewEntry(f)
	partition := store.PartitionKey(f)

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx, partition)
	if err != nil {
		return err
	}

	for _, existing := range entries {
		if existing.ID() == entry.ID() {
			return nil
		}
	}

	return s.save(ctx, partition, append(entries, entry))
}

// GetMatches returns stored records classifying into kinds against f.
func (s *Store) GetMatches(ctx context.Context, f *record.File, kinds ...record.MatchKind) ([]*record.File, error) {
	entries, err := s.load(ctx, store.PartitionKey(f))
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

// Close is a no-op; the client is owned by the caller.
func (s *Store) Close() error { return nil }

func (s *Store) load(ctx context.Context, partition string) ([]store.Entry, error) {
	key := s.key(partition)

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get partition %s: %v", store.ErrUnavailable, partition, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read partition %s: %v", store.ErrUnavailable, partition, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var entries []store.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: parse partition %s: %v", store.ErrUnavailable, partition, err)
	}

	return entries, nil
}

func (s *Store) save(ctx context.Context, partition string, entries []store.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: encode partition %s: %v", store.ErrUnavailable, partition, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.key(partition), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("%w: put partition %s: %v", store.ErrUnavailable, partition, err)
	}

	return nil
}
