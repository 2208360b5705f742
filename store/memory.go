package store

import (
	"context"
	"sync"

	"github.com/hupe1980/scrubgo/record"
)

// Memory is an in-process Store, primarily for tests and dry runs. It holds
// the same Entry documents the durable backends persist.
type Memory struct {
	mu         sync.RWMutex
	partitions map[string][]Entry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{partitions: make(map[string][]Entry)}
}

// Add upserts f into its session partition.
func (m *Memory) Add(_ context.Context, f *record.File) error {
	entry := NewEntry(f)
	key := PartitionKey(f)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.partitions[key] {
		if existing.ID() == entry.ID() {
			return nil
		}
	}
	m.partitions[key] = append(m.partitions[key], entry)

	return nil
}

// GetMatches returns stored records classifying into kinds against f.
func (m *Memory) GetMatches(_ context.Context, f *record.File, kinds ...record.MatchKind) ([]*record.File, error) {
	m.mu.RLock()
	entries := m.partitions[PartitionKey(f)]
	m.mu.RUnlock()

	var matches []*record.File
	for _, e := range entries {
		r, err := e.Record()
		if err != nil {
			// A stored document that no longer reconstructs is skipped,
			// not fatal; the durable backends behave the same way.
			continue
		}
		if MatchesFilter(record.Classify(f, r), kinds) {
			matches = append(matches, r)
		}
	}

	return matches, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
