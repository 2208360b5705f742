package keymutex

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyMutex_MutualExclusionPerKey(t *testing.T) {
	m := New()

	const workers = 8
	const iterations = 200

	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				m.Lock("session-a")
				counter++
				m.Unlock("session-a")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*iterations, counter)
}

func TestKeyMutex_DistinctKeysDoNotBlock(t *testing.T) {
	m := New()

	m.Lock("session-a")
	defer m.Unlock("session-a")

	done := make(chan struct{})
	go func() {
		m.Lock("session-b")
		m.Unlock("session-b")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a distinct key blocked")
	}
}

func TestKeyMutex_UnlockUnheldPanics(t *testing.T) {
	m := New()

	require.Panics(t, func() {
		m.Unlock("never-locked")
	})
}
