package internal

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct{}

func (fakeHandle) Entries() ([]Entry, error) { return []Entry{}, nil }
func (fakeHandle) Resolve(*Entry) error      { return nil }

func countingUnlock(calls *atomic.Int32) UnlockFunc {
	return func(entry DatabaseEntry) (Database, error) {
		calls.Add(1)
		return fakeHandle{}, nil
	}
}

func TestGetOrUnlockCaches(t *testing.T) {
	var calls atomic.Int32
	cache := NewSessionCache(5*time.Minute, nil)
	entry := DatabaseEntry{Index: 1, Path: "/tmp/a.kdbx"}

	first, err := cache.GetOrUnlock(entry, countingUnlock(&calls))
	require.NoError(t, err)
	for i := 0; i < 9; i++ {
		s, err := cache.GetOrUnlock(entry, countingUnlock(&calls))
		require.NoError(t, err)
		assert.Equal(t, first.ID, s.ID)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrUnlockZeroPeriod(t *testing.T) {
	var calls atomic.Int32
	cache := NewSessionCache(0, nil)
	entry := DatabaseEntry{Index: 1}

	for i := 0; i < 3; i++ {
		_, err := cache.GetOrUnlock(entry, countingUnlock(&calls))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetOrUnlockExpiry(t *testing.T) {
	var calls atomic.Int32
	cache := NewSessionCache(5*time.Minute, nil)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	entry := DatabaseEntry{Index: 2}

	first, err := cache.GetOrUnlock(entry, countingUnlock(&calls))
	require.NoError(t, err)

	// Within the period the session is reused.
	now = now.Add(4 * time.Minute)
	s, err := cache.GetOrUnlock(entry, countingUnlock(&calls))
	require.NoError(t, err)
	assert.Equal(t, first.ID, s.ID)
	assert.Equal(t, int32(1), calls.Load())

	// Past the period a fresh unlock runs.
	now = now.Add(2 * time.Minute)
	s, err = cache.GetOrUnlock(entry, countingUnlock(&calls))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, s.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrUnlockConcurrent(t *testing.T) {
	var calls atomic.Int32
	cache := NewSessionCache(5*time.Minute, nil)
	entry := DatabaseEntry{Index: 3}

	slow := func(e DatabaseEntry) (Database, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return fakeHandle{}, nil
	}

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := cache.GetOrUnlock(entry, slow)
			require.NoError(t, err)
			ids[i] = s.ID
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share one unlock")
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestGetOrUnlockFailureNotCached(t *testing.T) {
	cache := NewSessionCache(5*time.Minute, nil)
	entry := DatabaseEntry{Index: 4}

	boom := errors.New("wrong passphrase")
	_, err := cache.GetOrUnlock(entry, func(DatabaseEntry) (Database, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	// The failure left nothing behind; the next attempt unlocks fresh.
	var calls atomic.Int32
	_, err = cache.GetOrUnlock(entry, countingUnlock(&calls))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidate(t *testing.T) {
	var calls atomic.Int32
	cache := NewSessionCache(5*time.Minute, nil)
	entry := DatabaseEntry{Index: 5}

	_, err := cache.GetOrUnlock(entry, countingUnlock(&calls))
	require.NoError(t, err)
	cache.Invalidate(entry.Index)
	_, err = cache.GetOrUnlock(entry, countingUnlock(&calls))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPurge(t *testing.T) {
	var calls atomic.Int32
	cache := NewSessionCache(5*time.Minute, nil)

	for idx := 1; idx <= 3; idx++ {
		_, err := cache.GetOrUnlock(DatabaseEntry{Index: idx}, countingUnlock(&calls))
		require.NoError(t, err)
	}
	cache.Purge()
	for idx := 1; idx <= 3; idx++ {
		_, err := cache.GetOrUnlock(DatabaseEntry{Index: idx}, countingUnlock(&calls))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(6), calls.Load())
}
