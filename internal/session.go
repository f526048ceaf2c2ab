package internal

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// UnlockFunc supplies a decrypted handle for a database entry. It is
// responsible for sourcing the passphrase (literal value, command
// output, keychain, or interactive prompt).
type UnlockFunc func(entry DatabaseEntry) (Database, error)

// SessionCache holds at most one live session per database index.
// Sessions expire after the configured cache period; a period of zero
// disables caching entirely, so every request unlocks fresh.
type SessionCache struct {
	period time.Duration
	log    *zap.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time

	mu       sync.Mutex
	sessions map[int]*CachedSession

	group singleflight.Group
}

// NewSessionCache returns an empty cache with the given validity
// period. log may be nil.
func NewSessionCache(period time.Duration, log *zap.Logger) *SessionCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionCache{
		period:   period,
		log:      log,
		now:      time.Now,
		sessions: make(map[int]*CachedSession),
	}
}

// GetOrUnlock returns the live session for entry, unlocking through
// unlock only on a cache miss. Concurrent callers for the same index
// serialize: a single unlock runs and every caller observes its
// outcome, so the user is never prompted twice for one database.
// A failed unlock caches nothing and stays retryable.
func (c *SessionCache) GetOrUnlock(entry DatabaseEntry, unlock UnlockFunc) (*CachedSession, error) {
	if s := c.lookup(entry.Index); s != nil {
		return s, nil
	}

	v, err, _ := c.group.Do(strconv.Itoa(entry.Index), func() (interface{}, error) {
		// A racing caller may have populated the cache while this
		// caller waited for the flight slot.
		if s := c.lookup(entry.Index); s != nil {
			return s, nil
		}
		handle, err := unlock(entry)
		if err != nil {
			c.log.Warn("unlock failed", zap.Int("index", entry.Index), zap.Error(err))
			return nil, err
		}
		now := c.now()
		s := &CachedSession{
			ID:        uuid.NewString(),
			Entry:     entry,
			Handle:    handle,
			CreatedAt: now,
			ExpiresAt: now.Add(c.period),
		}
		if c.period > 0 {
			c.mu.Lock()
			c.sessions[entry.Index] = s
			c.mu.Unlock()
		}
		c.log.Info("database unlocked",
			zap.String("session", s.ID),
			zap.Int("index", entry.Index),
			zap.Time("expires", s.ExpiresAt))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CachedSession), nil
}

// lookup returns the non-expired session for index, evicting an
// expired one on the way.
func (c *SessionCache) lookup(index int) *CachedSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[index]
	if !ok {
		return nil
	}
	if !c.now().Before(s.ExpiresAt) {
		delete(c.sessions, index)
		c.log.Info("session expired", zap.String("session", s.ID), zap.Int("index", index))
		return nil
	}
	return s
}

// Invalidate drops the session for index, if any.
func (c *SessionCache) Invalidate(index int) {
	c.mu.Lock()
	delete(c.sessions, index)
	c.mu.Unlock()
}

// Purge drops every session. Called on daemon shutdown.
func (c *SessionCache) Purge() {
	c.mu.Lock()
	c.sessions = make(map[int]*CachedSession)
	c.mu.Unlock()
}
