package oauth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultExpiryBuffer is subtracted from a token's lifetime so cached tokens
// are refreshed before the issuer invalidates them.
const DefaultExpiryBuffer = 300 * time.Second

// RefreshFunc obtains a fresh token for a cache key.
type RefreshFunc func(ctx context.Context) (*TokenResponse, error)

// TokenCache maps cache keys to bearer tokens and their expiry.
//
// All access goes through GetOrRefresh. Concurrent misses for the same key
// collapse into a single call to the refresh function; refreshes for
// different keys run in parallel. A failed refresh leaves the cache untouched
// and is reported to every caller waiting on that key.
type TokenCache struct {
	mu      sync.RWMutex
	entries map[string]*cachedToken
	group   singleflight.Group

	now      func() time.Time
	buffer   time.Duration
	logger   *slog.Logger
	observer Observer
}

var (
	defaultCache     *TokenCache
	defaultCacheOnce sync.Once
)

// DefaultTokenCache returns the process-wide cache shared by authenticators
// that were not given their own.
func DefaultTokenCache() *TokenCache {
	defaultCacheOnce.Do(func() {
		defaultCache = NewTokenCache()
	})
	return defaultCache
}

// NewTokenCache creates an empty cache. Recognised options are WithClock,
// WithExpiryBuffer, WithLogger and WithObserver.
func NewTokenCache(opts ...Option) *TokenCache {
	o := newOptions(opts)
	return &TokenCache{
		entries:  make(map[string]*cachedToken),
		now:      o.now,
		buffer:   o.buffer,
		logger:   o.logger,
		observer: o.observer,
	}
}

// GetOrRefresh returns the cached token for key, calling refresh when there is
// no entry or the entry has expired.
//
// The refresh runs detached from the cancellation of any single caller so that
// one caller giving up does not fail the others waiting on the same key; each
// caller still stops waiting when its own ctx is done.
func (c *TokenCache) GetOrRefresh(ctx context.Context, key string, refresh RefreshFunc) (string, error) {
	entry, err := c.getOrRefresh(ctx, key, refresh)
	if err != nil {
		return "", err
	}
	return entry.value, nil
}

// getOrRefresh is GetOrRefresh returning the served entry, so the token and
// its expiry always come from the same refresh.
func (c *TokenCache) getOrRefresh(ctx context.Context, key string, refresh RefreshFunc) (*cachedToken, error) {
	if entry := c.lookup(key); entry != nil {
		c.observer.ObserveCacheLookup(true)
		c.logger.Debug("using cached token", "key", key)
		return entry, nil
	}
	c.observer.ObserveCacheLookup(false)

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Double-check after joining the flight: a refresh may have just finished.
		if entry := c.lookup(key); entry != nil {
			return entry, nil
		}
		return c.refresh(flightCtx, key, refresh)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cachedToken), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// refresh calls fn once and stores its result. It runs inside the key's flight.
// fn sees the refresh id through RefreshIDFromContext.
func (c *TokenCache) refresh(ctx context.Context, key string, fn RefreshFunc) (*cachedToken, error) {
	refreshID := uuid.NewString()
	ctx = context.WithValue(ctx, refreshIDKey{}, refreshID)
	c.logger.Info("requesting new token", "key", key, "refresh_id", refreshID)

	fetchedAt := c.now()
	resp, err := fn(ctx)
	if err != nil {
		c.logger.Debug("token refresh failed", "key", key, "refresh_id", refreshID, "error", err)
		return nil, err
	}

	entry := &cachedToken{
		value:     resp.AccessToken,
		expiresAt: expiresAt(fetchedAt, resp.Lifetime(), c.buffer),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	c.logger.Debug("token cached",
		"key", key,
		"refresh_id", refreshID,
		"expires_at", entry.expiresAt)

	return entry, nil
}

// lookup returns the entry for key if it is still valid, nil otherwise.
func (c *TokenCache) lookup(key string) *cachedToken {
	c.mu.RLock()
	entry := c.entries[key]
	c.mu.RUnlock()

	if !entry.validAt(c.now()) {
		return nil
	}
	return entry
}

type refreshIDKey struct{}

// RefreshIDFromContext returns the id of the cache refresh ctx belongs to.
func RefreshIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(refreshIDKey{}).(string)
	return id, ok
}

// Len returns the number of entries, valid or not.
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all cached tokens. In-flight refreshes may repopulate it.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cachedToken)
}

// expiresAt computes fetchedAt + max(0, lifetime - buffer). A lifetime at or
// below the buffer yields an entry that is already expired.
func expiresAt(fetchedAt time.Time, lifetime, buffer time.Duration) time.Time {
	remaining := lifetime - buffer
	if remaining < 0 {
		remaining = 0
	}
	return fetchedAt.Add(remaining)
}
