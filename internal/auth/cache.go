package auth

import (
	"sync"
	"sync/atomic"
	"time"
)

// AuthCache is a TTL-based in-memory cache for authenticated users.
// Uses sync.Map for lock-free reads on the hot path.
//
// Stale-while-revalidate: an expired entry is still served immediately
// and the lookup signals that a background refresh is needed, so no
// request blocks on DB + bcrypt after the first cold start.
type AuthCache struct {
	store sync.Map // map[string]*cacheEntry (keyed by full API key)
	ttl   time.Duration
}

type cacheEntry struct {
	user       *UserContext
	expiresAt  time.Time
	refreshing atomic.Bool // prevents duplicate background refreshes
}

// NewAuthCache creates a cache with the given TTL.
func NewAuthCache(ttl time.Duration) *AuthCache {
	return &AuthCache{ttl: ttl}
}

// GetResult holds the result of a cache lookup.
type GetResult struct {
	User         *UserContext
	Hit          bool // true if a value was found (fresh or stale)
	NeedsRefresh bool // true if expired — caller should refresh in background
}

// Get looks up the API key in the cache. When NeedsRefresh is true the
// caller refreshes in a background goroutine; the CAS on the
// refreshing flag ensures only one goroutine does so per key.
func (c *AuthCache) Get(apiKey string) GetResult {
	val, ok := c.store.Load(apiKey)
	if !ok {
		return GetResult{}
	}

	entry := val.(*cacheEntry)
	if time.Now().Before(entry.expiresAt) {
		return GetResult{User: entry.user, Hit: true}
	}

	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return GetResult{
		User:         entry.user,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores a user context with a fresh TTL.
func (c *AuthCache) Set(apiKey string, user *UserContext) {
	c.store.Store(apiKey, &cacheEntry{
		user:      user,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry from the cache.
func (c *AuthCache) Delete(apiKey string) {
	c.store.Delete(apiKey)
}
