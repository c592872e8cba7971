package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kjstillabower/flight-risk-service/internal/models"
)

// Cache holds airport reference data keyed by IATA code.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, code string) (models.Airport, bool, error)
	Set(ctx context.Context, code string, value models.Airport, ttl time.Duration) error
}

// InMemoryCache implements Cache on go-cache. Safe for concurrent use.
type InMemoryCache struct {
	store *gocache.Cache
}

// NewInMemoryCache creates an in-memory cache whose expired entries are purged every cleanup interval.
// A zero cleanup leaves expired entries in place until they are next read.
func NewInMemoryCache(cleanup time.Duration) *InMemoryCache {
	return &InMemoryCache{store: gocache.New(gocache.NoExpiration, cleanup)}
}

// Get returns (airport, true, nil) on a hit and (zero, false, nil) on a miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, code string) (models.Airport, bool, error) {
	v, ok := c.store.Get(code)
	if !ok {
		return models.Airport{}, false, nil
	}
	a, ok := v.(models.Airport)
	if !ok {
		c.store.Delete(code)
		return models.Airport{}, false, nil
	}
	return a, true, nil
}

// Set stores the airport for ttl. A non-positive ttl keeps it until evicted.
func (c *InMemoryCache) Set(ctx context.Context, code string, value models.Airport, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.store.Set(code, value, ttl)
	return nil
}

// Len returns the number of cached entries, including expired ones not yet purged.
func (c *InMemoryCache) Len() int {
	return c.store.ItemCount()
}
