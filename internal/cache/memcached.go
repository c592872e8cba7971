package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/flight-risk-service/internal/models"
)

const keyPrefix = "airport:"

// MemcachedCache implements Cache using memcached.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key builds the memcached key. Codes are three letters so no escaping is needed.
func key(code string) string {
	return keyPrefix + code
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, code string) (models.Airport, bool, error) {
	if ctx.Err() != nil {
		return models.Airport{}, false, ctx.Err()
	}
	item, err := c.client.Get(key(code))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.Airport{}, false, nil
		}
		return models.Airport{}, false, err
	}
	var a models.Airport
	if err := json.Unmarshal(item.Value, &a); err != nil {
		return models.Airport{}, false, err
	}
	return a, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, code string, value models.Airport, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        key(code),
		Value:      raw,
		Expiration: expirationSeconds(ttl),
	})
}

// expirationSeconds converts ttl to memcached's relative expiry. Values beyond
// 30 days would be read as a unix timestamp, so they fall back to one hour.
func expirationSeconds(ttl time.Duration) int32 {
	const maxRelativeExp = 30 * 24 * 60 * 60
	expSec := int64(ttl / time.Second)
	if expSec <= 0 || expSec > maxRelativeExp {
		return 3600
	}
	return int32(expSec)
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
