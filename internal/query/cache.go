package query

import (
	"fmt"
	"time"

	"github.com/maypok86/otter"
)

// cacheCapacity bounds the number of cached query results.
const cacheCapacity = 1024

type cacheEntry struct {
	response  *Response
	createdAt time.Time
	apiHash   string
	depsHash  string
}

// resultCache holds query results under the bounded-TTL discipline: an
// entry is stale when its age exceeds the request's cacheTtl or when
// either artifact hash moved. Staleness is evaluated lazily on access.
type resultCache struct {
	cache otter.Cache[string, *cacheEntry]
	now   func() time.Time
}

func newResultCache() (*resultCache, error) {
	cache, err := otter.MustBuilder[string, *cacheEntry](cacheCapacity).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	return &resultCache{cache: cache, now: time.Now}, nil
}

func (c *resultCache) get(key string, ttlSeconds int, apiHash, depsHash string) (*Response, bool) {
	entry, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if entry.apiHash != apiHash || entry.depsHash != depsHash {
		c.cache.Delete(key)
		return nil, false
	}
	if c.now().Sub(entry.createdAt) > time.Duration(ttlSeconds)*time.Second {
		c.cache.Delete(key)
		return nil, false
	}
	return entry.response, true
}

func (c *resultCache) put(key string, resp *Response, apiHash, depsHash string) {
	c.cache.Set(key, &cacheEntry{
		response:  resp,
		createdAt: c.now(),
		apiHash:   apiHash,
		depsHash:  depsHash,
	})
}
