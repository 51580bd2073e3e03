package imagery

import (
	"context"
	"fmt"
	"sync"

	"github.com/conflictmap/sar-damage-service/internal/domain"
	"github.com/conflictmap/sar-damage-service/internal/observability"
)

// CachedFetcher wraps a SceneFetcher with an in-memory LRU cache keyed by
// (bbox, window, polarization). Cached scenes are shared between analyses
// and must be treated as read-only; every pipeline stage derives new rasters
// rather than mutating inputs.
type CachedFetcher struct {
	inner   domain.SceneFetcher
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a scene fetcher.
func NewCachedFetcher(inner domain.SceneFetcher, maxEntries int, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedFetcher) Scenes(ctx context.Context, aoi domain.AreaOfInterest, window domain.DateWindow, polarization string) ([]domain.Scene, error) {
	key := fmt.Sprintf("%s|%s|%s", aoi.BBoxString(), window, polarization)
	if scenes, ok := c.cache.get(key); ok {
		c.metrics.ImageryCache.WithLabelValues("hit").Inc()
		return scenes, nil
	}
	c.metrics.ImageryCache.WithLabelValues("miss").Inc()

	scenes, err := c.inner.Scenes(ctx, aoi, window, polarization)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so a catalog that back-fills acquisitions
	// can satisfy a later retry.
	if len(scenes) > 0 {
		c.cache.put(key, scenes)
	}
	return scenes, nil
}

// lruCache is a simple thread-safe LRU cache for scene query results.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.Scene
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.Scene, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.Scene) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
