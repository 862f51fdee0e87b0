package windapi

import (
	"context"
	"sync"

	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/couchcryptid/wind-explorer/internal/observability"
)

// CachedWeatherFetcher wraps a WeatherFetcher with an in-memory LRU cache
// keyed by region and date range.
type CachedWeatherFetcher struct {
	inner   domain.WeatherFetcher
	cache   *lruCache[any]
	metrics *observability.Metrics
}

// NewCachedWeatherFetcher creates a cache decorator around a weather fetcher.
func NewCachedWeatherFetcher(inner domain.WeatherFetcher, maxEntries int, metrics *observability.Metrics) *CachedWeatherFetcher {
	return &CachedWeatherFetcher{
		inner:   inner,
		cache:   newLRUCache[any](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedWeatherFetcher) FetchWeather(ctx context.Context, req domain.WeatherRequest) (any, error) {
	key := req.CacheKey()
	if data, ok := c.cache.get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return data, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	data, err := c.inner.FetchWeather(ctx, req)
	if err != nil {
		return nil, err
	}
	// Errors are never cached so a failed retrieval can be retried.
	c.cache.put(key, data)
	return data, nil
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
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

func (c *lruCache[V]) remove(e *entry[V]) {
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

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
