package segments

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"gtfs-segments/internal/gtfs"
)

type BuildFunc func(feed *gtfs.Feed, routeType int) (*Catalogue, error)

// Cache keeps one catalogue per (feed, mode). Concurrent requests for the
// same key share a single build; failed builds are not cached. Returned
// catalogues are shared and must be treated as read-only.
type Cache struct {
	build BuildFunc

	mu    sync.RWMutex
	items map[cacheKey]*Catalogue
	group singleflight.Group
}

// cacheKey holds the feed pointer itself so a cached feed stays reachable
// and its address cannot be handed to another feed.
type cacheKey struct {
	feed      *gtfs.Feed
	routeType int
}

// flightKey is only used while a build is in flight, when fn still
// references the feed.
func (k cacheKey) flightKey() string {
	return fmt.Sprintf("%p/%d", k.feed, k.routeType)
}

func NewCache(build BuildFunc) *Cache {
	if build == nil {
		build = BuildUniqueSegments
	}
	return &Cache{build: build, items: make(map[cacheKey]*Catalogue)}
}

func (c *Cache) Get(feed *gtfs.Feed, routeType int) (*Catalogue, error) {
	key := cacheKey{feed: feed, routeType: routeType}
	c.mu.RLock()
	cat, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		return cat, nil
	}

	v, err, _ := c.group.Do(key.flightKey(), func() (interface{}, error) {
		c.mu.RLock()
		cat, ok := c.items[key]
		c.mu.RUnlock()
		if ok {
			return cat, nil
		}
		cat, err := c.build(feed, routeType)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[key] = cat
		c.mu.Unlock()
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalogue), nil
}

// Forget drops every catalogue built from feed.
func (c *Cache) Forget(feed *gtfs.Feed) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if k.feed == feed {
			delete(c.items, k)
		}
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
