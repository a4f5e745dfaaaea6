package entry

import (
	"sync"
	"time"
)

// Listing columns should not hammer the portal with one search per
// repaint, so confirmed statuses are kept briefly in process memory.
const defaultCacheTTL = 10 * time.Minute

type cacheItem struct {
	status    EntryStatus
	checkedAt time.Time
}

type statusCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]cacheItem
}

func newStatusCache(ttl time.Duration) *statusCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &statusCache{
		ttl:   ttl,
		items: map[string]cacheItem{},
	}
}

func cacheKey(env string, datasetID string) string {
	return env + ":" + datasetID
}

func (c *statusCache) get(key string) (EntryStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok || time.Since(item.checkedAt) > c.ttl {
		return EntryStatus{}, false
	}
	return item.status, true
}

func (c *statusCache) set(key string, status EntryStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cacheItem{status: status, checkedAt: time.Now()}
}

func (c *statusCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = map[string]cacheItem{}
}
