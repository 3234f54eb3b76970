package webhook

import (
	"container/list"
	"sync"
	"time"
)

// Deduplicator is an LRU cache bounded by both entry count and age, used to
// recognize event retries within the platform's redelivery window. Grounded
// on the original Python event server's EventDeduplicator: a doubly-linked
// list for true LRU eviction (not just a TTL sweep) backed by a map for O(1)
// lookups, with expired entries treated as absent on check.
type Deduplicator struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List
	entries map[string]*list.Element
}

type dedupEntry struct {
	key  string
	seen time.Time
}

func NewDeduplicator(maxSize int, ttl time.Duration) *Deduplicator {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &Deduplicator{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// SeenBefore reports whether key was already recorded within ttl, and
// records it for future calls. A key whose prior sighting has expired is
// treated as new.
func (d *Deduplicator) SeenBefore(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if elem, ok := d.entries[key]; ok {
		entry := elem.Value.(*dedupEntry)
		if now.Sub(entry.seen) <= d.ttl {
			d.order.MoveToFront(elem)
			entry.seen = now
			return true
		}
		d.order.Remove(elem)
		delete(d.entries, key)
	}

	elem := d.order.PushFront(&dedupEntry{key: key, seen: now})
	d.entries[key] = elem

	for d.order.Len() > d.maxSize {
		oldest := d.order.Back()
		if oldest == nil {
			break
		}
		d.order.Remove(oldest)
		delete(d.entries, oldest.Value.(*dedupEntry).key)
	}

	return false
}

// Len reports the current number of tracked entries, including expired ones
// not yet evicted.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
