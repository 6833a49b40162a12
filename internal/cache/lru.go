package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is one cached blob with its bookkeeping.
type entry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e *entry) size() int64 { return int64(len(e.key) + len(e.value)) }

// LRU is a thread-safe least-recently-used byte cache bounded by item count
// and total size. Entries may carry their own expiry.
type LRU struct {
	mu           sync.Mutex
	maxItems     int
	maxSizeBytes int64
	currentSize  int64
	items        map[string]*list.Element
	order        *list.List
	now          func() time.Time

	hits      int64
	misses    int64
	evictions int64
	expired   int64
}

// NewLRU creates a cache. A zero limit disables that bound.
func NewLRU(maxItems int, maxSizeBytes int64) *LRU {
	return &LRU{
		maxItems:     maxItems,
		maxSizeBytes: maxSizeBytes,
		items:        make(map[string]*list.Element),
		order:        list.New(),
		now:          time.Now,
	}
}

// Get returns a copy-free view of the cached value. Expired entries are
// dropped and reported as misses.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	e := elem.Value.(*entry)
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.remove(elem)
		c.expired++
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return e.value, true
}

// Put stores value under key; ttl <= 0 keeps it until evicted.
func (c *LRU) Put(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry)
		c.currentSize -= e.size()
		e.value = value
		e.expiresAt = expiresAt
		c.currentSize += e.size()
		c.order.MoveToFront(elem)
		c.evict()
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.items[key] = c.order.PushFront(e)
	c.currentSize += e.size()
	c.evict()
}

// evict trims from the back until both bounds hold. The newest entry is
// never evicted, even when it alone exceeds the size bound.
func (c *LRU) evict() {
	for c.order.Len() > 1 {
		overItems := c.maxItems > 0 && c.order.Len() > c.maxItems
		overSize := c.maxSizeBytes > 0 && c.currentSize > c.maxSizeBytes
		if !overItems && !overSize {
			return
		}
		c.remove(c.order.Back())
		c.evictions++
	}
}

func (c *LRU) remove(elem *list.Element) {
	c.order.Remove(elem)
	e := elem.Value.(*entry)
	delete(c.items, e.key)
	c.currentSize -= e.size()
}

// Delete removes a key; it reports whether the key was present.
func (c *LRU) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
		return true
	}
	return false
}

// Clear removes all entries.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.currentSize = 0
}

// Len returns the number of entries, including not yet collected expired ones.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Size returns the bytes held by keys and values.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Items     int     `json:"items"`
	Size      int64   `json:"size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Expired   int64   `json:"expired"`
	HitRate   float64 `json:"hitRate"`
}

func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := float64(0)
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Items:     c.order.Len(),
		Size:      c.currentSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
		HitRate:   hitRate,
	}
}
