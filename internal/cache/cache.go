package cache

import (
	"sync"
	"time"
)

const defaultSweepInterval = 30 * time.Second

type entry struct {
	data         any
	expiresAt    time.Time
	createdAt    time.Time
	lastAccessed time.Time
}

// Stats is a point-in-time counter snapshot.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Cache is a process-local TTL key/value cache. It carries no durability or
// cross-instance coherence guarantees; correctness must rely only on explicit
// invalidation of keys this process just wrote.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	hits    uint64
	misses  uint64

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New() *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
	}
	go c.janitor(defaultSweepInterval)
	return c
}

// Get returns the cached value, treating expired entries as misses.
func (c *Cache) Get(key string) (any, bool) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if now.After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	e.lastAccessed = now
	c.hits++
	return e.data, true
}

func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := time.Now()
	c.mu.Lock()
	c.entries[key] = &entry{
		data:         value,
		expiresAt:    now.Add(ttl),
		createdAt:    now,
		lastAccessed: now,
	}
	c.mu.Unlock()
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// Stop terminates the janitor goroutine. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache) janitor(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case now := <-t.C:
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
