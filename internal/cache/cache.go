// Package cache provides an in-process TTL cache for Read API responses,
// serialized with msgpack the way the teacher's declared-but-unwired cache
// dependency intended. Evictions happen lazily on access and on a bounded
// background sweep, never via a module-level map.
package cache

import (
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Cache is a single-lock TTL cache keyed by string. Values are msgpack
// round-tripped on Set/Get so callers always get back their own copy and
// the cache itself stays type-agnostic.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	stop    chan struct{}
}

// New builds a Cache with the given TTL and starts its background sweeper.
// Callers must call Close to stop the sweeper.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Set encodes value with msgpack and stores it under key with the cache's
// configured TTL.
func (c *Cache) Set(key string, value interface{}) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = entry{payload: payload, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// Get decodes the cached value into dest, reporting whether a live
// (non-expired) entry existed.
func (c *Cache) Get(key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return false, nil
	}
	if err := msgpack.Unmarshal(e.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate removes a single key, used when a write makes a cached read
// stale ahead of its TTL.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Close stops the background sweeper.
func (c *Cache) Close() {
	close(c.stop)
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
