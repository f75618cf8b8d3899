// Package cache provides a small bounded TTL cache keyed by a contextual
// name plus subject id, used where the client memoizes remote lookups.
// Making the cache an injected value keeps invalidation an explicit
// contract and avoids process-wide state bleeding across tests.
package cache

import (
	"sync"
	"time"
)

type key struct {
	name    string
	subject string
}

type entry struct {
	value      string
	expiresAt  time.Time
	lastAccess time.Time
}

type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	items      map[key]entry
	now        func() time.Time
}

func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		items:      make(map[key]entry),
		now:        time.Now,
	}
}

func (c *Cache) Get(name, subject string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key{name: name, subject: subject}
	e, ok := c.items[k]
	if !ok {
		return "", false
	}
	now := c.now()
	if now.After(e.expiresAt) {
		delete(c.items, k)
		return "", false
	}
	e.lastAccess = now
	c.items[k] = e
	return e.value, true
}

func (c *Cache) Put(name, subject, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if len(c.items) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.items[key{name: name, subject: subject}] = entry{
		value:      value,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
	}
}

// Invalidate drops one subject; InvalidateName drops every entry under a
// contextual name.
func (c *Cache) Invalidate(name, subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key{name: name, subject: subject})
}

func (c *Cache) InvalidateName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if k.name == name {
			delete(c.items, k)
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) evictOldestLocked() {
	var oldest key
	var oldestAt time.Time
	first := true
	for k, e := range c.items {
		if first || e.lastAccess.Before(oldestAt) {
			oldest, oldestAt, first = k, e.lastAccess, false
		}
	}
	if !first {
		delete(c.items, oldest)
	}
}
