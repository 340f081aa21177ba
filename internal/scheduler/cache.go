package scheduler

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mohammad-safakhou/prospector/config"
	"github.com/mohammad-safakhou/prospector/internal/agent/core"
)

// ResultCache stores completed reports keyed by the subject profile.
// A hit counts as a read and refreshes the entry's TTL.
type ResultCache interface {
	Get(ctx context.Context, key string) (core.Report, bool, error)
	Set(ctx context.Context, key string, report core.Report) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// NewResultCache picks the backend from configuration.
func NewResultCache(cfg config.CacheConfig) (ResultCache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(cfg.Size, cfg.TTL), nil
	case "redis":
		return NewRedisCache(cfg)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

type memoryEntry struct {
	key       string
	report    core.Report
	expiresAt time.Time
}

// MemoryCache is a process-local LRU with per-entry TTL. The eviction
// order list holds most recently used entries at the front.
type MemoryCache struct {
	mu      sync.Mutex
	size    int
	ttl     time.Duration
	order   *list.List
	entries map[string]*list.Element
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 256
	}
	return &MemoryCache{
		size:    size,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (core.Report, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return core.Report{}, false, nil
	}
	entry := el.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return core.Report{}, false, nil
	}
	entry.expiresAt = time.Now().Add(c.ttl)
	c.order.MoveToFront(el)
	return entry.report, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, report core.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.report = report
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return nil
	}
	for c.order.Len() >= c.size {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*memoryEntry).key)
	}
	el := c.order.PushFront(&memoryEntry{key: key, report: report, expiresAt: time.Now().Add(c.ttl)})
	c.entries[key] = el
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	return nil
}

// Sweep drops expired entries. Expiry is otherwise only checked on
// read, so rarely read keys would pin memory without this.
func (c *MemoryCache) Sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, el := range c.entries {
		if now.After(el.Value.(*memoryEntry).expiresAt) {
			c.order.Remove(el)
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) Close() error { return nil }
