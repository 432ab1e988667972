// Package cache provides QueryCache implementations: a bounded in-process
// LRU with expiry, a Redis-backed shared cache, and a tiered combination.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Default bounds used when the caller passes zero values.
const (
	DefaultCapacity = 100
	DefaultTTL      = time.Hour
)

// Ensure LRU implements the interface.
var _ driven.QueryCache = (*LRU)(nil)

// LRU is a size-bounded, expiring in-process cache.
type LRU struct {
	entries *expirable.LRU[string, domain.CacheEntry]
}

// NewLRU creates a cache holding at most capacity entries for ttl each.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LRU{entries: expirable.NewLRU[string, domain.CacheEntry](capacity, nil, ttl)}
}

// Get returns a copy of the entry so callers cannot mutate the cached answer.
func (c *LRU) Get(_ context.Context, key string) (*domain.CacheEntry, bool, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	e.Answer = *e.Answer.Clone()
	return &e, true, nil
}

// Put stores a copy of entry, evicting the least recently used one when full.
func (c *LRU) Put(_ context.Context, key string, entry domain.CacheEntry) error {
	entry.Answer = *entry.Answer.Clone()
	c.entries.Add(key, entry)
	return nil
}

// Purge removes every entry.
func (c *LRU) Purge(_ context.Context) error {
	c.entries.Purge()
	return nil
}

// Len returns the number of live entries.
func (c *LRU) Len() int {
	return c.entries.Len()
}
