package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.QueryCache = (*Tiered)(nil)

// Tiered checks a local cache before a shared one. Shared hits are copied
// into the local tier.
//
// An entry lives for ttl from its CreatedAt in either tier. A back-filled
// local copy would otherwise start a fresh TTL, so Get rejects entries
// older than ttl whichever tier returns them.
type Tiered struct {
	local  driven.QueryCache
	shared driven.QueryCache
	ttl    time.Duration
	now    func() time.Time
}

// NewTiered combines a local and a shared cache whose entries expire
// ttl after creation.
func NewTiered(local, shared driven.QueryCache, ttl time.Duration) *Tiered {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tiered{local: local, shared: shared, ttl: ttl, now: time.Now}
}

// Get tries the local tier, then the shared tier.
func (c *Tiered) Get(ctx context.Context, key string) (*domain.CacheEntry, bool, error) {
	if e, ok, err := c.local.Get(ctx, key); err == nil && ok && c.fresh(e) {
		return e, true, nil
	}

	e, ok, err := c.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if !c.fresh(e) {
		return nil, false, nil
	}
	// Back-fill errors only cost a future local miss.
	_ = c.local.Put(ctx, key, *e)
	return e, true, nil
}

// fresh reports whether e is younger than the TTL. Entries without a
// creation time never expire here; the tiers' own TTLs still apply.
func (c *Tiered) fresh(e *domain.CacheEntry) bool {
	if e.CreatedAt.IsZero() {
		return true
	}
	return c.now().Sub(e.CreatedAt) < c.ttl
}

// Put writes both tiers. The local write always happens.
func (c *Tiered) Put(ctx context.Context, key string, entry domain.CacheEntry) error {
	return errors.Join(c.local.Put(ctx, key, entry), c.shared.Put(ctx, key, entry))
}

// Purge clears both tiers.
func (c *Tiered) Purge(ctx context.Context) error {
	return errors.Join(c.local.Purge(ctx), c.shared.Purge(ctx))
}

// Len reports the local tier size.
func (c *Tiered) Len() int {
	return c.local.Len()
}
