package cache

import (
	"context"
	"sync"
	"time"

	"stockboard/internal/quote"
)

// entry stores a cached quote with expiry.
type entry struct {
	expiresAt time.Time
	q         quote.Quote
}

// Provider caches successful fetches per symbol for a TTL. Failures are not
// cached so fallback retries stay possible.
type Provider struct {
	P        quote.Provider
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry // key: symbol
}

func (c *Provider) Name() string { return c.P.Name() }

func (c *Provider) Fetch(ctx context.Context, symbol string) (quote.Quote, error) {
	if c.P == nil || c.TTL <= 0 {
		return c.P.Fetch(ctx, symbol)
	}

	now := time.Now()
	c.mu.RLock()
	e, ok := c.items[symbol]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.q, nil
	}

	q, err := c.P.Fetch(ctx, symbol)
	if err != nil {
		return quote.Quote{}, err
	}

	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[symbol] = entry{expiresAt: now.Add(c.TTL), q: q}
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// best-effort cap: drop expired first, then arbitrary keys
		for k, v := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if time.Now().After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			delete(c.items, k)
		}
	}
	c.mu.Unlock()

	return q, nil
}
