package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"stockboard/internal/quote"
)

type countingProvider struct {
	calls int
	fail  bool
}

func (c *countingProvider) Name() string { return "counting" }
func (c *countingProvider) Fetch(_ context.Context, symbol string) (quote.Quote, error) {
	c.calls++
	if c.fail {
		return quote.Quote{}, fmt.Errorf("%s: %w", symbol, quote.ErrNoData)
	}
	return quote.Quote{Symbol: symbol, Price: float64(c.calls), Source: "counting"}, nil
}

func TestFetch_ServesFromCacheWithinTTL(t *testing.T) {
	under := &countingProvider{}
	p := &Provider{P: under, TTL: time.Minute}

	q1, err := p.Fetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	q2, err := p.Fetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if under.calls != 1 {
		t.Fatalf("want 1 upstream call, got %d", under.calls)
	}
	if q1.Price != q2.Price {
		t.Fatalf("cached quote differs: %v vs %v", q1, q2)
	}
}

func TestFetch_DistinctSymbolsMiss(t *testing.T) {
	under := &countingProvider{}
	p := &Provider{P: under, TTL: time.Minute}

	p.Fetch(context.Background(), "AAPL")
	p.Fetch(context.Background(), "MSFT")
	if under.calls != 2 {
		t.Fatalf("want 2 upstream calls, got %d", under.calls)
	}
}

func TestFetch_FailuresNotCached(t *testing.T) {
	under := &countingProvider{fail: true}
	p := &Provider{P: under, TTL: time.Minute}

	p.Fetch(context.Background(), "AAPL")
	p.Fetch(context.Background(), "AAPL")
	if under.calls != 2 {
		t.Fatalf("failures must not be cached; want 2 calls, got %d", under.calls)
	}
}

func TestFetch_ZeroTTLPassesThrough(t *testing.T) {
	under := &countingProvider{}
	p := &Provider{P: under}

	p.Fetch(context.Background(), "AAPL")
	p.Fetch(context.Background(), "AAPL")
	if under.calls != 2 {
		t.Fatalf("want passthrough, got %d calls", under.calls)
	}
}

func TestFetch_MaxItemsBound(t *testing.T) {
	under := &countingProvider{}
	p := &Provider{P: under, TTL: time.Minute, MaxItems: 3}

	for i := 0; i < 10; i++ {
		p.Fetch(context.Background(), fmt.Sprintf("SYM%d", i))
	}
	p.mu.RLock()
	n := len(p.items)
	p.mu.RUnlock()
	if n > 3 {
		t.Fatalf("cache exceeded MaxItems: %d", n)
	}
}
