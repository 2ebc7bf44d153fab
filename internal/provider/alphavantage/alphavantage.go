// Package alphavantage fetches quotes from the Alpha Vantage GLOBAL_QUOTE
// endpoint and, best-effort, company market cap from OVERVIEW.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"stockboard/internal/httpx"
	"stockboard/internal/quote"
)

// marketCloseUTC anchors provider-supplied trading days that carry no
// time-of-day. 21:00 UTC is 16:00 New York outside DST; close enough for a
// display timestamp.
const marketCloseUTC = 21 * time.Hour

type Config struct {
	Name     string
	Endpoint string
	APIKey   string
	// EnrichMarketCap enables the OVERVIEW call per symbol. Failures never
	// invalidate the primary quote; they only leave marketCap absent.
	EnrichMarketCap bool
	// OverviewCacheTTL caches market caps between requests since they move
	// slowly and OVERVIEW burns quota. <= 0 disables the cache.
	OverviewCacheTTL time.Duration
}

type Provider struct {
	cfg    Config
	client *httpx.Client

	mu   sync.RWMutex
	caps map[string]capEntry
	sf   singleflight.Group
}

type capEntry struct {
	value float64
	ok    bool
	until time.Time
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "AlphaVantage"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://www.alphavantage.co/query"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// globalQuoteResponse is the GLOBAL_QUOTE envelope. All quote fields arrive
// as strings; a "Note" or "Information" field replaces the payload when the
// API key's quota is exhausted.
type globalQuoteResponse struct {
	GlobalQuote  map[string]string `json:"Global Quote"`
	Note         string            `json:"Note"`
	Information  string            `json:"Information"`
	ErrorMessage string            `json:"Error Message"`
}

func (p *Provider) Fetch(ctx context.Context, symbol string) (quote.Quote, error) {
	body, status, err := p.get(ctx, url.Values{
		"function": []string{"GLOBAL_QUOTE"},
		"symbol":   []string{symbol},
		"apikey":   []string{p.cfg.APIKey},
	})
	if err != nil {
		return quote.Quote{}, fmt.Errorf("%s %s: %v: %w", p.cfg.Name, symbol, err, quote.ErrNoData)
	}
	if status == http.StatusTooManyRequests {
		return quote.Quote{}, fmt.Errorf("%s %s: status 429: %w", p.cfg.Name, symbol, quote.ErrRateLimited)
	}
	if status < 200 || status >= 300 {
		return quote.Quote{}, fmt.Errorf("%s %s: status %d: %w", p.cfg.Name, symbol, status, quote.ErrNoData)
	}

	var resp globalQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return quote.Quote{}, fmt.Errorf("%s %s: decode: %v: %w", p.cfg.Name, symbol, err, quote.ErrNoData)
	}
	if len(resp.GlobalQuote) == 0 {
		if resp.Note != "" || resp.Information != "" {
			return quote.Quote{}, fmt.Errorf("%s %s: quota note: %w", p.cfg.Name, symbol, quote.ErrRateLimited)
		}
		return quote.Quote{}, fmt.Errorf("%s %s: empty quote: %w", p.cfg.Name, symbol, quote.ErrNoData)
	}

	gq := resp.GlobalQuote
	price, ok1 := quote.ParseNumber(gq["05. price"])
	change, ok2 := quote.ParseNumber(gq["09. change"])
	pct, ok3 := quote.ParseNumber(gq["10. change percent"])
	if !ok1 || !ok2 || !ok3 {
		return quote.Quote{}, fmt.Errorf("%s %s: unparseable mandatory field: %w", p.cfg.Name, symbol, quote.ErrNoData)
	}

	q := quote.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		LastUpdated:   tradingDayOr(gq["07. latest trading day"], time.Now().UTC()),
		Source:        p.cfg.Name,
	}
	if vol, ok := quote.ParseNumber(gq["06. volume"]); ok && vol >= 0 {
		v := math.Round(vol)
		q.Volume = &v
	}
	if p.cfg.EnrichMarketCap {
		if mc, ok := p.marketCap(ctx, symbol); ok {
			q.MarketCap = &mc
		}
	}
	return q, nil
}

// marketCap resolves company market cap via OVERVIEW. Any error, quota note
// or unparseable value reports absent; concurrent lookups for one symbol are
// coalesced.
func (p *Provider) marketCap(ctx context.Context, symbol string) (float64, bool) {
	ttl := p.cfg.OverviewCacheTTL
	if ttl > 0 {
		p.mu.RLock()
		e, hit := p.caps[symbol]
		p.mu.RUnlock()
		if hit && time.Now().Before(e.until) {
			return e.value, e.ok
		}
	}

	v, _, _ := p.sf.Do(symbol, func() (any, error) {
		e := capEntry{until: time.Now().Add(ttl)}
		if mc, ok := p.fetchOverviewCap(ctx, symbol); ok {
			e.value, e.ok = mc, true
		}
		if ttl > 0 {
			p.mu.Lock()
			if p.caps == nil {
				p.caps = make(map[string]capEntry)
			}
			p.caps[symbol] = e
			p.mu.Unlock()
		}
		return e, nil
	})
	e := v.(capEntry)
	return e.value, e.ok
}

func (p *Provider) fetchOverviewCap(ctx context.Context, symbol string) (float64, bool) {
	body, status, err := p.get(ctx, url.Values{
		"function": []string{"OVERVIEW"},
		"symbol":   []string{symbol},
		"apikey":   []string{p.cfg.APIKey},
	})
	if err != nil || status < 200 || status >= 300 {
		return 0, false
	}
	var resp struct {
		MarketCapitalization string `json:"MarketCapitalization"`
		Note                 string `json:"Note"`
		Information          string `json:"Information"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, false
	}
	if resp.Note != "" || resp.Information != "" {
		return 0, false
	}
	mc, ok := quote.ParseNumber(resp.MarketCapitalization)
	if !ok || mc < 0 {
		return 0, false
	}
	return math.Round(mc), true
}

func (p *Provider) get(ctx context.Context, query url.Values) ([]byte, int, error) {
	u := p.cfg.Endpoint + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, 0, err
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// tradingDayOr converts a "2006-01-02" trading day to an instant anchored at
// market close, falling back to the provided time.
func tradingDayOr(day string, fallback time.Time) time.Time {
	day = strings.TrimSpace(day)
	if day == "" {
		return fallback
	}
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		return fallback
	}
	return d.Add(marketCloseUTC)
}
