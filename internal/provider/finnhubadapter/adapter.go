// Package finnhubadapter turns the Finnhub API client into a quote.Provider.
package finnhubadapter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"stockboard/internal/provider/finnhub"
	"stockboard/internal/quote"
)

type Config struct {
	Name string // display name, default: Finnhub
	// EnrichMarketCap enables the best-effort company profile call.
	EnrichMarketCap bool
}

type Adapter struct {
	cfg    Config
	client *finnhub.Client
}

func New(cfg Config, client *finnhub.Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "Finnhub"
	}
	return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Fetch(ctx context.Context, symbol string) (quote.Quote, error) {
	qd, err := a.client.GetQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, finnhub.ErrRateLimited) {
			return quote.Quote{}, fmt.Errorf("%s %s: %w", a.cfg.Name, symbol, quote.ErrRateLimited)
		}
		return quote.Quote{}, fmt.Errorf("%s %s: %v: %w", a.cfg.Name, symbol, err, quote.ErrNoData)
	}
	// Unknown symbols come back as an all-zero payload, not an error.
	if qd.Empty() || qd.Change == nil || qd.ChangePercent == nil {
		return quote.Quote{}, fmt.Errorf("%s %s: empty quote: %w", a.cfg.Name, symbol, quote.ErrNoData)
	}

	ts := time.Now().UTC()
	if qd.Timestamp > 0 {
		ts = time.Unix(qd.Timestamp, 0).UTC()
	}
	q := quote.Quote{
		Symbol:        symbol,
		Price:         qd.Current,
		Change:        *qd.Change,
		ChangePercent: *qd.ChangePercent,
		LastUpdated:   ts,
		Source:        a.cfg.Name,
	}

	if a.cfg.EnrichMarketCap {
		// Best-effort: any error or missing value just leaves the field absent.
		if prof, err := a.client.GetCompanyProfile(ctx, symbol); err == nil && prof.MarketCapitalization > 0 {
			mcap := math.Round(prof.MarketCapitalization * 1e6)
			q.MarketCap = &mcap
		}
	}
	return q, nil
}
