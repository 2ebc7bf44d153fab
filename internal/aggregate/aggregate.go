// Package aggregate acquires quotes for a symbol list across an ordered
// provider chain and fills whatever is left with deterministic mock rows, so
// callers always get one displayable row per requested symbol.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockboard/internal/mockquote"
	"stockboard/internal/quote"
)

// DefaultSymbols is substituted when a request carries no usable symbols.
var DefaultSymbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA"}

// Aggregator owns no mutable state across requests; every GetQuotes call
// builds its own bookkeeping, so one instance serves concurrent requests.
type Aggregator struct {
	// Providers is the preference chain. The next provider is tried only
	// when the previous one yielded zero usable rows.
	Providers []quote.Provider
	// DefaultSymbols overrides the package default set when non-empty.
	DefaultSymbols []string
	// Delay is a courtesy throttle between successive provider calls within
	// one request. It never gates other requests.
	Delay time.Duration
	// MockRow overrides the substitute row generator. Tests inject a fixed
	// one; nil means mockquote.Row.
	MockRow func(symbol string, index int) quote.Quote
}

// NormalizeSymbols trims, upper-cases, drops empties and de-duplicates,
// preserving first-occurrence order.
func NormalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// GetQuotes returns exactly one row per distinct normalized symbol, in input
// order. It never fails: degraded modes are reported through Result.Error,
// which is set iff at least one symbol was not satisfied by a live provider.
func (a *Aggregator) GetQuotes(ctx context.Context, symbols []string) quote.Result {
	syms := NormalizeSymbols(symbols)
	if len(syms) == 0 {
		syms = a.DefaultSymbols
		if len(syms) == 0 {
			syms = DefaultSymbols
		}
		syms = NormalizeSymbols(syms)
	}

	mockRow := a.MockRow
	if mockRow == nil {
		mockRow = mockquote.Row
	}

	rows := make(map[string]quote.Quote, len(syms))
	reasons := make(map[string]string, len(syms))
	canceled := false

	for _, p := range a.Providers {
		// Each provider attempt retries the full symbol set; the chain only
		// advances when the previous provider produced nothing at all.
		rows = make(map[string]quote.Quote, len(syms))
		clear(reasons)

		for i, s := range syms {
			if i > 0 && a.Delay > 0 && !canceled {
				if err := sleep(ctx, a.Delay); err != nil {
					canceled = true
				}
			}
			if canceled || ctx.Err() != nil {
				canceled = true
				reasons[s] = "no data"
				continue
			}
			q, err := p.Fetch(ctx, s)
			if err != nil {
				// Rate limiting and no-data are equivalent for fallback but
				// kept apart for the diagnostic.
				if errors.Is(err, quote.ErrRateLimited) {
					reasons[s] = "rate limited"
				} else {
					reasons[s] = "no data"
				}
				continue
			}
			q.Symbol = s
			rows[s] = q
		}
		if len(rows) > 0 || canceled {
			break
		}
	}

	var diag string
	switch {
	case len(rows) == 0:
		for i, s := range syms {
			rows[s] = mockRow(s, i)
		}
		if len(a.Providers) == 0 {
			diag = "no quote providers configured; showing simulated quotes"
		} else {
			diag = "live quotes unavailable from all providers; showing simulated quotes"
		}
	case len(rows) < len(syms):
		parts := make([]string, 0, len(syms)-len(rows))
		for i, s := range syms {
			if _, ok := rows[s]; ok {
				// Real rows always win over would-be mock rows.
				continue
			}
			rows[s] = mockRow(s, i)
			reason := reasons[s]
			if reason == "" {
				reason = "no data"
			}
			parts = append(parts, fmt.Sprintf("%s (%s)", s, reason))
		}
		diag = fmt.Sprintf("live quotes unavailable for %s; showing simulated quotes", strings.Join(parts, ", "))
	}

	out := make([]quote.Quote, 0, len(syms))
	for _, s := range syms {
		out = append(out, rows[s])
	}
	return quote.Result{Stocks: out, Error: diag}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
