package quote

import (
	"context"
	"errors"
	"time"
)

// Quote is the normalized record all providers and the mock generator
// converge to. MarketCap and Volume are optional; a nil pointer means the
// source did not supply the field.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	MarketCap     *float64  `json:"marketCap,omitempty"`
	Volume        *float64  `json:"volume,omitempty"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Source        string    `json:"source"`
}

// Result is the response envelope. Stocks follows the caller's requested
// symbol order. Error is a human-readable diagnostic set whenever at least
// one symbol was not satisfied by a live provider; it is never a failure.
type Result struct {
	Stocks []Quote `json:"stocks"`
	Error  string  `json:"error,omitempty"`
}

// ErrNoData means the provider returned nothing usable for the symbol:
// missing payload, schema deviation, unparseable mandatory field, or a
// transport failure swallowed at the adapter boundary.
var ErrNoData = errors.New("no data")

// ErrRateLimited means the provider signaled quota exhaustion. For fallback
// purposes it is equivalent to ErrNoData, but it is kept distinct so
// diagnostics can say so.
var ErrRateLimited = errors.New("rate limited")

type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (Quote, error)
}
