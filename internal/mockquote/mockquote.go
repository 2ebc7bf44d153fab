// Package mockquote synthesizes plausible quote rows for symbols that no
// live provider could satisfy. Rows are deterministic within a one-minute
// window so a refreshing client sees stable numbers instead of flicker.
package mockquote

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"stockboard/internal/quote"
)

// Source marks rows produced by this package.
const Source = "mock"

type baseline struct {
	price     float64
	marketCap float64
	volume    float64
}

// Presets for well-known tickers so substitute rows look familiar.
var baselines = map[string]baseline{
	"AAPL":  {189.84, 2.95e12, 58_000_000},
	"MSFT":  {415.26, 3.09e12, 22_000_000},
	"GOOGL": {163.18, 2.02e12, 25_000_000},
	"AMZN":  {178.22, 1.85e12, 40_000_000},
	"TSLA":  {248.50, 7.9e11, 95_000_000},
	"META":  {502.31, 1.27e12, 14_000_000},
	"NVDA":  {875.40, 2.19e12, 45_000_000},
	"NFLX":  {610.56, 2.6e11, 4_500_000},
}

// baselineFor returns the preset for a known symbol, otherwise a synthetic
// baseline derived from the symbol's position in the request so repeated
// calls in one run stay stable relative to position.
func baselineFor(symbol string, index int) baseline {
	if b, ok := baselines[symbol]; ok {
		return b
	}
	step := float64(index % 8)
	return baseline{
		price:     100 + step*25,
		marketCap: 5e10 + step*2e10,
		volume:    5_000_000 + step*1_000_000,
	}
}

// fraction maps (symbol, index, minuteBucket) to r in [0,1) using FNV-1a over
// "symbol|index|minuteBucket". Not random: identical inputs give identical r,
// which is the whole point.
func fraction(symbol string, index int, minuteBucket int64) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d", symbol, index, minuteBucket)
	const mod = 1_000_000_007
	return float64(h.Sum64()%mod) / mod
}

// Row generates a substitute quote for symbol at position index in the
// request, keyed to the current minute.
func Row(symbol string, index int) quote.Quote {
	return RowAt(symbol, index, time.Now().Unix()/60)
}

// RowAt is Row with an explicit minute bucket (floor(epochSeconds/60)).
// Two calls with the same symbol, index and bucket produce identical
// numeric fields.
func RowAt(symbol string, index int, minuteBucket int64) quote.Quote {
	b := baselineFor(symbol, index)
	r := fraction(symbol, index, minuteBucket)

	pct := round2(-3 + r*6)
	price := round2(b.price * (1 + pct/100))
	change := round2(price * pct / 100)
	vol := math.Round(b.volume * (0.8 + r*0.4))
	if vol < 1 {
		vol = 1
	}
	mcap := math.Round(b.marketCap)

	return quote.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		MarketCap:     &mcap,
		Volume:        &vol,
		LastUpdated:   time.Now().UTC(),
		Source:        Source,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
