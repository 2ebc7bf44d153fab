// Command fetch resolves a symbol list once and prints the result as JSON.
// Useful for checking provider credentials and watching the fallback behave.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"stockboard/internal/aggregate"
	"stockboard/internal/config"
	"stockboard/internal/httpx"
	"stockboard/internal/provider/alphavantage"
	"stockboard/internal/provider/finnhub"
	"stockboard/internal/provider/finnhubadapter"
	"stockboard/internal/provider/ratelimit"
	"stockboard/internal/quote"
)

func main() {
	var symbolsCSV string
	var timeout int
	var configPath string
	var delayMS int

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", ""), "comma-separated ticker symbols (empty uses the default watchlist)")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 15), "request timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json/config.yaml (optional)")
	flag.IntVar(&delayMS, "delay", -1, "delay between provider calls in ms (-1 uses config)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if timeout != 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}
	if delayMS >= 0 {
		cfg.Quotes.FetchDelayMillis = delayMS
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	providers := make([]quote.Provider, 0, 2)
	if cfg.AlphaVantage.APIKey != "" {
		av := alphavantage.New(alphavantage.Config{
			Endpoint:         cfg.AlphaVantage.Endpoint,
			APIKey:           cfg.AlphaVantage.APIKey,
			EnrichMarketCap:  cfg.AlphaVantage.EnrichMarketCap,
			OverviewCacheTTL: time.Duration(cfg.AlphaVantage.OverviewCacheTTLSec) * time.Second,
		}, httpClient)
		var p quote.Provider = av
		if cfg.AlphaVantage.MaxRequestsPerMinute > 0 {
			burst := cfg.AlphaVantage.Burst
			if burst <= 0 {
				burst = 1
			}
			p = &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(float64(cfg.AlphaVantage.MaxRequestsPerMinute)/60.0, burst)}
		}
		providers = append(providers, p)
	}
	if cfg.Finnhub.APIKey != "" {
		opts := []finnhub.ClientOption{finnhub.WithHTTPClient(httpClient.HTTP)}
		if cfg.Finnhub.Endpoint != "" {
			opts = append(opts, finnhub.WithBaseURL(cfg.Finnhub.Endpoint))
		}
		fhClient, err := finnhub.NewClient(cfg.Finnhub.APIKey, opts...)
		if err != nil {
			log.Fatalf("finnhub client: %v", err)
		}
		fh := finnhubadapter.New(finnhubadapter.Config{EnrichMarketCap: cfg.Finnhub.EnrichMarketCap}, fhClient)
		var p quote.Provider = fh
		if cfg.Finnhub.MaxRequestsPerMinute > 0 {
			burst := cfg.Finnhub.Burst
			if burst <= 0 {
				burst = 1
			}
			p = &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(float64(cfg.Finnhub.MaxRequestsPerMinute)/60.0, burst)}
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		log.Println("no provider credentials configured; result will be fully simulated")
	}

	agg := &aggregate.Aggregator{
		Providers:      providers,
		DefaultSymbols: cfg.Quotes.DefaultSymbols,
		Delay:          time.Duration(cfg.Quotes.FetchDelayMillis) * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.RequestTimeoutSec)*time.Second*2)
	defer cancel()

	res := agg.GetQuotes(ctx, splitCSV(symbolsCSV))
	if res.Error != "" {
		log.Printf("degraded: %s", res.Error)
	}
	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x != 0 {
			return x
		}
	}
	return def
}
