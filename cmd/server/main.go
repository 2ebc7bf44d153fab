package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"stockboard/internal/aggregate"
	"stockboard/internal/config"
	"stockboard/internal/httpx"
	"stockboard/internal/provider/alphavantage"
	"stockboard/internal/provider/cache"
	"stockboard/internal/provider/finnhub"
	"stockboard/internal/provider/finnhubadapter"
	"stockboard/internal/provider/ratelimit"
	"stockboard/internal/quote"
)

func main() {
	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	port := cfg.Server.Port
	timeoutSec := cfg.Server.RequestTimeoutSec

	httpClient := httpx.New(time.Duration(timeoutSec) * time.Second)

	providers := buildProviders(cfg, httpClient)
	if len(providers) == 0 {
		log.Println("warning: no provider credentials configured; all quotes will be simulated")
	}

	agg := &aggregate.Aggregator{
		Providers:      providers,
		DefaultSymbols: cfg.Quotes.DefaultSymbols,
		Delay:          time.Duration(cfg.Quotes.FetchDelayMillis) * time.Millisecond,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/stocks", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handleGetStocks(w, r, agg)
		case http.MethodPost:
			handlePostStocks(w, r, agg)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildProviders assembles the preference chain from credential availability:
// Alpha Vantage first when its key is present, then Finnhub. Each provider is
// wrapped with its configured rate limiter and per-symbol cache.
func buildProviders(cfg config.Config, httpClient *httpx.Client) []quote.Provider {
	var providers []quote.Provider

	if cfg.AlphaVantage.APIKey != "" {
		av := alphavantage.New(alphavantage.Config{
			Endpoint:         cfg.AlphaVantage.Endpoint,
			APIKey:           cfg.AlphaVantage.APIKey,
			EnrichMarketCap:  cfg.AlphaVantage.EnrichMarketCap,
			OverviewCacheTTL: time.Duration(cfg.AlphaVantage.OverviewCacheTTLSec) * time.Second,
		}, httpClient)
		providers = append(providers, wrapProvider(av,
			cfg.AlphaVantage.MaxRequestsPerMinute, cfg.AlphaVantage.Burst, cfg.AlphaVantage.MinRequestIntervalSec,
			cfg.AlphaVantage.CacheTTLSeconds, cfg.AlphaVantage.CacheMaxItems))
	} else {
		log.Println("alphavantage api key not set; skipping provider")
	}

	if cfg.Finnhub.APIKey != "" {
		opts := []finnhub.ClientOption{finnhub.WithHTTPClient(httpClient.HTTP)}
		if cfg.Finnhub.Endpoint != "" {
			opts = append(opts, finnhub.WithBaseURL(cfg.Finnhub.Endpoint))
		}
		fhClient, err := finnhub.NewClient(cfg.Finnhub.APIKey, opts...)
		if err != nil {
			log.Printf("finnhub client error: %v", err)
		} else {
			fh := finnhubadapter.New(finnhubadapter.Config{
				EnrichMarketCap: cfg.Finnhub.EnrichMarketCap,
			}, fhClient)
			providers = append(providers, wrapProvider(fh,
				cfg.Finnhub.MaxRequestsPerMinute, cfg.Finnhub.Burst, cfg.Finnhub.MinRequestIntervalSec,
				cfg.Finnhub.CacheTTLSeconds, cfg.Finnhub.CacheMaxItems))
		}
	} else {
		log.Println("finnhub api key not set; skipping provider")
	}

	return providers
}

// wrapProvider layers rate limiting and caching around a provider. A token
// bucket wins over a plain min-interval gate when an RPM budget is set.
func wrapProvider(p quote.Provider, maxRPM, burst, minIntervalSec, cacheTTLSec, cacheMaxItems int) quote.Provider {
	if maxRPM > 0 {
		if burst <= 0 {
			burst = 1
		}
		p = &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(float64(maxRPM)/60.0, burst)}
	} else if minIntervalSec > 0 {
		p = &ratelimit.MinInterval{P: p, Interval: time.Duration(minIntervalSec) * time.Second}
	}
	if cacheTTLSec > 0 {
		p = &cache.Provider{P: p, TTL: time.Duration(cacheTTLSec) * time.Second, MaxItems: cacheMaxItems}
	}
	return p
}

func handleGetStocks(w http.ResponseWriter, r *http.Request, agg *aggregate.Aggregator) {
	// An absent or empty symbols param falls back to the default watchlist.
	symbols := splitCSV(r.URL.Query().Get("symbols"))
	if len(symbols) > 100 {
		http.Error(w, "too many symbols (max 100)", http.StatusBadRequest)
		return
	}
	writeStocks(w, r.Context(), agg, symbols)
}

type postBody struct {
	Symbols []string `json:"symbols"`
}

func handlePostStocks(w http.ResponseWriter, r *http.Request, agg *aggregate.Aggregator) {
	var b postBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(b.Symbols) > 100 {
		http.Error(w, "too many symbols (max 100)", http.StatusBadRequest)
		return
	}
	writeStocks(w, r.Context(), agg, b.Symbols)
}

// writeStocks always answers 200: degraded modes ride in the error field of
// the payload, never in the HTTP status.
func writeStocks(w http.ResponseWriter, rctx context.Context, agg *aggregate.Aggregator, symbols []string) {
	ctx, cancel := context.WithTimeout(rctx, 25*time.Second)
	defer cancel()
	res := agg.GetQuotes(ctx, symbols)
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(res)
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		// Prefer best speed to reduce CPU usage since payloads are JSON
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
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
