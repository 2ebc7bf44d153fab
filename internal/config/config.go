package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port              string `json:"port" yaml:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
}

type AlphaVantage struct {
	APIKey                string `json:"api_key" yaml:"api_key"`
	Endpoint              string `json:"endpoint" yaml:"endpoint"`
	EnrichMarketCap       bool   `json:"enrich_market_cap" yaml:"enrich_market_cap"`
	OverviewCacheTTLSec   int    `json:"overview_cache_ttl_sec" yaml:"overview_cache_ttl_sec"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                 int    `json:"burst" yaml:"burst"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
	CacheTTLSeconds       int    `json:"cache_ttl_sec" yaml:"cache_ttl_sec"`
	CacheMaxItems         int    `json:"cache_max_items" yaml:"cache_max_items"`
}

type Finnhub struct {
	APIKey                string `json:"api_key" yaml:"api_key"`
	Endpoint              string `json:"endpoint" yaml:"endpoint"`
	EnrichMarketCap       bool   `json:"enrich_market_cap" yaml:"enrich_market_cap"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                 int    `json:"burst" yaml:"burst"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
	CacheTTLSeconds       int    `json:"cache_ttl_sec" yaml:"cache_ttl_sec"`
	CacheMaxItems         int    `json:"cache_max_items" yaml:"cache_max_items"`
}

type Quotes struct {
	DefaultSymbols   []string `json:"default_symbols" yaml:"default_symbols"`
	FetchDelayMillis int      `json:"fetch_delay_ms" yaml:"fetch_delay_ms"`
}

type Config struct {
	Server       Server       `json:"server" yaml:"server"`
	AlphaVantage AlphaVantage `json:"alphavantage" yaml:"alphavantage"`
	Finnhub      Finnhub      `json:"finnhub" yaml:"finnhub"`
	Quotes       Quotes       `json:"quotes" yaml:"quotes"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		AlphaVantage: AlphaVantage{
			Endpoint:             "https://www.alphavantage.co/query",
			EnrichMarketCap:      true,
			OverviewCacheTTLSec:  600,
			MaxRequestsPerMinute: 5,
			Burst:                5,
			CacheTTLSeconds:      30,
			CacheMaxItems:        1000,
		},
		Finnhub: Finnhub{
			Endpoint:             "https://finnhub.io/api/v1",
			EnrichMarketCap:      true,
			MaxRequestsPerMinute: 60,
			Burst:                30,
			CacheTTLSeconds:      15,
			CacheMaxItems:        1000,
		},
		Quotes: Quotes{
			DefaultSymbols:   []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA"},
			FetchDelayMillis: 300,
		},
	}
}

// Load reads config from path (JSON or YAML by extension). If path is empty,
// config.json then config.yaml are tried; a missing file just means defaults.
// Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, candidate := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
				if err := yaml.Unmarshal(b, &cfg); err != nil {
					return cfg, fmt.Errorf("parse config: %w", err)
				}
			default:
				if err := json.Unmarshal(b, &cfg); err != nil {
					return cfg, fmt.Errorf("parse config: %w", err)
				}
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := envInt("REQUEST_TIMEOUT_SEC"); v > 0 {
		cfg.Server.RequestTimeoutSec = v
	}

	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_ENDPOINT"); v != "" {
		cfg.AlphaVantage.Endpoint = v
	}
	if v, ok := envBool("ALPHAVANTAGE_ENRICH_MARKET_CAP"); ok {
		cfg.AlphaVantage.EnrichMarketCap = v
	}
	if v := envInt("ALPHAVANTAGE_OVERVIEW_CACHE_TTL_SEC"); v >= 0 {
		cfg.AlphaVantage.OverviewCacheTTLSec = v
	}
	if v := envInt("ALPHAVANTAGE_MAX_RPM"); v >= 0 {
		cfg.AlphaVantage.MaxRequestsPerMinute = v
	}
	if v := envInt("ALPHAVANTAGE_BURST"); v > 0 {
		cfg.AlphaVantage.Burst = v
	}
	if v := envInt("ALPHAVANTAGE_MIN_INTERVAL_SEC"); v >= 0 {
		cfg.AlphaVantage.MinRequestIntervalSec = v
	}
	if v := envInt("ALPHAVANTAGE_CACHE_TTL_SEC"); v >= 0 {
		cfg.AlphaVantage.CacheTTLSeconds = v
	}
	if v := envInt("ALPHAVANTAGE_CACHE_MAX_ITEMS"); v > 0 {
		cfg.AlphaVantage.CacheMaxItems = v
	}

	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Finnhub.APIKey = v
	}
	if v := os.Getenv("FINNHUB_ENDPOINT"); v != "" {
		cfg.Finnhub.Endpoint = v
	}
	if v, ok := envBool("FINNHUB_ENRICH_MARKET_CAP"); ok {
		cfg.Finnhub.EnrichMarketCap = v
	}
	if v := envInt("FINNHUB_MAX_RPM"); v >= 0 {
		cfg.Finnhub.MaxRequestsPerMinute = v
	}
	if v := envInt("FINNHUB_BURST"); v > 0 {
		cfg.Finnhub.Burst = v
	}
	if v := envInt("FINNHUB_MIN_INTERVAL_SEC"); v >= 0 {
		cfg.Finnhub.MinRequestIntervalSec = v
	}
	if v := envInt("FINNHUB_CACHE_TTL_SEC"); v >= 0 {
		cfg.Finnhub.CacheTTLSeconds = v
	}
	if v := envInt("FINNHUB_CACHE_MAX_ITEMS"); v > 0 {
		cfg.Finnhub.CacheMaxItems = v
	}

	if v := os.Getenv("DEFAULT_SYMBOLS"); v != "" {
		cfg.Quotes.DefaultSymbols = splitCSV(v)
	}
	if v := envInt("FETCH_DELAY_MS"); v >= 0 {
		cfg.Quotes.FetchDelayMillis = v
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return -1
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err != nil {
		return -1
	}
	return x
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
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
