package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockboard/internal/httpx"
	"stockboard/internal/quote"
)

const goodGlobalQuote = `{
  "Global Quote": {
    "01. symbol": "AAPL",
    "02. open": "188.15",
    "03. high": "190.05",
    "04. low": "187.45",
    "05. price": "1,189.84",
    "06. volume": "58,499,129",
    "07. latest trading day": "2024-03-08",
    "08. previous close": "188.32",
    "09. change": "1.52",
    "10. change percent": "0.8072%"
  }
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc, enrich bool) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		Endpoint:        srv.URL,
		APIKey:          "test-key",
		EnrichMarketCap: enrich,
	}, httpx.New(2*time.Second))
}

func TestFetch_ParsesGlobalQuote(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		require.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		require.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(goodGlobalQuote))
	}, false)

	q, err := p.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, 1189.84, q.Price)
	require.Equal(t, 1.52, q.Change)
	require.Equal(t, 0.8072, q.ChangePercent)
	require.NotNil(t, q.Volume)
	require.Equal(t, 58499129.0, *q.Volume)
	require.Nil(t, q.MarketCap)
	require.Equal(t, "AlphaVantage", q.Source)

	// trading day anchors at market close
	want := time.Date(2024, 3, 8, 21, 0, 0, 0, time.UTC)
	require.True(t, q.LastUpdated.Equal(want), "got %v", q.LastUpdated)
}

func TestFetch_QuotaNoteIsRateLimited(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`))
	}, false)

	_, err := p.Fetch(context.Background(), "AAPL")
	require.ErrorIs(t, err, quote.ErrRateLimited)
}

func TestFetch_EmptyQuoteIsNoData(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {}}`))
	}, false)

	_, err := p.Fetch(context.Background(), "NOPE")
	require.ErrorIs(t, err, quote.ErrNoData)
	require.False(t, errors.Is(err, quote.ErrRateLimited))
}

func TestFetch_UnparseableMandatoryFieldIsNoData(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {"05. price": "None", "09. change": "1.2", "10. change percent": "0.5%"}}`))
	}, false)

	_, err := p.Fetch(context.Background(), "AAPL")
	require.ErrorIs(t, err, quote.ErrNoData)
}

func TestFetch_MalformedBodyIsNoData(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	}, false)

	_, err := p.Fetch(context.Background(), "AAPL")
	require.ErrorIs(t, err, quote.ErrNoData)
}

func TestFetch_TransportFailureIsNoData(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections
	p := New(Config{Endpoint: srv.URL, APIKey: "k"}, httpx.New(time.Second))

	_, err := p.Fetch(context.Background(), "AAPL")
	require.ErrorIs(t, err, quote.ErrNoData)
}

func TestFetch_EnrichmentFillsMarketCap(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("function") {
		case "GLOBAL_QUOTE":
			w.Write([]byte(goodGlobalQuote))
		case "OVERVIEW":
			w.Write([]byte(`{"Symbol": "AAPL", "MarketCapitalization": "2950000000000"}`))
		default:
			t.Errorf("unexpected function %q", r.URL.Query().Get("function"))
		}
	}, true)

	q, err := p.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, q.MarketCap)
	require.Equal(t, 2.95e12, *q.MarketCap)
}

func TestFetch_EnrichmentFailureLeavesMarketCapAbsent(t *testing.T) {
	t.Parallel()

	for name, overview := range map[string]string{
		"quota note":  `{"Note": "rate limit"}`,
		"unparseable": `{"MarketCapitalization": "None"}`,
		"malformed":   `not json`,
	} {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("function") == "OVERVIEW" {
				w.Write([]byte(overview))
				return
			}
			w.Write([]byte(goodGlobalQuote))
		}, true)

		q, err := p.Fetch(context.Background(), "AAPL")
		require.NoError(t, err, name)
		require.Nil(t, q.MarketCap, name)
		require.Equal(t, 1189.84, q.Price, name)
	}
}

func TestFetch_OverviewCacheSkipsSecondCall(t *testing.T) {
	t.Parallel()

	overviewCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("function") == "OVERVIEW" {
			overviewCalls++
			w.Write([]byte(`{"MarketCapitalization": "1000000"}`))
			return
		}
		w.Write([]byte(goodGlobalQuote))
	}))
	t.Cleanup(srv.Close)

	p := New(Config{
		Endpoint:         srv.URL,
		APIKey:           "k",
		EnrichMarketCap:  true,
		OverviewCacheTTL: time.Minute,
	}, httpx.New(2*time.Second))

	for i := 0; i < 3; i++ {
		q, err := p.Fetch(context.Background(), "AAPL")
		require.NoError(t, err)
		require.NotNil(t, q.MarketCap)
	}
	require.Equal(t, 1, overviewCalls)
}
