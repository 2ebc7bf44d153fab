package finnhubadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockboard/internal/provider/finnhub"
	"stockboard/internal/quote"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc, enrich bool) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := finnhub.NewClient("test-key", finnhub.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return New(Config{EnrichMarketCap: enrich}, client)
}

func TestFetch_ConvertsQuote(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			w.Write([]byte(`{"c":189.84,"d":1.52,"dp":0.8072,"pc":188.32,"t":1709931600}`))
		case "/stock/profile2":
			w.Write([]byte(`{"name":"Apple Inc","marketCapitalization":2950000}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, true)

	q, err := a.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, 189.84, q.Price)
	require.Equal(t, 1.52, q.Change)
	require.Equal(t, 0.8072, q.ChangePercent)
	require.Equal(t, "Finnhub", q.Source)
	require.True(t, q.LastUpdated.Equal(time.Unix(1709931600, 0).UTC()))
	require.NotNil(t, q.MarketCap)
	require.Equal(t, 2.95e12, *q.MarketCap)
}

func TestFetch_EmptyPayloadIsNoData(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`))
	}, false)

	_, err := a.Fetch(context.Background(), "NOPE")
	require.ErrorIs(t, err, quote.ErrNoData)
}

func TestFetch_429IsRateLimited(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"API limit reached."}`, http.StatusTooManyRequests)
	}, false)

	_, err := a.Fetch(context.Background(), "AAPL")
	require.ErrorIs(t, err, quote.ErrRateLimited)
}

func TestFetch_ProfileFailureKeepsQuote(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			w.Write([]byte(`{"c":189.84,"d":1.52,"dp":0.8072,"pc":188.32,"t":1709931600}`))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}, true)

	q, err := a.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Nil(t, q.MarketCap)
	require.Equal(t, 189.84, q.Price)
}

func TestFetch_TransportFailureIsNoData(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client, err := finnhub.NewClient("k", finnhub.WithBaseURL(srv.URL))
	require.NoError(t, err)
	a := New(Config{}, client)

	_, err = a.Fetch(context.Background(), "AAPL")
	require.ErrorIs(t, err, quote.ErrNoData)
}
