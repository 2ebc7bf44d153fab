package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
)

// QuoteData is the /quote response. Change and ChangePercent are pointers
// because Finnhub returns null for instruments it cannot price.
type QuoteData struct {
	Current       float64  `json:"c"`
	Change        *float64 `json:"d"`
	ChangePercent *float64 `json:"dp"`
	High          float64  `json:"h"`
	Low           float64  `json:"l"`
	Open          float64  `json:"o"`
	PreviousClose float64  `json:"pc"`
	Timestamp     int64    `json:"t"`
}

// Empty reports whether the payload carries no quote at all, which is how
// Finnhub answers for unknown symbols (all zeros rather than an error).
func (q *QuoteData) Empty() bool {
	return q.Current == 0 && q.Timestamp == 0 && q.PreviousClose == 0
}

// CompanyProfile is the subset of /stock/profile2 we use.
// MarketCapitalization is denominated in millions.
type CompanyProfile struct {
	Name                 string  `json:"name"`
	Ticker               string  `json:"ticker"`
	MarketCapitalization float64 `json:"marketCapitalization"`
	ShareOutstanding     float64 `json:"shareOutstanding"`
}

// GetQuote retrieves the real-time quote for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string, opts ...ClientOption) (*QuoteData, error) {
	var out QuoteData
	if err := c.getJSON(ctx, "/quote", symbol, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCompanyProfile retrieves the company profile for a symbol.
func (c *Client) GetCompanyProfile(ctx context.Context, symbol string, opts ...ClientOption) (*CompanyProfile, error) {
	var out CompanyProfile
	if err := c.getJSON(ctx, "/stock/profile2", symbol, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path, symbol string, out any, opts ...ClientOption) error {
	var override = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	query := maps.Clone(override.query)
	query.Add("symbol", symbol)

	url := fmt.Sprintf("%s%s?%s", override.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("unauthorized")

	case http.StatusTooManyRequests:
		return ErrRateLimited

	default:
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
