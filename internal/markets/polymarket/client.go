// Package polymarket is used to call Polymarket's public CLOB and Data API
// endpoints. No API key is required for these endpoints.
package polymarket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/wukkeen/AInsider/pkg/httpx"
)

const (
	DefaultCLOBURL = "https://clob.polymarket.com"
	DefaultDataURL = "https://data-api.polymarket.com"
)

type Client struct {
	httpClient *http.Client
	clobURL    string
	dataURL    string

	// Polymarket allows roughly 50-100 req/10s; a burst of ~20 sequential
	// calls per poll cycle stays well inside 5/s.
	limiter *rate.Limiter
}

func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		clobURL:    DefaultCLOBURL,
		dataURL:    DefaultDataURL,
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
	}
}

// NewWithBaseURLs overrides the API hosts (tests, proxies).
func NewWithBaseURLs(clobURL, dataURL string) *Client {
	c := New()
	if clobURL != "" {
		c.clobURL = clobURL
	}
	if dataURL != "" {
		c.dataURL = dataURL
	}
	return c
}

type Market struct {
	ConditionID string `json:"condition_id"`
	Question    string `json:"question"`
	MarketSlug  string `json:"market_slug"`
	Active      bool   `json:"active"`
	Closed      bool   `json:"closed"`
}

type MarketPage struct {
	Limit      int      `json:"limit"`
	Count      int      `json:"count"`
	Data       []Market `json:"data"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type Trade struct {
	TransactionHash string  `json:"transactionHash"`
	ProxyWallet     string  `json:"proxyWallet"`
	Side            string  `json:"side"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"`
}

// GetActiveMarkets fetches the first page of CLOB markets and filters to
// active, unclosed ones, capped at limit.
func (c *Client) GetActiveMarkets(ctx context.Context, limit int) ([]Market, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	page, err := httpx.GetJSON[MarketPage](ctx, c.httpClient, c.clobURL, "/markets", nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't get markets: %w", err)
	}
	out := make([]Market, 0, limit)
	for _, m := range page.Data {
		if !m.Active || m.Closed {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetMarketTrades fetches recent trades for a condition ID from the Data API.
func (c *Client) GetMarketTrades(ctx context.Context, conditionID string, limit int) ([]Trade, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("market", conditionID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	trades, err := httpx.GetJSON[[]Trade](ctx, c.httpClient, c.dataURL, "/trades", q)
	if err != nil {
		return nil, fmt.Errorf("couldn't get trades for %s: %w", conditionID, err)
	}
	return trades, nil
}

// MarketURL builds the public market page link used in rendered alerts.
func MarketURL(m Market) string {
	if m.MarketSlug != "" {
		return "https://polymarket.com/market/" + m.MarketSlug
	}
	return "https://polymarket.com/markets"
}
