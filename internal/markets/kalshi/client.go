// Package kalshi is used to call Kalshi's public trade API (v2).
package kalshi

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

const DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

type Client struct {
	httpClient *http.Client
	baseURL    string

	// Kalshi's public quota is on the order of 1000 req/hour; the poller
	// makes about one call per market per minute, so 1/s with slack is
	// already conservative.
	limiter *rate.Limiter
}

func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(1), 5),
	}
}

func NewWithBaseURL(baseURL string) *Client {
	c := New()
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

type Market struct {
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

type MarketPage struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type Trade struct {
	TradeID   string `json:"trade_id"`
	Ticker    string `json:"ticker"`
	Count     int    `json:"count"`
	YesPrice  int    `json:"yes_price"` // cents
	NoPrice   int    `json:"no_price"`  // cents
	TakerSide string `json:"taker_side"`
	CreatedAt string `json:"created_time"`
}

type TradePage struct {
	Trades []Trade `json:"trades"`
	Cursor string  `json:"cursor"`
}

func (c *Client) GetActiveMarkets(ctx context.Context, limit int) ([]Market, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	page, err := httpx.GetJSON[MarketPage](ctx, c.httpClient, c.baseURL, "/markets", q)
	if err != nil {
		return nil, fmt.Errorf("couldn't get markets: %w", err)
	}
	return page.Markets, nil
}

func (c *Client) GetMarketTrades(ctx context.Context, ticker string, limit int) ([]Trade, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	page, err := httpx.GetJSON[TradePage](ctx, c.httpClient, c.baseURL, "/markets/"+ticker+"/trades", q)
	if err != nil {
		return nil, fmt.Errorf("couldn't get trades for %s: %w", ticker, err)
	}
	return page.Trades, nil
}

// MarketURL builds the public market page link used in rendered alerts.
func MarketURL(ticker string) string {
	return "https://kalshi.com/markets/" + ticker
}
