package kalshi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetActiveMarkets(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit = %q", got)
		}
		_, _ = w.Write([]byte(`{"markets":[
			{"ticker":"FED-25DEC","title":"Fed cuts in December?","status":"active"},
			{"ticker":"CPI-26JAN","title":"CPI above 3%?","status":"active"}
		],"cursor":""}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL(srv.URL)
	got, err := c.GetActiveMarkets(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetActiveMarkets: %v", err)
	}
	if len(got) != 2 || got[0].Ticker != "FED-25DEC" {
		t.Fatalf("markets = %+v", got)
	}
}

func TestGetMarketTrades(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/FED-25DEC/trades" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"trades":[
			{"trade_id":"t-1","ticker":"FED-25DEC","count":4000,"yes_price":55,"no_price":45,"taker_side":"yes","created_time":"2026-01-02T03:04:05Z"}
		],"cursor":""}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL(srv.URL)
	got, err := c.GetMarketTrades(context.Background(), "FED-25DEC", 5)
	if err != nil {
		t.Fatalf("GetMarketTrades: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d trades, want 1", len(got))
	}
	if got[0].Count != 4000 || got[0].YesPrice != 55 {
		t.Fatalf("trade = %+v", got[0])
	}
}

func TestGetMarketTradesServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewWithBaseURL(srv.URL)
	if _, err := c.GetMarketTrades(context.Background(), "FED-25DEC", 5); err == nil {
		t.Fatal("expected error for 429")
	}
}

func TestMarketURL(t *testing.T) {
	t.Parallel()
	if got := MarketURL("FED-25DEC"); got != "https://kalshi.com/markets/FED-25DEC" {
		t.Fatalf("MarketURL = %q", got)
	}
}
