package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wukkeen/AInsider/internal/markets/kalshi"
	"github.com/wukkeen/AInsider/internal/markets/polymarket"
	"github.com/wukkeen/AInsider/internal/notify"
	"github.com/wukkeen/AInsider/pkg/logx"
)

type fakeSink struct {
	mu       sync.Mutex
	alerts   []notify.Alert
	observed []notify.ObservedTrade
	reject   bool
}

func (f *fakeSink) Submit(a notify.Alert) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return false
	}
	f.alerts = append(f.alerts, a)
	return true
}

func (f *fakeSink) RecordObservedTrade(t notify.ObservedTrade) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = append(f.observed, t)
}

func newTestMonitor(sink *fakeSink) *Monitor {
	return New(Config{}, sink, nil, nil, logx.Nop())
}

func TestNormalizePolymarket(t *testing.T) {
	t.Parallel()
	m := polymarket.Market{ConditionID: "0xc1", Question: "Will X happen?", MarketSlug: "will-x-happen"}
	tr := polymarket.Trade{
		TransactionHash: "0xabc",
		ProxyWallet:     "0x1234567890",
		Size:            120_000,
		Price:           0.55,
		Timestamp:       1700000000,
	}

	got := normalizePolymarket(m, tr)
	if got.Source != "Polymarket" || got.ID != "0xabc" || got.Wallet != "0x1234567890" {
		t.Fatalf("identity fields wrong: %+v", got)
	}
	if want := 66_000.0; got.SizeUSD != want {
		t.Fatalf("SizeUSD = %v, want %v", got.SizeUSD, want)
	}
	if got.MarketURL != "https://polymarket.com/market/will-x-happen" {
		t.Fatalf("MarketURL = %q", got.MarketURL)
	}
	if got.At != time.Unix(1700000000, 0) {
		t.Fatalf("At = %v", got.At)
	}
}

func TestNormalizePolymarketMissingFields(t *testing.T) {
	t.Parallel()
	got := normalizePolymarket(polymarket.Market{}, polymarket.Trade{})
	if got.ID != "unknown" || got.Wallet != "unknown" {
		t.Fatalf("missing fields not defaulted: %+v", got)
	}
	if time.Since(got.At) > time.Minute {
		t.Fatalf("zero timestamp should fall back to now, got %v", got.At)
	}
}

func TestNormalizeKalshi(t *testing.T) {
	t.Parallel()
	m := kalshi.Market{Ticker: "FED-25DEC", Title: "Fed cuts in December?"}
	tr := kalshi.Trade{TradeID: "t-1", Count: 4000, YesPrice: 55, CreatedAt: "2026-01-02T03:04:05Z"}

	got := normalizeKalshi(m, tr)
	if got.Source != "Kalshi" || got.Wallet != "KalshiUser" {
		t.Fatalf("identity fields wrong: %+v", got)
	}
	// 4000 contracts at 55 cents.
	if want := 2200.0; got.SizeUSD != want {
		t.Fatalf("SizeUSD = %v, want %v", got.SizeUSD, want)
	}
	if got.MarketURL != "https://kalshi.com/markets/FED-25DEC" {
		t.Fatalf("MarketURL = %q", got.MarketURL)
	}
	if got.At.Year() != 2026 {
		t.Fatalf("At = %v", got.At)
	}
}

func TestNormalizeStreamTrade(t *testing.T) {
	t.Parallel()
	ev := &polymarket.LastTradePrice{Market: "0xc1", Price: "0.40", Size: "250000", Timestamp: "1700000001"}
	got := normalizeStreamTrade(ev)
	if want := 100_000.0; got.SizeUSD != want {
		t.Fatalf("SizeUSD = %v, want %v", got.SizeUSD, want)
	}
	if got.ID != "0xc1:1700000001" {
		t.Fatalf("ID = %q", got.ID)
	}
}

func TestBuildAlertRendering(t *testing.T) {
	t.Parallel()
	tr := Trade{
		Source:     "Polymarket",
		ID:         "0xabc",
		Wallet:     "0x00112233445566778899",
		SizeUSD:    66_000,
		MarketName: "Will <X> happen?",
		MarketURL:  "https://polymarket.com/market/will-x-happen",
		At:         time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	a := buildAlert(tr, 80, notify.RiskMedium)

	if a.ID != "Polymarket_0xabc" {
		t.Fatalf("ID = %q", a.ID)
	}
	if !strings.Contains(a.RenderedText, "🟡") {
		t.Fatalf("medium risk should render yellow: %q", a.RenderedText)
	}
	if !strings.Contains(a.RenderedText, "Will &lt;X&gt; happen?") {
		t.Fatalf("market name not escaped: %q", a.RenderedText)
	}
	if !strings.Contains(a.RenderedText, "0x00112233445566...") {
		t.Fatalf("wallet not truncated: %q", a.RenderedText)
	}
	if !strings.Contains(a.RenderedText, "2026-03-04 05:06:07 UTC") {
		t.Fatalf("timestamp missing: %q", a.RenderedText)
	}
	// The original wallet survives on the alert itself for persistence.
	if a.WalletRef != tr.Wallet {
		t.Fatalf("WalletRef = %q", a.WalletRef)
	}
}

func TestBuildAlertHighRisk(t *testing.T) {
	t.Parallel()
	a := buildAlert(Trade{Source: "Kalshi", ID: "t-1", Wallet: "KalshiUser", At: time.Now()}, 90, notify.RiskHigh)
	if !strings.Contains(a.RenderedText, "🔴") {
		t.Fatalf("high risk should render red: %q", a.RenderedText)
	}
	if a.RiskLevel != notify.RiskHigh {
		t.Fatalf("RiskLevel = %v", a.RiskLevel)
	}
}

func TestObserveThresholdAndDedup(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	m := newTestMonitor(sink)

	small := Trade{Source: "Polymarket", ID: "small", SizeUSD: 500, MarketName: "M", At: time.Now()}
	big := Trade{Source: "Polymarket", ID: "big", SizeUSD: 75_000, MarketName: "M", At: time.Now()}

	m.observe(small)
	m.observe(big)
	m.observe(big) // duplicate ID, must not re-alert

	if len(sink.observed) != 3 {
		t.Fatalf("observed = %d, want 3 (every trade recorded)", len(sink.observed))
	}
	if len(sink.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(sink.alerts))
	}
	if sink.alerts[0].ID != "Polymarket_big" {
		t.Fatalf("alert ID = %q", sink.alerts[0].ID)
	}
	if sink.alerts[0].RiskScore != 80 {
		t.Fatalf("RiskScore = %d, want 80 for a trade over 50k", sink.alerts[0].RiskScore)
	}
}

func TestObserveRejectedSubmitDoesNotPanic(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{reject: true}
	m := newTestMonitor(sink)
	m.observe(Trade{Source: "Kalshi", ID: "t-1", SizeUSD: 75_000, MarketName: "M", At: time.Now()})
	if len(sink.alerts) != 0 {
		t.Fatalf("rejected sink recorded alerts: %d", len(sink.alerts))
	}
}

func TestStreamLoopSpacesReconnectAttempts(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int64
	// Plain HTTP responses fail the websocket handshake on every dial.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "no upgrade here", http.StatusBadRequest)
	}))
	defer srv.Close()

	m := newTestMonitor(&fakeSink{})
	m.cfg.StreamURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	m.streamRetryWait = 30 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	m.streamLoop(ctx)

	// 200ms at 30ms spacing allows at most ~7 dials; an unthrottled loop
	// would make hundreds.
	if n := attempts.Load(); n < 2 || n > 10 {
		t.Fatalf("made %d connection attempts, want a small throttled number", n)
	}
}

func TestMarkSeenResetsAtCap(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(&fakeSink{})
	for i := 0; i < seenMaxEntries; i++ {
		if !m.markSeen(fmt.Sprintf("id-%d", i)) {
			t.Fatalf("fresh id %d reported as seen", i)
		}
	}
	// Cap reached: the set resets, so a previously seen ID alerts again.
	if !m.markSeen("id-0") {
		t.Fatal("expected reset at cap to forget old IDs")
	}
	// And the freshly reinserted ID is suppressed as usual.
	if m.markSeen("id-0") {
		t.Fatal("duplicate after reset not suppressed")
	}
}
