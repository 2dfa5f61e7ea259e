// Package monitor polls the prediction-market APIs, scores what it sees
// and feeds alerts to the notification pipeline.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/wukkeen/AInsider/internal/markets/kalshi"
	"github.com/wukkeen/AInsider/internal/markets/polymarket"
	"github.com/wukkeen/AInsider/internal/notify"
	"github.com/wukkeen/AInsider/internal/scoring"
	"github.com/wukkeen/AInsider/pkg/logx"
)

// AlertSink is the part of the notification service producers see.
type AlertSink interface {
	Submit(notify.Alert) bool
	RecordObservedTrade(notify.ObservedTrade)
}

type Config struct {
	PollInterval time.Duration // default 60s
	// KalshiPollInterval is clamped to at least 60s; Kalshi's public quota
	// is much tighter than Polymarket's.
	KalshiPollInterval time.Duration
	MarketLimit        int // markets scanned per cycle, default 20
	TradeLimit         int // trades fetched per market, default 5

	// StreamAssetIDs enables the realtime Polymarket feed for these CLOB
	// token IDs. Empty disables the stream.
	StreamAssetIDs []string
	StreamURL      string
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 60 * time.Second
	}
	if c.KalshiPollInterval < 60*time.Second {
		c.KalshiPollInterval = 60 * time.Second
	}
	if c.KalshiPollInterval < c.PollInterval {
		c.KalshiPollInterval = c.PollInterval
	}
	if c.MarketLimit <= 0 {
		c.MarketLimit = 20
	}
	if c.TradeLimit <= 0 {
		c.TradeLimit = 5
	}
}

type Monitor struct {
	cfg    Config
	sink   AlertSink
	poly   *polymarket.Client
	kalshi *kalshi.Client
	scorer *scoring.Scorer
	log    logx.Logger

	// seen suppresses re-alerting on trade IDs already reported. Bounded.
	seenMu sync.Mutex
	seen   map[string]struct{}

	// streamRetryWait spaces stream reconnect attempts.
	streamRetryWait time.Duration

	wg sync.WaitGroup
}

const seenMaxEntries = 5000

func New(cfg Config, sink AlertSink, poly *polymarket.Client, kc *kalshi.Client, log logx.Logger) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		cfg:             cfg,
		sink:            sink,
		poly:            poly,
		kalshi:          kc,
		scorer:          scoring.NewScorer(),
		log:             log,
		seen:            map[string]struct{}{},
		streamRetryWait: 10 * time.Second,
	}
}

// Start launches one polling goroutine per source, plus the realtime
// stream when configured. They run until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.pollLoop(ctx, "Polymarket", m.cfg.PollInterval, m.scanPolymarket)
	}()
	go func() {
		defer m.wg.Done()
		m.pollLoop(ctx, "Kalshi", m.cfg.KalshiPollInterval, m.scanKalshi)
	}()

	if len(m.cfg.StreamAssetIDs) > 0 {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.streamLoop(ctx)
		}()
	}
}

// Wait blocks until all monitor goroutines have exited.
func (m *Monitor) Wait() { m.wg.Wait() }

func (m *Monitor) pollLoop(ctx context.Context, source string, interval time.Duration, scan func(context.Context) error) {
	log := m.log.With(logx.String("source", source))
	log.Info("monitoring started", logx.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First cycle immediately, then on the ticker.
	if err := scan(ctx); err != nil && ctx.Err() == nil {
		log.Error("scan cycle failed", logx.Err(err))
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("monitoring stopped")
			return
		case <-ticker.C:
			if err := scan(ctx); err != nil && ctx.Err() == nil {
				log.Error("scan cycle failed", logx.Err(err))
			}
		}
	}
}

func (m *Monitor) scanPolymarket(ctx context.Context) error {
	markets, err := m.poly.GetActiveMarkets(ctx, m.cfg.MarketLimit)
	if err != nil {
		return err
	}
	for _, mk := range markets {
		if mk.ConditionID == "" {
			continue
		}
		trades, err := m.poly.GetMarketTrades(ctx, mk.ConditionID, m.cfg.TradeLimit)
		if err != nil {
			m.log.Warn("couldn't fetch trades", logx.String("source", "Polymarket"), logx.String("market", mk.ConditionID), logx.Err(err))
			continue
		}
		for _, t := range trades {
			m.observe(normalizePolymarket(mk, t))
		}
	}
	return nil
}

func (m *Monitor) scanKalshi(ctx context.Context) error {
	markets, err := m.kalshi.GetActiveMarkets(ctx, m.cfg.MarketLimit)
	if err != nil {
		return err
	}
	for _, mk := range markets {
		if mk.Ticker == "" {
			continue
		}
		trades, err := m.kalshi.GetMarketTrades(ctx, mk.Ticker, m.cfg.TradeLimit)
		if err != nil {
			m.log.Warn("couldn't fetch trades", logx.String("source", "Kalshi"), logx.String("market", mk.Ticker), logx.Err(err))
			continue
		}
		for _, t := range trades {
			m.observe(normalizeKalshi(mk, t))
		}
	}
	return nil
}

func (m *Monitor) streamLoop(ctx context.Context) {
	log := m.log.With(logx.String("source", "Polymarket"), logx.String("feed", "stream"))
	for ctx.Err() == nil {
		if err := m.streamSession(ctx, log); err != nil && ctx.Err() == nil {
			log.Warn("stream session ended; reconnecting", logx.Err(err))
		}
		// Every exit waits out the retry interval; a persistently failing
		// endpoint must not turn into a tight reconnect loop.
		if err := sleepCtx(ctx, m.streamRetryWait); err != nil {
			return
		}
	}
}

// streamSession runs one connect/subscribe/read cycle until the stream
// fails or ctx is cancelled.
func (m *Monitor) streamSession(ctx context.Context, log logx.Logger) error {
	stream, err := polymarket.DialStream(ctx, m.cfg.StreamURL)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	if err := stream.Subscribe(ctx, m.cfg.StreamAssetIDs); err != nil {
		return err
	}
	log.Info("stream connected", logx.Int("assets", len(m.cfg.StreamAssetIDs)))

	for {
		ev, err := stream.ReadTrade(ctx)
		if err != nil {
			return err
		}
		m.observe(normalizeStreamTrade(ev))
	}
}

// observe records the trade for diagnostics, scores it and submits an
// alert when it crosses the threshold.
func (m *Monitor) observe(t Trade) {
	m.sink.RecordObservedTrade(notify.ObservedTrade{
		Source:     t.Source,
		TradeID:    t.ID,
		MarketName: t.MarketName,
		SizeUSD:    t.SizeUSD,
		At:         t.At,
	})

	score := m.scorer.Score(t.SizeUSD)
	if score < scoring.AlertThreshold {
		return
	}
	if !m.markSeen(t.Source + "_" + t.ID) {
		return
	}

	alert := buildAlert(t, score, scoring.Level(score))
	if !m.sink.Submit(alert) {
		m.log.Warn("alert rejected by pipeline", logx.String("alert", alert.ID))
	}
}

// markSeen returns true the first time an ID is reported.
func (m *Monitor) markSeen(id string) bool {
	m.seenMu.Lock()
	defer m.seenMu.Unlock()
	// Crude cap: reset rather than track age. Re-alerting after ~5000
	// distinct alerts is acceptable; unbounded growth is not. The reset
	// runs before the lookup so a full set never keeps suppressing.
	if len(m.seen) >= seenMaxEntries {
		m.seen = map[string]struct{}{}
	}
	if _, ok := m.seen[id]; ok {
		return false
	}
	m.seen[id] = struct{}{}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
