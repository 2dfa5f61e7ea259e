package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	kit "github.com/wukkeen/AInsider/internal/transport"
	"github.com/wukkeen/AInsider/pkg/logx"
)

type Config struct {
	// Destination is the single chat all alerts are delivered to.
	Destination kit.ChatTarget

	QueueSize    int           // default 100
	MinInterval  time.Duration // default 1s, min spacing per destination
	PerSecondCap int           // default 30, rolling global cap

	// TakeWait bounds the worker's idle wait so shutdown latency is at most
	// this long. Default 5s.
	TakeWait time.Duration
	// PauseTick is the sleep increment while paused. Default 1s.
	PauseTick time.Duration
}

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueCapacity
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.PerSecondCap <= 0 {
		c.PerSecondCap = DefaultPerSecondCap
	}
	if c.TakeWait <= 0 {
		c.TakeWait = 5 * time.Second
	}
	if c.PauseTick <= 0 {
		c.PauseTick = 1 * time.Second
	}
}

// Service composes the queue, rate gate and delivery worker, and owns the
// stats and operator state the command surface works against.
//
// Producers call Submit concurrently; the single worker drains the queue in
// FIFO order and serializes all sends, which is what makes the rate gate's
// bookkeeping sufficient.
type Service struct {
	cfg     Config
	adapter kit.Adapter
	log     logx.Logger

	queue *AlertQueue
	gate  *RateGate

	// Monotonic counters. Atomics: producers, the worker and the command
	// surface touch these from separate goroutines.
	messagesSent   atomic.Uint64
	alertsReceived atomic.Uint64
	highRiskAlerts atomic.Uint64

	startTime    time.Time
	lastSendNano atomic.Int64

	paused            atomic.Bool
	shutdownRequested atomic.Bool
	state             atomic.Int32

	lastTradeMu sync.Mutex
	lastTrade   *ObservedTrade

	// onDelivered, if set before Start, runs after each successful send
	// (alert history persistence). Must not block for long.
	onDelivered func(Alert)

	runMu     sync.Mutex
	runCancel context.CancelFunc
	done      chan struct{}
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		cfg:       cfg,
		adapter:   adapter,
		log:       log,
		queue:     NewAlertQueue(cfg.QueueSize),
		gate:      NewRateGate(cfg.MinInterval, cfg.PerSecondCap),
		startTime: time.Now(),
	}
}

// OnDelivered installs a post-send hook. Call before Start.
func (s *Service) OnDelivered(fn func(Alert)) { s.onDelivered = fn }

// Submit accepts an alert from a producer. Counts it, then enqueues;
// reports whether the alert was accepted or dropped on a full queue.
// Submissions after shutdown was requested may still be accepted but are
// drained and discarded at stop time.
func (s *Service) Submit(a Alert) bool {
	s.alertsReceived.Add(1)
	if a.RiskLevel == RiskHigh {
		s.highRiskAlerts.Add(1)
	}
	ok := s.queue.Submit(a)
	if !ok {
		s.log.Warn("alert queue full, dropping alert", logx.String("alert", a.ID), logx.Int("cap", s.queue.Cap()))
	} else {
		s.log.Debug("alert queued", logx.String("alert", a.ID), logx.Int("queue_len", s.queue.Len()))
	}
	return ok
}

// EnqueueNotice queues an operational notice (startup banner, stats
// digest) through the normal delivery path, so the single-sender and
// rate-gate guarantees hold for every outbound message. Notices are not
// market alerts and do not move the alert counters.
func (s *Service) EnqueueNotice(id, text string) bool {
	ok := s.queue.Submit(Alert{
		ID:           id,
		CreatedAt:    time.Now(),
		RiskLevel:    RiskLow,
		RenderedText: text,
	})
	if !ok {
		s.log.Warn("queue full, dropping notice", logx.String("notice", id))
	}
	return ok
}

// Start spawns the delivery worker. A service runs at most one worker;
// starting twice returns ErrAlreadyRunning.
func (s *Service) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done != nil {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, s.done)
	s.log.Info("delivery worker started",
		logx.Int("queue_cap", s.queue.Cap()),
		logx.Duration("min_interval", s.cfg.MinInterval),
		logx.Int("per_sec_cap", s.cfg.PerSecondCap))
	return nil
}

// Stop requests shutdown, cancels the worker's current wait and awaits its
// exit, bounded by ctx. Queued alerts that were never dequeued are
// discarded.
func (s *Service) Stop(ctx context.Context) error {
	s.runMu.Lock()
	cancel := s.runCancel
	done := s.done
	s.runCancel = nil
	s.done = nil
	s.runMu.Unlock()

	s.shutdownRequested.Store(true)
	if done == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		if n := s.queue.Len(); n > 0 {
			s.log.Info("discarding undelivered alerts at shutdown", logx.Int("count", n))
		}
		return nil
	case <-ctx.Done():
		s.log.Warn("timed out waiting for delivery worker", logx.Err(ctx.Err()))
		return ctx.Err()
	}
}

// ---- Operator state (the control surface's contract) ----

// Pause suspends delivery. Idempotent; alerts keep queueing while paused.
func (s *Service) Pause() { s.paused.Store(true) }

// Resume re-enables delivery. Idempotent.
func (s *Service) Resume() { s.paused.Store(false) }

func (s *Service) Paused() bool { return s.paused.Load() }

// RequestShutdown flips the one-way shutdown flag. The composition root
// observes it and initiates Stop.
func (s *Service) RequestShutdown() { s.shutdownRequested.Store(true) }

func (s *Service) ShutdownRequested() bool { return s.shutdownRequested.Load() }

func (s *Service) State() WorkerState { return WorkerState(s.state.Load()) }

// RecordObservedTrade overwrites the last-seen trade shown by /latest.
func (s *Service) RecordObservedTrade(t ObservedTrade) {
	s.lastTradeMu.Lock()
	s.lastTrade = &t
	s.lastTradeMu.Unlock()
}

func (s *Service) LastObservedTrade() (ObservedTrade, bool) {
	s.lastTradeMu.Lock()
	defer s.lastTradeMu.Unlock()
	if s.lastTrade == nil {
		return ObservedTrade{}, false
	}
	return *s.lastTrade, true
}

// SnapshotStats returns an immutable copy of the counters plus derived
// uptime and alerts/hour (0 while uptime is 0).
func (s *Service) SnapshotStats() StatsSnapshot {
	uptime := time.Since(s.startTime)
	received := s.alertsReceived.Load()
	perHour := alertsPerHour(received, uptime)

	var lastSend time.Time
	if n := s.lastSendNano.Load(); n > 0 {
		lastSend = time.Unix(0, n)
	}

	return StatsSnapshot{
		MessagesSent:   s.messagesSent.Load(),
		AlertsReceived: received,
		HighRiskAlerts: s.highRiskAlerts.Load(),
		StartTime:      s.startTime,
		Uptime:         uptime,
		AlertsPerHour:  perHour,
		QueueLen:       s.queue.Len(),
		QueueCap:       s.queue.Cap(),
		Paused:         s.paused.Load(),
		State:          s.State(),
		LastSend:       lastSend,
	}
}

// alertsPerHour derives the receive rate, reporting 0 at zero uptime.
func alertsPerHour(received uint64, uptime time.Duration) float64 {
	secs := uptime.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(received) / (secs / 3600)
}
