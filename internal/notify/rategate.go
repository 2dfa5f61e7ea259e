package notify

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultMinInterval  = 1 * time.Second
	DefaultPerSecondCap = 30

	// windowRetention bounds the rolling-window slice; entries older than
	// this are evicted on every Acquire.
	windowRetention = 60 * time.Second
)

// RateGate enforces the transport provider's send limits: a minimum
// interval between sends to the same destination and a rolling per-second
// cap across all destinations. Pure bookkeeping, no I/O.
//
// Acquire blocks only the calling goroutine. The gate itself is safe for
// concurrent use, but the pipeline guarantees a single caller (the
// delivery worker); a second concurrent sender surfaces as
// ErrRateLimitExceeded.
type RateGate struct {
	mu           sync.Mutex
	minInterval  time.Duration
	perSecondCap int

	lastSend map[int64]time.Time // per-destination chat id
	window   []time.Time         // send timestamps, ascending

	now func() time.Time // test hook
}

func NewRateGate(minInterval time.Duration, perSecondCap int) *RateGate {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if perSecondCap <= 0 {
		perSecondCap = DefaultPerSecondCap
	}
	return &RateGate{
		minInterval:  minInterval,
		perSecondCap: perSecondCap,
		lastSend:     map[int64]time.Time{},
		now:          time.Now,
	}
}

// Acquire blocks until one message may be sent to chatID, then records the
// send. Returns ctx.Err() if cancelled while waiting, or
// ErrRateLimitExceeded if the rolling cap is still saturated after the
// minimum-interval wait.
func (g *RateGate) Acquire(ctx context.Context, chatID int64) error {
	g.mu.Lock()
	wait := time.Duration(0)
	if last, ok := g.lastSend[chatID]; ok {
		if elapsed := g.now().Sub(last); elapsed < g.minInterval {
			wait = g.minInterval - elapsed
		}
	}
	g.mu.Unlock()

	if wait > 0 {
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.evictLocked(now)

	if g.countSinceLocked(now.Add(-time.Second)) >= g.perSecondCap {
		return ErrRateLimitExceeded
	}

	g.window = append(g.window, now)
	g.lastSend[chatID] = now
	return nil
}

func (g *RateGate) evictLocked(now time.Time) {
	cutoff := now.Add(-windowRetention)
	i := 0
	for i < len(g.window) && g.window[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		g.window = append(g.window[:0], g.window[i:]...)
	}
}

func (g *RateGate) countSinceLocked(cutoff time.Time) int {
	n := 0
	for i := len(g.window) - 1; i >= 0; i-- {
		if !g.window[i].After(cutoff) {
			break
		}
		n++
	}
	return n
}

// LastSend returns the recorded time of the previous send to chatID.
func (g *RateGate) LastSend(chatID int64) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.lastSend[chatID]
	return t, ok
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
