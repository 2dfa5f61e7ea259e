package notify

import (
	"context"
	"runtime/debug"
	"time"

	kit "github.com/wukkeen/AInsider/internal/transport"
	"github.com/wukkeen/AInsider/pkg/logx"
)

// run is the delivery worker loop. Exactly one instance per service, which
// guarantees at most one send in flight at any time.
func (s *Service) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	defer s.state.Store(int32(StateStopped))
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in delivery worker", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	s.state.Store(int32(StateRunning))

	for {
		if s.shutdownRequested.Load() || ctx.Err() != nil {
			s.state.Store(int32(StateStopping))
			return
		}

		// While paused, sleep in short increments without dequeuing.
		// Alerts accumulate subject to the queue's drop policy.
		if s.paused.Load() {
			s.state.Store(int32(StatePaused))
			_ = sleepCtx(ctx, s.cfg.PauseTick)
			continue
		}
		s.state.Store(int32(StateRunning))

		a, ok := s.queue.TakeNext(ctx, s.cfg.TakeWait)
		if !ok {
			// Idle timeout or cancellation; loop re-checks the flags.
			continue
		}
		s.deliver(ctx, a)
	}
}

// deliver performs one rate-gated send. A failed send is logged and the
// worker moves on; retry policy, if any, belongs to the transport.
func (s *Service) deliver(ctx context.Context, a Alert) {
	if err := s.gate.Acquire(ctx, s.cfg.Destination.ChatID); err != nil {
		switch {
		case err == ErrRateLimitExceeded:
			// Unreachable with a single worker. Loud, not swallowed.
			s.log.Error("rolling rate cap saturated after interval wait; a concurrent sender is likely",
				logx.String("alert", a.ID), logx.Err(err))
		case ctx.Err() != nil:
			s.log.Debug("delivery cancelled while rate-gated", logx.String("alert", a.ID))
		default:
			s.log.Warn("rate gate refused send", logx.String("alert", a.ID), logx.Err(err))
		}
		return
	}

	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if _, err := s.adapter.SendText(ctx, s.cfg.Destination, a.RenderedText, opt); err != nil {
		s.log.Warn("alert send failed", logx.String("alert", a.ID), logx.Err(err))
		return
	}

	s.messagesSent.Add(1)
	s.lastSendNano.Store(time.Now().UnixNano())
	s.log.Info("alert sent",
		logx.String("alert", a.ID),
		logx.String("risk", string(a.RiskLevel)),
		logx.Int("score", a.RiskScore))

	if s.onDelivered != nil {
		s.onDelivered(a)
	}
}
