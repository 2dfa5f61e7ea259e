package notify

import (
	"context"
	"time"
)

const DefaultQueueCapacity = 100

// AlertQueue is a bounded FIFO buffer of pending alerts. Submission never
// blocks; when the buffer is full the alert is rejected and the caller is
// responsible for logging the drop. Consumption suspends with a bounded
// wait so the worker can re-check pause/shutdown flags while idle.
type AlertQueue struct {
	ch chan Alert
}

func NewAlertQueue(capacity int) *AlertQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &AlertQueue{ch: make(chan Alert, capacity)}
}

// Submit enqueues the alert, reporting false when the queue is at capacity.
func (q *AlertQueue) Submit(a Alert) bool {
	select {
	case q.ch <- a:
		return true
	default:
		return false
	}
}

// TakeNext waits up to `wait` for the next alert. The second return is
// false on timeout or cancellation; an alert is either fully consumed or
// left in the queue, never half-taken.
func (q *AlertQueue) TakeNext(ctx context.Context, wait time.Duration) (Alert, bool) {
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case a := <-q.ch:
		return a, true
	case <-t.C:
		return Alert{}, false
	case <-ctx.Done():
		return Alert{}, false
	}
}

func (q *AlertQueue) Len() int { return len(q.ch) }
func (q *AlertQueue) Cap() int { return cap(q.ch) }
