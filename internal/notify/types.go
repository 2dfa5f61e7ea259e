// Package notify implements the alert delivery pipeline: a bounded FIFO
// queue drained by a single worker that serializes sends through a rate
// gate, plus the operator-facing state the command surface reads and
// mutates while delivery is running.
package notify

import (
	"errors"
	"time"
)

var (
	// ErrRateLimitExceeded means the rolling per-second cap would still be
	// exceeded after waiting out the minimum interval. The pipeline cannot
	// reach this with a single sender, so it signals a concurrency bug.
	ErrRateLimitExceeded = errors.New("global rate limit would be exceeded")

	// ErrAlreadyRunning is returned by Start when a delivery worker is
	// already active for this service. Only one worker may ever run per
	// destination; the rate gate's bookkeeping depends on it.
	ErrAlreadyRunning = errors.New("delivery worker already running")
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Alert is a single scored observation queued for delivery. Immutable once
// created; the pipeline never touches the payload fields.
type Alert struct {
	ID        string
	CreatedAt time.Time
	RiskLevel RiskLevel
	RiskScore int // 0..100

	MarketName string
	WalletRef  string
	SizeUSD    float64

	// RenderedText is the pre-formatted message body. Formatting is the
	// producer's concern; the pipeline treats it as opaque.
	RenderedText string
}

// ObservedTrade is the most recently scanned trade, kept for the /latest
// diagnostic command. Overwritten on every scan, never queued.
type ObservedTrade struct {
	Source     string
	TradeID    string
	MarketName string
	SizeUSD    float64
	At         time.Time
}

// StatsSnapshot is an immutable copy of the pipeline counters plus derived
// values, taken under concurrent delivery.
type StatsSnapshot struct {
	MessagesSent   uint64
	AlertsReceived uint64
	HighRiskAlerts uint64

	StartTime     time.Time
	Uptime        time.Duration
	AlertsPerHour float64

	QueueLen int
	QueueCap int
	Paused   bool
	State    WorkerState
	LastSend time.Time
}

// WorkerState is the delivery worker lifecycle:
// RUNNING -> PAUSED <-> RUNNING -> STOPPING -> STOPPED.
type WorkerState int32

const (
	StateIdle WorkerState = iota
	StateRunning
	StatePaused
	StateStopping
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
