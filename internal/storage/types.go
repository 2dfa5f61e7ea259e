package storage

import (
	"context"
	"errors"
	"time"

	"github.com/wukkeen/AInsider/internal/notify"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures alert-history persistence.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "" or "none": disabled
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// DeliveredAlert is one row of the alert history.
type DeliveredAlert struct {
	ID         string
	SentAt     time.Time
	RiskLevel  notify.RiskLevel
	RiskScore  int
	MarketName string
	WalletRef  string
	SizeUSD    float64
}

// Store persists delivered alerts and serves the /top command.
type Store interface {
	RecordAlert(ctx context.Context, a DeliveredAlert) error
	RecentHighRisk(ctx context.Context, limit int) ([]DeliveredAlert, error)
	Close() error
}
