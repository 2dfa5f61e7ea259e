// Package storage keeps the delivered-alert history.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wukkeen/AInsider/internal/notify"
	"github.com/wukkeen/AInsider/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sentAtLayout is fixed-width (zero-padded fraction, UTC) so the TEXT
// column sorts chronologically under ORDER BY.
const sentAtLayout = "2006-01-02T15:04:05.000000000Z"

// Open returns a Store for the configured driver, or (nil, nil) when
// storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "sqlite":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) RecordAlert(ctx context.Context, a DeliveredAlert) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if a.SentAt.IsZero() {
		a.SentAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_history(id, sent_at, risk_level, risk_score, market_name, wallet_ref, size_usd)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		a.ID, a.SentAt.UTC().Format(sentAtLayout), string(a.RiskLevel), a.RiskScore,
		a.MarketName, a.WalletRef, a.SizeUSD,
	)
	return err
}

func (s *sqliteStore) RecentHighRisk(ctx context.Context, limit int) ([]DeliveredAlert, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sent_at, risk_level, risk_score, market_name, wallet_ref, size_usd
		   FROM alert_history
		  WHERE risk_level = ?
		  ORDER BY sent_at DESC
		  LIMIT ?`,
		string(notify.RiskHigh), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveredAlert
	for rows.Next() {
		var (
			a      DeliveredAlert
			sentAt string
			level  string
		)
		if err := rows.Scan(&a.ID, &sentAt, &level, &a.RiskScore, &a.MarketName, &a.WalletRef, &a.SizeUSD); err != nil {
			return nil, err
		}
		a.RiskLevel = notify.RiskLevel(level)
		if t, perr := time.Parse(sentAtLayout, sentAt); perr == nil {
			a.SentAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
