// Package app wires the monitor together: config, logging, transport,
// notification pipeline, command surface, market pollers, alert history
// and the digest scheduler.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wukkeen/AInsider/internal/config"
	"github.com/wukkeen/AInsider/internal/control"
	"github.com/wukkeen/AInsider/internal/markets/kalshi"
	"github.com/wukkeen/AInsider/internal/markets/polymarket"
	"github.com/wukkeen/AInsider/internal/monitor"
	"github.com/wukkeen/AInsider/internal/notify"
	"github.com/wukkeen/AInsider/internal/storage"
	kit "github.com/wukkeen/AInsider/internal/transport"
	"github.com/wukkeen/AInsider/internal/transport/telegram"
	"github.com/wukkeen/AInsider/pkg/logx"
)

const defaultDigestSchedule = "0 * * * *"

// loggingConfig maps the config file's logging section to the log service.
// Console output stays on unless a file sink alone was requested.
func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console || !cfg.Logging.File.Enabled,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	}
}

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	adapter *telegram.Adapter
	service *notify.Service
	router  *control.Router
	monitor *monitor.Monitor
	store   storage.Store
	cron    *cron.Cron

	runCancel context.CancelFunc

	// shutdownCh closes when an operator /shutdown is observed.
	shutdownCh chan struct{}
}

func New(cfgPath string) (*App, error) {
	boot := logx.NewConsole("INFO")
	cfgMgr := config.NewManager(cfgPath, boot)

	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("couldn't load config: %w", err)
	}

	logSvc, log := logx.New(loggingConfig(cfg))

	a := &App{
		cfgMgr:     cfgMgr,
		logSvc:     logSvc,
		log:        log,
		shutdownCh: make(chan struct{}),
	}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	pollTimeout, _ := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, a.log.With(logx.String("component", "telegram")))
	if err != nil {
		return fmt.Errorf("couldn't build telegram adapter: %w", err)
	}
	a.adapter = adapter

	minInterval, _ := config.ParseDurationOrDefault("notifier.min_interval", cfg.Notifier.MinInterval, notify.DefaultMinInterval)
	takeWait, _ := config.ParseDurationOrDefault("notifier.take_wait", cfg.Notifier.TakeWait, 5*time.Second)
	pauseTick, _ := config.ParseDurationOrDefault("notifier.pause_tick", cfg.Notifier.PauseTick, time.Second)

	a.service = notify.New(notify.Config{
		Destination:  kit.ChatTarget{ChatID: cfg.Telegram.ChatID},
		QueueSize:    cfg.Notifier.QueueSize,
		MinInterval:  minInterval,
		PerSecondCap: cfg.Notifier.PerSecondCap,
		TakeWait:     takeWait,
		PauseTick:    pauseTick,
	}, adapter, a.log.With(logx.String("component", "notify")))

	busyTimeout, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, a.log.With(logx.String("component", "storage")))
	if err != nil {
		return fmt.Errorf("couldn't open storage: %w", err)
	}
	a.store = store

	if store != nil {
		log := a.log.With(logx.String("component", "storage"))
		a.service.OnDelivered(func(al notify.Alert) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := store.RecordAlert(ctx, storage.DeliveredAlert{
				ID:         al.ID,
				SentAt:     time.Now(),
				RiskLevel:  al.RiskLevel,
				RiskScore:  al.RiskScore,
				MarketName: al.MarketName,
				WalletRef:  al.WalletRef,
				SizeUSD:    al.SizeUSD,
			}); err != nil {
				log.Warn("couldn't record delivered alert", logx.String("alert", al.ID), logx.Err(err))
			}
		})
	}

	a.router = control.NewRouter(control.Config{
		OwnerUserIDs: cfg.Telegram.OwnerUserIDs,
	}, adapter, a.service, store, a.log.With(logx.String("component", "control")))

	pollInterval, _ := config.ParseDurationOrDefault("monitor.poll_interval", cfg.Monitor.PollInterval, 60*time.Second)
	kalshiInterval, _ := config.ParseDurationOrDefault("monitor.kalshi_poll_interval", cfg.Monitor.KalshiPollInterval, pollInterval)
	a.monitor = monitor.New(monitor.Config{
		PollInterval:       pollInterval,
		KalshiPollInterval: kalshiInterval,
		MarketLimit:        cfg.Monitor.MarketLimit,
		TradeLimit:         cfg.Monitor.TradeLimit,
		StreamAssetIDs:     cfg.Monitor.StreamAssetIDs,
		StreamURL:          cfg.Monitor.StreamURL,
	}, a.service, polymarket.New(), kalshi.New(), a.log.With(logx.String("component", "monitor")))

	if cfg.Digest.Enabled {
		spec := cfg.Digest.Schedule
		if spec == "" {
			spec = defaultDigestSchedule
		}
		c := cron.New()
		_, err := c.AddFunc(spec, func() {
			stats := a.service.SnapshotStats()
			id := fmt.Sprintf("digest_%d", time.Now().Unix())
			a.service.EnqueueNotice(id, control.RenderStats(stats))
		})
		if err != nil {
			return fmt.Errorf("invalid digest schedule %q: %w", spec, err)
		}
		a.cron = c
	}
	return nil
}

// Start launches everything and returns immediately.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	if err := a.service.Start(runCtx); err != nil {
		return err
	}
	if err := a.router.Start(runCtx); err != nil {
		return fmt.Errorf("couldn't start command router: %w", err)
	}
	a.monitor.Start(runCtx)
	if a.cron != nil {
		a.cron.Start()
	}

	// Config hot-reload applies the logging section; the rest needs a
	// restart and says so.
	go a.watchConfig(runCtx)

	// Observe the operator shutdown flag; flipping it ends the process.
	go a.watchShutdown(runCtx)

	a.service.EnqueueNotice("startup", "ℹ️ ✅ AInsider started (Polymarket + Kalshi)")
	a.log.Info("app started")
	return nil
}

// ShutdownRequested closes when an operator requests shutdown via the bot.
func (a *App) ShutdownRequested() <-chan struct{} { return a.shutdownCh }

func (a *App) watchShutdown(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.service.ShutdownRequested() {
				a.log.Info("shutdown requested by operator")
				close(a.shutdownCh)
				return
			}
		}
	}
}

func (a *App) watchConfig(ctx context.Context) {
	sub := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(sub)

	go func() {
		if err := a.cfgMgr.Watch(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("config watcher exited", logx.Err(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-sub:
			if cfg == nil {
				continue
			}
			a.logSvc.Apply(loggingConfig(cfg))
			a.log.Info("logging config applied; other sections take effect on restart")
		}
	}
}

// Stop shuts the pipeline down in order: stop producing, drain the worker,
// release the transport, close storage.
func (a *App) Stop(ctx context.Context) error {
	if a.cron != nil {
		cronCtx := a.cron.Stop()
		select {
		case <-cronCtx.Done():
		case <-ctx.Done():
		}
	}
	if a.runCancel != nil {
		a.runCancel()
	}
	a.monitor.Wait()

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.service.Stop(stopCtx); err != nil {
		a.log.Warn("delivery worker stop", logx.Err(err))
	}
	if err := a.adapter.Stop(stopCtx); err != nil {
		a.log.Warn("transport stop", logx.Err(err))
	}
	a.router.Wait()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close", logx.Err(err))
		}
	}
	a.log.Info("app stopped")
	return a.logSvc.Close()
}
