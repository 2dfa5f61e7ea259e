package config

// Config is the on-disk configuration. All durations are Go duration
// strings (e.g. "500ms", "10s", "1m"). Secrets (bot token, chat id) may be
// left empty here and supplied via environment variables instead.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Notifier NotifierConfig `json:"notifier,omitempty"`
	Monitor  MonitorConfig  `json:"monitor,omitempty"`
	Storage  StorageConfig  `json:"storage,omitempty"`
	Digest   DigestConfig   `json:"digest,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token,omitempty"`
	ChatID       int64   `json:"chat_id,omitempty"`
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	PollTimeout  string  `json:"poll_timeout,omitempty"` // default "10s"
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"` // default "INFO"
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// NotifierConfig controls the delivery pipeline. Defaults: queue_size 100,
// min_interval "1s", per_second_cap 30, take_wait "5s", pause_tick "1s".
type NotifierConfig struct {
	QueueSize    int    `json:"queue_size,omitempty"`
	MinInterval  string `json:"min_interval,omitempty"`
	PerSecondCap int    `json:"per_second_cap,omitempty"`
	TakeWait     string `json:"take_wait,omitempty"`
	PauseTick    string `json:"pause_tick,omitempty"`
}

// MonitorConfig controls market polling. Defaults: poll_interval "60s",
// kalshi_poll_interval clamped to >= "60s", market_limit 20, trade_limit 5.
type MonitorConfig struct {
	PollInterval       string   `json:"poll_interval,omitempty"`
	KalshiPollInterval string   `json:"kalshi_poll_interval,omitempty"`
	MarketLimit        int      `json:"market_limit,omitempty"`
	TradeLimit         int      `json:"trade_limit,omitempty"`
	StreamAssetIDs     []string `json:"stream_asset_ids,omitempty"`
	StreamURL          string   `json:"stream_url,omitempty"`
}

// StorageConfig controls alert-history persistence.
//
// Example:
//
//	storage: { driver: sqlite, path: ./ainsider.db }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// DigestConfig controls the periodic stats digest message.
type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // cron spec, default "0 * * * *"
}
