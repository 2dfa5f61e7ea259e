package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleYAML = `
telegram:
  token: "123:abc"
  chat_id: 42
  owner_user_ids: [42, 99]
  poll_timeout: "10s"
logging:
  level: DEBUG
  console: true
notifier:
  queue_size: 50
  min_interval: "500ms"
  per_second_cap: 10
monitor:
  poll_interval: "90s"
  market_limit: 10
storage:
  driver: sqlite
  path: ./test.db
digest:
  enabled: true
  schedule: "0 * * * *"
`

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.ChatID != 42 {
		t.Fatalf("telegram section wrong: %+v", cfg.Telegram)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 2 || cfg.Telegram.OwnerUserIDs[1] != 99 {
		t.Fatalf("owner ids wrong: %v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Notifier.QueueSize != 50 || cfg.Notifier.MinInterval != "500ms" {
		t.Fatalf("notifier section wrong: %+v", cfg.Notifier)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage section wrong: %+v", cfg.Storage)
	}
	if d, err := ParseDurationField("monitor.poll_interval", cfg.Monitor.PollInterval); err != nil || d != 90*time.Second {
		t.Fatalf("poll_interval = %v, %v", d, err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  chat_id: 42
  typo_field: true
logging:
  console: true
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("expected unknown-field error, got %v", err)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  chat_id: 42
notifier:
  min_interval: "soon"
logging:
  console: true
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "min_interval") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestLoadRequiresCredentials(t *testing.T) {
	path := writeConfig(t, "config.yaml", "logging:\n  console: true\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("expected missing-token error, got %v", err)
	}
}

func TestEnvOverlayWinsOverFile(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env:token")
	t.Setenv("TELEGRAM_CHAT_ID", "777")

	path := writeConfig(t, "config.yaml", `
telegram:
  token: "file:token"
  chat_id: 42
logging:
  console: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env:token" {
		t.Fatalf("token = %q, want env overlay", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChatID != 777 {
		t.Fatalf("chat_id = %d, want env overlay", cfg.Telegram.ChatID)
	}
}

func TestEnvOverlaySuppliesMissingSecrets(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env:token")
	t.Setenv("TELEGRAM_CHAT_ID", "777")

	path := writeConfig(t, "config.yaml", "logging:\n  console: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load with env secrets: %v", err)
	}
	if cfg.Telegram.Token != "env:token" || cfg.Telegram.ChatID != 777 {
		t.Fatalf("secrets not applied: %+v", cfg.Telegram)
	}
}

func TestParseJSONConfig(t *testing.T) {
	path := writeConfig(t, "config.json", `{"telegram":{"token":"123:abc","chat_id":42},"logging":{"console":true}}`)
	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.ChatID != 42 {
		t.Fatalf("chat_id = %d", cfg.Telegram.ChatID)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeConfig(t, "config.json", `{"logging":{"console":true}} {"extra":1}`)
	if _, err := Parse(path); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", "1m30s"); err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty should be zero: %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "bogus"); err == nil {
		t.Fatal("expected error for bogus duration")
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if d, err := ParseDurationOrDefault("x", "", 5*time.Second); err != nil || d != 5*time.Second {
		t.Fatalf("default not applied: %v, %v", d, err)
	}
}
