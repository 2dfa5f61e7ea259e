package control

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wukkeen/AInsider/internal/notify"
	kit "github.com/wukkeen/AInsider/internal/transport"
	"github.com/wukkeen/AInsider/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	out  chan<- kit.Update
	sent []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error {
	f.mu.Lock()
	f.out = out
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) Stop(ctx context.Context) error { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) push(fromID int64, text string) {
	f.mu.Lock()
	out := f.out
	f.mu.Unlock()
	out <- kit.Update{Message: &kit.Message{ChatID: 7, FromID: fromID, Text: text}}
}

func (f *fakeAdapter) replies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestRouter(t *testing.T, owners []int64) (*Router, *fakeAdapter, *notify.Service, context.CancelFunc) {
	t.Helper()
	ad := &fakeAdapter{}
	svc := notify.New(notify.Config{Destination: kit.ChatTarget{ChatID: 7}}, ad, logx.Nop())
	r := NewRouter(Config{OwnerUserIDs: owners}, ad, svc, nil, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return r, ad, svc, cancel
}

func waitReplies(t *testing.T, ad *fakeAdapter, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := ad.replies(); len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d replies, got %d", n, len(ad.replies()))
	return nil
}

func TestDispatchStats(t *testing.T) {
	t.Parallel()
	_, ad, _, _ := newTestRouter(t, nil)

	ad.push(1, "/stats")
	got := waitReplies(t, ad, 1)
	if !strings.Contains(got[0], "Monitoring Statistics") {
		t.Fatalf("stats reply missing header: %q", got[0])
	}
	if !strings.Contains(got[0], "Alerts/Hour") {
		t.Fatalf("stats reply missing alerts/hour: %q", got[0])
	}
}

func TestPauseAndResumeCommands(t *testing.T) {
	t.Parallel()
	_, ad, svc, _ := newTestRouter(t, nil)

	ad.push(1, "/stop")
	waitReplies(t, ad, 1)
	if !svc.Paused() {
		t.Fatal("pipeline not paused after /stop")
	}

	ad.push(1, "/resume")
	waitReplies(t, ad, 2)
	if svc.Paused() {
		t.Fatal("pipeline still paused after /resume")
	}
}

func TestShutdownCommandFlipsFlag(t *testing.T) {
	t.Parallel()
	_, ad, svc, _ := newTestRouter(t, nil)

	ad.push(1, "/shutdown")
	waitReplies(t, ad, 1)
	if !svc.ShutdownRequested() {
		t.Fatal("shutdown flag not set")
	}
}

func TestNonOwnerIgnored(t *testing.T) {
	t.Parallel()
	_, ad, svc, _ := newTestRouter(t, []int64{100})

	ad.push(200, "/stop") // not an owner
	ad.push(100, "/stats")
	got := waitReplies(t, ad, 1)
	if svc.Paused() {
		t.Fatal("non-owner command mutated state")
	}
	if !strings.Contains(got[0], "Monitoring Statistics") {
		t.Fatalf("owner command not handled: %q", got[0])
	}
}

func TestLatestCommand(t *testing.T) {
	t.Parallel()
	_, ad, svc, _ := newTestRouter(t, nil)

	ad.push(1, "/latest")
	got := waitReplies(t, ad, 1)
	if !strings.Contains(got[0], "No trades checked yet") {
		t.Fatalf("expected empty-state reply, got %q", got[0])
	}

	svc.RecordObservedTrade(notify.ObservedTrade{
		Source:     "Polymarket",
		TradeID:    "0xdeadbeefcafe",
		MarketName: "Will it rain tomorrow?",
		SizeUSD:    1234.5,
		At:         time.Now(),
	})
	ad.push(1, "/latest")
	got = waitReplies(t, ad, 2)
	if !strings.Contains(got[1], "Will it rain tomorrow?") || !strings.Contains(got[1], "0xdeadbe") {
		t.Fatalf("latest reply missing trade details: %q", got[1])
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		cmd  string
		args []string
		ok   bool
	}{
		{name: "plain", text: "/stats", cmd: "stats", ok: true},
		{name: "bot suffix", text: "/stop@AInsiderBot", cmd: "stop", ok: true},
		{name: "args", text: "/top 5", cmd: "top", args: []string{"5"}, ok: true},
		{name: "upper", text: "/STATUS", cmd: "status", ok: true},
		{name: "not a command", text: "hello", ok: false},
		{name: "bare slash", text: "/", ok: false},
		{name: "whitespace", text: "   /stats  ", cmd: "stats", ok: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, ok := parseCommand(tt.text)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if cmd != tt.cmd {
				t.Fatalf("cmd = %q, want %q", cmd, tt.cmd)
			}
			if len(args) != len(tt.args) {
				t.Fatalf("args = %v, want %v", args, tt.args)
			}
		})
	}
}

func TestFormatUptime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0h 0m 0s"},
		{61 * time.Second, "0h 1m 1s"},
		{3*time.Hour + 25*time.Minute + 45*time.Second, "3h 25m 45s"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Fatalf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
