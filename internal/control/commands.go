package control

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/wukkeen/AInsider/internal/notify"
	"github.com/wukkeen/AInsider/internal/storage"
)

// Pipeline is the slice of the notification service the operator commands
// read and mutate. All methods are safe to call while delivery is running.
type Pipeline interface {
	Pause()
	Resume()
	Paused() bool
	RequestShutdown()
	SnapshotStats() notify.StatsSnapshot
	LastObservedTrade() (notify.ObservedTrade, bool)
}

// Command is one operator command. Handlers return the reply body (HTML).
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Handle      func(ctx context.Context, r *Request) (string, error)
}

type Request struct {
	ChatID int64
	FromID int64
	Args   []string
}

func builtinCommands(p Pipeline, history storage.Store) []Command {
	return []Command{
		{
			Name:        "start",
			Description: "Welcome message and resume delivery",
			Handle: func(ctx context.Context, r *Request) (string, error) {
				p.Resume()
				return welcomeText, nil
			},
		},
		{
			Name:        "status",
			Description: "Current monitoring status",
			Handle: func(ctx context.Context, r *Request) (string, error) {
				return renderStatus(p.SnapshotStats()), nil
			},
		},
		{
			Name:        "stats",
			Description: "Monitoring statistics",
			Handle: func(ctx context.Context, r *Request) (string, error) {
				return RenderStats(p.SnapshotStats()), nil
			},
		},
		{
			Name:        "stop",
			Aliases:     []string{"pause"},
			Description: "Pause alert delivery",
			Handle: func(ctx context.Context, r *Request) (string, error) {
				p.Pause()
				return "⏸️ Alert delivery paused. Monitoring continues in background.", nil
			},
		},
		{
			Name:        "resume",
			Description: "Resume alert delivery",
			Handle: func(ctx context.Context, r *Request) (string, error) {
				p.Resume()
				return "▶️ Alert delivery resumed.", nil
			},
		},
		{
			Name:        "latest",
			Aliases:     []string{"test"},
			Description: "Show the latest scanned trade",
			Handle: func(ctx context.Context, r *Request) (string, error) {
				t, ok := p.LastObservedTrade()
				if !ok {
					return "⚠️ No trades checked yet.", nil
				}
				id := t.TradeID
				if len(id) > 8 {
					id = id[:8] + "..."
				}
				return fmt.Sprintf(
					"🧪 <b>Latest Scanned Trade</b>\n"+
						"Market: %s\n"+
						"Size: $%.2f\n"+
						"Source: %s\n"+
						"ID: <code>%s</code>",
					html.EscapeString(t.MarketName), t.SizeUSD, t.Source, html.EscapeString(id)), nil
			},
		},
		{
			Name:        "top",
			Description: "Recent high-risk alerts",
			Handle: func(ctx context.Context, r *Request) (string, error) {
				if history == nil {
					return "⚠️ Alert history is disabled.", nil
				}
				alerts, err := history.RecentHighRisk(ctx, 3)
				if err != nil {
					return "", fmt.Errorf("couldn't read alert history: %w", err)
				}
				if len(alerts) == 0 {
					return "No high-risk alerts recorded yet.", nil
				}
				var b strings.Builder
				b.WriteString("<b>🔴 Top Recent High-Risk Alerts</b>\n")
				for i, a := range alerts {
					fmt.Fprintf(&b, "\n%d. <b>%s</b>\n   Risk Score: %d/100\n   Trade Size: $%.0f\n",
						i+1, html.EscapeString(a.MarketName), a.RiskScore, a.SizeUSD)
				}
				return b.String(), nil
			},
		},
		{
			Name:        "shutdown",
			Description: "Stop the monitor completely",
			Handle: func(ctx context.Context, r *Request) (string, error) {
				p.RequestShutdown()
				return "🛑 Shutting down monitor...", nil
			},
		},
	}
}

const welcomeText = "🚨 <b>AInsider Trading Monitor</b>\n\n" +
	"I monitor Polymarket and Kalshi for suspicious trading patterns and send " +
	"real-time alerts when anomalies are detected.\n\n" +
	"<b>Available Commands:</b>\n" +
	"/latest - Show latest checked trade\n" +
	"/status - Current monitoring status\n" +
	"/stop - Pause alert delivery\n" +
	"/resume - Resume alert delivery\n" +
	"/stats - Show monitoring statistics\n" +
	"/top - Recent high-risk alerts\n" +
	"/shutdown - Stop the bot completely\n\n" +
	"🔔 <i>You will receive alerts automatically. " +
	"I respect Telegram rate limits (1 msg/sec).</i>"
