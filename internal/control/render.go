package control

import (
	"fmt"
	"time"

	"github.com/wukkeen/AInsider/internal/notify"
)

func renderStatus(s notify.StatsSnapshot) string {
	statusEmoji := "🟢"
	if s.State == notify.StateStopping || s.State == notify.StateStopped {
		statusEmoji = "🔴"
	}
	delivery := "Delivering"
	if s.Paused {
		delivery = "Paused"
	}
	return fmt.Sprintf(
		"%s <b>Monitoring Status</b>\n\n"+
			"Worker: %s\n"+
			"Alerts: %s\n"+
			"Queue Size: %d/%d\n"+
			"Messages Sent: %d\n"+
			"Uptime: %s",
		statusEmoji, s.State, delivery, s.QueueLen, s.QueueCap, s.MessagesSent, formatUptime(s.Uptime))
}

// RenderStats formats the statistics block. Shared with the periodic
// digest job.
func RenderStats(s notify.StatsSnapshot) string {
	return fmt.Sprintf(
		"<b>📊 Monitoring Statistics</b>\n\n"+
			"Uptime: %s\n"+
			"Total Alerts: %d\n"+
			"High-Risk Alerts: %d\n"+
			"Messages Sent: %d\n"+
			"Alerts/Hour: %.2f\n"+
			"Queue Size: %d/%d",
		formatUptime(s.Uptime), s.AlertsReceived, s.HighRiskAlerts,
		s.MessagesSent, s.AlertsPerHour, s.QueueLen, s.QueueCap)
}

func formatUptime(d time.Duration) string {
	secs := int(d.Seconds())
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
