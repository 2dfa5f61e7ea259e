package monitor

import (
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/wukkeen/AInsider/internal/markets/kalshi"
	"github.com/wukkeen/AInsider/internal/markets/polymarket"
	"github.com/wukkeen/AInsider/internal/notify"
)

// Trade is the normalized view of one observation, whatever the source API
// shapes look like.
type Trade struct {
	Source     string
	ID         string
	Wallet     string
	SizeUSD    float64
	MarketName string
	MarketURL  string
	At         time.Time
}

func normalizePolymarket(m polymarket.Market, t polymarket.Trade) Trade {
	id := t.TransactionHash
	if id == "" {
		id = "unknown"
	}
	wallet := t.ProxyWallet
	if wallet == "" {
		wallet = "unknown"
	}
	at := time.Now()
	if t.Timestamp > 0 {
		at = time.Unix(t.Timestamp, 0)
	}
	return Trade{
		Source:     "Polymarket",
		ID:         id,
		Wallet:     wallet,
		SizeUSD:    t.Size * t.Price,
		MarketName: m.Question,
		MarketURL:  polymarket.MarketURL(m),
		At:         at,
	}
}

// normalizeKalshi approximates notional as contract count times the yes
// price (cents). Kalshi trades carry no counterparty identity.
func normalizeKalshi(m kalshi.Market, t kalshi.Trade) Trade {
	id := t.TradeID
	if id == "" {
		id = "unknown"
	}
	at := time.Now()
	if ts, err := time.Parse(time.RFC3339, t.CreatedAt); err == nil {
		at = ts
	}
	return Trade{
		Source:     "Kalshi",
		ID:         id,
		Wallet:     "KalshiUser",
		SizeUSD:    float64(t.Count) * float64(t.YesPrice) / 100,
		MarketName: m.Title,
		MarketURL:  kalshi.MarketURL(m.Ticker),
		At:         at,
	}
}

func normalizeStreamTrade(ev *polymarket.LastTradePrice) Trade {
	size, _ := strconv.ParseFloat(ev.Size, 64)
	price, _ := strconv.ParseFloat(ev.Price, 64)
	return Trade{
		Source:     "Polymarket",
		ID:         ev.Market + ":" + ev.Timestamp,
		Wallet:     "unknown",
		SizeUSD:    size * price,
		MarketName: ev.Market,
		MarketURL:  "https://polymarket.com/markets",
		At:         time.Now(),
	}
}

// buildAlert renders the alert body once, at creation. The delivery core
// treats the text as opaque.
func buildAlert(t Trade, score int, level notify.RiskLevel) notify.Alert {
	emoji := "🟢"
	switch level {
	case notify.RiskHigh:
		emoji = "🔴"
	case notify.RiskMedium:
		emoji = "🟡"
	}

	wallet := t.Wallet
	if len(wallet) > 16 {
		wallet = wallet[:16] + "..."
	}

	text := fmt.Sprintf(
		"%s <b>%s</b>\n"+
			"Risk Score: %d/100\n"+
			"Risk Level: %s\n\n"+
			"<b>Trade Details</b>\n"+
			"Size: $%.0f\n"+
			"Wallet: <code>%s</code>\n"+
			"Time: %s UTC\n\n"+
			"[%s] Suspicious activity\n"+
			"🔗 <a href=\"%s\">Trade on %s</a>",
		emoji, html.EscapeString(t.MarketName),
		score, level,
		t.SizeUSD,
		html.EscapeString(wallet),
		t.At.UTC().Format("2006-01-02 15:04:05"),
		t.Source,
		t.MarketURL, t.Source,
	)

	return notify.Alert{
		ID:           fmt.Sprintf("%s_%s", t.Source, t.ID),
		CreatedAt:    time.Now(),
		RiskLevel:    level,
		RiskScore:    score,
		MarketName:   t.MarketName,
		WalletRef:    t.Wallet,
		SizeUSD:      t.SizeUSD,
		RenderedText: text,
	}
}
