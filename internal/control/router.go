// Package control is the operator command surface: it listens on the
// transport's inbound update stream and dispatches /commands that read and
// mutate the pipeline's shared state concurrently with delivery.
package control

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wukkeen/AInsider/internal/storage"
	kit "github.com/wukkeen/AInsider/internal/transport"
	"github.com/wukkeen/AInsider/pkg/logx"
)

const (
	updateChanCap  = 64
	handlerTimeout = 10 * time.Second
)

type Config struct {
	// OwnerUserIDs restricts commands to these Telegram user IDs. Empty
	// means anyone can drive the bot (single-user setups).
	OwnerUserIDs []int64
}

type Router struct {
	cfg      Config
	adapter  kit.Adapter
	pipeline Pipeline
	log      logx.Logger

	commands map[string]*Command
	ordered  []Command

	wg sync.WaitGroup
}

func NewRouter(cfg Config, adapter kit.Adapter, p Pipeline, history storage.Store, log logx.Logger) *Router {
	r := &Router{
		cfg:      cfg,
		adapter:  adapter,
		pipeline: p,
		log:      log,
		commands: map[string]*Command{},
	}
	for _, c := range builtinCommands(p, history) {
		r.register(c)
	}
	return r
}

func (r *Router) register(c Command) {
	r.ordered = append(r.ordered, c)
	cc := &r.ordered[len(r.ordered)-1]
	r.commands[c.Name] = cc
	for _, a := range c.Aliases {
		r.commands[a] = cc
	}
}

// Start begins consuming inbound updates. It also publishes the command
// menu when the adapter supports it.
func (r *Router) Start(ctx context.Context) error {
	out := make(chan kit.Update, updateChanCap)
	if err := r.adapter.Start(ctx, out); err != nil {
		return err
	}

	if mu, ok := r.adapter.(kit.CommandMenuUpdater); ok {
		cmds := make([]kit.BotCommand, 0, len(r.ordered))
		for _, c := range r.ordered {
			cmds = append(cmds, kit.BotCommand{Command: c.Name, Description: c.Description})
		}
		if err := mu.UpdateMenuCommands(ctx, cmds); err != nil {
			r.log.Debug("couldn't update command menu", logx.Err(err))
		}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case up := <-out:
				if up.Message != nil {
					r.dispatch(ctx, up.Message)
				}
			}
		}
	}()
	return nil
}

// Wait blocks until the dispatch loop has exited.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) dispatch(ctx context.Context, m *kit.Message) {
	name, args, ok := parseCommand(m.Text)
	if !ok {
		return
	}
	if !r.allowed(m.FromID) {
		r.log.Debug("command from non-owner ignored", logx.Int64("from", m.FromID), logx.String("command", name))
		return
	}
	cmd, ok := r.commands[name]
	if !ok {
		return
	}

	log := r.log.With(logx.String("command", cmd.Name), logx.Int64("from", m.FromID))

	hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	reply, err := cmd.Handle(hctx, &Request{ChatID: m.ChatID, FromID: m.FromID, Args: args})
	if err != nil {
		log.Warn("command failed", logx.Err(err))
		reply = "⚠️ Command failed: " + err.Error()
	}
	if reply == "" {
		return
	}

	// Operator replies are request/response traffic, not broadcast alerts;
	// they bypass the alert queue and gate.
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if _, err := r.adapter.SendText(hctx, kit.ChatTarget{ChatID: m.ChatID}, reply, opt); err != nil {
		log.Warn("couldn't send command reply", logx.Err(err))
		return
	}
	log.Info("command handled")
}

func (r *Router) allowed(fromID int64) bool {
	if len(r.cfg.OwnerUserIDs) == 0 {
		return true
	}
	for _, id := range r.cfg.OwnerUserIDs {
		if id == fromID {
			return true
		}
	}
	return false
}

// parseCommand extracts the command name and arguments from a message like
// "/stats" or "/stop@AInsiderBot now".
func parseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := strings.Fields(text[1:])
	if len(parts) == 0 {
		return "", nil, false
	}
	name := parts[0]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), parts[1:], true
}
