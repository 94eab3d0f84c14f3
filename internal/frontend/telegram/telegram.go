// Package telegram implements the Telegram chat front-end: one chat is
// bound to one Agent conversation, inbound text messages become turns, and
// the Wire's merged view is buffered per turn and sent back as a reply.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/soulwire/soulwire/internal/agent"
	"github.com/soulwire/soulwire/internal/approval"
	"github.com/soulwire/soulwire/internal/frontend"
	"github.com/soulwire/soulwire/internal/wire"
)

// botClient is the subset of *bot.Bot this front-end depends on, so
// tests can substitute a fake without dialing Telegram.
type botClient interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	RegisterHandler(handlerType bot.HandlerType, pattern string, matchType bot.MatchType, handler bot.HandlerFunc)
	Start(ctx context.Context)
}

// Config bundles what the Telegram front-end needs.
type Config struct {
	Agent    *agent.Agent
	Wire     *wire.Wire
	Approval *approval.Broker

	// ChatID restricts replies and accepted input to one chat; 0 accepts
	// input from any chat.
	ChatID int64

	Bot    botClient
	Logger *slog.Logger
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Frontend drives one Telegram chat's conversation.
type Frontend struct {
	cfg Config
	mu  sync.Mutex
}

// New constructs a Telegram front-end. cfg.Bot must already be
// constructed — this package does not dial Telegram itself.
func New(cfg Config) *Frontend {
	f := &Frontend{cfg: cfg.withDefaults()}
	f.cfg.Bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, f.handleUpdate)
	return f
}

// Run starts the bot's long-polling loop and blocks until ctx is
// cancelled.
func (f *Frontend) Run(ctx context.Context) error {
	if f.cfg.Approval != nil {
		go f.approvalLoop(ctx)
	}
	f.cfg.Bot.Start(ctx)
	return ctx.Err()
}

func (f *Frontend) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	if f.cfg.ChatID != 0 && update.Message.Chat.ID != f.cfg.ChatID {
		return
	}
	if update.Message.From != nil && update.Message.From.IsBot {
		return
	}
	content := strings.TrimSpace(update.Message.Text)
	if content == "" {
		return
	}
	f.runTurn(ctx, update.Message.Chat.ID, content)
}

// runTurn drains the Wire's merged view into a single buffered reply,
// since Telegram has no incremental streaming surface in this client.
func (f *Frontend) runTurn(ctx context.Context, chatID int64, content string) {
	ui := f.cfg.Wire.UISide(true)
	defer ui.Close()

	renderCtx, stop := context.WithCancel(ctx)
	defer stop()

	var buf strings.Builder
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		for {
			msg, ok := ui.Receive(renderCtx)
			if !ok {
				return
			}
			if text, ok := frontend.Render(msg); ok {
				buf.WriteString(text)
			}
		}
	}()

	if err := f.cfg.Agent.RunTurn(ctx, content); err != nil {
		buf.WriteString(fmt.Sprintf("\n[error] %v", err))
	}
	stop()
	<-renderDone

	reply := strings.TrimSpace(buf.String())
	if reply == "" {
		return
	}
	if _, err := f.cfg.Bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: reply}); err != nil {
		f.cfg.Logger.Error("telegram: send message", "error", err)
	}
}

// approvalLoop posts a notice for every pending approval and auto-rejects
// it — long polling has no synchronous reply channel wired yet.
func (f *Frontend) approvalLoop(ctx context.Context) {
	soul := f.cfg.Wire.SoulSide()
	for {
		req := f.cfg.Approval.FetchRequest()
		if req == nil {
			return
		}
		soul.Send(req)
		if f.cfg.ChatID != 0 {
			f.cfg.Bot.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: f.cfg.ChatID,
				Text: fmt.Sprintf("[approval needed] %s wants to: %s — auto-rejected (interactive approval isn't wired for this front-end yet)",
					req.Sender, req.Description),
			})
		}
		f.cfg.Approval.Resolve(req.ID, wire.ResponseReject)
		soul.Send(wire.ApprovalRequestResolved{RequestID: req.ID, Response: wire.ResponseReject})
		if ctx.Err() != nil {
			return
		}
	}
}
