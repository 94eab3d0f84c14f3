// Package discord implements the Discord chat front-end: one channel is
// bound to one Agent conversation, inbound messages become turns, and the
// Wire's merged view is buffered per turn and posted back as a reply.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/soulwire/soulwire/internal/agent"
	"github.com/soulwire/soulwire/internal/approval"
	"github.com/soulwire/soulwire/internal/frontend"
	"github.com/soulwire/soulwire/internal/wire"
)

// session is the subset of *discordgo.Session this front-end depends on,
// so tests can substitute a fake without dialing Discord.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// Config bundles what the Discord front-end needs.
type Config struct {
	Agent    *agent.Agent
	Wire     *wire.Wire
	Approval *approval.Broker

	// Token is the bot token; ignored if Session is already set (tests
	// inject a fake session instead).
	Token string
	// ChannelID restricts replies and accepted input to one channel.
	ChannelID string

	Session session
	Logger  *slog.Logger
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Frontend drives one Discord channel's conversation.
type Frontend struct {
	cfg Config

	mu      sync.Mutex
	botUser string
}

// New constructs a Discord front-end. If cfg.Session is nil, a real
// discordgo.Session is created from cfg.Token.
func New(cfg Config) (*Frontend, error) {
	c := cfg.withDefaults()
	if c.Session == nil {
		dg, err := discordgo.New("Bot " + c.Token)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		c.Session = dg
	}
	return &Frontend{cfg: c}, nil
}

// Run opens the Discord session, registers the message handler, and
// blocks until ctx is cancelled.
func (f *Frontend) Run(ctx context.Context) error {
	f.cfg.Session.AddHandler(f.handleMessageCreate(ctx))
	if err := f.cfg.Session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	defer f.cfg.Session.Close()

	if f.cfg.Approval != nil {
		go f.approvalLoop(ctx)
	}

	<-ctx.Done()
	return nil
}

func (f *Frontend) handleMessageCreate(ctx context.Context) func(*discordgo.Session, *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author != nil && m.Author.Bot {
			return
		}
		if f.cfg.ChannelID != "" && m.ChannelID != f.cfg.ChannelID {
			return
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			return
		}
		f.runTurn(ctx, m.ChannelID, content)
	}
}

// runTurn drains the Wire's merged view into a single buffered reply,
// since Discord has no incremental-token streaming UI — unlike the shell
// and RPC front-ends, which render as parts arrive.
func (f *Frontend) runTurn(ctx context.Context, channelID, content string) {
	ui := f.cfg.Wire.UISide(true)
	defer ui.Close()

	renderCtx, stop := context.WithCancel(ctx)
	defer stop()

	var buf strings.Builder
	done := make(chan struct{})
	go func() {
		defer close(done)
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
	<-done

	reply := strings.TrimSpace(buf.String())
	if reply == "" {
		return
	}
	if _, err := f.cfg.Session.ChannelMessageSend(channelID, reply); err != nil {
		f.cfg.Logger.Error("discord: send reply", "error", err)
	}
}

// approvalLoop auto-rejects every approval request after announcing it in
// the bound channel — a chat front-end has no synchronous prompt surface,
// so approvals here are advisory-only until a richer component/button flow
// is built.
func (f *Frontend) approvalLoop(ctx context.Context) {
	soul := f.cfg.Wire.SoulSide()
	for {
		req := f.cfg.Approval.FetchRequest()
		if req == nil {
			return
		}
		soul.Send(req)
		if f.cfg.ChannelID != "" {
			f.cfg.Session.ChannelMessageSend(f.cfg.ChannelID, fmt.Sprintf(
				"[approval needed] %s wants to: %s — auto-rejected (interactive approval isn't wired for this front-end yet)",
				req.Sender, req.Description))
		}
		f.cfg.Approval.Resolve(req.ID, wire.ResponseReject)
		soul.Send(wire.ApprovalRequestResolved{RequestID: req.ID, Response: wire.ResponseReject})
		if ctx.Err() != nil {
			return
		}
	}
}
