// Package slack implements the Slack chat front-end over Socket Mode: one
// channel is bound to one Agent conversation, inbound messages become
// turns, and the Wire's merged view is buffered per turn and posted back.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/soulwire/soulwire/internal/agent"
	"github.com/soulwire/soulwire/internal/approval"
	"github.com/soulwire/soulwire/internal/frontend"
	"github.com/soulwire/soulwire/internal/wire"
)

// apiClient is the subset of *slack.Client this front-end depends on.
type apiClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// socketClient is the subset of *socketmode.Client this front-end depends
// on, so tests can drive it with a fake event stream.
type socketClient interface {
	Run() error
	Ack(req socketmode.Request, payload ...interface{})
	Events() <-chan socketmode.Event
}

// Config bundles what the Slack front-end needs.
type Config struct {
	Agent    *agent.Agent
	Wire     *wire.Wire
	Approval *approval.Broker

	ChannelID string

	API    apiClient
	Socket socketClient
	Logger *slog.Logger
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Frontend drives one Slack channel's conversation over Socket Mode.
type Frontend struct {
	cfg Config
	mu  sync.Mutex
}

// New constructs a Slack front-end. Both cfg.API and cfg.Socket must
// already be constructed — this package does not dial Slack itself.
func New(cfg Config) *Frontend {
	return &Frontend{cfg: cfg.withDefaults()}
}

// Run starts the Socket Mode event loop and blocks until ctx is
// cancelled or the underlying client stops.
func (f *Frontend) Run(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- f.cfg.Socket.Run() }()

	if f.cfg.Approval != nil {
		go f.approvalLoop(ctx)
	}

	events := f.cfg.Socket.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			return err
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			f.handleEvent(ctx, evt)
		}
	}
}

func (f *Frontend) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		f.cfg.Socket.Ack(*evt.Request)
		f.handleEventsAPI(ctx, evt)
	default:
		// Slash commands, interactive payloads, and connection lifecycle
		// events have no equivalent in a turn-based conversation front-end.
	}
}

func (f *Frontend) handleEventsAPI(ctx context.Context, evt socketmode.Event) {
	apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	callback, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	if callback.BotID != "" {
		return
	}
	if f.cfg.ChannelID != "" && callback.Channel != f.cfg.ChannelID {
		return
	}
	content := strings.TrimSpace(callback.Text)
	if content == "" {
		return
	}
	f.runTurn(ctx, callback.Channel, content)
}

// runTurn drains the Wire's merged view into a single buffered reply,
// since Slack Socket Mode has no incremental streaming surface.
func (f *Frontend) runTurn(ctx context.Context, channelID, content string) {
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
	if _, _, err := f.cfg.API.PostMessageContext(ctx, channelID, slack.MsgOptionText(reply, false)); err != nil {
		f.cfg.Logger.Error("slack: post message", "error", err)
	}
}

// approvalLoop posts a notice for every pending approval and auto-rejects
// it — Socket Mode events have no synchronous reply channel wired yet.
func (f *Frontend) approvalLoop(ctx context.Context) {
	soul := f.cfg.Wire.SoulSide()
	for {
		req := f.cfg.Approval.FetchRequest()
		if req == nil {
			return
		}
		soul.Send(req)
		if f.cfg.ChannelID != "" {
			f.cfg.API.PostMessageContext(ctx, f.cfg.ChannelID, slack.MsgOptionText(
				fmt.Sprintf("[approval needed] %s wants to: %s — auto-rejected (interactive approval isn't wired for this front-end yet)",
					req.Sender, req.Description), false))
		}
		f.cfg.Approval.Resolve(req.ID, wire.ResponseReject)
		soul.Send(wire.ApprovalRequestResolved{RequestID: req.ID, Response: wire.ResponseReject})
		if ctx.Err() != nil {
			return
		}
	}
}
