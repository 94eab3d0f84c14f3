// Package print implements the non-interactive front-end: run exactly one
// turn, stream its rendered output to a writer, and exit — the mode
// `soulwire run --print` and any scripted/CI invocation uses.
package print

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/soulwire/soulwire/internal/agent"
	"github.com/soulwire/soulwire/internal/approval"
	"github.com/soulwire/soulwire/internal/frontend"
	"github.com/soulwire/soulwire/internal/wire"
)

// Config bundles what the print front-end needs.
type Config struct {
	Agent *agent.Agent
	Wire  *wire.Wire

	// Approval, when set, auto-rejects every approval request that
	// arrives — a non-interactive run has nobody to ask. Leave nil (or
	// pass a yolo broker) to auto-approve instead.
	Approval *approval.Broker

	Out io.Writer

	// JSON, when true, emits one JSON object per Wire message instead of
	// rendered text — for piping into another process.
	JSON bool
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return cfg
}

// Print runs one turn non-interactively.
type Print struct {
	cfg Config
}

// New constructs a Print front-end.
func New(cfg Config) *Print {
	return &Print{cfg: cfg.withDefaults()}
}

// Run drives a single turn for input, rendering the Wire's merged view to
// Out as it streams, and returns once the turn completes.
func (p *Print) Run(ctx context.Context, input string) error {
	ui := p.cfg.Wire.UISide(true)
	defer ui.Close()

	renderCtx, stopRendering := context.WithCancel(ctx)
	defer stopRendering()

	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		p.renderLoop(renderCtx, ui)
	}()

	if p.cfg.Approval != nil {
		go p.rejectApprovals(ctx)
	}

	err := p.cfg.Agent.RunTurn(ctx, input)
	stopRendering()
	<-renderDone
	return err
}

func (p *Print) renderLoop(ctx context.Context, ui *wire.UISide) {
	for {
		msg, ok := ui.Receive(ctx)
		if !ok {
			return
		}
		if p.cfg.JSON {
			p.renderJSON(msg)
			continue
		}
		if status, isStatus := msg.(wire.StatusUpdate); isStatus {
			if line := frontend.StatusLine(status); line != "" {
				fmt.Fprintf(p.cfg.Out, "\n%s\n", line)
			}
			continue
		}
		if text, ok := frontend.Render(msg); ok {
			fmt.Fprint(p.cfg.Out, text)
		}
	}
}

func (p *Print) renderJSON(msg wire.WireMessage) {
	line := struct {
		Kind string `json:"kind"`
		Msg  any    `json:"msg"`
	}{Kind: wire.Kind(msg), Msg: msg}
	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	fmt.Fprintln(p.cfg.Out, string(data))
}

// rejectApprovals drains the approval queue with an automatic rejection —
// a non-interactive run has no human to ask, so every gated action is
// declined rather than left hanging.
func (p *Print) rejectApprovals(ctx context.Context) {
	soul := p.cfg.Wire.SoulSide()
	for {
		req := p.cfg.Approval.FetchRequest()
		if req == nil {
			return
		}
		soul.Send(req)
		p.cfg.Approval.Resolve(req.ID, wire.ResponseReject)
		soul.Send(wire.ApprovalRequestResolved{RequestID: req.ID, Response: wire.ResponseReject})
		if ctx.Err() != nil {
			return
		}
	}
}
