// Package shell implements the interactive terminal front-end: a
// read-render-approve loop driving one Agent over stdin/stdout.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/soulwire/soulwire/internal/agent"
	"github.com/soulwire/soulwire/internal/approval"
	"github.com/soulwire/soulwire/internal/frontend"
	"github.com/soulwire/soulwire/internal/wire"
)

// Config bundles what the shell front-end needs beyond the Agent itself.
type Config struct {
	Agent    *agent.Agent
	Wire     *wire.Wire
	Approval *approval.Broker

	In     io.Reader
	Out    io.Writer
	Logger *slog.Logger
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Shell drives one interactive conversation over a terminal.
type Shell struct {
	cfg     Config
	scanner *bufio.Scanner
}

// New constructs a Shell front-end.
func New(cfg Config) *Shell {
	c := cfg.withDefaults()
	scanner := bufio.NewScanner(c.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Shell{cfg: c, scanner: scanner}
}

// Run reads lines from In until EOF or ctx is cancelled, running one turn
// per line and rendering the Wire's merged view as it streams in. A turn
// runs synchronously, so an approval prompt mid-turn and the next line of
// user input never race over the same input stream: one scanner serves
// both, since RunTurn blocks this loop while approvalLoop reads. Run
// returns once the input stream closes.
func (s *Shell) Run(ctx context.Context) error {
	ui := s.cfg.Wire.UISide(true)
	defer ui.Close()

	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		s.renderLoop(ctx, ui)
	}()

	go s.approvalLoop(ctx)

	for s.scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		if err := s.cfg.Agent.RunTurn(ctx, line); err != nil {
			fmt.Fprintf(s.cfg.Out, "\n[error] %v\n", err)
		}
	}

	<-renderDone
	return s.scanner.Err()
}

func (s *Shell) renderLoop(ctx context.Context, ui *wire.UISide) {
	for {
		msg, ok := ui.Receive(ctx)
		if !ok {
			return
		}
		if status, isStatus := msg.(wire.StatusUpdate); isStatus {
			if line := frontend.StatusLine(status); line != "" {
				fmt.Fprintf(s.cfg.Out, "\n%s\n", line)
			}
			continue
		}
		if text, ok := frontend.Render(msg); ok {
			fmt.Fprint(s.cfg.Out, text)
		}
	}
}

// approvalLoop pumps the broker's pending-request queue, prompting the
// terminal for a decision on each and publishing the resolution on the
// Wire so every consumer sees ApprovalRequest/ApprovalRequestResolved
// together, matching the top-level routing spec.md calls for.
func (s *Shell) approvalLoop(ctx context.Context) {
	soul := s.cfg.Wire.SoulSide()
	for {
		req := s.cfg.Approval.FetchRequest()
		if req == nil {
			return
		}
		soul.Send(req)

		resp := s.prompt(req)
		if err := s.cfg.Approval.Resolve(req.ID, resp); err != nil {
			s.cfg.Logger.Error("resolve approval request", "id", req.ID, "error", err)
		}
		soul.Send(wire.ApprovalRequestResolved{RequestID: req.ID, Response: resp})

		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Shell) prompt(req *wire.ApprovalRequest) wire.Response {
	width := 0
	if f, ok := s.cfg.Out.(*os.File); ok {
		width, _, _ = term.GetSize(int(f.Fd()))
	}
	if width > 0 {
		fmt.Fprintln(s.cfg.Out, "\n"+strings.Repeat("-", min(width, 72)))
	} else {
		fmt.Fprintln(s.cfg.Out)
	}
	fmt.Fprintf(s.cfg.Out, "[approval] %s wants to: %s\n(y)es / (n)o / (a)lways for this session: ", req.Sender, req.Description)

	if !s.scanner.Scan() {
		return wire.ResponseReject
	}
	switch strings.ToLower(strings.TrimSpace(s.scanner.Text())) {
	case "y", "yes":
		return wire.ResponseApprove
	case "a", "always":
		return wire.ResponseApproveForSession
	default:
		return wire.ResponseReject
	}
}
