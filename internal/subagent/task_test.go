package subagent

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/internal/toolkit"
	"github.com/soulwire/soulwire/internal/wire"
	"github.com/soulwire/soulwire/pkg/message"
)

// scriptedProvider replays one []llm.StreamEvent per call, in order; the
// last slice repeats once exhausted.
type scriptedProvider struct {
	calls [][]llm.StreamEvent
	n     int
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Model(name string) (llm.ModelInfo, bool) {
	return llm.ModelInfo{Name: name, ContextWindow: 100000}, true
}
func (p *scriptedProvider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	idx := p.n
	if idx >= len(p.calls) {
		idx = len(p.calls) - 1
	}
	p.n++
	events := p.calls[idx]
	out := make(chan llm.StreamEvent, len(events))
	for _, e := range events {
		out <- e
	}
	close(out)
	return out, nil
}

func textEvent(s string) llm.StreamEvent {
	return llm.StreamEvent{Part: &message.TextPart{Text: s}}
}

func newOrchestrator(t *testing.T, provider llm.Provider, market *LaborMarket) (*Orchestrator, *wire.Wire) {
	t.Helper()
	parentStore := filepath.Join(t.TempDir(), "history.jsonl")
	w, err := wire.New("")
	if err != nil {
		t.Fatal(err)
	}
	return &Orchestrator{
		Provider:        provider,
		Model:           "test-model",
		Tools:           toolkit.NewRegistry(),
		ParentStorePath: parentStore,
		Wire:            w,
		Market:          market,
		DefaultMaxSteps: 10,
	}, w
}

func TestOrchestratorRunReturnsUnknownSubagent(t *testing.T) {
	o, _ := newOrchestrator(t, &scriptedProvider{}, NewLaborMarket())
	out := o.Run(context.Background(), "call-1", "ghost", "do something")
	if out.Err != ErrUnknownSubagent {
		t.Fatalf("got %v", out.Err)
	}
}

func TestOrchestratorRunHappyPath(t *testing.T) {
	market := NewLaborMarket()
	market.Register(Spec{Name: "writer", SystemPrompt: "You write things.", MaxSteps: 5})

	longAnswer := strings.Repeat("word ", 60)
	provider := &scriptedProvider{calls: [][]llm.StreamEvent{{textEvent(longAnswer)}}}
	o, _ := newOrchestrator(t, provider, market)

	out := o.Run(context.Background(), "call-1", "writer", "write something long")
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Output != longAnswer {
		t.Fatalf("got %q", out.Output)
	}
}

func TestOrchestratorRunRetriesShortAnswerWithExpandPrompt(t *testing.T) {
	market := NewLaborMarket()
	market.Register(Spec{Name: "writer", SystemPrompt: "You write things.", MaxSteps: 5})

	longAnswer := strings.Repeat("word ", 60)
	provider := &scriptedProvider{calls: [][]llm.StreamEvent{
		{textEvent("short")},
		{textEvent(longAnswer)},
	}}
	o, _ := newOrchestrator(t, provider, market)

	out := o.Run(context.Background(), "call-1", "writer", "write something")
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Output != longAnswer {
		t.Fatalf("expected the expanded answer, got %q", out.Output)
	}
	if provider.n != 2 {
		t.Fatalf("expected a retry call, got %d calls", provider.n)
	}
}

func TestOrchestratorRunMaxStepsReachedReportsBriefReason(t *testing.T) {
	market := NewLaborMarket()
	market.Register(Spec{Name: "looper", SystemPrompt: "You loop.", MaxSteps: 1})

	// A tool call with no matching registered tool still counts as a tool
	// call for step-continuation purposes, so the loop never stops on its
	// own and exhausts MaxSteps immediately.
	call := llm.StreamEvent{Part: &message.ToolCall{ID: "x", Name: "missing", ArgumentsJSON: "{}"}}
	provider := &scriptedProvider{calls: [][]llm.StreamEvent{{call}}}
	o, _ := newOrchestrator(t, provider, market)

	out := o.Run(context.Background(), "call-1", "looper", "go forever")
	if out.Brief != "max steps reached" {
		t.Fatalf("got brief %q, err %v", out.Brief, out.Err)
	}
}

func TestOrchestratorForwardsNestedEventsAsSubagentEvent(t *testing.T) {
	market := NewLaborMarket()
	market.Register(Spec{Name: "writer", SystemPrompt: "You write.", MaxSteps: 5})

	provider := &scriptedProvider{calls: [][]llm.StreamEvent{{textEvent(strings.Repeat("x", 201))}}}
	o, w := newOrchestrator(t, provider, market)

	ui := w.UISide(false)
	defer ui.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(context.Background(), "call-1", "writer", "write")
	}()

	sawSubagentEvent := false
	for i := 0; i < 50; i++ {
		msg, ok := ui.Receive(context.Background())
		if !ok {
			break
		}
		if _, isSub := msg.(wire.SubagentEvent); isSub {
			sawSubagentEvent = true
			break
		}
	}
	<-done
	if !sawSubagentEvent {
		t.Fatal("expected at least one SubagentEvent forwarded to the parent Wire")
	}
}
