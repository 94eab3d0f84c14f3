// Package agent implements the step-loop that drives one conversational
// turn: an LLM call whose streamed parts are forwarded to the Wire in
// arrival order, parallel dispatch of any tool calls the model emitted,
// and history/checkpoint bookkeeping between steps.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soulwire/soulwire/internal/approval"
	"github.com/soulwire/soulwire/internal/compaction"
	"github.com/soulwire/soulwire/internal/contextstore"
	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/internal/timetravel"
	"github.com/soulwire/soulwire/internal/toolkit"
	"github.com/soulwire/soulwire/internal/wire"
	"github.com/soulwire/soulwire/pkg/message"
)

// Config bundles everything one Agent needs to run turns. Every field is
// required except the ones explicitly documented as optional.
type Config struct {
	Provider llm.Provider
	Model    string

	SystemPrompt string

	Tools      *toolkit.Registry
	Store      *contextstore.Store
	Wire       *wire.Wire
	Approval   *approval.Broker
	TimeTravel *timetravel.Control
	Compactor  *compaction.Compactor

	// MaxStepsPerRun bounds the step loop within one turn. Default: 50.
	MaxStepsPerRun int

	// MaxRetriesPerStep bounds transient-LLM-error retries within a single
	// step's generate call. Default: 3.
	MaxRetriesPerStep int

	// CompactionThreshold triggers C6 once token_count/ContextWindow
	// exceeds it. Default: 0.8.
	CompactionThreshold float64

	// ContextWindow is the model's context size, used both for the
	// compaction threshold and StatusUpdate's usage fraction.
	ContextWindow int

	// Sender identifies this agent to the approval broker (e.g. "agent",
	// or a sub-agent's task-tool-call id).
	Sender string

	Logger *slog.Logger
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.MaxStepsPerRun <= 0 {
		cfg.MaxStepsPerRun = 50
	}
	if cfg.MaxRetriesPerStep <= 0 {
		cfg.MaxRetriesPerStep = 3
	}
	if cfg.CompactionThreshold <= 0 {
		cfg.CompactionThreshold = 0.8
	}
	if cfg.Sender == "" {
		cfg.Sender = "agent"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// MaxStepsReached is returned when a turn exhausts MaxStepsPerRun without
// the model producing a tool-call-free response.
type MaxStepsReached struct{ Steps int }

func (e *MaxStepsReached) Error() string {
	return fmt.Sprintf("agent: max steps reached after %d steps", e.Steps)
}

// RunCancelled is returned when a turn is cancelled via ctx before
// completion.
var RunCancelled = errors.New("agent: run cancelled")

// Agent runs turns against one context store, one toolset, and one Wire.
type Agent struct {
	cfg Config
}

// New constructs an Agent. cfg is copied and defaulted.
func New(cfg Config) *Agent {
	c := cfg.withDefaults()
	return &Agent{cfg: c}
}

// RunTurn drives one full turn lifecycle (spec §4.8) for user input input,
// returning once the model produces a response with no tool calls, a
// d-mail-free step budget is exhausted, or ctx is cancelled.
func (a *Agent) RunTurn(ctx context.Context, input string) error {
	soul := a.cfg.Wire.SoulSide()
	soul.Send(wire.TurnBegin{UserInput: input})

	if len(a.cfg.Store.History()) == 0 && a.cfg.SystemPrompt != "" {
		if err := a.cfg.Store.AppendMessage(message.Message{
			Role:    message.RoleSystem,
			Content: []message.ContentPart{&message.TextPart{Text: a.cfg.SystemPrompt}},
		}); err != nil {
			return fmt.Errorf("agent: seed system prompt: %w", err)
		}
	}

	userMsg := message.Message{Role: message.RoleUser, Content: []message.ContentPart{&message.TextPart{Text: input}}}
	if err := a.cfg.Store.AppendMessage(userMsg); err != nil {
		return fmt.Errorf("agent: append user message: %w", err)
	}

	if _, err := a.cfg.Store.Checkpoint(false); err != nil {
		return fmt.Errorf("agent: checkpoint: %w", err)
	}
	a.cfg.TimeTravel.SetNCheckpoints(a.cfg.Store.NCheckpoints())

	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return RunCancelled
		}

		hadToolCalls, interrupted, err := a.step(ctx, soul, n)
		if err != nil {
			return err
		}
		if interrupted {
			soul.Send(wire.StepInterrupted{})
			return RunCancelled
		}

		mail := a.cfg.TimeTravel.FetchPending()
		if mail != nil {
			if err := a.cfg.Store.RevertTo(mail.CheckpointID); err != nil {
				return fmt.Errorf("agent: revert to checkpoint %d: %w", mail.CheckpointID, err)
			}
			a.cfg.TimeTravel.SetNCheckpoints(a.cfg.Store.NCheckpoints())
			seeded := message.Message{Role: message.RoleUser, Content: []message.ContentPart{&message.TextPart{Text: mail.Message}}}
			if err := a.cfg.Store.AppendMessage(seeded); err != nil {
				return fmt.Errorf("agent: append d-mail input: %w", err)
			}
		} else if !hadToolCalls {
			return nil
		}

		if n+1 > a.cfg.MaxStepsPerRun {
			return &MaxStepsReached{Steps: n}
		}
	}
}

// step runs one iteration of the loop: optional compaction, one LLM
// generate call, and (if the model asked for any) parallel tool
// dispatch. It returns hadToolCalls=true when the model asked for at
// least one tool (so the caller knows to keep looping regardless of any
// pending d-mail), and interrupted=true if a tool was cancelled.
func (a *Agent) step(ctx context.Context, soul *wire.SoulSide, n int) (bool, bool, error) {
	soul.Send(wire.StepBegin{N: n})

	if a.shouldCompact() {
		if err := a.compact(ctx, soul); err != nil {
			return false, false, err
		}
	}

	assistantMsg, usage, err := a.generate(ctx, soul)
	if err != nil {
		return false, false, fmt.Errorf("agent: step %d: generate: %w", n, err)
	}

	if err := a.cfg.Store.AppendMessage(assistantMsg); err != nil {
		return false, false, fmt.Errorf("agent: step %d: append assistant message: %w", n, err)
	}
	if usage != nil {
		total := int64(usage.Total())
		if err := a.cfg.Store.UpdateTokenCount(total); err != nil {
			return false, false, fmt.Errorf("agent: step %d: update token count: %w", n, err)
		}
		a.emitStatusUpdate(soul, total)
	}

	if len(assistantMsg.ToolCalls) == 0 {
		return false, false, nil
	}

	interrupted, err := a.dispatchToolCalls(ctx, soul, assistantMsg.ToolCalls)
	if err != nil {
		return false, false, fmt.Errorf("agent: step %d: dispatch tools: %w", n, err)
	}
	return true, interrupted, nil
}

func (a *Agent) shouldCompact() bool {
	if a.cfg.Compactor == nil || a.cfg.ContextWindow <= 0 {
		return false
	}
	usage := float64(a.cfg.Store.TokenCount()) / float64(a.cfg.ContextWindow)
	return usage > a.cfg.CompactionThreshold
}

func (a *Agent) compact(ctx context.Context, soul *wire.SoulSide) error {
	soul.Send(wire.CompactionBegin{})
	defer soul.Send(wire.CompactionEnd{})

	compacted, err := a.cfg.Compactor.Compact(ctx, a.cfg.Store.History())
	if err != nil {
		return fmt.Errorf("agent: compact: %w", err)
	}
	if err := a.cfg.Store.Clear(); err != nil {
		return fmt.Errorf("agent: clear store for compaction: %w", err)
	}
	if err := a.cfg.Store.AppendMessage(compacted...); err != nil {
		return fmt.Errorf("agent: append compacted history: %w", err)
	}
	return nil
}

func (a *Agent) emitStatusUpdate(soul *wire.SoulSide, tokenCount int64) {
	if a.cfg.ContextWindow <= 0 {
		soul.Send(wire.StatusUpdate{})
		return
	}
	usage := float64(tokenCount) / float64(a.cfg.ContextWindow)
	soul.Send(wire.StatusUpdate{ContextUsage: &usage})
}

// generate calls the provider, forwarding every streamed part to the Wire
// in arrival order, retrying transient failures up to MaxRetriesPerStep
// times with exponential backoff, and assembling the resulting assistant
// message once the stream ends.
func (a *Agent) generate(ctx context.Context, soul *wire.SoulSide) (message.Message, *llm.Usage, error) {
	req := llm.Request{
		Model:    a.cfg.Model,
		System:   a.cfg.SystemPrompt,
		Messages: a.cfg.Store.History(),
		Tools:    a.toolDefs(),
	}

	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetriesPerStep; attempt++ {
		if attempt > 0 {
			backoff := time.Second * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return message.Message{}, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		msg, usage, err := a.generateOnce(ctx, soul, req)
		if err == nil {
			return msg, usage, nil
		}
		lastErr = err
		if !isRetryableTransport(err) {
			return message.Message{}, nil, err
		}
	}
	return message.Message{}, nil, fmt.Errorf("agent: exhausted retries: %w", lastErr)
}

func (a *Agent) generateOnce(ctx context.Context, soul *wire.SoulSide, req llm.Request) (message.Message, *llm.Usage, error) {
	events, err := a.cfg.Provider.Stream(ctx, req)
	if err != nil {
		return message.Message{}, nil, err
	}

	assistant := message.Message{Role: message.RoleAssistant}
	toolCalls := map[string]*message.ToolCall{}
	var order []string
	var usage *llm.Usage

	for ev := range events {
		if ev.Err != nil {
			return message.Message{}, nil, ev.Err
		}
		if ev.Usage != nil {
			usage = ev.Usage
		}
		if ev.Part == nil {
			continue
		}
		soul.Send(ev.Part)

		switch p := ev.Part.(type) {
		case *message.ToolCall:
			if _, ok := toolCalls[p.ID]; !ok {
				order = append(order, p.ID)
				toolCalls[p.ID] = &message.ToolCall{ID: p.ID, Name: p.Name, ArgumentsJSON: p.ArgumentsJSON}
			}
		case *message.ToolCallPart:
			if tc, ok := toolCalls[p.ToolCallID]; ok {
				tc.ArgumentsJSON += p.ArgumentsPart
			}
		case message.ContentPart:
			appendContentPart(&assistant, p)
		}
	}

	for _, id := range order {
		assistant.ToolCalls = append(assistant.ToolCalls, *toolCalls[id])
	}

	if len(assistant.Content) == 0 && len(assistant.ToolCalls) == 0 {
		return message.Message{}, usage, llm.EmptyResponse{Model: req.Model}
	}
	return assistant, usage, nil
}

func appendContentPart(m *message.Message, part message.ContentPart) {
	if len(m.Content) > 0 {
		if last := m.Content[len(m.Content)-1]; last.MergeInPlace(part) {
			return
		}
	}
	m.Content = append(m.Content, part)
}

func (a *Agent) toolDefs() []llm.ToolDef {
	tools := a.cfg.Tools.List()
	defs := make([]llm.ToolDef, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llm.ToolDef{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
	}
	return defs
}

// dispatchToolCalls runs every tool call concurrently, emitting a
// ToolResult on the Wire and appending a role=tool message as each
// completes, in completion order rather than dispatch order.
func (a *Agent) dispatchToolCalls(ctx context.Context, soul *wire.SoulSide, calls []message.ToolCall) (bool, error) {
	type outcome struct {
		msg       message.Message
		result    wire.ToolResult
		cancelled bool
	}

	results := make(chan outcome, len(calls))
	var wg sync.WaitGroup
	for _, call := range calls {
		wg.Add(1)
		go func(call message.ToolCall) {
			defer wg.Done()
			res := a.cfg.Tools.Dispatch(ctx, toolkit.Invocation{
				ToolCallID: call.ID,
				Sender:     a.cfg.Sender,
				Approval:   a.cfg.Approval,
			}, call.Name, []byte(call.ArgumentsJSON))

			results <- outcome{
				msg: message.Message{
					Role:       message.RoleTool,
					ToolCallID: call.ID,
					Name:       call.Name,
					Content:    []message.ContentPart{&message.TextPart{Text: res.Content}},
				},
				result:    wire.ToolResult{ToolCallID: call.ID, Content: res.Content, IsError: res.IsError()},
				cancelled: ctx.Err() != nil && res.IsError(),
			}
		}(call)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	interrupted := false
	for out := range results {
		soul.Send(out.result)
		if err := a.cfg.Store.AppendMessage(out.msg); err != nil {
			return false, err
		}
		if out.cancelled {
			interrupted = true
		}
	}
	return interrupted, nil
}

func isRetryableTransport(err error) bool {
	var llmErr *llm.Error
	if llm.As(err, &llmErr) {
		return llmErr.Reason.Retryable()
	}
	return false
}
