package subagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/soulwire/soulwire/internal/agent"
	"github.com/soulwire/soulwire/internal/approval"
	"github.com/soulwire/soulwire/internal/compaction"
	"github.com/soulwire/soulwire/internal/contextstore"
	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/internal/timetravel"
	"github.com/soulwire/soulwire/internal/toolkit"
	"github.com/soulwire/soulwire/internal/wire"
	"github.com/soulwire/soulwire/pkg/message"
)

// minOutputChars is the "too brief" threshold from spec §4.9: a final
// assistant answer shorter than this is retried once with an expand
// prompt before being handed back to the caller.
const minOutputChars = 200

const expandPrompt = "Your previous answer was too brief. Please expand on it with more detail and concrete specifics."

// ErrUnknownSubagent is returned when a Task invocation names a sub-agent
// absent from the labor market.
var ErrUnknownSubagent = errors.New("subagent: no such sub-agent in the labor market")

// Orchestrator holds everything a Task invocation needs to stand up a
// nested step-loop: the shared LLM/tool/approval/compaction plumbing, the
// labor market to resolve names against, and where to park each nested
// run's own context file.
type Orchestrator struct {
	Provider      llm.Provider
	Model         string
	Tools         *toolkit.Registry
	Approval      *approval.Broker
	Compactor     *compaction.Compactor
	ContextWindow int

	// ParentStorePath is the parent turn's own context file; nested runs
	// get a fresh rotated sibling of it.
	ParentStorePath string

	// Wire is the parent Wire every nested event is forwarded into.
	Wire *wire.Wire

	Market *LaborMarket

	// DefaultMaxSteps bounds a nested turn when the resolved spec doesn't
	// set its own.
	DefaultMaxSteps int

	Logger *slog.Logger
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Outcome is what a Task invocation resolves to.
type Outcome struct {
	Output string
	Err    error
	Brief  string
}

// Run resolves subagentName in the labor market, stands up a nested agent
// against a fresh context file and a nested Wire forwarding every event
// (save approval traffic) to the parent as SubagentEvent, and runs prompt
// to completion — retrying once with an expand prompt if the answer comes
// back under minOutputChars.
func (o *Orchestrator) Run(ctx context.Context, taskToolCallID, subagentName, prompt string) Outcome {
	spec, ok := o.Market.Lookup(subagentName)
	if !ok {
		return Outcome{Err: ErrUnknownSubagent, Brief: fmt.Sprintf("no such sub-agent %q", subagentName)}
	}

	storePath, err := o.nestedStorePath()
	if err != nil {
		return Outcome{Err: err, Brief: "could not allocate a context file for the sub-agent"}
	}

	store := contextstore.New(storePath)
	if err := store.Restore(); err != nil {
		return Outcome{Err: err, Brief: "could not initialize the sub-agent's context"}
	}

	nestedWire, err := wire.New("")
	if err != nil {
		return Outcome{Err: err, Brief: "could not start the sub-agent's event bus"}
	}
	defer nestedWire.Shutdown()

	forwardDone := make(chan struct{})
	go o.forward(nestedWire, taskToolCallID, forwardDone)

	// LaborMarket.Fork exists so a fixed sub-agent's own dynamically
	// registered sub-agents (via CreateSubagent) don't leak back to its
	// parent; see market_test.go. The Task tool itself stays bound to
	// this Orchestrator's single market — a nested Task call one level
	// down resolves against the same flat market rather than a fork,
	// since building a separate Tools registry per nesting level would
	// require importing the tool wrapper type here, which lives in
	// internal/builtintools and already imports this package.

	maxSteps := spec.MaxSteps
	if maxSteps <= 0 {
		maxSteps = o.DefaultMaxSteps
	}

	nested := agent.New(agent.Config{
		Provider:       o.Provider,
		Model:          o.Model,
		SystemPrompt:   spec.SystemPrompt,
		Tools:          o.Tools,
		Store:          store,
		Wire:           nestedWire,
		Approval:       o.Approval,
		TimeTravel:     timetravel.New(),
		Compactor:      o.Compactor,
		ContextWindow:  o.ContextWindow,
		MaxStepsPerRun: maxSteps,
		Sender:         taskToolCallID,
		Logger:         o.logger(),
	})

	if err := nested.RunTurn(ctx, prompt); err != nil {
		nestedWire.Shutdown()
		<-forwardDone
		var maxErr *agent.MaxStepsReached
		if errors.As(err, &maxErr) {
			return Outcome{Err: err, Brief: "max steps reached"}
		}
		return Outcome{Err: err, Brief: "sub-agent run failed"}
	}

	text := lastAssistantText(store)
	if len(text) < minOutputChars {
		if err := nested.RunTurn(ctx, expandPrompt); err != nil {
			nestedWire.Shutdown()
			<-forwardDone
			return Outcome{Output: text}
		}
		text = lastAssistantText(store)
	}

	nestedWire.Shutdown()
	<-forwardDone
	return Outcome{Output: text}
}

// nestedStorePath allocates a fresh rotated sibling of the parent's
// context file for the nested run to use as its own history.
func (o *Orchestrator) nestedStorePath() (string, error) {
	rotated, err := contextstore.NextAvailableRotation(o.ParentStorePath)
	if err != nil {
		return "", fmt.Errorf("subagent: allocate context file: %w", err)
	}
	if rotated == "" {
		dir := filepath.Dir(o.ParentStorePath)
		return "", fmt.Errorf("subagent: parent context directory %s does not exist", dir)
	}
	return rotated, nil
}

// forward drains the nested Wire's merged view, re-publishing every event
// on the parent Wire wrapped as SubagentEvent — except approval traffic,
// which is always handled at the top level per spec §4.9.
func (o *Orchestrator) forward(nested *wire.Wire, taskToolCallID string, done chan<- struct{}) {
	defer close(done)
	ui := nested.UISide(true)
	defer ui.Close()

	soul := o.Wire.SoulSide()
	ctx := context.Background()
	for {
		msg, ok := ui.Receive(ctx)
		if !ok {
			return
		}
		switch msg.(type) {
		case *wire.ApprovalRequest, wire.ApprovalRequestResolved:
			soul.Send(msg)
		default:
			soul.Send(wire.SubagentEvent{TaskToolCallID: taskToolCallID, Event: msg})
		}
	}
}

func lastAssistantText(store *contextstore.Store) string {
	history := store.History()
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == message.RoleAssistant {
			return history[i].ExtractText("")
		}
	}
	return ""
}
