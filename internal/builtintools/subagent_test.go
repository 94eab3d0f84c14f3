package builtintools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/internal/subagent"
	"github.com/soulwire/soulwire/internal/toolkit"
	"github.com/soulwire/soulwire/internal/wire"
	"github.com/soulwire/soulwire/pkg/message"
)

type fakeProvider struct {
	text string
}

func (p *fakeProvider) Name() string { return "fake" }
func (p *fakeProvider) Model(name string) (llm.ModelInfo, bool) {
	return llm.ModelInfo{Name: name, ContextWindow: 100000}, true
}
func (p *fakeProvider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	out := make(chan llm.StreamEvent, 1)
	out <- llm.StreamEvent{Part: &message.TextPart{Text: p.text}}
	close(out)
	return out, nil
}

func newTestOrchestrator(t *testing.T, market *subagent.LaborMarket, answer string) *subagent.Orchestrator {
	t.Helper()
	w, err := wire.New("")
	if err != nil {
		t.Fatal(err)
	}
	return &subagent.Orchestrator{
		Provider:        &fakeProvider{text: answer},
		Model:           "test-model",
		Tools:           toolkit.NewRegistry(),
		ParentStorePath: filepath.Join(t.TempDir(), "history.jsonl"),
		Wire:            w,
		Market:          market,
		DefaultMaxSteps: 5,
	}
}

func TestTaskExecuteReturnsSubagentOutput(t *testing.T) {
	market := subagent.NewLaborMarket()
	market.Register(subagent.Spec{Name: "helper", SystemPrompt: "You help.", MaxSteps: 3})

	answer := "a perfectly adequate answer that happens to clear the two hundred character minimum all on its own without needing an expand retry at all, which keeps this test simple and fast to reason about."
	tool := Task{Orchestrator: newTestOrchestrator(t, market, answer)}

	args, _ := json.Marshal(map[string]string{
		"description":   "summarize",
		"subagent_name": "helper",
		"prompt":        "summarize this",
	})
	res := tool.Execute(context.Background(), toolkit.Invocation{ToolCallID: "call-1"}, args)
	if res.IsError() {
		t.Fatalf("got %+v", res)
	}
	if res.Content != answer {
		t.Fatalf("got %q", res.Content)
	}
}

func TestTaskExecuteReportsUnknownSubagentAsNotFound(t *testing.T) {
	market := subagent.NewLaborMarket()
	tool := Task{Orchestrator: newTestOrchestrator(t, market, "irrelevant")}

	args, _ := json.Marshal(map[string]string{
		"subagent_name": "ghost",
		"prompt":        "do something",
	})
	res := tool.Execute(context.Background(), toolkit.Invocation{ToolCallID: "call-1"}, args)
	if res.Kind != toolkit.KindNotFound {
		t.Fatalf("got %v", res.Kind)
	}
}

func TestTaskExecuteValidatesRequiredFields(t *testing.T) {
	tool := Task{Orchestrator: newTestOrchestrator(t, subagent.NewLaborMarket(), "x")}
	res := tool.Execute(context.Background(), toolkit.Invocation{}, json.RawMessage(`{"subagent_name":"helper"}`))
	if res.Kind != toolkit.KindValidateError {
		t.Fatalf("got %v", res.Kind)
	}
}

func TestCreateSubagentRegistersDynamicSpec(t *testing.T) {
	market := subagent.NewLaborMarket()
	tool := CreateSubagent{Market: market}

	args, _ := json.Marshal(map[string]string{
		"name":          "researcher",
		"system_prompt": "You research things.",
	})
	res := tool.Execute(context.Background(), toolkit.Invocation{}, args)
	if res.IsError() {
		t.Fatalf("got %+v", res)
	}

	spec, ok := market.Lookup("researcher")
	if !ok {
		t.Fatal("expected researcher to be registered in the labor market")
	}
	if !spec.Dynamic {
		t.Fatal("expected a dynamically created sub-agent to be marked Dynamic")
	}
	if spec.SystemPrompt != "You research things." {
		t.Fatalf("got %q", spec.SystemPrompt)
	}
}

func TestCreateSubagentValidatesRequiredFields(t *testing.T) {
	tool := CreateSubagent{Market: subagent.NewLaborMarket()}
	res := tool.Execute(context.Background(), toolkit.Invocation{}, json.RawMessage(`{"name":"x"}`))
	if res.Kind != toolkit.KindValidateError {
		t.Fatalf("got %v", res.Kind)
	}
}
