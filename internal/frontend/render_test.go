package frontend

import (
	"testing"

	"github.com/soulwire/soulwire/internal/wire"
	"github.com/soulwire/soulwire/pkg/message"
)

func TestRenderTextPart(t *testing.T) {
	text, ok := Render(&message.TextPart{Text: "hello"})
	if !ok || text != "hello" {
		t.Fatalf("got %q, %v", text, ok)
	}
}

func TestRenderEmptyTextPartReportsNothing(t *testing.T) {
	_, ok := Render(&message.TextPart{Text: ""})
	if ok {
		t.Fatal("expected an empty text part to render nothing")
	}
}

func TestRenderToolCall(t *testing.T) {
	text, ok := Render(&message.ToolCall{Name: "shell_exec"})
	if !ok || text != "[tool call: shell_exec]" {
		t.Fatalf("got %q, %v", text, ok)
	}
}

func TestRenderToolResultErrorOnly(t *testing.T) {
	text, ok := Render(wire.ToolResult{Content: "boom", IsError: true})
	if !ok || text != "[tool error] boom" {
		t.Fatalf("got %q, %v", text, ok)
	}
	if _, ok := Render(wire.ToolResult{Content: "fine", IsError: false}); ok {
		t.Fatal("expected a successful tool result to render nothing")
	}
}

func TestRenderLifecycleEventRendersNothing(t *testing.T) {
	if _, ok := Render(wire.StepBegin{N: 1}); ok {
		t.Fatal("expected StepBegin to render nothing")
	}
}

func TestStatusLineUndefinedUsage(t *testing.T) {
	if line := StatusLine(wire.StatusUpdate{ContextUsage: nil}); line != "" {
		t.Fatalf("expected empty status line, got %q", line)
	}
}

func TestStatusLineFormatsPercentage(t *testing.T) {
	usage := 0.42
	line := StatusLine(wire.StatusUpdate{ContextUsage: &usage})
	if line != "[context: 42%]" {
		t.Fatalf("got %q", line)
	}
}
