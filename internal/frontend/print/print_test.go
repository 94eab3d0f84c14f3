package print

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

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

type fakeProvider struct{ text string }

func (p fakeProvider) Name() string { return "fake" }
func (p fakeProvider) Model(name string) (llm.ModelInfo, bool) {
	return llm.ModelInfo{Name: name, ContextWindow: 100000}, true
}
func (p fakeProvider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	out := make(chan llm.StreamEvent, 2)
	out <- llm.StreamEvent{Part: &message.TextPart{Text: p.text}}
	out <- llm.StreamEvent{Usage: &llm.Usage{Output: 1}}
	close(out)
	return out, nil
}

func newTestPrint(t *testing.T, jsonOut bool) (*Print, *bytes.Buffer) {
	t.Helper()
	w, err := wire.New("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Shutdown)

	store := contextstore.New(filepath.Join(t.TempDir(), "context.jsonl"))
	if err := store.Restore(); err != nil {
		t.Fatal(err)
	}
	broker := approval.New(true)

	a := agent.New(agent.Config{
		Provider:   fakeProvider{text: "done"},
		Model:      "test-model",
		Tools:      toolkit.NewRegistry(),
		Store:      store,
		Wire:       w,
		Approval:   broker,
		TimeTravel: timetravel.New(),
		Compactor:  compaction.NewCompactor(fakeProvider{text: "done"}, "test-model"),
	})

	out := &bytes.Buffer{}
	p := New(Config{Agent: a, Wire: w, Approval: broker, Out: out, JSON: jsonOut})
	return p, out
}

func TestPrintRunRendersText(t *testing.T) {
	p, out := newTestPrint(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.Run(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "done") {
		t.Fatalf("expected rendered reply, got %q", out.String())
	}
}

func TestPrintRunJSONEmitsOneLinePerMessage(t *testing.T) {
	p, out := newTestPrint(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.Run(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"kind":"TurnBegin"`) {
		t.Fatalf("expected a TurnBegin line, got %q", out.String())
	}
	if !strings.Contains(out.String(), `"kind":"TextPart"`) {
		t.Fatalf("expected a TextPart line, got %q", out.String())
	}
}
