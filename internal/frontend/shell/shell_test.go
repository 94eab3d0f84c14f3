package shell

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

// fakeProvider streams one fixed text reply and no tool calls, so a turn
// always completes in a single step.
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

func newTestShell(t *testing.T, in, out *bytes.Buffer) *Shell {
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
		Provider:   fakeProvider{text: "hi there"},
		Model:      "test-model",
		Tools:      toolkit.NewRegistry(),
		Store:      store,
		Wire:       w,
		Approval:   broker,
		TimeTravel: timetravel.New(),
		Compactor:  compaction.NewCompactor(fakeProvider{text: "hi there"}, "test-model"),
	})

	return New(Config{
		Agent:    a,
		Wire:     w,
		Approval: broker,
		In:       in,
		Out:      out,
	})
}

func TestShellRunProcessesOneLineAndExitsOnEOF(t *testing.T) {
	in := bytes.NewBufferString("hello\n")
	out := &bytes.Buffer{}
	sh := newTestShell(t, in, out)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sh.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "hi there") {
		t.Fatalf("expected the model's reply in output, got %q", out.String())
	}
}

func TestShellRunSkipsBlankLines(t *testing.T) {
	in := bytes.NewBufferString("\n\nhello\n")
	out := &bytes.Buffer{}
	sh := newTestShell(t, in, out)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sh.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "hi there") {
		t.Fatalf("expected exactly one turn to run, got %q", out.String())
	}
}
