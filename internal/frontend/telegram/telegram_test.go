package telegram

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

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

type fakeBot struct {
	handler bot.HandlerFunc
	sent    []string
	started chan struct{}
}

func (b *fakeBot) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	b.sent = append(b.sent, params.Text)
	return &models.Message{Text: params.Text}, nil
}

func (b *fakeBot) RegisterHandler(handlerType bot.HandlerType, pattern string, matchType bot.MatchType, handler bot.HandlerFunc) {
	b.handler = handler
}

func (b *fakeBot) Start(ctx context.Context) {
	close(b.started)
	<-ctx.Done()
}

func newTestFrontend(t *testing.T, chatID int64) (*Frontend, *fakeBot) {
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

	fb := &fakeBot{started: make(chan struct{})}
	f := New(Config{Agent: a, Wire: w, Approval: broker, ChatID: chatID, Bot: fb})
	return f, fb
}

func TestTelegramRunRepliesToInboundMessage(t *testing.T) {
	f, fb := newTestFrontend(t, 42)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		f.Run(ctx)
	}()
	<-fb.started

	fb.handler(ctx, nil, &models.Update{Message: &models.Message{
		Chat: models.Chat{ID: 42},
		Text: "hello there",
	}})

	deadline := time.Now().Add(time.Second)
	for len(fb.sent) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	cancel()
	<-runDone

	if len(fb.sent) == 0 {
		t.Fatal("expected a reply to be sent")
	}
	if fb.sent[0] != "hi there" {
		t.Fatalf("expected rendered reply %q, got %q", "hi there", fb.sent[0])
	}
}

func TestTelegramIgnoresOtherChats(t *testing.T) {
	f, fb := newTestFrontend(t, 42)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		f.Run(ctx)
	}()
	<-fb.started

	fb.handler(ctx, nil, &models.Update{Message: &models.Message{
		Chat: models.Chat{ID: 99},
		Text: "hello there",
	}})

	<-runDone
	if len(fb.sent) != 0 {
		t.Fatalf("expected no reply for an unrelated chat, got %v", fb.sent)
	}
}
