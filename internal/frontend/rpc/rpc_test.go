package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soulwire/soulwire/internal/agent"
	"github.com/soulwire/soulwire/internal/approval"
	"github.com/soulwire/soulwire/internal/auth"
	"github.com/soulwire/soulwire/internal/compaction"
	"github.com/soulwire/soulwire/internal/contextstore"
	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/internal/timetravel"
	"github.com/soulwire/soulwire/internal/toolkit"
	"github.com/soulwire/soulwire/internal/wire"
	"github.com/soulwire/soulwire/pkg/message"
	"github.com/soulwire/soulwire/pkg/models"
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

func newTestServer(t *testing.T, jwtSvc *auth.JWTService) (*httptest.Server, *wire.Wire) {
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
		Provider:   fakeProvider{text: "hi"},
		Model:      "test-model",
		Tools:      toolkit.NewRegistry(),
		Store:      store,
		Wire:       w,
		Approval:   broker,
		TimeTravel: timetravel.New(),
		Compactor:  compaction.NewCompactor(fakeProvider{text: "hi"}, "test-model"),
	})

	srv := New(Config{Agent: a, Wire: w, Approval: broker, JWT: jwtSvc})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, w
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v (status %v)", err, resp)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRPCRunsTurnAndStreamsEvents(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	conn := dial(t, ts, nil)

	if err := conn.WriteJSON(frame{Type: frameTurn, Input: "hello"}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	sawText := false
	for i := 0; i < 20 && !sawText; i++ {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		if f.Type == frameEvent && f.Kind == "TextPart" {
			var part message.TextPart
			if err := json.Unmarshal(f.Event, &part); err != nil {
				t.Fatal(err)
			}
			if part.Text == "hi" {
				sawText = true
			}
		}
	}
	if !sawText {
		t.Fatal("expected to observe the rendered reply over the socket")
	}
}

func TestRPCRejectsMissingBearerToken(t *testing.T) {
	jwtSvc := auth.NewJWTService("test-secret", time.Hour)
	ts, _ := newTestServer(t, jwtSvc)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected the handshake to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestRPCAcceptsValidBearerToken(t *testing.T) {
	jwtSvc := auth.NewJWTService("test-secret", time.Hour)
	ts, _ := newTestServer(t, jwtSvc)

	token, err := jwtSvc.Generate(&models.User{ID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn := dial(t, ts, header)
	if err := conn.WriteJSON(frame{Type: frameTurn, Input: "hello"}); err != nil {
		t.Fatal(err)
	}
}
