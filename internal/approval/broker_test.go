package approval

import (
	"testing"
	"time"

	"github.com/soulwire/soulwire/internal/wire"
)

func TestYoloBypassesImmediately(t *testing.T) {
	b := New(true)
	ok, err := b.Request(InvocationContext{ToolCallID: "c1"}, "shell.exec", "rm -rf /")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected yolo to approve immediately")
	}
}

func TestMissingToolCallContextIsError(t *testing.T) {
	b := New(false)
	_, err := b.Request(InvocationContext{}, "shell.exec", "x")
	if err != ErrNoToolCallContext {
		t.Fatalf("got %v", err)
	}
}

func TestAutoApproveSetShortCircuits(t *testing.T) {
	b := New(false)

	go func() {
		req := b.FetchRequest()
		b.Resolve(req.ID, wire.ResponseApproveForSession)
	}()

	ok, err := b.Request(InvocationContext{ToolCallID: "c1"}, "shell.exec", "ls")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected first request to be approved")
	}

	// Every subsequent request for the same action resolves true without
	// ever reaching FetchRequest.
	done := make(chan bool, 1)
	go func() {
		ok, _ := b.Request(InvocationContext{ToolCallID: "c2"}, "shell.exec", "ls -la")
		done <- ok
	}()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected auto-approved action to resolve true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request did not resolve; auto-approve set not short-circuiting")
	}
}

func TestRetroactiveResolutionOnDrain(t *testing.T) {
	b := New(false)

	resultC := make(chan bool, 1)
	go func() {
		ok, _ := b.Request(InvocationContext{ToolCallID: "c1"}, "shell.exec", "ls")
		resultC <- ok
	}()

	// Give the request time to enqueue, then join the action before it is
	// ever drained by FetchRequest.
	time.Sleep(50 * time.Millisecond)
	b.mu.Lock()
	b.autoApproveSet["shell.exec"] = true
	b.mu.Unlock()

	req := b.FetchRequest()
	if req != nil {
		t.Fatalf("expected the request to be retroactively auto-resolved and skipped, got %+v", req)
	}

	select {
	case ok := <-resultC:
		if !ok {
			t.Fatal("expected retroactively auto-approved request to resolve true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request never resolved")
	}
}

func TestRejectResolves(t *testing.T) {
	b := New(false)
	resultC := make(chan bool, 1)
	go func() {
		ok, _ := b.Request(InvocationContext{ToolCallID: "c1"}, "shell.exec", "rm -rf /")
		resultC <- ok
	}()

	req := b.FetchRequest()
	if err := b.Resolve(req.ID, wire.ResponseReject); err != nil {
		t.Fatal(err)
	}
	if ok := <-resultC; ok {
		t.Fatal("expected rejected request to resolve false")
	}
}

func TestResolveUnknownIDErrors(t *testing.T) {
	b := New(false)
	if err := b.Resolve("nope", wire.ResponseApprove); err != ErrUnknownRequest {
		t.Fatalf("got %v", err)
	}
}
