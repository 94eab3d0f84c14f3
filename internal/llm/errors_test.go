package llm

import (
	"errors"
	"testing"
)

func TestClassifyTimeout(t *testing.T) {
	e := NewError("anthropic", "claude", errors.New("context deadline exceeded"))
	if e.Reason != ReasonTimeout {
		t.Fatalf("got %v", e.Reason)
	}
	if !e.Reason.Retryable() {
		t.Fatal("expected timeout to be retryable")
	}
}

func TestClassifyConnection(t *testing.T) {
	e := NewError("openai", "gpt-5", errors.New("dial tcp: connection refused"))
	if e.Reason != ReasonConnection {
		t.Fatalf("got %v", e.Reason)
	}
}

func TestWithStatusReclassifies(t *testing.T) {
	e := NewError("anthropic", "claude", errors.New("boom")).WithStatus(503)
	if e.Reason != ReasonConnection {
		t.Fatalf("got %v", e.Reason)
	}
	if !e.Reason.Retryable() {
		t.Fatal("expected 5xx to be retryable")
	}
}

func TestWithStatusNonRetryable(t *testing.T) {
	e := NewError("anthropic", "claude", errors.New("boom")).WithStatus(400)
	if e.Reason.Retryable() {
		t.Fatal("expected 400 to not be retryable")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	e := NewError("anthropic", "claude", cause)
	if errors.Unwrap(e) != cause {
		t.Fatal("expected Unwrap to return cause")
	}
}

func TestAsExtractsError(t *testing.T) {
	wrapped := error(NewError("anthropic", "claude", errors.New("boom")))
	var target *Error
	if !As(wrapped, &target) {
		t.Fatal("expected As to match")
	}
	if target.Provider != "anthropic" {
		t.Fatalf("got %+v", target)
	}
}
