package llm

import "testing"

func TestModelInfoSupports(t *testing.T) {
	m := ModelInfo{Capabilities: map[Capability]bool{CapabilityImageIn: true}}
	if !m.Supports(CapabilityImageIn) {
		t.Fatal("expected image_in support")
	}
	if m.Supports(CapabilityThinking) {
		t.Fatal("expected no thinking support")
	}
}

func TestModelInfoSupportsNilMap(t *testing.T) {
	var m ModelInfo
	if m.Supports(CapabilityImageIn) {
		t.Fatal("expected false on zero-value ModelInfo")
	}
}

func TestUsageTotal(t *testing.T) {
	u := Usage{InputOther: 10, Output: 5, InputCacheRead: 2, InputCacheCreation: 1}
	if got := u.Total(); got != 18 {
		t.Fatalf("got %d", got)
	}
}

func TestEmptyResponseError(t *testing.T) {
	err := EmptyResponse{Model: "gpt-5"}
	if err.Error() == "" {
		t.Fatal("expected non-empty message")
	}
}
