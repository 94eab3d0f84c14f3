package message

import (
	"encoding/json"
	"testing"
)

func TestTextPartMerge(t *testing.T) {
	a := &TextPart{Text: "Hello, "}
	b := &TextPart{Text: "world"}
	if !a.MergeInPlace(b) {
		t.Fatal("expected text parts to merge")
	}
	if a.Text != "Hello, world" {
		t.Errorf("got %q", a.Text)
	}
}

func TestImagePartNeverMerges(t *testing.T) {
	a := &ImageURLPart{URL: "data:image/png;base64,aaa"}
	b := &ImageURLPart{URL: "data:image/png;base64,bbb"}
	if a.MergeInPlace(b) {
		t.Fatal("image parts must never merge")
	}
}

func TestToolCallMergesMatchingPart(t *testing.T) {
	tc := &ToolCall{ID: "c1", Name: "add", ArgumentsJSON: `{"a":`}
	part := &ToolCallPart{ToolCallID: "c1", ArgumentsPart: `2,"b":3}`}
	if !tc.MergeToolCallPart(part) {
		t.Fatal("expected part to merge into matching call")
	}
	if tc.ArgumentsJSON != `{"a":2,"b":3}` {
		t.Errorf("got %q", tc.ArgumentsJSON)
	}
}

func TestToolCallRejectsMismatchedID(t *testing.T) {
	tc := &ToolCall{ID: "c1", ArgumentsJSON: "{}"}
	part := &ToolCallPart{ToolCallID: "c2", ArgumentsPart: "x"}
	if tc.MergeToolCallPart(part) {
		t.Fatal("tool call with different id must not merge")
	}
}

func TestMergeAdjacentCoalescesRuns(t *testing.T) {
	parts := []ContentPart{
		&TextPart{Text: "a"},
		&TextPart{Text: "b"},
		&ImageURLPart{URL: "x"},
		&TextPart{Text: "c"},
		&TextPart{Text: "d"},
	}
	merged := MergeAdjacent(parts)
	if len(merged) != 3 {
		t.Fatalf("expected 3 merged parts, got %d", len(merged))
	}
	if merged[0].(*TextPart).Text != "ab" {
		t.Errorf("first run = %q", merged[0].(*TextPart).Text)
	}
	if merged[2].(*TextPart).Text != "cd" {
		t.Errorf("second run = %q", merged[2].(*TextPart).Text)
	}
}

func TestMessageRoundTripSingleText(t *testing.T) {
	m := Message{Role: RoleAssistant, Content: []ContentPart{&TextPart{Text: "Hi"}}}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["content"].(string); !ok {
		t.Fatalf("expected bare string content, got %T: %s", raw["content"], data)
	}

	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !m.Equal(back) {
		t.Errorf("round trip mismatch: %+v vs %+v", m, back)
	}
}

func TestMessageRoundTripMixedParts(t *testing.T) {
	m := Message{
		Role: RoleAssistant,
		Content: []ContentPart{
			&TextPart{Text: "Let me check"},
			&ThinkPart{Think: "reasoning..."},
		},
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !m.Equal(back) {
		t.Errorf("round trip mismatch for mixed parts")
	}
}

func TestToolRoleAlwaysFlattensToString(t *testing.T) {
	m := Message{
		Role:       RoleTool,
		ToolCallID: "c1",
		Content: []ContentPart{
			&TextPart{Text: "part one"},
			&ImageURLPart{URL: "data:..."},
		},
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["content"].(string); !ok {
		t.Fatalf("tool-role content must serialize as a string, got %T", raw["content"])
	}
}

func TestFlattenToSingleTextEmptyIsPlaceholder(t *testing.T) {
	tp := FlattenToSingleText(nil)
	if tp.Text != "Tool output is empty." {
		t.Errorf("got %q", tp.Text)
	}
}

func TestExtractTextIgnoresThinkAndImage(t *testing.T) {
	m := Message{Content: []ContentPart{
		&TextPart{Text: "a"},
		&ThinkPart{Think: "hidden"},
		&ImageURLPart{URL: "x"},
		&TextPart{Text: "b"},
	}}
	if got := m.ExtractText("|"); got != "a|b" {
		t.Errorf("got %q", got)
	}
}

func TestMissingCapabilities(t *testing.T) {
	m := Message{Content: []ContentPart{&ImageURLPart{URL: "x"}, &ThinkPart{Think: "y"}}}
	missing := MissingCapabilities(m, map[string]bool{CapabilityImageIn: true})
	if len(missing) != 1 || missing[0] != CapabilityThinking {
		t.Errorf("got %v", missing)
	}
}
