package message

import "strings"

// ToolCall is the LLM's request to invoke a named tool with a streaming
// JSON argument buffer. The buffer starts as whatever the first chunk
// contained and grows as ToolCallParts for the same ID arrive.
type ToolCall struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ArgumentsJSON string `json:"arguments"`
}

// MergeToolCallPart extends the receiver's argument buffer with part,
// provided part targets this call's ID. A ToolCall with a different ID
// never merges; callers must route ToolCallParts to their matching call
// themselves (merge is not a broadcast).
func (tc *ToolCall) MergeToolCallPart(part *ToolCallPart) bool {
	if tc.ID == "" || part.ToolCallID != tc.ID {
		return false
	}
	tc.ArgumentsJSON += part.ArgumentsPart
	return true
}

// Type satisfies ContentPart so a ToolCall can flow through the same
// StreamEvent.Part / merge-buffer machinery as text and think parts.
func (tc *ToolCall) Type() string { return "tool_call" }

// MergeInPlace folds a ToolCallPart targeting this call into its argument
// buffer; any other part kind, or a ToolCallPart for a different call,
// leaves the receiver untouched.
func (tc *ToolCall) MergeInPlace(other ContentPart) bool {
	part, ok := other.(*ToolCallPart)
	if !ok {
		return false
	}
	return tc.MergeToolCallPart(part)
}

// Message is the unit of conversation history: a role, an ordered sequence
// of content parts, and — for assistant messages that invoked tools — the
// list of tool calls made in that turn.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`

	// ToolCalls is non-empty only on assistant messages that requested
	// tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a role=tool message back to the ToolCall it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Name optionally labels the originating tool on a role=tool message.
	Name string `json:"name,omitempty"`

	// Partial marks an assistant message whose stream was cut short by
	// cancellation; history retains it rather than discarding partial work.
	Partial bool `json:"partial,omitempty"`
}

// System builds the `<system>...</system>`-wrapped single-TextPart message
// convention used for synthetic system notices threaded through user-role
// turns (checkpoint markers, compaction banners).
func System(text string) Message {
	return Message{
		Role:    RoleUser,
		Content: []ContentPart{&TextPart{Text: "<system>" + text + "</system>"}},
	}
}

// ExtractText joins the text of every TextPart, ignoring think/image/audio
// parts, optionally inserting sep between consecutive pieces.
func (m Message) ExtractText(sep string) string {
	var texts []string
	for _, p := range m.Content {
		if t, ok := p.(*TextPart); ok {
			texts = append(texts, t.Text)
		}
	}
	return strings.Join(texts, sep)
}

// StripThinkParts returns a copy of parts with every ThinkPart removed,
// used both by the compactor (which must not feed chain-of-thought back
// into the summarization call) and when assembling a message for a model
// lacking the "thinking" capability's downstream consumers.
func StripThinkParts(parts []ContentPart) []ContentPart {
	out := make([]ContentPart, 0, len(parts))
	for _, p := range parts {
		if _, ok := p.(*ThinkPart); ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Capability names gating content parts a model adapter must declare
// support for before accepting a message that contains them.
const (
	CapabilityImageIn  = "image_in"
	CapabilityThinking = "thinking"
)

// MissingCapabilities scans a message's content for parts that require a
// capability absent from have, returning the set of missing capability
// names (possibly empty). Fails fast pre-flight, before any HTTP call.
func MissingCapabilities(m Message, have map[string]bool) []string {
	needed := map[string]bool{}
	for _, p := range m.Content {
		switch p.(type) {
		case *ImageURLPart:
			needed[CapabilityImageIn] = true
		case *ThinkPart:
			needed[CapabilityThinking] = true
		}
	}
	var missing []string
	for cap := range needed {
		if !have[cap] {
			missing = append(missing, cap)
		}
	}
	return missing
}

// FlattenToSingleText collapses an arbitrary content sequence into exactly
// one TextPart: text parts are joined with "\n\n", and any non-text part is
// JSON-stringified and appended as a fallback line. This is required for
// role=tool messages, whose content downstream LLM APIs reject as an array.
// An empty input yields a TextPart with a placeholder notice rather than an
// empty string, since providers uniformly choke on blank tool output.
func FlattenToSingleText(parts []ContentPart) *TextPart {
	var pieces []string
	for _, p := range parts {
		switch v := p.(type) {
		case *TextPart:
			if v.Text != "" {
				pieces = append(pieces, v.Text)
			}
		default:
			raw, err := MarshalContentPart(p)
			if err == nil {
				pieces = append(pieces, string(raw))
			}
		}
	}
	if len(pieces) == 0 {
		return &TextPart{Text: "Tool output is empty."}
	}
	return &TextPart{Text: strings.Join(pieces, "\n\n")}
}
