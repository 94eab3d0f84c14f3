package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireMessage mirrors the on-disk/over-the-wire shape of Message. Content
// is left as a json.RawMessage so MarshalJSON/UnmarshalJSON can switch
// between the "bare string" and "array of parts" encodings.
type wireMessage struct {
	Role       Role            `json:"role"`
	Content    json.RawMessage `json:"content"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Partial    bool            `json:"partial,omitempty"`
}

// MarshalJSON implements the round-trip contract from spec §3/§4.1: content
// serializes as a bare string when it is a single TextPart and the role is
// not "tool" is irrelevant — role=tool ALWAYS flattens to a single string
// regardless of shape, because downstream chat-completion APIs reject
// array content on tool-role messages. Every other role uses the compact
// single-string form only when the whole content is one TextPart; any
// other shape (empty, multiple parts, non-text parts) serializes as an
// array so no information is lost.
func (m Message) MarshalJSON() ([]byte, error) {
	content := m.Content
	if m.Role == RoleTool {
		content = []ContentPart{FlattenToSingleText(m.Content)}
	}

	var contentJSON json.RawMessage
	var err error
	if len(content) == 1 {
		if t, ok := content[0].(*TextPart); ok {
			contentJSON, err = json.Marshal(t.Text)
			if err != nil {
				return nil, err
			}
		}
	}
	if contentJSON == nil {
		parts := make([]json.RawMessage, len(content))
		for i, p := range content {
			raw, err := MarshalContentPart(p)
			if err != nil {
				return nil, fmt.Errorf("message: marshal part %d: %w", i, err)
			}
			parts[i] = raw
		}
		contentJSON, err = json.Marshal(parts)
		if err != nil {
			return nil, err
		}
	}

	return json.Marshal(wireMessage{
		Role:       m.Role,
		Content:    contentJSON,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
		Partial:    m.Partial,
	})
}

// UnmarshalJSON accepts both the bare-string and array encodings of
// content, reconstructing the exact tagged-sum part sequence.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	m.Role = w.Role
	m.ToolCalls = w.ToolCalls
	m.ToolCallID = w.ToolCallID
	m.Name = w.Name
	m.Partial = w.Partial
	m.Content = nil

	trimmed := bytes.TrimSpace(w.Content)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("message: decode string content: %w", err)
		}
		if s != "" {
			m.Content = []ContentPart{&TextPart{Text: s}}
		}
		return nil
	}

	var rawParts []json.RawMessage
	if err := json.Unmarshal(trimmed, &rawParts); err != nil {
		return fmt.Errorf("message: decode array content: %w", err)
	}
	m.Content = make([]ContentPart, len(rawParts))
	for i, raw := range rawParts {
		p, err := UnmarshalContentPart(raw)
		if err != nil {
			return fmt.Errorf("message: decode part %d: %w", i, err)
		}
		m.Content[i] = p
	}
	return nil
}

// Equal reports deep equality by round-tripping both messages to their
// canonical JSON form, which is exactly the invariant serialize/deserialize
// must uphold.
func (m Message) Equal(other Message) bool {
	a, errA := json.Marshal(m)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}
