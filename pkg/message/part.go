// Package message defines the conversation atoms shared by every component
// of the runtime: roles, content parts, tool calls and their merge rules.
package message

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPart is a tagged-sum content atom. Discrimination happens on the
// explicit Type() string, never on structural typing, so new part kinds can
// be added without breaking existing JSON on disk.
type ContentPart interface {
	// Type returns the wire discriminator, e.g. "text".
	Type() string

	// MergeInPlace attempts to fold other into the receiver, mutating it and
	// returning true on success. A false return leaves the receiver
	// untouched. Only parts of matching kind may merge.
	MergeInPlace(other ContentPart) bool
}

// TextPart carries plain assistant/user text.
type TextPart struct {
	Text string `json:"text"`
}

func (p *TextPart) Type() string { return "text" }

func (p *TextPart) MergeInPlace(other ContentPart) bool {
	o, ok := other.(*TextPart)
	if !ok {
		return false
	}
	p.Text += o.Text
	return true
}

// ThinkPart carries the model's chain-of-thought. Encrypted holds an
// opaque provider-specific signature blob when the adapter returns one;
// the last non-nil value wins on merge.
type ThinkPart struct {
	Think     string  `json:"think"`
	Encrypted *string `json:"encrypted,omitempty"`
}

func (p *ThinkPart) Type() string { return "think" }

func (p *ThinkPart) MergeInPlace(other ContentPart) bool {
	o, ok := other.(*ThinkPart)
	if !ok {
		return false
	}
	p.Think += o.Think
	if o.Encrypted != nil {
		p.Encrypted = o.Encrypted
	}
	return true
}

// ImageURLPart references an image, either a data URI or a remote URL.
// Image parts never merge with anything, including each other.
type ImageURLPart struct {
	URL string `json:"url"`
	ID  string `json:"id,omitempty"`
}

func (p *ImageURLPart) Type() string { return "image_url" }

func (p *ImageURLPart) MergeInPlace(ContentPart) bool { return false }

// AudioURLPart references audio, either a data URI or a remote URL. Audio
// parts never merge.
type AudioURLPart struct {
	URL string `json:"url"`
	ID  string `json:"id,omitempty"`
}

func (p *AudioURLPart) Type() string { return "audio_url" }

func (p *AudioURLPart) MergeInPlace(ContentPart) bool { return false }

// ToolCallPart is a streaming fragment of a prior ToolCall's JSON argument
// buffer. It is never stored as a Message content part on its own; it only
// exists transiently on the Wire and is folded into a ToolCall via
// MergeToolCallPart.
type ToolCallPart struct {
	ToolCallID    string `json:"tool_call_id"`
	ArgumentsPart string `json:"arguments_part"`
}

func (p *ToolCallPart) Type() string { return "tool_call_part" }

// MergeInPlace never succeeds for a ToolCallPart: it is folded into its
// owning ToolCall via MergeToolCallPart, never into another ToolCallPart.
func (p *ToolCallPart) MergeInPlace(ContentPart) bool { return false }

// rawContentPart is the envelope used for polymorphic JSON round-tripping.
type rawContentPart struct {
	Type string          `json:"type"`
	Rest json.RawMessage `json:"-"`
}

// MarshalContentPart serializes a ContentPart with its type discriminator
// folded into the same JSON object (not a nested envelope), matching the
// on-disk Message format.
func MarshalContentPart(p ContentPart) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	typeJSON, _ := json.Marshal(p.Type())
	m["type"] = typeJSON
	return json.Marshal(m)
}

// UnmarshalContentPart inspects the "type" discriminator and decodes into
// the matching concrete part.
func UnmarshalContentPart(data []byte) (ContentPart, error) {
	var disc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &disc); err != nil {
		return nil, fmt.Errorf("message: decode content part discriminator: %w", err)
	}
	switch disc.Type {
	case "text":
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "think":
		var p ThinkPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "image_url":
		var p ImageURLPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "audio_url":
		var p AudioURLPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("message: unknown content part type %q", disc.Type)
	}
}

// MergeAdjacent folds parts[i] into parts[i-1] wherever MergeInPlace
// succeeds, returning a new, possibly shorter, slice. This is the engine
// behind both the Wire's merged view and on-disk compaction of a part
// sequence before serialization.
func MergeAdjacent(parts []ContentPart) []ContentPart {
	out := make([]ContentPart, 0, len(parts))
	for _, p := range parts {
		if len(out) > 0 && out[len(out)-1].MergeInPlace(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}
