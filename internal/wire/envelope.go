package wire

import (
	"encoding/json"

	"github.com/soulwire/soulwire/pkg/message"
)

// Envelope is the serializable form of a WireMessage: a type discriminator
// plus whatever payload that type carries. It is what gets written to the
// recorder file and sent over the RPC front-end's websocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// FromWireMessage serializes msg into its envelope form.
func FromWireMessage(msg WireMessage) (Envelope, error) {
	kind := Kind(msg)
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: kind, Payload: payload}, nil
}

// ToWireMessage reconstructs a concrete WireMessage from its envelope,
// dispatching on the Type discriminator. SubagentEvent's nested Event is
// recursively reconstructed. ApprovalRequest round-trips as a disarmed
// value (no live resolution future) since a future cannot survive
// serialization; this is intended only for recording/replay, not for
// re-driving live approval flow.
func ToWireMessage(env Envelope) (WireMessage, error) {
	switch env.Type {
	case "TurnBegin":
		var v TurnBegin
		return v, json.Unmarshal(env.Payload, &v)
	case "StepBegin":
		var v StepBegin
		return v, json.Unmarshal(env.Payload, &v)
	case "StepInterrupted":
		return StepInterrupted{}, nil
	case "CompactionBegin":
		return CompactionBegin{}, nil
	case "CompactionEnd":
		return CompactionEnd{}, nil
	case "StatusUpdate":
		var v StatusUpdate
		return v, json.Unmarshal(env.Payload, &v)
	case "ToolResult":
		var v ToolResult
		return v, json.Unmarshal(env.Payload, &v)
	case "SubagentEvent":
		var raw struct {
			TaskToolCallID string          `json:"TaskToolCallID"`
			Event          json.RawMessage `json:"Event"`
		}
		if err := json.Unmarshal(env.Payload, &raw); err != nil {
			return nil, err
		}
		var innerEnv Envelope
		if err := json.Unmarshal(raw.Event, &innerEnv); err != nil {
			return SubagentEvent{TaskToolCallID: raw.TaskToolCallID}, nil
		}
		inner, err := ToWireMessage(innerEnv)
		if err != nil {
			return nil, err
		}
		return SubagentEvent{TaskToolCallID: raw.TaskToolCallID, Event: inner}, nil
	case "ApprovalRequest":
		var v struct {
			ID          string
			ToolCallID  string
			Sender      string
			Action      string
			Description string
		}
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return NewApprovalRequest(v.ID, v.ToolCallID, v.Sender, v.Action, v.Description), nil
	case "ApprovalRequestResolved":
		var v ApprovalRequestResolved
		return v, json.Unmarshal(env.Payload, &v)
	case "TextPart", "ThinkPart", "ImageURLPart", "AudioURLPart":
		return message.UnmarshalContentPart(rewrapTyped(env.Type, env.Payload))
	case "ToolCall":
		var v message.ToolCall
		return &v, json.Unmarshal(env.Payload, &v)
	case "ToolCallPart":
		var v message.ToolCallPart
		return &v, json.Unmarshal(env.Payload, &v)
	default:
		return nil, &UnknownEnvelopeTypeError{Type: env.Type}
	}
}

// UnknownEnvelopeTypeError is returned by ToWireMessage for a type
// discriminator outside the closed set.
type UnknownEnvelopeTypeError struct {
	Type string
}

func (e *UnknownEnvelopeTypeError) Error() string {
	return "wire: unknown envelope type " + e.Type
}

// rewrapTyped folds the envelope's type discriminator back into the
// payload object so message.UnmarshalContentPart's own "type" switch sees
// it, since content parts marshal with "type" alongside their fields (see
// pkg/message.MarshalContentPart) rather than as a bare envelope payload.
func rewrapTyped(kind string, payload json.RawMessage) json.RawMessage {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return payload
	}
	discriminator := map[string]string{
		"TextPart":     "text",
		"ThinkPart":    "think",
		"ImageURLPart": "image_url",
		"AudioURLPart": "audio_url",
	}[kind]
	typeJSON, _ := json.Marshal(discriminator)
	m["type"] = typeJSON
	out, _ := json.Marshal(m)
	return out
}
