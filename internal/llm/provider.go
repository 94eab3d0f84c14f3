// Package llm is the boundary between the step-loop and a concrete model
// backend: one Provider interface, a streamed response contract, and a
// closed taxonomy of transport failures every adapter maps its own errors
// into.
package llm

import (
	"context"

	"github.com/soulwire/soulwire/pkg/message"
)

// Capability names a model feature the step-loop may need to check for
// before a call, so a missing capability fails fast with a clear error
// instead of surfacing as an opaque provider-side 400.
type Capability string

const (
	CapabilityImageIn   Capability = message.CapabilityImageIn
	CapabilityThinking  Capability = message.CapabilityThinking
	CapabilityToolUse   Capability = "tool_use"
	CapabilityStreaming Capability = "streaming"
)

// ModelInfo is static metadata about one callable model: its name, which
// capabilities it supports, and its context window, consulted for the
// pre-flight capability check and by the compactor's budget math.
type ModelInfo struct {
	Name             string
	ContextWindow    int
	Capabilities     map[Capability]bool
	MaxOutputTokens  int
}

// Supports reports whether the model advertises cap.
func (m ModelInfo) Supports(cap Capability) bool {
	return m.Capabilities != nil && m.Capabilities[cap]
}

// Usage reports token accounting for one completion, split the way the
// major providers bill it: ordinary input tokens, output tokens, and the
// two prompt-caching categories (tokens that were read from cache, and
// tokens that were newly written to cache on this call).
type Usage struct {
	InputOther        int
	Output            int
	InputCacheRead     int
	InputCacheCreation int
}

// Total returns the sum of every accounted token, input and output alike.
func (u Usage) Total() int {
	return u.InputOther + u.Output + u.InputCacheRead + u.InputCacheCreation
}

// StreamEvent is one increment of a streamed completion: either a content
// part (to be merged via message.MergeAdjacent / ToolCall.MergeInPlace the
// way the wire does), a terminal Usage record, or a terminal error. Usage
// is always the last event of a successful stream.
type StreamEvent struct {
	Part  message.ContentPart
	Usage *Usage
	Err   error
}

// Request is one completion request: the running message history, the
// tools available this turn, and generation parameters.
type Request struct {
	Model          string
	System         string
	Messages       []message.Message
	Tools          []ToolDef
	MaxTokens      int
	EnableThinking bool
	ThinkingBudget int
}

// ToolDef is the provider-agnostic shape of one tool definition handed to
// Complete; adapters translate it into their own SDK's tool param type.
type ToolDef struct {
	Name        string
	Description string
	Schema      []byte
}

// Provider is the contract every model backend implements: stream a
// completion, and report what the currently configured model supports.
type Provider interface {
	Name() string
	Model(name string) (ModelInfo, bool)
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
}

// EmptyResponse is returned (wrapped) by an adapter when a stream
// completes with no content parts at all — distinct from a transport
// error, since the call itself succeeded.
type EmptyResponse struct{ Model string }

func (e EmptyResponse) Error() string {
	return "llm: " + e.Model + " returned an empty response"
}
