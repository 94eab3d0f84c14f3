package wire

import (
	"sync"

	"github.com/soulwire/soulwire/pkg/message"
)

// WireMessage is the closed union the Wire transports: lifecycle events,
// state updates, raw content parts and tool calls, results, sub-agent
// delegation envelopes, and approval traffic. Go has no sealed-union
// syntax, so the set is closed by convention (Kind panics on an
// unrecognized value) rather than by the type system.
type WireMessage interface{}

// Lifecycle events.

type TurnBegin struct {
	UserInput string
}

type StepBegin struct {
	N int
}

type StepInterrupted struct{}

type CompactionBegin struct{}

type CompactionEnd struct{}

// StatusUpdate reports context usage as a fraction of the model's context
// window. Nil means usage is undefined (e.g. no token count recorded yet).
type StatusUpdate struct {
	ContextUsage *float64
}

// ToolResult is the outcome of a completed tool call.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// SubagentEvent wraps every event emitted by a sub-agent's own Wire, save
// for approval traffic, which is always routed at the top level.
type SubagentEvent struct {
	TaskToolCallID string
	Event          WireMessage
}

// Response is a front-end's resolution of an ApprovalRequest.
type Response string

const (
	ResponseApprove           Response = "approve"
	ResponseApproveForSession Response = "approve_for_session"
	ResponseReject            Response = "reject"
)

// ApprovalRequest carries its own resolution future so a front-end can
// drive it without any dependency back into the approval broker package —
// this duplicates the broker's own Request by design (see internal/approval),
// to keep the Wire package independent of it.
type ApprovalRequest struct {
	ID          string
	ToolCallID  string
	Sender      string
	Action      string
	Description string

	mu       sync.Mutex
	resolved bool
	response Response
	done     chan struct{}
}

// NewApprovalRequest constructs a request with an armed resolution future.
func NewApprovalRequest(id, toolCallID, sender, action, description string) *ApprovalRequest {
	return &ApprovalRequest{
		ID:          id,
		ToolCallID:  toolCallID,
		Sender:      sender,
		Action:      action,
		Description: description,
		done:        make(chan struct{}),
	}
}

// Resolve sets the outcome exactly once; subsequent calls are no-ops.
func (r *ApprovalRequest) Resolve(resp Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return
	}
	r.resolved = true
	r.response = resp
	close(r.done)
}

// Wait blocks until Resolve is called and returns the resolution.
func (r *ApprovalRequest) Wait() Response {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

// Resolved reports whether Resolve has already been called.
func (r *ApprovalRequest) Resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved
}

// ApprovalRequestResolved announces a request's resolution on the Wire so
// front-ends can retire their own pending-approval UI state.
type ApprovalRequestResolved struct {
	RequestID string
	Response  Response
}

// Kind returns the wire-envelope discriminator for msg — the concrete Go
// type name, matching the Python original's use of the message class name.
func Kind(msg WireMessage) string {
	switch msg.(type) {
	case TurnBegin:
		return "TurnBegin"
	case StepBegin:
		return "StepBegin"
	case StepInterrupted:
		return "StepInterrupted"
	case CompactionBegin:
		return "CompactionBegin"
	case CompactionEnd:
		return "CompactionEnd"
	case StatusUpdate:
		return "StatusUpdate"
	case ToolResult:
		return "ToolResult"
	case *SubagentEvent, SubagentEvent:
		return "SubagentEvent"
	case *ApprovalRequest:
		return "ApprovalRequest"
	case ApprovalRequestResolved:
		return "ApprovalRequestResolved"
	case *message.TextPart:
		return "TextPart"
	case *message.ThinkPart:
		return "ThinkPart"
	case *message.ImageURLPart:
		return "ImageURLPart"
	case *message.AudioURLPart:
		return "AudioURLPart"
	case message.ToolCall, *message.ToolCall:
		return "ToolCall"
	case *message.ToolCallPart:
		return "ToolCallPart"
	default:
		return "Unknown"
	}
}

// isMergeable reports whether msg participates in the Wire's merge-buffer
// protocol at all (content parts, tool calls and tool-call-parts). Every
// other wire message kind always flushes-then-publishes verbatim.
func isMergeable(msg WireMessage) bool {
	switch msg.(type) {
	case *message.TextPart, *message.ThinkPart, *message.ImageURLPart, *message.AudioURLPart:
		return true
	case *message.ToolCall, *message.ToolCallPart:
		return true
	default:
		return false
	}
}

// tryMerge attempts to fold incoming into buffered, returning the
// (possibly identical) buffered value and whether the merge succeeded.
// Only ContentPart-into-ContentPart and ToolCallPart-into-ToolCall merges
// are recognized; everything else reports false so the caller flushes.
func tryMerge(buffered, incoming WireMessage) (WireMessage, bool) {
	switch b := buffered.(type) {
	case *message.ToolCall:
		if part, ok := incoming.(*message.ToolCallPart); ok {
			if b.MergeToolCallPart(part) {
				return b, true
			}
		}
		return buffered, false
	case message.ContentPart:
		part, ok := incoming.(message.ContentPart)
		if !ok {
			return buffered, false
		}
		if b.MergeInPlace(part) {
			return buffered, true
		}
		return buffered, false
	default:
		return buffered, false
	}
}

// cloneForBuffer deep-copies msg before it enters the merge buffer so
// later in-place merges never mutate a value already published on the raw
// view.
func cloneForBuffer(msg WireMessage) WireMessage {
	switch v := msg.(type) {
	case *message.TextPart:
		c := *v
		return &c
	case *message.ThinkPart:
		c := *v
		return &c
	case *message.ImageURLPart:
		c := *v
		return &c
	case *message.AudioURLPart:
		c := *v
		return &c
	case *message.ToolCall:
		c := *v
		return &c
	case *message.ToolCallPart:
		c := *v
		return &c
	default:
		return msg
	}
}
