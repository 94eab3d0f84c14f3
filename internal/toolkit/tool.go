// Package toolkit is the tool interface and registry: the contract every
// callable tool implements, an insertion-ordered registry, and the closed
// set of result/error kinds a tool call can resolve to.
package toolkit

import (
	"context"
	"encoding/json"

	"github.com/soulwire/soulwire/internal/approval"
)

// Kind is the closed set of outcomes a tool invocation can resolve to.
type Kind string

const (
	KindOK            Kind = "ok"
	KindNotFound      Kind = "not_found"
	KindParseError    Kind = "parse_error"
	KindValidateError Kind = "validate_error"
	KindRuntimeError  Kind = "runtime_error"
	KindRejected      Kind = "rejected"
	KindGeneric       Kind = "generic_error"
)

// Result is what a Tool.Execute call produces: either an ok payload or one
// of the closed error kinds, each carrying a message suitable for feeding
// back to the model as the tool-result content.
type Result struct {
	Kind    Kind
	Content string
}

// Ok builds a successful Result.
func Ok(content string) Result { return Result{Kind: KindOK, Content: content} }

// Err builds an error Result of the given kind.
func Err(kind Kind, content string) Result { return Result{Kind: kind, Content: content} }

// IsError reports whether the result represents any non-ok kind.
func (r Result) IsError() bool { return r.Kind != KindOK }

// Invocation bundles the per-call context threaded explicitly into every
// tool execution: which tool call this is, who is asking, and the broker
// to go through for side-effect consent. Tools that don't need approval
// may ignore Approval entirely.
type Invocation struct {
	ToolCallID string
	Sender     string
	Approval   *approval.Broker
}

// InvocationContext adapts an Invocation to the approval package's own
// identity type, for tools that call through to Approval.Request.
func (inv Invocation) InvocationContext() approval.InvocationContext {
	return approval.InvocationContext{ToolCallID: inv.ToolCallID, Sender: inv.Sender}
}

// Tool is the contract every callable tool implements: a stable name, a
// JSON schema describing its parameters, a human-readable description for
// the model, and an executor that receives raw JSON arguments.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, inv Invocation, args json.RawMessage) Result
}
