// Package approval implements the side-effect gate every tool call that
// wants out-of-band user consent goes through: a queue of outstanding
// requests, a session-wide auto-approve memory, and a "yolo" bypass for
// fully unattended runs.
package approval

import (
	"errors"
	"strconv"
	"sync"

	"github.com/soulwire/soulwire/internal/wire"
)

// ErrNoToolCallContext is returned by Request when called outside an
// active tool invocation — the broker requires a tool-call identity to
// attribute the request to, so this is a caller bug, not a user-facing
// condition.
var ErrNoToolCallContext = errors.New("approval: request called without a tool-call context")

// ErrUnknownRequest is returned by Resolve for a request id that is not
// (or is no longer) pending.
var ErrUnknownRequest = errors.New("approval: unknown request id")

type pending struct {
	request *wire.ApprovalRequest
}

// Broker is the single in-memory approval queue for one runtime. Producers
// are tool goroutines; the consumer is whichever front-end is driving the
// turn.
type Broker struct {
	mu sync.Mutex

	yolo           bool
	autoApproveSet map[string]bool
	pendingByID    map[string]*pending
	queue          chan *wire.ApprovalRequest
	idSeq          int
}

// New constructs a Broker. yolo bypasses every request immediately, as if
// every action were pre-approved for the session.
func New(yolo bool) *Broker {
	return &Broker{
		yolo:           yolo,
		autoApproveSet: make(map[string]bool),
		pendingByID:    make(map[string]*pending),
		queue:          make(chan *wire.ApprovalRequest, 256),
	}
}

// SetYolo toggles full-bypass mode.
func (b *Broker) SetYolo(yolo bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.yolo = yolo
}

// InvocationContext is the per-tool-call identity threaded explicitly
// through dispatch (see internal/toolkit), rather than kept in goroutine-
// local state, per the "pass explicitly" design direction: tools that need
// to request approval receive one of these as a parameter.
type InvocationContext struct {
	ToolCallID string
	Sender     string
}

// Request enqueues (or immediately resolves) an approval request for
// action on behalf of inv, returning whether it was approved. It must be
// called with a non-empty inv.ToolCallID; an empty one is a caller bug.
func (b *Broker) Request(inv InvocationContext, action, description string) (bool, error) {
	if inv.ToolCallID == "" {
		return false, ErrNoToolCallContext
	}

	b.mu.Lock()
	if b.yolo {
		b.mu.Unlock()
		return true, nil
	}
	if b.autoApproveSet[action] {
		b.mu.Unlock()
		return true, nil
	}

	b.idSeq++
	id := "appr-" + strconv.Itoa(b.idSeq)
	req := wire.NewApprovalRequest(id, inv.ToolCallID, inv.Sender, action, description)
	b.pendingByID[id] = &pending{request: req}
	b.mu.Unlock()

	b.queue <- req

	resp := req.Wait()
	return resp == wire.ResponseApprove || resp == wire.ResponseApproveForSession, nil
}

// FetchRequest dequeues the next pending request, transparently
// auto-resolving (and skipping) any request whose action joined the
// auto-approve set after it was enqueued but before it was drained — the
// retroactive-resolution contract from spec §4.4/§8.
func (b *Broker) FetchRequest() *wire.ApprovalRequest {
	for req := range b.queue {
		b.mu.Lock()
		autoApprove := b.autoApproveSet[req.Action]
		b.mu.Unlock()
		if autoApprove {
			b.Resolve(req.ID, wire.ResponseApprove)
			continue
		}
		return req
	}
	return nil
}

// Resolve sets the outcome for request id. approve_for_session both
// resolves the request and registers its action in the session-wide
// auto-approve set for every subsequent request.
func (b *Broker) Resolve(id string, resp wire.Response) error {
	b.mu.Lock()
	p, ok := b.pendingByID[id]
	if !ok {
		b.mu.Unlock()
		return ErrUnknownRequest
	}
	delete(b.pendingByID, id)
	if resp == wire.ResponseApproveForSession {
		b.autoApproveSet[p.request.Action] = true
	}
	b.mu.Unlock()

	p.request.Resolve(resp)
	return nil
}

// AutoApproveActions returns a snapshot of the session-wide auto-approve
// set, primarily for diagnostics/tests.
func (b *Broker) AutoApproveActions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.autoApproveSet))
	for a := range b.autoApproveSet {
		out = append(out, a)
	}
	return out
}
