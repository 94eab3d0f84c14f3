// Package timetravel implements the "d-mail" mechanism: a single-slot,
// write-once request to revert the conversation to an earlier checkpoint
// and resume it with a replacement user message.
package timetravel

import (
	"errors"
	"sync"
)

// ErrSlotOccupied is returned by Send when a d-mail is already pending —
// "only one D-Mail can be sent at a time".
var ErrSlotOccupied = errors.New("timetravel: a d-mail is already pending")

// ErrNoSuchCheckpoint is returned by Send when checkpointID does not name
// a checkpoint that currently exists.
var ErrNoSuchCheckpoint = errors.New("timetravel: there is no checkpoint with the given id")

// Mail is a scheduled revert: truncate history back to CheckpointID, then
// resume the conversation with Message as the next user input.
type Mail struct {
	Message      string
	CheckpointID int
}

// Control is the single-slot pending-d-mail holder threaded through one
// Runtime. It is deliberately not a queue: the contract is "at most one
// pending", not "a backlog of reverts".
type Control struct {
	mu           sync.Mutex
	pending      *Mail
	nCheckpoints int
}

// New constructs an empty Control.
func New() *Control {
	return &Control{}
}

// SetNCheckpoints updates the number of checkpoints currently known to
// exist, consulted by Send to validate CheckpointID. The step-loop calls
// this after every Context.Checkpoint.
func (c *Control) SetNCheckpoints(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nCheckpoints = n
}

// Send arms the pending slot with mail, failing if one is already pending
// or if mail.CheckpointID is out of range (negative, or at/beyond the next
// checkpoint id that would be allocated).
func (c *Control) Send(mail Mail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return ErrSlotOccupied
	}
	if mail.CheckpointID < 0 || mail.CheckpointID >= c.nCheckpoints {
		return ErrNoSuchCheckpoint
	}
	m := mail
	c.pending = &m
	return nil
}

// FetchPending pops and clears the pending slot, returning nil if empty.
// The step-loop polls this once per step.
func (c *Control) FetchPending() *Mail {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.pending
	c.pending = nil
	return m
}
