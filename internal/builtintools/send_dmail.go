// Package builtintools holds the tools every runtime carries regardless of
// which front-end or provider is in use: d-mail, and (see subagent.go) the
// sub-agent spawning tools.
package builtintools

import (
	"context"
	"encoding/json"

	"github.com/soulwire/soulwire/internal/timetravel"
	"github.com/soulwire/soulwire/internal/toolkit"
)

// sendDMailArgs is the argument shape for SendDMail, reflected into a JSON
// schema via toolkit.SchemaOf rather than hand-authored, since it is a
// plain flat struct with no union fields.
type sendDMailArgs struct {
	CheckpointID int    `json:"checkpoint_id" jsonschema:"description=Checkpoint to revert to."`
	Message      string `json:"message" jsonschema:"description=Replacement user message to resume with."`
}

// SendDMail lets the model schedule a revert-and-resume: "send a message
// back to an earlier point in the conversation." Only one can be pending
// at a time; a second Send before the step-loop drains the first is
// reported back to the model as a runtime error rather than silently
// overwriting it.
type SendDMail struct {
	Control *timetravel.Control
}

func (SendDMail) Name() string { return "send_dmail" }

func (SendDMail) Description() string {
	return "Revert the conversation to an earlier checkpoint and resume it with a replacement message, as if sent back in time."
}

func (SendDMail) Schema() json.RawMessage {
	return toolkit.SchemaOf(sendDMailArgs{})
}

func (t SendDMail) Execute(ctx context.Context, inv toolkit.Invocation, args json.RawMessage) toolkit.Result {
	var a sendDMailArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return toolkit.Err(toolkit.KindParseError, err.Error())
	}
	err := t.Control.Send(timetravel.Mail{Message: a.Message, CheckpointID: a.CheckpointID})
	switch err {
	case nil:
		return toolkit.Ok("d-mail scheduled; the conversation will revert on the next step.")
	case timetravel.ErrSlotOccupied:
		return toolkit.Err(toolkit.KindRuntimeError, "a d-mail is already pending; it must resolve before another can be sent.")
	case timetravel.ErrNoSuchCheckpoint:
		return toolkit.Err(toolkit.KindRuntimeError, "no such checkpoint.")
	default:
		return toolkit.Err(toolkit.KindGeneric, err.Error())
	}
}
