package builtintools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/soulwire/soulwire/internal/timetravel"
	"github.com/soulwire/soulwire/internal/toolkit"
)

func TestSendDMailSchedules(t *testing.T) {
	c := timetravel.New()
	c.SetNCheckpoints(2)
	tool := SendDMail{Control: c}

	res := tool.Execute(context.Background(), toolkit.Invocation{}, json.RawMessage(`{"checkpoint_id":1,"message":"retry"}`))
	if res.IsError() {
		t.Fatalf("got %+v", res)
	}
	mail := c.FetchPending()
	if mail == nil || mail.Message != "retry" || mail.CheckpointID != 1 {
		t.Fatalf("got %#v", mail)
	}
}

func TestSendDMailReportsOccupiedSlotAsRuntimeError(t *testing.T) {
	c := timetravel.New()
	c.SetNCheckpoints(2)
	tool := SendDMail{Control: c}

	tool.Execute(context.Background(), toolkit.Invocation{}, json.RawMessage(`{"checkpoint_id":0,"message":"a"}`))
	res := tool.Execute(context.Background(), toolkit.Invocation{}, json.RawMessage(`{"checkpoint_id":0,"message":"b"}`))
	if res.Kind != toolkit.KindRuntimeError {
		t.Fatalf("got %v", res.Kind)
	}
}

func TestSendDMailReportsBadCheckpointAsRuntimeError(t *testing.T) {
	c := timetravel.New()
	c.SetNCheckpoints(1)
	tool := SendDMail{Control: c}

	res := tool.Execute(context.Background(), toolkit.Invocation{}, json.RawMessage(`{"checkpoint_id":9,"message":"x"}`))
	if res.Kind != toolkit.KindRuntimeError {
		t.Fatalf("got %v", res.Kind)
	}
}
