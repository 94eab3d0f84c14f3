package timetravel

import "testing"

func TestSendRejectsSecondMailBeforeFetch(t *testing.T) {
	c := New()
	c.SetNCheckpoints(3)

	if err := c.Send(Mail{Message: "retry", CheckpointID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := c.Send(Mail{Message: "again", CheckpointID: 2}); err != ErrSlotOccupied {
		t.Fatalf("got %v, want ErrSlotOccupied", err)
	}
}

func TestSendRejectsNegativeCheckpoint(t *testing.T) {
	c := New()
	c.SetNCheckpoints(3)
	if err := c.Send(Mail{Message: "x", CheckpointID: -1}); err != ErrNoSuchCheckpoint {
		t.Fatalf("got %v, want ErrNoSuchCheckpoint", err)
	}
}

func TestSendRejectsCheckpointAtOrBeyondCount(t *testing.T) {
	c := New()
	c.SetNCheckpoints(2)
	if err := c.Send(Mail{Message: "x", CheckpointID: 2}); err != ErrNoSuchCheckpoint {
		t.Fatalf("got %v, want ErrNoSuchCheckpoint", err)
	}
	if err := c.Send(Mail{Message: "x", CheckpointID: 5}); err != ErrNoSuchCheckpoint {
		t.Fatalf("got %v, want ErrNoSuchCheckpoint", err)
	}
}

func TestFetchPendingReturnsOnceThenNil(t *testing.T) {
	c := New()
	c.SetNCheckpoints(3)
	if err := c.Send(Mail{Message: "retry", CheckpointID: 0}); err != nil {
		t.Fatal(err)
	}

	got := c.FetchPending()
	if got == nil || got.Message != "retry" || got.CheckpointID != 0 {
		t.Fatalf("got %#v", got)
	}

	if got := c.FetchPending(); got != nil {
		t.Fatalf("expected nil on second fetch, got %#v", got)
	}
}

func TestFetchPendingOnEmptyControlIsNil(t *testing.T) {
	c := New()
	c.SetNCheckpoints(1)
	if got := c.FetchPending(); got != nil {
		t.Fatalf("got %#v, want nil", got)
	}
}

func TestSlotIsReusableAfterFetch(t *testing.T) {
	c := New()
	c.SetNCheckpoints(3)

	if err := c.Send(Mail{Message: "first", CheckpointID: 0}); err != nil {
		t.Fatal(err)
	}
	c.FetchPending()

	if err := c.Send(Mail{Message: "second", CheckpointID: 1}); err != nil {
		t.Fatal(err)
	}
	got := c.FetchPending()
	if got == nil || got.Message != "second" {
		t.Fatalf("got %#v", got)
	}
}
