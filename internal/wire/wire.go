// Package wire implements the typed, dual-view event bus between the
// agent step-loop and its pluggable front-ends: a raw view that emits
// every part verbatim, and a merged view that coalesces adjacent
// mergeable parts via ContentPart.MergeInPlace / ToolCall.MergeToolCallPart
// before publication.
package wire

import (
	"context"
	"sync"
)

// Wire owns one raw and one merged BroadcastQueue plus the single
// producer-side merge buffer. There is exactly one SoulSide per Wire;
// there may be any number of UI-side consumers.
type Wire struct {
	raw    *BroadcastQueue[WireMessage]
	merged *BroadcastQueue[WireMessage]

	soulSide *SoulSide
	recorder *recorder
}

// New constructs a Wire. When recordPath is non-empty, every merged
// message is additionally appended as a JSONL line to that file.
func New(recordPath string) (*Wire, error) {
	w := &Wire{
		raw:    NewBroadcastQueue[WireMessage](),
		merged: NewBroadcastQueue[WireMessage](),
	}
	w.soulSide = &SoulSide{wire: w}

	if recordPath != "" {
		rec, err := newRecorder(recordPath, w.merged)
		if err != nil {
			return nil, err
		}
		w.recorder = rec
	}
	return w, nil
}

// SoulSide returns the single producer handle.
func (w *Wire) SoulSide() *SoulSide { return w.soulSide }

// UISide returns a new consumer subscribed to either the merged or the raw
// view, per merge.
func (w *Wire) UISide(merge bool) *UISide {
	queue := w.merged
	if !merge {
		queue = w.raw
	}
	return &UISide{sub: queue.Subscribe(), queue: queue}
}

// Shutdown flushes any pending merge-buffer item and closes both views.
// The producer becomes a non-blocking no-op afterward.
func (w *Wire) Shutdown() {
	w.soulSide.Flush()
	w.raw.Shutdown()
	w.merged.Shutdown()
	if w.recorder != nil {
		w.recorder.stop()
	}
}

// SoulSide is the single allowed producer for a Wire.
type SoulSide struct {
	wire *Wire

	mu      sync.Mutex
	buffer  WireMessage
	hasItem bool
}

// Send publishes msg to the raw view unconditionally, then applies the
// merge-buffer protocol for the merged view: mergeable kinds try to fold
// into whatever is currently buffered, flushing the old buffer first on a
// failed merge; non-mergeable kinds flush then publish themselves
// verbatim.
func (s *SoulSide) Send(msg WireMessage) {
	s.wire.raw.PublishNowait(msg)

	if !isMergeable(msg) {
		s.Flush()
		s.wire.merged.PublishNowait(msg)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasItem {
		if merged, ok := tryMerge(s.buffer, msg); ok {
			s.buffer = merged
			return
		}
		s.wire.merged.PublishNowait(s.buffer)
	}
	s.buffer = cloneForBuffer(msg)
	s.hasItem = true
}

// Flush publishes whatever is currently buffered (if anything) to the
// merged view and clears the buffer. Called at shutdown and whenever a
// non-mergeable message needs to interrupt a run of mergeable ones.
func (s *SoulSide) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasItem {
		return
	}
	s.wire.merged.PublishNowait(s.buffer)
	s.buffer = nil
	s.hasItem = false
}

// UISide is a single consumer of one of the Wire's two views.
type UISide struct {
	sub   *unboundedQueue[WireMessage]
	queue *BroadcastQueue[WireMessage]
}

// Receive blocks until the next message arrives or the Wire shuts down, in
// which case ok is false. It also returns promptly if ctx is cancelled.
func (u *UISide) Receive(ctx context.Context) (WireMessage, bool) {
	type result struct {
		msg WireMessage
		ok  bool
	}
	ch := make(chan result, 1)
	go func() {
		msg, ok := u.sub.get()
		ch <- result{msg, ok}
	}()
	select {
	case r := <-ch:
		return r.msg, r.ok
	case <-ctx.Done():
		return nil, false
	}
}

// Close unsubscribes this consumer; any goroutine blocked in Receive will
// instead observe the Wire's eventual shutdown.
func (u *UISide) Close() {
	u.queue.Unsubscribe(u.sub)
}
