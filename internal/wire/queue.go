package wire

import "sync"

// unboundedQueue is a single-subscriber FIFO that never blocks on Put and
// blocks on Get only until an item is available or the queue is shut down.
// It exists because the contract ("receive next message, or observe
// shutdown") does not map cleanly onto a fixed-capacity Go channel: a
// bursty producer must never block on a slow consumer, which is exactly
// what a buffered channel full of a slow reader would do.
type unboundedQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

func newUnboundedQueue[T any]() *unboundedQueue[T] {
	q := &unboundedQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *unboundedQueue[T]) put(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, item)
	q.cond.Signal()
}

// get blocks until an item is available or the queue is closed. ok is
// false only when the queue is closed and drained.
func (q *unboundedQueue[T]) get() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *unboundedQueue[T]) shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// BroadcastQueue fans a published item out to every currently-subscribed
// queue, each of which the subscriber drains independently.
type BroadcastQueue[T any] struct {
	mu   sync.Mutex
	subs map[*unboundedQueue[T]]struct{}
	done bool
}

func NewBroadcastQueue[T any]() *BroadcastQueue[T] {
	return &BroadcastQueue[T]{subs: make(map[*unboundedQueue[T]]struct{})}
}

// Subscribe creates a new subscription queue that will receive every item
// published from this point forward.
func (b *BroadcastQueue[T]) Subscribe() *unboundedQueue[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := newUnboundedQueue[T]()
	if b.done {
		q.shutdown()
		return q
	}
	b.subs[q] = struct{}{}
	return q
}

// Unsubscribe removes a subscription; its queue is left as-is for any
// goroutine still draining it.
func (b *BroadcastQueue[T]) Unsubscribe(q *unboundedQueue[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, q)
}

// PublishNowait delivers item to every current subscriber without blocking.
func (b *BroadcastQueue[T]) PublishNowait(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	for q := range b.subs {
		q.put(item)
	}
}

// Shutdown closes every subscriber queue and makes further publishes a
// silent no-op, matching the Python original's "producer becomes
// non-blocking no-op" contract.
func (b *BroadcastQueue[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.done = true
	for q := range b.subs {
		q.shutdown()
	}
	b.subs = make(map[*unboundedQueue[T]]struct{})
}
