package batcher

import "sync"

// MemoryObserver stores events in-memory for tests.
type MemoryObserver struct {
	mu         sync.Mutex
	closed     []BatchClosedEvent
	dispatched []BatchDispatchedEvent
	rejected   []string
	cancelled  int
}

func NewMemoryObserver() *MemoryObserver { return &MemoryObserver{} }

func (o *MemoryObserver) BatchClosed(e BatchClosedEvent) {
	o.mu.Lock()
	o.closed = append(o.closed, e)
	o.mu.Unlock()
}

func (o *MemoryObserver) BatchDispatched(e BatchDispatchedEvent) {
	o.mu.Lock()
	o.dispatched = append(o.dispatched, e)
	o.mu.Unlock()
}

func (o *MemoryObserver) Rejected(_ string, reason string) {
	o.mu.Lock()
	o.rejected = append(o.rejected, reason)
	o.mu.Unlock()
}

func (o *MemoryObserver) Cancelled(string) {
	o.mu.Lock()
	o.cancelled++
	o.mu.Unlock()
}

func (o *MemoryObserver) Closed() []BatchClosedEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]BatchClosedEvent, len(o.closed))
	copy(out, o.closed)
	return out
}

func (o *MemoryObserver) Dispatched() []BatchDispatchedEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]BatchDispatchedEvent, len(o.dispatched))
	copy(out, o.dispatched)
	return out
}

func (o *MemoryObserver) Rejections() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.rejected))
	copy(out, o.rejected)
	return out
}

func (o *MemoryObserver) CancelCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled
}
