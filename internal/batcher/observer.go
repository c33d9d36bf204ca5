package batcher

import "time"

// BatchClosedEvent is emitted once per batch when it leaves the filling state.
type BatchClosedEvent struct {
	Model    string
	BatchID  uint64
	Size     int
	FillTime time.Duration
	Reason   CloseReason
}

// BatchDispatchedEvent is emitted once per backend call.
type BatchDispatchedEvent struct {
	Model   string
	BatchID uint64
	Size    int
	Latency time.Duration
	Err     error
}

// Observer receives batching telemetry. Implementations must be cheap and
// must not block; they are called from admission and dispatch paths.
type Observer interface {
	BatchClosed(BatchClosedEvent)
	BatchDispatched(BatchDispatchedEvent)
	Rejected(model, reason string)
	Cancelled(model string)
}

// NopObserver drops everything.
type NopObserver struct{}

func (NopObserver) BatchClosed(BatchClosedEvent)         {}
func (NopObserver) BatchDispatched(BatchDispatchedEvent) {}
func (NopObserver) Rejected(string, string)              {}
func (NopObserver) Cancelled(string)                     {}
