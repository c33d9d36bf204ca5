package batcher

import (
	"context"
	"time"
)

// Tensor is a row-major block. Each row is one sample (or token) row.
type Tensor [][]float64

// Payload holds named tensors that share the same row count.
type Payload map[string]Tensor

// Rows returns the shared row count of the payload, or 0 when empty.
func (p Payload) Rows() int {
	for _, t := range p {
		return len(t)
	}
	return 0
}

// Request is the unit of admission. ID is assigned at admission when empty.
type Request struct {
	ID      string
	Payload Payload
}

// Boundary locates one item inside a merged payload, in rows.
type Boundary struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// BatchRequest is what the backend receives for one closed batch.
type BatchRequest struct {
	Model      string     `json:"model"`
	BatchID    uint64     `json:"batch_id"`
	Inputs     Payload    `json:"inputs"`
	Boundaries []Boundary `json:"boundaries"`
}

// BatchResponse is the backend's combined result. Boundaries must describe
// the same number of items as the request, in the same order.
type BatchResponse struct {
	Outputs    Payload    `json:"outputs"`
	Boundaries []Boundary `json:"boundaries,omitempty"`
}

// Backend runs one merged batch. Implementations must not retain the request
// after returning.
type Backend interface {
	Infer(ctx context.Context, req BatchRequest) (BatchResponse, error)
	Name() string
}

// Result is what a single admitted request resolves to on success.
type Result struct {
	RequestID      string
	Outputs        Payload
	BatchID        uint64
	Position       int
	BatchSize      int
	QueueWait      time.Duration
	BackendLatency time.Duration
}

// BatchState is the lifecycle of a batch. Transitions only move forward.
type BatchState int

const (
	StateEmpty BatchState = iota
	StateFilling
	StateClosing
	StateDispatched
)

func (s BatchState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFilling:
		return "filling"
	case StateClosing:
		return "closing"
	case StateDispatched:
		return "dispatched"
	default:
		return "unknown"
	}
}

// CloseReason records which threshold closed a batch.
type CloseReason string

const (
	ReasonSize     CloseReason = "size"
	ReasonDeadline CloseReason = "deadline"
	ReasonFlush    CloseReason = "flush"
	// ReasonShape closes a batch early because the next request's row widths
	// cannot be concatenated with its members.
	ReasonShape CloseReason = "shape"
)
