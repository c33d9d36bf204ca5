package backend

import (
	"context"
	"sync/atomic"
	"time"

	"batchd/internal/batcher"
)

// Echo is an in-process backend that returns every input tensor as an
// output of the same name. It is used for local runs and tests.
type Echo struct {
	// Latency is slept (honouring ctx) before answering.
	Latency time.Duration
	// Fail, when set, is consulted per call; a non-nil error fails the batch.
	Fail func(batcher.BatchRequest) error

	calls atomic.Uint64
}

func (e *Echo) Name() string { return "echo" }

// Calls returns how many batches have been served.
func (e *Echo) Calls() uint64 { return e.calls.Load() }

func (e *Echo) Infer(ctx context.Context, req batcher.BatchRequest) (batcher.BatchResponse, error) {
	e.calls.Add(1)
	if e.Latency > 0 {
		t := time.NewTimer(e.Latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return batcher.BatchResponse{}, ctx.Err()
		}
	}
	if e.Fail != nil {
		if err := e.Fail(req); err != nil {
			return batcher.BatchResponse{}, err
		}
	}
	out := make(batcher.Payload, len(req.Inputs))
	for name, t := range req.Inputs {
		out[name] = t
	}
	bounds := make([]batcher.Boundary, len(req.Boundaries))
	copy(bounds, req.Boundaries)
	return batcher.BatchResponse{Outputs: out, Boundaries: bounds}, nil
}
