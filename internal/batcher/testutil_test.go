package batcher

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeBackend echoes input_ids as logits unless respond or err is set.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []BatchRequest
	failNext int
	err      error
	gate     chan struct{}
	respond  func(BatchRequest) (BatchResponse, error)
	panicMsg string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Infer(ctx context.Context, req BatchRequest) (BatchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	gate := f.gate
	fail := f.failNext > 0
	if fail {
		f.failNext--
	}
	err := f.err
	respond := f.respond
	panicMsg := f.panicMsg
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return BatchResponse{}, ctx.Err()
		}
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if fail && err != nil {
		return BatchResponse{}, err
	}
	if respond != nil {
		return respond(req)
	}
	return BatchResponse{
		Outputs:    Payload{"logits": req.Inputs["input_ids"]},
		Boundaries: req.Boundaries,
	}, nil
}

func (f *fakeBackend) Calls() []BatchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]BatchRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

// payload builds a request payload whose input_ids rows all hold v.
func payload(v float64, rows int) Payload {
	ids := make(Tensor, rows)
	mask := make(Tensor, rows)
	for i := range ids {
		ids[i] = []float64{v, v}
		mask[i] = []float64{1, 1}
	}
	return Payload{"input_ids": ids, "attention_mask": mask}
}

func newTestBatcher(t *testing.T, be Backend, cfg Config) (*Batcher, *MemoryObserver) {
	t.Helper()
	obs := NewMemoryObserver()
	if cfg.Observer == nil {
		cfg.Observer = obs
	}
	if cfg.Model == "" {
		cfg.Model = "m"
	}
	b, err := New(be, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = b.Close(ctx)
	})
	return b, obs
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func isDone(f *Future) bool {
	select {
	case <-f.Done():
		return true
	default:
		return false
	}
}
