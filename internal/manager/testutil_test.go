package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"batchd/internal/backend"
	"batchd/internal/batcher"
	"batchd/pkg/types"
)

// gatedBackend echoes its inputs but holds every call until release is closed.
type gatedBackend struct {
	backend.Echo
	release chan struct{}

	mu    sync.Mutex
	sizes []int
}

func newGatedBackend() *gatedBackend { return &gatedBackend{release: make(chan struct{})} }

func (g *gatedBackend) Infer(ctx context.Context, req batcher.BatchRequest) (batcher.BatchResponse, error) {
	g.mu.Lock()
	g.sizes = append(g.sizes, len(req.Boundaries))
	g.mu.Unlock()
	select {
	case <-g.release:
	case <-ctx.Done():
		return batcher.BatchResponse{}, ctx.Err()
	}
	return g.Echo.Infer(ctx, req)
}

func (g *gatedBackend) batchSizes() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int(nil), g.sizes...)
}

// readyBackend reports a fixed readiness result.
type readyBackend struct {
	backend.Echo
	err error
}

func (r *readyBackend) Ready(context.Context) error { return r.err }

func testModels(ids ...string) []types.Model {
	out := make([]types.Model, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.Model{ID: id, Name: id})
	}
	return out
}

func row(v float64) map[string][][]float64 {
	return map[string][][]float64{
		"input_ids":      {{v, v + 1}},
		"attention_mask": {{1, 1}},
	}
}

func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	m := NewWithConfig(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
