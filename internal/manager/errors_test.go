package manager

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"batchd/internal/backend"
	"batchd/internal/batcher"
	"batchd/pkg/types"
)

func TestErrorHelpers_Wrapped(t *testing.T) {
	nf := fmt.Errorf("ctx: %w", ErrModelNotFound("x"))
	if !IsModelNotFound(nf) {
		t.Fatalf("IsModelNotFound should see through wrapping")
	}
	dep := fmt.Errorf("ctx: %w", ErrDependencyUnavailable("down"))
	if !IsDependencyUnavailable(dep) || !IsUnavailable(dep) {
		t.Fatalf("dependency helpers failed")
	}
	if !IsUnavailable(batcher.ErrClosed) {
		t.Fatalf("closed batcher should be unavailable")
	}
	if !IsTooBusy(fmt.Errorf("%w: full", batcher.ErrOverloaded)) {
		t.Fatalf("IsTooBusy should match overload")
	}
	if IsTooBusy(errors.New("other")) || IsModelNotFound(errors.New("other")) {
		t.Fatalf("helpers matched unrelated error")
	}
}

func TestInfer_ModelNotFound(t *testing.T) {
	pub := NewMemoryPublisher()
	m := newTestManager(t, ManagerConfig{Registry: testModels("a"), Backend: &backend.Echo{}, Publisher: pub})
	_, err := m.Infer(testCtx(t), types.InferRequest{Model: "missing", Inputs: row(1)})
	if !IsModelNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = m.Infer(testCtx(t), types.InferRequest{Inputs: row(1)})
	if !IsModelNotFound(err) {
		t.Fatalf("no default model: expected not found, got %v", err)
	}
	if names := pub.Names("missing"); len(names) != 1 || names[0] != "ensure_model_not_found" {
		t.Fatalf("events = %v", names)
	}
}

func TestInfer_NoBackend(t *testing.T) {
	m := newTestManager(t, ManagerConfig{Registry: testModels("a"), DefaultModel: "a"})
	_, err := m.Infer(testCtx(t), types.InferRequest{Inputs: row(1)})
	if !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
}

func TestInfer_Overloaded(t *testing.T) {
	be := newGatedBackend()
	m := newTestManager(t, ManagerConfig{
		Registry: testModels("a"), DefaultModel: "a", Backend: be,
		MaxBatchSize: 1, MaxInFlight: 1,
	})
	done := make(chan error, 1)
	go func() {
		_, err := m.Infer(testCtx(t), types.InferRequest{Inputs: row(1)})
		done <- err
	}()
	waitFor(t, "first dispatch", func() bool { return len(be.batchSizes()) == 1 })
	_, err := m.Infer(testCtx(t), types.InferRequest{Inputs: row(2)})
	if !IsTooBusy(err) {
		t.Fatalf("expected too busy, got %v", err)
	}
	close(be.release)
	if err := <-done; err != nil {
		t.Fatalf("first request: %v", err)
	}
}

func TestInfer_BackendFailureAndTimeout(t *testing.T) {
	be := &backend.Echo{Fail: func(batcher.BatchRequest) error { return errors.New("boom") }}
	m := newTestManager(t, ManagerConfig{Registry: testModels("a"), DefaultModel: "a", Backend: be, MaxBatchSize: 1})
	_, err := m.Infer(testCtx(t), types.InferRequest{Inputs: row(1)})
	if !IsBackendFailure(err) {
		t.Fatalf("expected backend failure, got %v", err)
	}

	slow := newGatedBackend()
	m2 := newTestManager(t, ManagerConfig{Registry: testModels("a"), DefaultModel: "a", Backend: slow, MaxBatchSize: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m2.Infer(ctx, types.InferRequest{Inputs: row(1)})
	if !IsCancelled(err) {
		t.Fatalf("expected cancelled, got %v", err)
	}
	close(slow.release)
}
