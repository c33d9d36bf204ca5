package batcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Future is the single-assignment result slot handed back by Admit.
// Exactly one of the dispatcher, a failure path or Cancel writes it.
type Future struct {
	id      string
	arrived time.Time

	once      sync.Once
	done      chan struct{}
	cancelled atomic.Bool
	res       Result
	err       error

	onCancel func()
}

func newFuture(id string, arrived time.Time, onCancel func()) *Future {
	return &Future{id: id, arrived: arrived, done: make(chan struct{}), onCancel: onCancel}
}

// ID returns the request id assigned at admission.
func (f *Future) ID() string { return f.id }

// Arrived returns the admission timestamp.
func (f *Future) Arrived() time.Time { return f.arrived }

// Done is closed once the slot has been written.
func (f *Future) Done() <-chan struct{} { return f.done }

// Cancelled reports whether the caller withdrew before the slot was written.
func (f *Future) Cancelled() bool { return f.cancelled.Load() }

// Wait suspends until the slot is written or ctx is done. When ctx wins the
// request is cancelled; if the dispatcher resolved it concurrently the real
// result is returned instead.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		f.cancel(fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
		<-f.done
		return f.res, f.err
	}
}

// Cancel withdraws the request. Sibling batch members are unaffected; the
// slot keeps its position in the batch but nothing is delivered to it.
func (f *Future) Cancel() { f.cancel(ErrCancelled) }

func (f *Future) cancel(err error) {
	if f.resolve(Result{RequestID: f.id}, err) {
		f.cancelled.Store(true)
		if f.onCancel != nil {
			f.onCancel()
		}
	}
}

// resolve writes the slot. It reports false when the slot was already written.
func (f *Future) resolve(res Result, err error) bool {
	wrote := false
	f.once.Do(func() {
		f.res, f.err = res, err
		wrote = true
		close(f.done)
	})
	return wrote
}
