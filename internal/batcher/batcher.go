package batcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

type pending struct {
	req    Request
	future *Future
}

// batch is owned by the Batcher while current and by its dispatch goroutine
// once dispatched. items is never appended to after the batch leaves filling.
type batch struct {
	id      uint64
	items   []*pending
	state   BatchState
	created time.Time
	timer   *time.Timer
	// widths holds the row width of each input, fixed by the first member.
	widths map[string]int
}

// Batcher coalesces admitted requests for one model into bounded batches.
// The current batch is the only mutable shared state and is guarded by mu;
// the lock is never held across a backend call.
type Batcher struct {
	backend Backend
	cfg     Config
	log     zerolog.Logger
	obs     Observer
	inputs  map[string]struct{}

	sem      *semaphore.Weighted
	inFlight atomic.Int64

	mu     sync.Mutex
	cur    *batch
	nextID uint64
	closed bool

	dispatching sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	seq        atomic.Uint64
	admitted   atomic.Uint64
	rejected   atomic.Uint64
	cancelled  atomic.Uint64
	dispatched atomic.Uint64
	failed     atomic.Uint64
}

// Stats is a point-in-time view of a Batcher.
type Stats struct {
	Model             string
	InFlight          int
	MaxInFlight       int
	MaxBatchSize      int
	MaxLatency        time.Duration
	CurrentBatchID    uint64
	CurrentBatchSize  int
	CurrentBatchState BatchState
	RequestsAdmitted  uint64
	RequestsRejected  uint64
	RequestsCancelled uint64
	BatchesDispatched uint64
	BatchesFailed     uint64
	Closed            bool
}

// New constructs a Batcher for one model.
func New(backend Backend, cfg Config) (*Batcher, error) {
	if backend == nil {
		return nil, errors.New("backend must not be nil")
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	b := &Batcher{
		backend: backend,
		cfg:     cfg,
		log:     cfg.Logger.With().Str("model", cfg.Model).Logger(),
		obs:     cfg.Observer,
		inputs:  make(map[string]struct{}, len(cfg.Inputs)),
		sem:     semaphore.NewWeighted(int64(cfg.MaxInFlight)),
	}
	for _, name := range cfg.Inputs {
		b.inputs[name] = struct{}{}
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.cur = b.newBatchLocked()
	return b, nil
}

// Model returns the model identifier this batcher serves.
func (b *Batcher) Model() string { return b.cfg.Model }

// Admit validates req, reserves an in-flight slot and appends it to the
// current batch. It never blocks on dispatch: the returned Future is resolved
// later by the dispatcher, a failure path or Cancel.
func (b *Batcher) Admit(req Request) (*Future, error) {
	widths, err := b.validate(req.Payload)
	if err != nil {
		b.obs.Rejected(b.cfg.Model, "invalid")
		return nil, err
	}
	if !b.sem.TryAcquire(1) {
		b.rejected.Add(1)
		b.obs.Rejected(b.cfg.Model, "overloaded")
		return nil, fmt.Errorf("%w: %s has %d requests in flight", ErrOverloaded, b.cfg.Model, b.cfg.MaxInFlight)
	}
	if req.ID == "" {
		req.ID = fmt.Sprintf("%s-%d", b.cfg.Model, b.seq.Add(1))
	}
	now := time.Now()
	f := newFuture(req.ID, now, b.noteCancel)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.sem.Release(1)
		b.obs.Rejected(b.cfg.Model, "closed")
		return nil, ErrClosed
	}
	b.inFlight.Add(1)
	if len(b.cur.items) > 0 && !sameWidths(b.cur.widths, widths) {
		b.closeLocked(ReasonShape, now)
	}
	cur := b.cur
	cur.items = append(cur.items, &pending{req: req, future: f})
	if len(cur.items) == 1 {
		cur.state = StateFilling
		cur.created = now
		cur.widths = widths
	}
	if len(cur.items) >= b.cfg.MaxBatchSize {
		b.closeLocked(ReasonSize, now)
	} else if len(cur.items) == 1 {
		b.armLocked(cur)
	}
	b.mu.Unlock()

	b.admitted.Add(1)
	return f, nil
}

// Submit admits req and suspends until its result is ready or ctx is done.
func (b *Batcher) Submit(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	f, err := b.Admit(req)
	if err != nil {
		return Result{}, err
	}
	return f.Wait(ctx)
}

// Flush closes and dispatches the current batch if it has members.
func (b *Batcher) Flush() {
	b.mu.Lock()
	b.closeLocked(ReasonFlush, time.Now())
	b.mu.Unlock()
}

// Close stops admission, dispatches whatever is pending and waits for all
// outstanding backend calls. If ctx expires first, outstanding calls are
// cancelled and their members resolve with a backend failure.
func (b *Batcher) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.closeLocked(ReasonFlush, time.Now())
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.dispatching.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-done
		return ctx.Err()
	}
}

// Stats returns counters and the shape of the current batch.
func (b *Batcher) Stats() Stats {
	b.mu.Lock()
	cur := b.cur
	s := Stats{
		CurrentBatchID:    cur.id,
		CurrentBatchSize:  len(cur.items),
		CurrentBatchState: cur.state,
		Closed:            b.closed,
	}
	b.mu.Unlock()
	s.Model = b.cfg.Model
	s.InFlight = int(b.inFlight.Load())
	s.MaxInFlight = b.cfg.MaxInFlight
	s.MaxBatchSize = b.cfg.MaxBatchSize
	s.MaxLatency = b.cfg.MaxLatency
	s.RequestsAdmitted = b.admitted.Load()
	s.RequestsRejected = b.rejected.Load()
	s.RequestsCancelled = b.cancelled.Load()
	s.BatchesDispatched = b.dispatched.Load()
	s.BatchesFailed = b.failed.Load()
	return s
}

func (b *Batcher) newBatchLocked() *batch {
	b.nextID++
	return &batch{id: b.nextID, state: StateEmpty}
}

// armLocked starts the flush deadline for bt. The callback carries the batch
// id so a timer that fires after bt was closed by size cannot touch its
// successor.
func (b *Batcher) armLocked(bt *batch) {
	id := bt.id
	bt.timer = time.AfterFunc(b.cfg.MaxLatency, func() { b.onDeadline(id) })
}

func (b *Batcher) onDeadline(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur.id != id || b.cur.state != StateFilling {
		return
	}
	b.cur.timer = nil
	b.closeLocked(ReasonDeadline, time.Now())
}

// closeLocked moves the current batch through closing to dispatched and
// installs a fresh empty batch in the same critical section. An empty
// current batch is left untouched.
func (b *Batcher) closeLocked(reason CloseReason, now time.Time) {
	bt := b.cur
	if len(bt.items) == 0 {
		return
	}
	if bt.timer != nil {
		bt.timer.Stop()
		bt.timer = nil
	}
	bt.state = StateClosing
	b.cur = b.newBatchLocked()

	b.obs.BatchClosed(BatchClosedEvent{
		Model:    b.cfg.Model,
		BatchID:  bt.id,
		Size:     len(bt.items),
		FillTime: now.Sub(bt.created),
		Reason:   reason,
	})
	bt.state = StateDispatched
	b.dispatching.Add(1)
	go b.dispatch(bt)
}

func (b *Batcher) noteCancel() {
	b.cancelled.Add(1)
	b.obs.Cancelled(b.cfg.Model)
}

// validate checks p against the declared inputs and returns the row width of
// each one.
func (b *Batcher) validate(p Payload) (map[string]int, error) {
	if len(p) == 0 {
		return nil, invalidf("payload has no tensors")
	}
	for name := range p {
		if _, ok := b.inputs[name]; !ok {
			return nil, invalidf("unexpected input %q", name)
		}
	}
	widths := make(map[string]int, len(b.cfg.Inputs))
	rows := -1
	for _, name := range b.cfg.Inputs {
		t, ok := p[name]
		if !ok {
			return nil, invalidf("missing input %q", name)
		}
		if len(t) == 0 {
			return nil, invalidf("input %q has no rows", name)
		}
		if rows >= 0 && len(t) != rows {
			return nil, invalidf("input %q has %d rows, expected %d", name, len(t), rows)
		}
		rows = len(t)
		width := len(t[0])
		if width == 0 {
			return nil, invalidf("input %q has empty rows", name)
		}
		for i, row := range t {
			if len(row) != width {
				return nil, invalidf("input %q row %d has width %d, expected %d", name, i, len(row), width)
			}
		}
		if want, ok := b.cfg.Widths[name]; ok && want > 0 && width != want {
			return nil, invalidf("input %q has width %d, model expects %d", name, width, want)
		}
		widths[name] = width
	}
	return widths, nil
}

func sameWidths(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for name, w := range a {
		if b[name] != w {
			return false
		}
	}
	return true
}
