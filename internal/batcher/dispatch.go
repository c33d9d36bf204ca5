package batcher

import (
	"context"
	"fmt"
	"time"
)

// dispatch runs one closed batch against the backend and resolves every
// member. It owns bt exclusively and never takes b.mu.
func (b *Batcher) dispatch(bt *batch) {
	defer b.dispatching.Done()
	n := len(bt.items)
	defer func() {
		b.inFlight.Add(-int64(n))
		b.sem.Release(int64(n))
	}()

	inputs, bounds := merge(b.cfg.Inputs, bt.items)
	started := time.Now()
	resp, err := b.invoke(bt.id, inputs, bounds)
	latency := time.Since(started)

	var outputs []Payload
	if err == nil {
		outputs, err = split(resp, bounds)
	}
	b.dispatched.Add(1)
	if err != nil {
		err = &BackendError{Model: b.cfg.Model, BatchID: bt.id, Size: n, Err: err}
		b.failed.Add(1)
		b.log.Error().
			Str("backend", b.backend.Name()).
			Uint64("batch_id", bt.id).
			Int("batch_size", n).
			Dur("backend_latency", latency).
			Err(err).
			Msg("batch_failed")
		b.failAll(bt, err)
	} else {
		b.log.Debug().
			Str("backend", b.backend.Name()).
			Uint64("batch_id", bt.id).
			Int("batch_size", n).
			Dur("backend_latency", latency).
			Msg("batch_dispatched")
		b.deliver(bt, outputs, started, latency)
	}
	b.obs.BatchDispatched(BatchDispatchedEvent{
		Model:   b.cfg.Model,
		BatchID: bt.id,
		Size:    n,
		Latency: latency,
		Err:     err,
	})
}

// invoke calls the backend, turning a panic into an error so that every
// member still gets resolved.
func (b *Batcher) invoke(batchID uint64, inputs Payload, bounds []Boundary) (resp BatchResponse, err error) {
	ctx := b.ctx
	if b.cfg.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.DispatchTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return b.backend.Infer(ctx, BatchRequest{
		Model:      b.cfg.Model,
		BatchID:    batchID,
		Inputs:     inputs,
		Boundaries: bounds,
	})
}

func (b *Batcher) deliver(bt *batch, outputs []Payload, started time.Time, latency time.Duration) {
	for i, p := range bt.items {
		if p.future.Cancelled() {
			continue
		}
		wait := started.Sub(p.future.Arrived())
		if wait < 0 {
			wait = 0
		}
		p.future.resolve(Result{
			RequestID:      p.req.ID,
			Outputs:        outputs[i],
			BatchID:        bt.id,
			Position:       i,
			BatchSize:      len(bt.items),
			QueueWait:      wait,
			BackendLatency: latency,
		}, nil)
	}
}

func (b *Batcher) failAll(bt *batch, err error) {
	for _, p := range bt.items {
		if p.future.Cancelled() {
			continue
		}
		p.future.resolve(Result{RequestID: p.req.ID, BatchID: bt.id}, err)
	}
}

// merge concatenates member payloads in batch order. Cancelled members are
// kept so positions stay aligned with the backend response.
func merge(names []string, items []*pending) (Payload, []Boundary) {
	bounds := make([]Boundary, len(items))
	total := 0
	for i, p := range items {
		rows := p.req.Payload.Rows()
		bounds[i] = Boundary{Offset: total, Length: rows}
		total += rows
	}
	merged := make(Payload, len(names))
	for _, name := range names {
		t := make(Tensor, 0, total)
		for _, p := range items {
			t = append(t, p.req.Payload[name]...)
		}
		merged[name] = t
	}
	return merged, bounds
}

// split cuts the combined outputs back into one payload per member. When the
// backend omits boundaries but every output is row-aligned with the merged
// input, the request boundaries are reused.
func split(resp BatchResponse, reqBounds []Boundary) ([]Payload, error) {
	if len(resp.Outputs) == 0 {
		return nil, fmt.Errorf("backend returned no outputs")
	}
	bounds := resp.Boundaries
	if len(bounds) == 0 {
		total := 0
		if n := len(reqBounds); n > 0 {
			total = reqBounds[n-1].Offset + reqBounds[n-1].Length
		}
		for name, t := range resp.Outputs {
			if len(t) != total {
				return nil, fmt.Errorf("backend returned no boundaries and output %q has %d rows for %d input rows", name, len(t), total)
			}
		}
		bounds = reqBounds
	}
	if len(bounds) != len(reqBounds) {
		return nil, fmt.Errorf("backend returned %d items for %d requests", len(bounds), len(reqBounds))
	}
	out := make([]Payload, len(bounds))
	for i, bd := range bounds {
		if bd.Offset < 0 || bd.Length < 0 {
			return nil, fmt.Errorf("item %d has invalid boundary %+v", i, bd)
		}
		end := bd.Offset + bd.Length
		p := make(Payload, len(resp.Outputs))
		for name, t := range resp.Outputs {
			if end > len(t) {
				return nil, fmt.Errorf("item %d boundary %+v exceeds output %q with %d rows", i, bd, name, len(t))
			}
			p[name] = t[bd.Offset:end:end]
		}
		out[i] = p
	}
	return out, nil
}
