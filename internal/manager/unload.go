package manager

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Unload removes the batcher for modelID and drains it. Pending members are
// dispatched; if that takes longer than the drain timeout, outstanding
// backend calls are cancelled. The next request for the model creates a new
// batcher.
func (m *Manager) Unload(modelID string) error {
	m.mu.Lock()
	inst, ok := m.instances[modelID]
	if ok {
		delete(m.instances, modelID)
	}
	m.mu.Unlock()
	if !ok {
		if _, known := m.getModelByID(modelID); !known {
			return ErrModelNotFound(modelID)
		}
		// Known model without a live batcher; nothing to drain.
		return nil
	}

	m.publisher.Publish(Event{Name: "unload_start", ModelID: modelID})
	ctx, cancel := context.WithTimeout(context.Background(), m.drainTimeout)
	defer cancel()
	started := time.Now()
	if err := inst.Batcher.Close(ctx); err != nil {
		m.log.Warn().Str("model", modelID).Dur("drain_timeout", m.drainTimeout).Msg("unload drain timed out")
		m.publisher.Publish(Event{Name: "unload_timeout", ModelID: modelID, Fields: map[string]any{"timeout": m.drainTimeout}})
	}
	m.log.Info().Str("model", modelID).Dur("took", time.Since(started)).Msg("batcher unloaded")
	m.publisher.Publish(Event{Name: "unload_done", ModelID: modelID})
	return nil
}

// Close stops admissions on every batcher and waits for their in-flight
// batches, bounded by ctx. It is safe to call more than once.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	m.state = StateClosing
	insts := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		insts = append(insts, inst)
	}
	m.instances = make(map[string]*Instance)
	m.mu.Unlock()

	var g errgroup.Group
	for _, inst := range insts {
		g.Go(func() error { return inst.Batcher.Close(ctx) })
	}
	err := g.Wait()

	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()
	m.log.Info().Int("batchers", len(insts)).Err(err).Msg("manager closed")
	return err
}
