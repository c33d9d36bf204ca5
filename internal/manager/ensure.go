package manager

import (
	"fmt"
	"time"

	"batchd/internal/batcher"
)

// EnsureBatcher returns the batcher for modelID, creating it on first use.
// Creation is cheap: a batcher starts no goroutines until its first batch
// closes.
func (m *Manager) EnsureBatcher(modelID string) (*batcher.Batcher, error) {
	// Fast path: already live.
	m.mu.Lock()
	if inst, ok := m.instances[modelID]; ok {
		inst.LastUsed = time.Now()
		b := inst.Batcher
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()

	mdl, ok := m.getModelByID(modelID)
	if !ok {
		m.publisher.Publish(Event{Name: "ensure_model_not_found", ModelID: modelID})
		return nil, ErrModelNotFound(modelID)
	}
	if m.backend == nil {
		return nil, ErrDependencyUnavailable("no inference backend configured")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady {
		return nil, batcher.ErrClosed
	}
	// Another caller may have won the race while the lock was released.
	if inst, ok := m.instances[modelID]; ok {
		inst.LastUsed = time.Now()
		return inst.Batcher, nil
	}
	b, err := batcher.New(m.backend, m.batcherConfigFor(mdl))
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", modelID, err)
	}
	now := time.Now()
	m.instances[modelID] = &Instance{ID: modelID, Model: mdl, Created: now, LastUsed: now, Batcher: b}
	st := b.Stats()
	m.log.Info().
		Str("model", modelID).
		Int("max_batch_size", st.MaxBatchSize).
		Dur("max_latency", st.MaxLatency).
		Int("max_in_flight", st.MaxInFlight).
		Msg("batcher created")
	m.publisher.Publish(Event{Name: "batcher_created", ModelID: modelID, Fields: map[string]any{
		"max_batch_size": st.MaxBatchSize,
		"max_in_flight":  st.MaxInFlight,
	}})
	return b, nil
}
