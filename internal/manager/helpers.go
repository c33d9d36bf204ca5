package manager

import (
	"time"

	"batchd/internal/batcher"
	"batchd/pkg/types"
)

// getModelByID returns the registry entry for id.
func (m *Manager) getModelByID(id string) (types.Model, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mdl := range m.registry {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

// resolveModelID falls back to the default model when id is empty.
func (m *Manager) resolveModelID(id string) string {
	if id != "" {
		return id
	}
	return m.DefaultModel()
}

// batcherConfigFor merges per-model overrides onto the server-wide settings.
func (m *Manager) batcherConfigFor(mdl types.Model) batcher.Config {
	cfg := batcher.Config{
		Model:           mdl.ID,
		MaxBatchSize:    m.maxBatchSize,
		MaxLatency:      m.maxLatency,
		MaxInFlight:     m.maxInFlight,
		DispatchTimeout: m.dispatchTimeout,
		Inputs:          mdl.Inputs,
		Widths:          mdl.InputWidths,
		Logger:          &m.log,
		Observer:        m.observer,
	}
	if mdl.MaxBatchSize > 0 {
		cfg.MaxBatchSize = mdl.MaxBatchSize
	}
	if mdl.MaxLatencyMS != nil {
		cfg.MaxLatency = time.Duration(*mdl.MaxLatencyMS) * time.Millisecond
	}
	if mdl.MaxInFlight > 0 {
		cfg.MaxInFlight = mdl.MaxInFlight
	}
	return cfg
}

func toPayload(in map[string][][]float64) batcher.Payload {
	p := make(batcher.Payload, len(in))
	for name, t := range in {
		p[name] = batcher.Tensor(t)
	}
	return p
}

func fromPayload(p batcher.Payload) map[string][][]float64 {
	out := make(map[string][][]float64, len(p))
	for name, t := range p {
		out[name] = [][]float64(t)
	}
	return out
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
