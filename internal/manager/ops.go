package manager

import "batchd/pkg/types"

// Flush dispatches the current batch of modelID immediately. A model with
// no live batcher has nothing to flush.
func (m *Manager) Flush(modelID string) error {
	m.mu.RLock()
	inst, ok := m.instances[modelID]
	m.mu.RUnlock()
	if ok {
		inst.Batcher.Flush()
		return nil
	}
	if _, known := m.getModelByID(modelID); !known {
		return ErrModelNotFound(modelID)
	}
	return nil
}

// SetRegistry replaces the model registry. Batchers of models that
// disappeared are drained in the background.
func (m *Manager) SetRegistry(reg []types.Model) {
	keep := make(map[string]struct{}, len(reg))
	for _, mdl := range reg {
		keep[mdl.ID] = struct{}{}
	}
	m.mu.Lock()
	m.registry = append([]types.Model(nil), reg...)
	var gone []string
	for id := range m.instances {
		if _, ok := keep[id]; !ok {
			gone = append(gone, id)
		}
	}
	m.mu.Unlock()

	m.publisher.Publish(Event{Name: "registry_updated", Fields: map[string]any{
		"models":  len(reg),
		"removed": len(gone),
	}})
	for _, id := range gone {
		go func() { _ = m.Unload(id) }()
	}
}
