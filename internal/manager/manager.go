package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"batchd/internal/batcher"
	"batchd/pkg/types"
)

// Manager routes inference requests to one batcher per model.
type Manager struct {
	mu           sync.RWMutex
	state        State
	registry     []types.Model
	defaultModel string
	instances    map[string]*Instance

	backend         batcher.Backend
	maxBatchSize    int
	maxLatency      time.Duration
	maxInFlight     int
	dispatchTimeout time.Duration
	drainTimeout    time.Duration

	log       zerolog.Logger
	observer  batcher.Observer
	publisher EventPublisher
	startTime time.Time
}

// New is a shorthand for NewWithConfig with package defaults.
func New(reg []types.Model, backend batcher.Backend, defaultModel string) *Manager {
	return NewWithConfig(ManagerConfig{
		Registry:     reg,
		Backend:      backend,
		DefaultModel: defaultModel,
	})
}

// Ready reports whether the manager accepts traffic: it is not shutting
// down, has a backend and knows at least one model.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.backend != nil && len(m.registry) > 0
}

func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// return a shallow copy to avoid external mutation
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// DefaultModel returns the model used when a request names none.
func (m *Manager) DefaultModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultModel
}
