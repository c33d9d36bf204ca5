package manager

import (
	"time"

	"github.com/rs/zerolog"

	"batchd/internal/batcher"
	"batchd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxBatchSize = 8
	defaultDrainTimeout = 5 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry     []types.Model
	DefaultModel string
	Backend      batcher.Backend

	// Server-wide batching settings; models may override them.
	MaxBatchSize    int
	MaxLatency      time.Duration
	MaxInFlight     int
	DispatchTimeout time.Duration

	// DrainTimeout bounds Unload waiting for in-flight batches.
	DrainTimeout time.Duration

	Logger    *zerolog.Logger
	Observer  batcher.Observer
	Publisher EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:           StateReady,
		registry:        append([]types.Model(nil), cfg.Registry...),
		defaultModel:    cfg.DefaultModel,
		backend:         cfg.Backend,
		instances:       make(map[string]*Instance),
		maxLatency:      cfg.MaxLatency,
		maxInFlight:     cfg.MaxInFlight,
		dispatchTimeout: cfg.DispatchTimeout,
		observer:        cfg.Observer,
		publisher:       cfg.Publisher,
		startTime:       time.Now(),
	}
	// Apply defaults if unset
	if cfg.MaxBatchSize <= 0 {
		m.maxBatchSize = defaultMaxBatchSize
	} else {
		m.maxBatchSize = cfg.MaxBatchSize
	}
	if m.maxLatency < 0 {
		m.maxLatency = 0
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	} else {
		m.log = zerolog.Nop()
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	return m
}
