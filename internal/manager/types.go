package manager

import (
	"time"

	"batchd/internal/batcher"
	"batchd/pkg/types"
)

// State represents lifecycle state of the manager.
type State string

const (
	StateReady   State = "ready"
	StateClosing State = "closing"
	StateClosed  State = "closed"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State     State
	Models    int
	Instances int
}

// Instance is a live batcher for one model id.
type Instance struct {
	ID       string
	Model    types.Model
	Created  time.Time
	LastUsed time.Time
	Batcher  *batcher.Batcher
}
