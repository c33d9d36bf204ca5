package manager

import (
	"context"
	"fmt"
)

// readyChecker is implemented by backends that can report reachability.
type readyChecker interface {
	Ready(ctx context.Context) error
}

// SanityReport summarizes backend reachability for /readyz.
type SanityReport struct {
	Backend   string `json:"backend"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// SanityCheck probes the backend when it supports a readiness check.
// Backends without one are assumed reachable.
func (m *Manager) SanityCheck(ctx context.Context) (SanityReport, error) {
	if m.backend == nil {
		err := ErrDependencyUnavailable("no inference backend configured")
		return SanityReport{Error: err.Error()}, err
	}
	rep := SanityReport{Backend: m.backend.Name(), Reachable: true}
	rc, ok := m.backend.(readyChecker)
	if !ok {
		return rep, nil
	}
	if err := rc.Ready(ctx); err != nil {
		rep.Reachable = false
		rep.Error = err.Error()
		return rep, ErrDependencyUnavailable(fmt.Sprintf("backend %s not ready: %v", rep.Backend, err))
	}
	return rep, nil
}
