package manager

import (
	"sort"
	"time"

	"batchd/internal/batcher"
	"batchd/pkg/types"
)

// Snapshot returns a lightweight view of the manager.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.state, Models: len(m.registry), Instances: len(m.instances)}
}

// Stats returns batcher statistics for every live batcher, sorted by model.
func (m *Manager) Stats() []batcher.Stats {
	m.mu.RLock()
	bs := make([]*batcher.Batcher, 0, len(m.instances))
	for _, inst := range m.instances {
		bs = append(bs, inst.Batcher)
	}
	m.mu.RUnlock()

	out := make([]batcher.Stats, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Status builds the /status payload.
func (m *Manager) Status() types.StatusResponse {
	snap := m.Snapshot()
	stats := m.Stats()
	rep := types.StatusResponse{
		Batchers:       make([]types.BatcherStatus, 0, len(stats)),
		DefaultModel:   m.DefaultModel(),
		Models:         snap.Models,
		State:          string(snap.State),
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	if m.backend != nil {
		rep.Backend = m.backend.Name()
	}
	for _, s := range stats {
		rep.Batchers = append(rep.Batchers, types.BatcherStatus{
			ModelID:           s.Model,
			InFlight:          s.InFlight,
			MaxInFlight:       s.MaxInFlight,
			MaxBatchSize:      s.MaxBatchSize,
			MaxLatencyMS:      s.MaxLatency.Milliseconds(),
			CurrentBatchID:    s.CurrentBatchID,
			CurrentBatchSize:  s.CurrentBatchSize,
			CurrentBatchState: s.CurrentBatchState.String(),
			RequestsAdmitted:  s.RequestsAdmitted,
			RequestsRejected:  s.RequestsRejected,
			RequestsCancelled: s.RequestsCancelled,
			BatchesDispatched: s.BatchesDispatched,
			BatchesFailed:     s.BatchesFailed,
			Closed:            s.Closed,
		})
	}
	return rep
}
