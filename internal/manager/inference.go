package manager

import (
	"context"

	"batchd/internal/batcher"
	"batchd/pkg/types"
)

// Infer admits req into its model's batcher and waits for the caller's slice
// of the batched result or for ctx to end.
func (m *Manager) Infer(ctx context.Context, req types.InferRequest) (types.InferResponse, error) {
	modelID := m.resolveModelID(req.Model)
	if modelID == "" {
		return types.InferResponse{}, ErrModelNotFound("(unspecified)")
	}
	breq := batcher.Request{ID: req.ID, Payload: toPayload(req.Inputs)}

	b, err := m.EnsureBatcher(modelID)
	if err != nil {
		return types.InferResponse{}, err
	}
	res, err := b.Submit(ctx, breq)
	if batcher.IsClosed(err) {
		// The batcher was unloaded between lookup and admission; a running
		// manager hands out a fresh one.
		if b, err = m.EnsureBatcher(modelID); err != nil {
			return types.InferResponse{}, err
		}
		res, err = b.Submit(ctx, breq)
	}
	if err != nil {
		return types.InferResponse{}, err
	}
	return types.InferResponse{
		ID:          res.RequestID,
		Model:       modelID,
		Outputs:     fromPayload(res.Outputs),
		BatchID:     res.BatchID,
		BatchSize:   res.BatchSize,
		Position:    res.Position,
		QueueWaitMS: millis(res.QueueWait),
		BackendMS:   millis(res.BackendLatency),
	}, nil
}
