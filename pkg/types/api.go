package types

// InferRequest represents an inference request payload.
type InferRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: llama-3-8b
	Model string `json:"model,omitempty" example:"llama-3-8b"`
	// Optional client-supplied request id, echoed in the response.
	// example: req-42
	ID string `json:"id,omitempty" example:"req-42"`
	// Named input tensors; every tensor must have the same number of rows.
	Inputs map[string][][]float64 `json:"inputs"`
	// Optional per-request wait limit in milliseconds; capped by the server limit.
	// example: 2000
	TimeoutMS int `json:"timeout_ms,omitempty" example:"2000"`
}

// InferResponse is the caller's slice of a batched backend result.
type InferResponse struct {
	// Request id (client supplied or generated).
	// example: req-42
	ID string `json:"id" example:"req-42"`
	// Model that served the request.
	// example: llama-3-8b
	Model string `json:"model" example:"llama-3-8b"`
	// Output tensors for this request only.
	Outputs map[string][][]float64 `json:"outputs"`
	// Identifier of the batch this request was dispatched in.
	// example: 17
	BatchID uint64 `json:"batch_id" example:"17"`
	// Number of requests in that batch.
	// example: 8
	BatchSize int `json:"batch_size" example:"8"`
	// Position of this request inside the batch.
	// example: 3
	Position int `json:"position" example:"3"`
	// Time spent waiting for the batch to close, in milliseconds.
	// example: 12.5
	QueueWaitMS float64 `json:"queue_wait_ms" example:"12.5"`
	// Backend call latency for the whole batch, in milliseconds.
	// example: 40.2
	BackendMS float64 `json:"backend_ms" example:"40.2"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// BatcherStatus summarizes one model's batcher for /status.
type BatcherStatus struct {
	// ID of the model this batcher serves.
	// example: llama-3-8b
	ModelID string `json:"model_id" example:"llama-3-8b"`
	// Admitted requests not yet finished by the dispatcher.
	// example: 5
	InFlight int `json:"inflight" example:"5"`
	// Backpressure ceiling.
	// example: 64
	MaxInFlight int `json:"max_in_flight" example:"64"`
	// Configured batch size.
	// example: 8
	MaxBatchSize int `json:"max_batch_size" example:"8"`
	// Configured batching window in milliseconds.
	// example: 25
	MaxLatencyMS int64 `json:"max_latency_ms" example:"25"`
	// Id of the batch currently open for appends.
	// example: 18
	CurrentBatchID uint64 `json:"current_batch_id" example:"18"`
	// Members of the current batch.
	// example: 2
	CurrentBatchSize int `json:"current_batch_size" example:"2"`
	// State of the current batch (empty, filling).
	// example: filling
	CurrentBatchState string `json:"current_batch_state" example:"filling"`
	// example: 1200
	RequestsAdmitted uint64 `json:"requests_admitted" example:"1200"`
	// example: 3
	RequestsRejected uint64 `json:"requests_rejected" example:"3"`
	// example: 1
	RequestsCancelled uint64 `json:"requests_cancelled" example:"1"`
	// example: 160
	BatchesDispatched uint64 `json:"batches_dispatched" example:"160"`
	// example: 0
	BatchesFailed uint64 `json:"batches_failed" example:"0"`
	// True once the batcher stopped admitting (unload or shutdown).
	Closed bool `json:"closed,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Active batchers, one per model that has received traffic.
	Batchers []BatcherStatus `json:"batchers"`
	// Backend kind in use (nim, echo).
	// example: nim
	Backend string `json:"backend" example:"nim"`
	// Default model used when a request omits one.
	// example: llama-3-8b
	DefaultModel string `json:"default_model,omitempty" example:"llama-3-8b"`
	// Number of models known to the registry.
	// example: 3
	Models int `json:"models" example:"3"`
	// Overall manager state (ready, closing).
	// example: ready
	State string `json:"state" example:"ready"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
