package types

// Model represents a model served through the batching backend.
type Model struct {
	// Stable identifier for the model, as understood by the backend.
	// example: llama-3-8b
	ID string `json:"id" example:"llama-3-8b"`
	// Human-friendly name.
	// example: Llama 3 8B
	Name string `json:"name" example:"Llama 3 8B"`
	// Optional path of the model artifact on disk, when discovered by scanning.
	// example: /srv/models/llama-3-8b.onnx
	Path string `json:"path,omitempty" example:"/srv/models/llama-3-8b.onnx"`
	// Tensor names every request must carry. Empty means input_ids and attention_mask.
	// example: ["input_ids","attention_mask"]
	Inputs []string `json:"inputs,omitempty"`
	// Optional fixed row width per input. Requests that disagree are rejected.
	// example: {"input_ids":128,"attention_mask":128}
	InputWidths map[string]int `json:"input_widths,omitempty"`
	// Per-model batch size override (0 uses the server default).
	// example: 8
	MaxBatchSize int `json:"max_batch_size,omitempty" example:"8"`
	// Per-model batching window override in milliseconds. Absent uses the
	// server default; 0 closes each batch on the next tick.
	// example: 25
	MaxLatencyMS *int `json:"max_latency_ms,omitempty" example:"25"`
	// Per-model in-flight ceiling override (0 uses the server default).
	// example: 64
	MaxInFlight int `json:"max_in_flight,omitempty" example:"64"`
}
